package testutils

import (
	"encoding/json"
	"fmt"

	"github.com/mcuadros/go-defaults"
	"github.com/yudai/gojsondiff"
	"github.com/yudai/gojsondiff/formatter"
)

// AnyValue in expected JSON matches whatever value the actual document has at
// that position, as long as the key is present.
const AnyValue = "<<ANY>>"

// JSONAssertOptions controls structural JSON comparison.
type JSONAssertOptions struct {
	IgnoreExtraKeys bool     `default:"true"`
	AllowAnyValue   bool     `default:"true"`
	IgnoredFields   []string `default:""`
}

// JSONOption is a functional option for JSONAsserter.
type JSONOption func(*JSONAssertOptions)

func WithIgnoreExtraKeys(v bool) JSONOption {
	return func(o *JSONAssertOptions) { o.IgnoreExtraKeys = v }
}

func WithAllowAnyValue(v bool) JSONOption {
	return func(o *JSONAssertOptions) { o.AllowAnyValue = v }
}

func WithIgnoredFields(fields ...string) JSONOption {
	return func(o *JSONAssertOptions) { o.IgnoredFields = fields }
}

// JSONAsserter compares JSON documents and reports a gojsondiff delta on mismatch.
type JSONAsserter struct {
	t       TestingT
	options JSONAssertOptions
}

func NewJSONAsserter(t TestingT, opts ...JSONOption) *JSONAsserter {
	o := JSONAssertOptions{}
	defaults.SetDefaults(&o)
	for _, opt := range opts {
		opt(&o)
	}
	return &JSONAsserter{t: t, options: o}
}

// Options returns a copy of the effective options.
func (ja *JSONAsserter) Options() JSONAssertOptions { return ja.options }

// Assert fails the test when the documents differ.
func (ja *JSONAsserter) Assert(actualJSON, expectedJSON string) bool {
	if d := ja.Diff(actualJSON, expectedJSON); d != "" {
		ja.t.Errorf("JSON mismatch:\n%s", d)
		return false
	}
	return true
}

// Diff returns a readable delta, or "" when the documents match.
func (ja *JSONAsserter) Diff(actualJSON, expectedJSON string) string {
	var expected, actual any
	if err := json.Unmarshal([]byte(expectedJSON), &expected); err != nil {
		return fmt.Sprintf("invalid expected JSON: %v", err)
	}
	if err := json.Unmarshal([]byte(actualJSON), &actual); err != nil {
		return fmt.Sprintf("invalid actual JSON: %v", err)
	}

	// gojsondiff compares objects only.
	if _, ok := expected.([]any); ok {
		expected = map[string]any{"items": expected}
		actual = map[string]any{"items": actual}
	}

	ja.prepare(expected, actual)

	eb, _ := json.Marshal(expected)
	ab, _ := json.Marshal(actual)
	diff, err := gojsondiff.New().Compare(eb, ab)
	if err != nil {
		return fmt.Sprintf("JSON comparison failed: %v", err)
	}
	if !diff.Modified() {
		return ""
	}

	var left map[string]any
	_ = json.Unmarshal(eb, &left)
	f := formatter.NewAsciiFormatter(left, formatter.AsciiFormatterConfig{ShowArrayIndex: true})
	out, err := f.Format(diff)
	if err != nil {
		return fmt.Sprintf("JSON documents differ (format failed: %v)", err)
	}
	return out
}

// prepare walks both documents in step and applies the options to actual and
// expected in place.
func (ja *JSONAsserter) prepare(expected, actual any) {
	switch exp := expected.(type) {
	case map[string]any:
		act, ok := actual.(map[string]any)
		if !ok {
			return
		}
		for _, f := range ja.options.IgnoredFields {
			delete(exp, f)
			delete(act, f)
		}
		if ja.options.IgnoreExtraKeys {
			for k := range act {
				if _, keep := exp[k]; !keep {
					delete(act, k)
				}
			}
		}
		for k, v := range exp {
			if s, isStr := v.(string); isStr && s == AnyValue && ja.options.AllowAnyValue {
				if av, present := act[k]; present {
					exp[k] = av
				}
				continue
			}
			ja.prepare(v, act[k])
		}
	case []any:
		act, ok := actual.([]any)
		if !ok {
			return
		}
		for i := range exp {
			if i < len(act) {
				ja.prepare(exp[i], act[i])
			}
		}
	}
}

// MustJSON marshals v or panics.
func MustJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(data)
}
