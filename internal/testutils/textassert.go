package testutils

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/hexops/gotextdiff"
	"github.com/hexops/gotextdiff/myers"
	"github.com/mcuadros/go-defaults"
)

// TestingT is the subset of testing.TB the asserters need.
type TestingT interface {
	Errorf(format string, args ...any)
}

// TextAssertOptions controls how text is normalized before comparison.
type TextAssertOptions struct {
	TrimSpace                bool `default:"true"`
	IgnoreTrailingWhitespace bool `default:"true"`
	IgnoreEmptyLines         bool `default:"false"`
	StripANSI                bool `default:"true"`
	EnableColors             bool `default:"false"`
}

// TextOption is a functional option for TextAsserter.
type TextOption func(*TextAssertOptions)

func WithTrimSpace(v bool) TextOption {
	return func(o *TextAssertOptions) { o.TrimSpace = v }
}

func WithIgnoreTrailingWhitespace(v bool) TextOption {
	return func(o *TextAssertOptions) { o.IgnoreTrailingWhitespace = v }
}

func WithIgnoreEmptyLines(v bool) TextOption {
	return func(o *TextAssertOptions) { o.IgnoreEmptyLines = v }
}

func WithStripANSI(v bool) TextOption {
	return func(o *TextAssertOptions) { o.StripANSI = v }
}

func WithEnableColors(v bool) TextOption {
	return func(o *TextAssertOptions) { o.EnableColors = v }
}

// TextAsserter compares multi-line text and reports a unified diff on mismatch.
// It is used for tree listings and console output.
type TextAsserter struct {
	t       TestingT
	options TextAssertOptions
}

func NewTextAsserter(t TestingT, opts ...TextOption) *TextAsserter {
	o := TextAssertOptions{}
	defaults.SetDefaults(&o)
	for _, opt := range opts {
		opt(&o)
	}
	return &TextAsserter{t: t, options: o}
}

// Options returns a copy of the effective options.
func (ta *TextAsserter) Options() TextAssertOptions { return ta.options }

// Assert fails the test when actual and expected differ after normalization.
func (ta *TextAsserter) Assert(actual, expected string) bool {
	if d := ta.Diff(actual, expected); d != "" {
		ta.t.Errorf("text mismatch (-expected +actual):\n%s", d)
		return false
	}
	return true
}

// Diff returns the unified diff between expected and actual, or "" when equal.
func (ta *TextAsserter) Diff(actual, expected string) string {
	a, e := ta.normalize(actual), ta.normalize(expected)
	if a == e {
		return ""
	}
	edits := myers.ComputeEdits("", e, a)
	unified := fmt.Sprint(gotextdiff.ToUnified("expected", "actual", e, edits))
	if !ta.options.EnableColors {
		return unified
	}
	return colorize(unified)
}

func (ta *TextAsserter) normalize(s string) string {
	if ta.options.StripANSI {
		s = StripANSI(s)
	}
	if ta.options.TrimSpace {
		s = strings.TrimSpace(s)
	}
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, l := range lines {
		if ta.options.IgnoreTrailingWhitespace {
			l = strings.TrimRight(l, " \t\r")
		}
		if ta.options.IgnoreEmptyLines && strings.TrimSpace(l) == "" {
			continue
		}
		out = append(out, l)
	}
	return strings.Join(out, "\n")
}

func colorize(diff string) string {
	red, green, cyan := color.New(color.FgRed), color.New(color.FgGreen), color.New(color.FgCyan)
	for _, c := range []*color.Color{red, green, cyan} {
		c.EnableColor()
	}

	lines := strings.Split(diff, "\n")
	for i, l := range lines {
		switch {
		case strings.HasPrefix(l, "---"), strings.HasPrefix(l, "+++"), strings.HasPrefix(l, "@@"):
			lines[i] = cyan.Sprint(l)
		case strings.HasPrefix(l, "-"):
			lines[i] = red.Sprint(strings.ReplaceAll(l, " ", "·"))
		case strings.HasPrefix(l, "+"):
			lines[i] = green.Sprint(strings.ReplaceAll(l, " ", "·"))
		}
	}
	return strings.Join(lines, "\n")
}

// StripANSI removes SGR escape sequences such as the ones fatih/color emits.
func StripANSI(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == 0x1b && i+1 < len(s) && s[i+1] == '[' {
			j := i + 2
			for j < len(s) && (s[j] == ';' || (s[j] >= '0' && s[j] <= '9')) {
				j++
			}
			if j < len(s) && s[j] == 'm' {
				i = j
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
