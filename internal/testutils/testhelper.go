package testutils

import (
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

// TestHelper bundles a debug-level logger with a hook that records every entry,
// so tests can assert on warnings and errors emitted by the code under test.
type TestHelper struct {
	T      testing.TB
	Logger *logrus.Logger
	Hook   *test.Hook
}

// NewTestHelper creates a helper whose logger discards output but keeps entries.
func NewTestHelper(t testing.TB) *TestHelper {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel) // enable debug logs to track execution flow
	return &TestHelper{
		T:      t,
		Logger: logger,
		Hook:   hook,
	}
}

// Entries returns the recorded entries at the given level.
func (h *TestHelper) Entries(level logrus.Level) []*logrus.Entry {
	var out []*logrus.Entry
	for _, e := range h.Hook.AllEntries() {
		if e.Level == level {
			out = append(out, e)
		}
	}
	return out
}

func (h *TestHelper) Warnings() []*logrus.Entry { return h.Entries(logrus.WarnLevel) }

func (h *TestHelper) Errors() []*logrus.Entry { return h.Entries(logrus.ErrorLevel) }

// HasEntry reports whether an entry at level contains msg in its message.
func (h *TestHelper) HasEntry(level logrus.Level, msg string) bool {
	for _, e := range h.Entries(level) {
		if strings.Contains(e.Message, msg) {
			return true
		}
	}
	return false
}

// Reset drops the recorded entries.
func (h *TestHelper) Reset() { h.Hook.Reset() }
