package registry

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAccessor(t *testing.T) (*Accessor, *Store, *test.Hook) {
	t.Helper()
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	store := NewStore(logger)
	store.Declare("battery/level", Uint8(78))
	store.Declare("text/string", String("Hello, world!"))

	return NewAccessor(store.Getter(), store.Setter(), logger), store, hook
}

func warnings(hook *test.Hook) []*logrus.Entry {
	var out []*logrus.Entry
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel {
			out = append(out, e)
		}
	}
	return out
}

func TestAccessor_KnownNames(t *testing.T) {
	a, _, hook := newTestAccessor(t)

	assert.Equal(t, uint8(78), a.Uint8("battery/level", 0))
	assert.Equal(t, int64(78), a.Int("battery/level", 0))
	assert.Equal(t, "Hello, world!", a.Text("text/string", ""))
	assert.Empty(t, warnings(hook))
}

func TestAccessor_UnknownNameWarns(t *testing.T) {
	a, _, hook := newTestAccessor(t)

	v, ok := a.Get("nope/missing")
	assert.False(t, ok)
	assert.False(t, v.IsValid())

	assert.Equal(t, uint8(5), a.Uint8("nope/missing", 5))

	ws := warnings(hook)
	require.Len(t, ws, 2)
	assert.Equal(t, "nope/missing", ws[0].Data["name"])

	err, ok := ws[0].Data[logrus.ErrorKey].(*UnknownDataPathError)
	require.True(t, ok)
	assert.Equal(t, "get", err.Op)
}

func TestAccessor_SetUnknownNameFails(t *testing.T) {
	a, store, hook := newTestAccessor(t)

	assert.False(t, a.Set("nope/missing", Uint8(1)))
	require.Len(t, warnings(hook), 1)
	assert.Equal(t, []string{"battery/level", "text/string"}, store.Names())
}

func TestAccessor_SetKnownName(t *testing.T) {
	a, store, _ := newTestAccessor(t)

	require.True(t, a.Set("battery/level", Uint8(50)))
	v, ok := store.Get("battery/level")
	require.True(t, ok)
	assert.True(t, v.Equal(Uint8(50)))
}

func TestAccessor_TypeMismatchFallsBackToDefault(t *testing.T) {
	a, _, _ := newTestAccessor(t)

	assert.Equal(t, int64(-1), a.Int("text/string", -1))
}

func TestAccessor_NilFunctionsTreatEverythingAsUnknown(t *testing.T) {
	logger, hook := test.NewNullLogger()
	a := NewAccessor(nil, nil, logger)

	_, ok := a.Get("battery/level")
	assert.False(t, ok)
	assert.False(t, a.Set("battery/level", Uint8(1)))
	assert.Len(t, warnings(hook), 2)
}

func TestAccessor_EmptyName(t *testing.T) {
	a, _, hook := newTestAccessor(t)

	_, ok := a.Get("")
	assert.False(t, ok)
	assert.False(t, a.Set("", Uint8(1)))
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
}

func TestAccessor_Uint8OutOfRange(t *testing.T) {
	// GOAL: Verify a value wider than a byte is not truncated
	//
	// TEST SCENARIO: uint16 300 and int8 -1 stored → Uint8 returns default and warns each time

	a, store, hook := newTestAccessor(t)
	store.Declare("sensor/wide", Uint16(300))
	store.Declare("sensor/negative", Int8(-1))

	assert.Equal(t, uint8(9), a.Uint8("sensor/wide", 9))
	assert.Equal(t, uint8(9), a.Uint8("sensor/negative", 9))

	ws := warnings(hook)
	require.Len(t, ws, 2)
	assert.Equal(t, "sensor/wide", ws[0].Data["name"])
	assert.Contains(t, ws[0].Message, "does not fit in a byte")
}
