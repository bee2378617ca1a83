package gatt

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readNothing(w ResponseWriter, _ *Request) { _ = w.ReplyEmpty() }

func updateNothing(*Update) bool { return true }

func TestBuilder_NodeCountMatchesBegins(t *testing.T) {
	// GOAL: Verify a well-nested declaration yields one node per begin call,
	// visited in declaration order.
	//
	// TEST SCENARIO: Two services with characteristics and a descriptor → 6 nodes in order
	b := NewBuilder("/com/test")
	b.BeginService("battery", "180F").
		BeginCharacteristic("level", "2A19", "read", "notify").
		OnReadFunc(readNothing).
		EndCharacteristic().
		EndService().
		BeginService("text", "00000001-1E3C-FAD4-74E2-97A033F1BFAA").
		BeginCharacteristic("string", "00000002-1E3C-FAD4-74E2-97A033F1BFAA", "read", "write", "notify").
		BeginDescriptor("description", "2901", "read").
		EndDescriptor().
		EndCharacteristic().
		BeginCharacteristic("other", "2A00", "read").
		EndCharacteristic().
		EndService()

	tree, err := b.Build()
	require.NoError(t, err)
	assert.Equal(t, 6, tree.Len())

	var paths []string
	require.NoError(t, tree.Walk(func(n *Node) error {
		paths = append(paths, n.Path())
		return nil
	}))
	assert.Equal(t, []string{
		"battery",
		"battery/level",
		"text",
		"text/string",
		"text/string/description",
		"text/other",
	}, paths)

	n, ok := tree.Lookup("/com/test/text/string/description")
	require.True(t, ok)
	assert.Equal(t, KindDescriptor, n.Kind())
	assert.Equal(t, "text/string", n.Parent().Path())
	assert.Equal(t, "text", n.Service().Name())
	assert.Equal(t, 2, n.Depth())

	n, ok = tree.Lookup("battery/level")
	require.True(t, ok)
	assert.Equal(t, "/com/test/battery/level", n.ObjectPath())
	assert.True(t, n.HasRead())
	assert.False(t, n.HasWrite())

	_, ok = tree.Lookup("/com/other/battery/level")
	assert.False(t, ok)

	require.Len(t, tree.Services(), 2)
	assert.Equal(t, "text", tree.Services()[1].Name())
}

func TestBuilder_Errors(t *testing.T) {
	tests := []struct {
		name    string
		declare func(b *Builder)
		want    error
	}{
		{
			name: "write handler without write flag",
			declare: func(b *Builder) {
				b.BeginService("s", "180F").
					BeginCharacteristic("c", "2A19", "read").
					OnWriteFunc(readNothing).
					EndCharacteristic().EndService()
			},
			want: ErrCapability,
		},
		{
			name: "read handler without read flag",
			declare: func(b *Builder) {
				b.BeginService("s", "180F").
					BeginCharacteristic("c", "2A19", "write").
					OnReadFunc(readNothing).
					EndCharacteristic().EndService()
			},
			want: ErrCapability,
		},
		{
			name: "update handler without notify",
			declare: func(b *Builder) {
				b.BeginService("s", "180F").
					BeginCharacteristic("c", "2A19", "read").
					OnUpdatedFunc(updateNothing).
					EndCharacteristic().EndService()
			},
			want: ErrCapability,
		},
		{
			name: "handler on a service",
			declare: func(b *Builder) {
				b.BeginService("s", "180F").OnReadFunc(readNothing).EndService()
			},
			want: ErrCapability,
		},
		{
			name: "event interval below one",
			declare: func(b *Builder) {
				b.BeginService("s", "180F").
					BeginCharacteristic("c", "2A19", "notify").
					OnEventFunc(0, nil, func(*Event) {}).
					EndCharacteristic().EndService()
			},
			want: ErrCapability,
		},
		{
			name: "duplicate read handler",
			declare: func(b *Builder) {
				b.BeginService("s", "180F").
					BeginCharacteristic("c", "2A19", "read").
					OnReadFunc(readNothing).
					OnReadFunc(readNothing).
					EndCharacteristic().EndService()
			},
			want: ErrDuplicate,
		},
		{
			name: "duplicate sibling",
			declare: func(b *Builder) {
				b.BeginService("s", "180F").
					BeginCharacteristic("c", "2A19", "read").EndCharacteristic().
					BeginCharacteristic("c", "2A1A", "read").EndCharacteristic().
					EndService()
			},
			want: ErrDuplicate,
		},
		{
			name: "characteristic outside service",
			declare: func(b *Builder) {
				b.BeginCharacteristic("c", "2A19", "read").EndCharacteristic()
			},
			want: ErrNesting,
		},
		{
			name: "mismatched end",
			declare: func(b *Builder) {
				b.BeginService("s", "180F").EndCharacteristic()
			},
			want: ErrNesting,
		},
		{
			name: "unclosed service",
			declare: func(b *Builder) {
				b.BeginService("s", "180F")
			},
			want: ErrNesting,
		},
		{
			name: "invalid uuid",
			declare: func(b *Builder) {
				b.BeginService("s", "18F").EndService()
			},
			want: ErrInvalidUUID,
		},
		{
			name: "unknown flag",
			declare: func(b *Builder) {
				b.BeginService("s", "180F").
					BeginCharacteristic("c", "2A19", "teleport").EndCharacteristic().
					EndService()
			},
			want: ErrInvalidFlag,
		},
		{
			name: "slash in name",
			declare: func(b *Builder) {
				b.BeginService("a/b", "180F").EndService()
			},
			want: ErrInvalidName,
		},
		{
			name:    "no services",
			declare: func(b *Builder) {},
			want:    ErrEmpty,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBuilder("/com/test")
			tt.declare(b)

			tree, err := b.Build()
			assert.Nil(t, tree)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)

			var be *BuildError
			require.ErrorAs(t, err, &be)
		})
	}
}

func TestBuilder_FirstErrorWins(t *testing.T) {
	b := NewBuilder("/com/test")
	b.BeginService("s", "bad").
		BeginCharacteristic("c", "2A19", "teleport")

	require.Error(t, b.Err())
	assert.ErrorIs(t, b.Err(), ErrInvalidUUID)

	_, err := b.Build()
	assert.ErrorIs(t, err, ErrInvalidUUID)
}

func TestBuilder_FinalizesOnce(t *testing.T) {
	b := NewBuilder("/com/test")
	b.BeginService("s", "180F").EndService()

	tree, err := b.Build()
	require.NoError(t, err)
	require.NotNil(t, tree)

	_, err = b.Build()
	assert.ErrorIs(t, err, ErrFinalized)

	b.BeginService("late", "1805")
	assert.ErrorIs(t, b.Err(), ErrFinalized)
	assert.Equal(t, 1, tree.Len(), "the built tree is unaffected by later calls")
}

type readWriteHandler struct{}

func (readWriteHandler) ServeRead(w ResponseWriter, _ *Request)  { _ = w.ReplyEmpty() }
func (readWriteHandler) ServeWrite(w ResponseWriter, _ *Request) { _ = w.ReplyEmpty() }

func TestBuilder_HandleBindsImplementedInterfaces(t *testing.T) {
	b := NewBuilder("/com/test")
	b.BeginService("s", "180F").
		BeginCharacteristic("c", "2A19", "read", "write").
		Handle(readWriteHandler{}).
		EndCharacteristic().
		EndService()

	tree, err := b.Build()
	require.NoError(t, err)

	n, _ := tree.Lookup("s/c")
	assert.True(t, n.HasRead())
	assert.True(t, n.HasWrite())
	assert.False(t, n.HasUpdate())

	b = NewBuilder("/com/test")
	b.BeginService("s", "180F").
		BeginCharacteristic("c", "2A19", "read").
		Handle(struct{}{})
	assert.ErrorIs(t, b.Err(), ErrCapability)
}

func TestTree_EventsAndBindingCopy(t *testing.T) {
	b := NewBuilder("/com/test")
	b.BeginService("time", "1805").
		BeginCharacteristic("current", "2A2B", "read", "notify").
		OnEventFunc(3, "ctx", func(*Event) {}).
		EndCharacteristic().
		BeginCharacteristic("local", "2A0F", "read").
		EndCharacteristic().
		EndService()

	tree, err := b.Build()
	require.NoError(t, err)

	events := tree.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "time/current", events[0].Path())

	binding := events[0].Binding()
	require.NotNil(t, binding.Event)
	assert.Equal(t, 3, binding.Event.Interval)
	assert.Equal(t, "ctx", binding.Event.UserData)

	binding.Event.Interval = 99
	assert.Equal(t, 3, events[0].Binding().Event.Interval)
}

func TestTree_WalkStops(t *testing.T) {
	b := NewBuilder("/com/test")
	b.BeginService("a", "180F").EndService().
		BeginService("b", "1805").EndService()
	tree, err := b.Build()
	require.NoError(t, err)

	visited := 0
	err = tree.Walk(func(*Node) error {
		visited++
		return ErrStopWalk
	})
	assert.NoError(t, err)
	assert.Equal(t, 1, visited)

	boom := errors.New("boom")
	assert.ErrorIs(t, tree.Walk(func(*Node) error { return boom }), boom)
}
