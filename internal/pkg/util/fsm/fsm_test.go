package fsm

import (
	"context"
	"errors"
	"testing"

	"github.com/looplab/fsm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDoor(enter func(context.Context, *fsm.Event) error) *fsm.FSM {
	return fsm.NewFSM("closed",
		fsm.Events{{Name: "open", Src: []string{"closed"}, Dst: "open"}},
		fsm.Callbacks{"enter_open": WrapEvent(enter)},
	)
}

func TestWrapEventSurfacesError(t *testing.T) {
	boom := errors.New("jammed")
	door := newDoor(func(context.Context, *fsm.Event) error { return boom })

	err := door.Event(context.Background(), "open")
	require.ErrorIs(t, err, boom)
	assert.False(t, IsRejected(err))
}

func TestArg(t *testing.T) {
	var gotName string
	var gotCount, missing bool
	door := newDoor(func(_ context.Context, e *fsm.Event) error {
		gotName, _ = Arg[string](e, 0)
		_, gotCount = Arg[string](e, 1)
		_, missing = Arg[int](e, 5)
		return nil
	})

	require.NoError(t, door.Event(context.Background(), "open", "app-1", 3))
	assert.Equal(t, "app-1", gotName)
	assert.False(t, gotCount)
	assert.False(t, missing)
}

func TestIsRejected(t *testing.T) {
	door := newDoor(func(context.Context, *fsm.Event) error { return nil })

	assert.True(t, IsRejected(door.Event(context.Background(), "close")))
	require.NoError(t, door.Event(context.Background(), "open"))
	assert.True(t, IsRejected(door.Event(context.Background(), "open")))
}
