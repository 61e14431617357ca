package command

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/autopeer-io/hmibroker/pkg/log"
)

func TestLifecycleHappyPath(t *testing.T) {
	ctx := context.Background()
	l := NewLifecycle(log.WithName("test"))
	assert.Equal(t, StateReceived, l.Current())

	for _, ev := range []string{EventValidate, EventAllocate, EventDispatch, EventAwait, EventComplete} {
		l.Fire(ctx, ev)
	}
	assert.Equal(t, StateCompleted, l.Current())
	assert.True(t, l.Terminal())

	// Terminal states absorb further events.
	l.Fire(ctx, EventFail, Timeout, "late")
	assert.Equal(t, StateCompleted, l.Current())
}

func TestLifecycleFailFromEveryState(t *testing.T) {
	path := []string{EventValidate, EventAllocate, EventDispatch, EventAwait}
	for i := 0; i <= len(path); i++ {
		l := NewLifecycle(log.WithName("test"))
		for _, ev := range path[:i] {
			l.Fire(context.Background(), ev)
		}
		l.Fire(context.Background(), EventFail, InvalidData, "bad")
		assert.Equal(t, StateFailed, l.Current(), "after %v", path[:i])
	}
}

func TestLifecycleCompleteBeforeAwait(t *testing.T) {
	ctx := context.Background()
	l := NewLifecycle(log.WithName("test"))
	l.Fire(ctx, EventValidate)
	l.Fire(ctx, EventAllocate)
	l.Fire(ctx, EventDispatch)
	l.Fire(ctx, EventComplete)
	l.Fire(ctx, EventAwait)
	assert.Equal(t, StateCompleted, l.Current())
}

func TestLifecycleRejectsSkippedStates(t *testing.T) {
	l := NewLifecycle(log.WithName("test"))
	l.Fire(context.Background(), EventComplete)
	assert.Equal(t, StateReceived, l.Current())
	assert.False(t, l.Terminal())
}

func TestLifecycleFailWithCancelledContext(t *testing.T) {
	l := NewLifecycle(log.WithName("test"))
	l.Fire(context.Background(), EventValidate)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	l.Fire(ctx, EventFail, Aborted, ctx.Err().Error())

	assert.Equal(t, StateFailed, l.Current())
	assert.True(t, l.Terminal())
}
