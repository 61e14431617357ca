package command

import (
	"context"

	"github.com/looplab/fsm"

	fsmutil "github.com/autopeer-io/hmibroker/internal/pkg/util/fsm"
	"github.com/autopeer-io/hmibroker/pkg/log"
)

// Request states.
const (
	StateReceived       = "received"
	StateValidated      = "validated"
	StateAllocated      = "allocated"
	StateDispatched     = "dispatched"
	StateAwaitingEvents = "awaiting_events"
	StateCompleted      = "completed"
	StateFailed         = "failed"
)

// Request events.
const (
	EventValidate = "validate"
	EventAllocate = "allocate"
	EventDispatch = "dispatch"
	EventAwait    = "await"
	EventComplete = "complete"
	EventFail     = "fail"
)

// Lifecycle is the state machine of one mobile request.
type Lifecycle struct {
	*fsm.FSM

	logger log.Logger
}

// NewLifecycle returns a Lifecycle in StateReceived.
func NewLifecycle(logger log.Logger) *Lifecycle {
	l := &Lifecycle{logger: logger}

	events := fsm.Events{
		{Name: EventValidate, Src: []string{StateReceived}, Dst: StateValidated},
		{Name: EventAllocate, Src: []string{StateValidated}, Dst: StateAllocated},
		{Name: EventDispatch, Src: []string{StateAllocated}, Dst: StateDispatched},
		{Name: EventAwait, Src: []string{StateDispatched}, Dst: StateAwaitingEvents},

		// Fast HMI answers may complete a request before it is marked as awaiting.
		{Name: EventComplete, Src: []string{StateDispatched, StateAwaitingEvents}, Dst: StateCompleted},
		{Name: EventFail, Src: []string{
			StateReceived, StateValidated, StateAllocated, StateDispatched, StateAwaitingEvents,
		}, Dst: StateFailed},
	}

	callbacks := fsm.Callbacks{
		"enter_state":             fsmutil.WrapEvent(l.ActionEnterState),
		"enter_" + StateFailed:    fsmutil.WrapEvent(l.ActionEnterFailed),
		"enter_" + StateCompleted: fsmutil.WrapEvent(l.ActionEnterCompleted),
	}

	l.FSM = fsm.NewFSM(StateReceived, events, callbacks)
	return l
}

// Fire triggers event. Transitions out of a terminal state are ignored.
// Cancellation of ctx does not stop the transition, so an aborted request
// still reaches failed.
func (l *Lifecycle) Fire(ctx context.Context, event string, args ...any) {
	err := l.Event(context.WithoutCancel(ctx), event, args...)
	if err == nil {
		return
	}
	if fsmutil.IsRejected(err) && l.Terminal() {
		return
	}
	l.logger.Warn("Lifecycle transition rejected", "event", event, "state", l.Current(), "error", err.Error())
}

// Terminal reports whether the request has reached completed or failed.
func (l *Lifecycle) Terminal() bool {
	s := l.Current()
	return s == StateCompleted || s == StateFailed
}

// ActionEnterState logs every transition.
func (l *Lifecycle) ActionEnterState(_ context.Context, e *fsm.Event) error {
	l.logger.Debug("Request transition", "event", e.Event, "from", e.Src, "to", e.Dst)
	return nil
}

// ActionEnterFailed logs the failure reason passed as the event arguments.
func (l *Lifecycle) ActionEnterFailed(_ context.Context, e *fsm.Event) error {
	code, ok := fsmutil.Arg[ResultCode](e, 0)
	if !ok {
		code = GenericError
	}
	info, _ := fsmutil.Arg[string](e, 1)
	l.logger.Info("Request failed", "from", e.Src, "resultCode", string(code), "info", info)
	return nil
}

// ActionEnterCompleted logs successful completion.
func (l *Lifecycle) ActionEnterCompleted(_ context.Context, e *fsm.Event) error {
	l.logger.Info("Request completed", "from", e.Src)
	return nil
}
