package command

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"k8s.io/utils/clock"

	"github.com/autopeer-io/hmibroker/internal/broker/capability"
	"github.com/autopeer-io/hmibroker/internal/broker/core"
	"github.com/autopeer-io/hmibroker/internal/broker/correlation"
	"github.com/autopeer-io/hmibroker/internal/broker/resource"
	"github.com/autopeer-io/hmibroker/internal/pkg/metrics"
	"github.com/autopeer-io/hmibroker/pkg/log"
)

// CapabilityChecker is the part of the negotiator the engine consults.
type CapabilityChecker interface {
	Supports(c capability.Component, moduleType string) bool
}

// Config wires an Engine to its collaborators.
type Config struct {
	Sender       core.Sender
	Policy       core.PolicyChecker
	Resources    *resource.Manager
	Capabilities CapabilityChecker
	Table        *correlation.Table
	// Clock measures latency; defaults to the real clock.
	Clock clock.PassiveClock
	// Timeout bounds each HMI sub-request.
	Timeout time.Duration
	// Kinds replaces the built-in command kinds when set.
	Kinds []Kind
}

// DefaultKinds returns the remote control commands served by the broker.
func DefaultKinds() []Kind {
	return []Kind{SetInteriorVehicleData{}, GetInteriorVehicleData{}, ButtonPress{}}
}

// Engine runs mobile requests through validation, policy, allocation,
// dispatch and event correlation, producing exactly one Response each.
type Engine struct {
	sender    core.Sender
	policy    core.PolicyChecker
	resources *resource.Manager
	caps      CapabilityChecker
	table     *correlation.Table
	clock     clock.PassiveClock
	timeout   time.Duration
	kinds     map[core.FunctionID]Kind

	mu    sync.Mutex
	runs  map[string]*run
	// holds counts the runs of an application using a module lease; the
	// lease is released when the last of them finishes.
	holds map[holdKey]int

	logger log.Logger
}

// NewEngine validates cfg and creates an Engine.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Sender == nil || cfg.Policy == nil || cfg.Resources == nil || cfg.Capabilities == nil || cfg.Table == nil {
		return nil, errors.New("command engine requires sender, policy, resources, capabilities and table")
	}
	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("command timeout must be positive, got %s", cfg.Timeout)
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.RealClock{}
	}
	kinds := cfg.Kinds
	if len(kinds) == 0 {
		kinds = DefaultKinds()
	}

	e := &Engine{
		sender:    cfg.Sender,
		policy:    cfg.Policy,
		resources: cfg.Resources,
		caps:      cfg.Capabilities,
		table:     cfg.Table,
		clock:     cfg.Clock,
		timeout:   cfg.Timeout,
		kinds:     make(map[core.FunctionID]Kind, len(kinds)),
		runs:      make(map[string]*run),
		holds:     make(map[holdKey]int),
		logger:    log.WithName("command"),
	}
	for _, k := range kinds {
		if _, dup := e.kinds[k.FunctionID()]; dup {
			return nil, fmt.Errorf("duplicate command kind %s", k.FunctionID())
		}
		e.kinds[k.FunctionID()] = k
	}
	return e, nil
}

type holdKey struct {
	module string
	appID  string
}

// run is one in-flight request.
type run struct {
	id     string
	appID  string
	fn     core.FunctionID
	kind   Kind
	start  time.Time
	life   *Lifecycle
	logger log.Logger
	resp   chan Response

	mu        sync.Mutex
	plan      *Plan
	leased    bool
	keys      []correlation.Key
	remaining int
	events    []core.Payload
	finished  bool
}

// HandleRequest runs one mobile request and blocks until its terminal state.
// Cancelling ctx aborts the request.
func (e *Engine) HandleRequest(ctx context.Context, appID string, fn core.FunctionID, params core.Payload) Response {
	id := uuid.NewString()
	logger := e.logger.WithValues("requestID", id, "app", appID, "function", fn)
	r := &run{
		id:     id,
		appID:  appID,
		fn:     fn,
		start:  e.clock.Now(),
		life:   NewLifecycle(logger),
		logger: logger,
		resp:   make(chan Response, 1),
	}
	logger.Info("Request received")

	// Registered first so a disconnect at any point finds and fails the run.
	e.mu.Lock()
	e.runs[id] = r
	e.mu.Unlock()

	e.advance(ctx, r, params)

	select {
	case resp := <-r.resp:
		return resp
	case <-ctx.Done():
		e.finish(ctx, r, Aborted, ctx.Err().Error(), nil)
		return <-r.resp
	}
}

// advance drives the run up to AwaitingEvents or a failure.
func (e *Engine) advance(ctx context.Context, r *run, params core.Payload) {
	kind, ok := e.kinds[r.fn]
	if !ok {
		e.finish(ctx, r, UnsupportedRequest, fmt.Sprintf("%s is not supported", r.fn), nil)
		return
	}
	r.kind = kind

	plan, err := kind.Validate(params)
	if err != nil {
		e.finish(ctx, r, InvalidData, err.Error(), nil)
		return
	}
	r.mu.Lock()
	r.plan = plan
	r.mu.Unlock()
	r.life.Fire(ctx, EventValidate)

	if !e.policy.IsOperationPermitted(r.appID, plan.ModuleType, plan.Operation) {
		e.finish(ctx, r, Disallowed, fmt.Sprintf("%s is not permitted on %s", plan.Operation, plan.ModuleType), nil)
		return
	}

	if err := e.acquire(r, plan); err != nil {
		var conflict *resource.ConflictError
		if errors.As(err, &conflict) {
			e.finish(ctx, r, ResourceConflict, err.Error(), nil)
		}
		return
	}
	r.life.Fire(ctx, EventAllocate)

	if !e.caps.Supports(plan.Target, plan.ModuleType) {
		e.finish(ctx, r, CapabilityUnavailable,
			fmt.Sprintf("%s does not support %s", plan.Target, plan.ModuleType), nil)
		return
	}

	r.life.Fire(ctx, EventDispatch)
	if err := e.dispatch(ctx, r, plan); err != nil {
		e.finish(ctx, r, GenericError, err.Error(), nil)
		return
	}
	r.life.Fire(ctx, EventAwait)
}

// acquire takes the lease unless the run already finished. It returns a
// nil error without a lease when the run is gone.
func (e *Engine) acquire(r *run, plan *Plan) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.finished {
		return errors.New("request finished")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.resources.TryAcquire(plan.Module, r.appID, plan.Mode); err != nil {
		return err
	}
	e.holds[holdKey{plan.Module, r.appID}]++
	r.leased = true
	return nil
}

// dispatch registers every sub-request before sending it.
func (e *Engine) dispatch(ctx context.Context, r *run, plan *Plan) error {
	r.mu.Lock()
	if r.finished {
		r.mu.Unlock()
		return nil
	}
	r.remaining = len(plan.SubRequests)
	reqs := make([]core.Request, 0, len(plan.SubRequests))
	for _, sub := range plan.SubRequests {
		req := core.Request{
			FunctionID:    sub.FunctionID,
			CorrelationID: e.sender.NextCorrelationID(),
			Params:        sub.Params,
		}
		key := correlation.Key{FunctionID: req.FunctionID, CorrelationID: req.CorrelationID}
		pending := correlation.Pending{
			Key:       key,
			AppID:     r.appID,
			RequestID: r.id,
			Expected:  sub.Expected,
			Timeout:   e.timeout,
		}
		if err := e.table.Insert(pending, func(o correlation.Outcome) { e.onOutcome(r, o) }); err != nil {
			r.mu.Unlock()
			return fmt.Errorf("register %s: %w", key, err)
		}
		r.keys = append(r.keys, key)
		reqs = append(reqs, req)
	}
	r.mu.Unlock()

	for _, req := range reqs {
		r.logger.Debug("Dispatching HMI request", "hmiFunction", req.FunctionID, "correlationID", req.CorrelationID)
		if err := e.sender.Send(ctx, req); err != nil {
			return fmt.Errorf("send %s: %w", req.FunctionID, err)
		}
	}
	return nil
}

// onOutcome is called by the correlation table once per sub-request.
func (e *Engine) onOutcome(r *run, o correlation.Outcome) {
	ctx := context.Background()
	if o.TimedOut {
		e.finish(ctx, r, Timeout, fmt.Sprintf("no response to %s within %s", o.Key.FunctionID, e.timeout), nil)
		return
	}
	for _, ev := range o.Events {
		if code, ok := core.String(ev, "resultCode"); ok && code != string(Success) {
			info, _ := core.String(ev, "info")
			e.finish(ctx, r, GenericError, fmt.Sprintf("hmi answered %s: %s", code, info), nil)
			return
		}
	}

	r.mu.Lock()
	if r.finished {
		r.mu.Unlock()
		return
	}
	r.events = append(r.events, o.Events...)
	r.remaining--
	if r.remaining > 0 {
		r.mu.Unlock()
		return
	}
	plan, events := r.plan, r.events
	r.mu.Unlock()

	payload, err := r.kind.Assemble(plan, events)
	if err != nil {
		e.finish(ctx, r, GenericError, err.Error(), nil)
		return
	}
	e.finish(ctx, r, Success, plan.Info, payload)
}

// finish moves the run to its terminal state exactly once: pending entries
// are cancelled, the lease is released and the response is emitted.
func (e *Engine) finish(ctx context.Context, r *run, code ResultCode, info string, payload core.Payload) {
	r.mu.Lock()
	if r.finished {
		r.mu.Unlock()
		return
	}
	r.finished = true
	keys, leased, plan := r.keys, r.leased, r.plan
	r.mu.Unlock()

	for _, k := range keys {
		e.table.Cancel(k)
	}
	e.mu.Lock()
	if leased {
		e.releaseLocked(holdKey{plan.Module, r.appID})
	}
	delete(e.runs, r.id)
	e.mu.Unlock()

	if code == Success {
		r.life.Fire(ctx, EventComplete)
	} else {
		r.life.Fire(ctx, EventFail, code, info)
	}

	metrics.CommandsTotal.WithLabelValues(string(r.fn), string(code)).Inc()
	metrics.CommandLatency.WithLabelValues(string(r.fn)).Observe(e.clock.Since(r.start).Seconds())

	r.resp <- Response{
		RequestID:  r.id,
		AppID:      r.appID,
		FunctionID: r.fn,
		Success:    code == Success,
		ResultCode: code,
		Info:       info,
		Payload:    payload,
	}
}

func (e *Engine) releaseLocked(k holdKey) {
	if e.holds[k] > 1 {
		e.holds[k]--
		return
	}
	delete(e.holds, k)
	e.resources.Release(k.module, k.appID)
}

// OnHMIEvent routes an HMI event to its pending sub-request.
func (e *Engine) OnHMIEvent(_ context.Context, ev core.Event) correlation.Delivery {
	key := correlation.Key{FunctionID: ev.FunctionID, CorrelationID: ev.CorrelationID}
	d := e.table.Deliver(key, ev.Payload)
	if d == correlation.Unsolicited {
		metrics.UnsolicitedEvents.WithLabelValues(string(ev.FunctionID)).Inc()
		e.logger.Warn("Unsolicited HMI event", "key", key.String())
	}
	return d
}

// OnApplicationDisconnected fails every in-flight request of appID and frees its leases.
func (e *Engine) OnApplicationDisconnected(ctx context.Context, appID string) {
	discarded := e.table.DiscardApp(appID)

	e.mu.Lock()
	var runs []*run
	for _, r := range e.runs {
		if r.appID == appID {
			runs = append(runs, r)
		}
	}
	e.mu.Unlock()

	for _, r := range runs {
		e.finish(ctx, r, ApplicationDisconnected, "application disconnected", nil)
	}

	e.mu.Lock()
	for k := range e.holds {
		if k.appID == appID {
			delete(e.holds, k)
		}
	}
	freed := e.resources.ReleaseAll(appID)
	e.mu.Unlock()

	e.logger.Info("Application disconnected", "app", appID,
		"failedRequests", len(runs), "discardedEvents", len(discarded), "freedModules", freed)
}

// InFlight returns the number of requests that have not reached a terminal state.
func (e *Engine) InFlight() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.runs)
}

// Functions lists the mobile functions the engine serves.
func (e *Engine) Functions() []core.FunctionID {
	out := make([]core.FunctionID, 0, len(e.kinds))
	for fn := range e.kinds {
		out = append(out, fn)
	}
	return out
}
