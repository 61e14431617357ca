package correlation

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"k8s.io/apimachinery/pkg/api/equality"
	"k8s.io/utils/clock"

	"github.com/autopeer-io/hmibroker/internal/broker/core"
	"github.com/autopeer-io/hmibroker/internal/pkg/metrics"
	"github.com/autopeer-io/hmibroker/pkg/log"
)

// ErrDuplicateKey is returned when a key is already pending.
var ErrDuplicateKey = errors.New("correlation key already pending")

// Key identifies one outstanding HMI sub-request.
type Key struct {
	FunctionID    core.FunctionID
	CorrelationID core.CorrelationID
}

func (k Key) String() string {
	return fmt.Sprintf("%s#%d", k.FunctionID, k.CorrelationID)
}

// Pending describes a sub-request awaiting HMI events.
type Pending struct {
	Key       Key
	AppID     string
	RequestID string
	// Expected is the number of events that complete the sub-request.
	Expected int
	Timeout  time.Duration
}

// Outcome is handed to the completion callback exactly once per entry.
type Outcome struct {
	Key       Key
	AppID     string
	RequestID string
	// Events holds the received payloads in arrival order.
	Events   []core.Payload
	TimedOut bool
}

// Delivery classifies what Deliver did with an event.
type Delivery int

const (
	// Unsolicited means no entry matched the key.
	Unsolicited Delivery = iota
	// Accepted means the event was recorded and more are expected.
	Accepted
	// Duplicate means an identical payload was already recorded.
	Duplicate
	// Completed means the event was the last expected one.
	Completed
	// Rejected means the payload could not be recorded.
	Rejected
)

func (d Delivery) String() string {
	switch d {
	case Accepted:
		return "accepted"
	case Duplicate:
		return "duplicate"
	case Completed:
		return "completed"
	case Rejected:
		return "rejected"
	}
	return "unsolicited"
}

type entry struct {
	pending  Pending
	received []core.Payload
	deadline time.Time
	timer    clock.Timer
	done     func(Outcome)
}

// Table maps outstanding keys to pending sub-requests and owns their deadline timers.
//
// Completion callbacks run outside the table lock, at most once per entry:
// either from Deliver with the final event or from the deadline timer.
// Cancel and DiscardApp remove entries without calling back.
type Table struct {
	mu      sync.Mutex
	clock   clock.WithDelayedExecution
	entries map[Key]*entry
	logger  log.Logger
}

// NewTable creates an empty Table driven by clk.
func NewTable(clk clock.WithDelayedExecution) *Table {
	return &Table{
		clock:   clk,
		entries: make(map[Key]*entry),
		logger:  log.WithName("correlation"),
	}
}

// Insert registers p. done is called once with the outcome.
func (t *Table) Insert(p Pending, done func(Outcome)) error {
	if p.Expected < 1 {
		return fmt.Errorf("pending %s expects %d events", p.Key, p.Expected)
	}
	if p.Timeout <= 0 {
		return fmt.Errorf("pending %s has no timeout", p.Key)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.entries[p.Key]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateKey, p.Key)
	}

	e := &entry{
		pending:  p,
		deadline: t.clock.Now().Add(p.Timeout),
		done:     done,
	}
	// Fake clocks run AfterFunc callbacks under their own lock, so the
	// completion chain, which reads the clock and stops other timers, runs
	// on its own goroutine.
	e.timer = t.clock.AfterFunc(p.Timeout, func() { go t.expire(e) })
	t.entries[p.Key] = e
	metrics.PendingCommands.Set(float64(len(t.entries)))
	return nil
}

// Deliver matches an HMI event against the pending entries.
func (t *Table) Deliver(key Key, payload core.Payload) Delivery {
	t.mu.Lock()

	e, ok := t.entries[key]
	if !ok {
		t.mu.Unlock()
		return Unsolicited
	}
	for _, r := range e.received {
		if equality.Semantic.DeepEqual(r, payload) {
			t.mu.Unlock()
			t.logger.Debug("Dropping duplicate event", "key", key)
			return Duplicate
		}
	}

	cp, err := core.ClonePayload(payload)
	if err != nil {
		t.mu.Unlock()
		t.logger.Error(err, "Dropping malformed event", "key", key)
		return Rejected
	}
	e.received = append(e.received, cp)
	if len(e.received) < e.pending.Expected {
		t.mu.Unlock()
		return Accepted
	}

	t.removeLocked(e)
	t.mu.Unlock()

	e.done(outcome(e, false))
	return Completed
}

// Cancel removes key without calling back. It reports whether key was pending.
func (t *Table) Cancel(key Key) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[key]
	if !ok {
		return false
	}
	t.removeLocked(e)
	return true
}

// DiscardApp removes every entry of appID without calling back and returns their keys.
func (t *Table) DiscardApp(appID string) []Key {
	t.mu.Lock()
	defer t.mu.Unlock()

	var keys []Key
	for key, e := range t.entries {
		if e.pending.AppID == appID {
			t.removeLocked(e)
			keys = append(keys, key)
		}
	}
	return keys
}

// Len returns the number of pending entries.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Deadline returns when key times out.
func (t *Table) Deadline(key Key) (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[key]
	if !ok {
		return time.Time{}, false
	}
	return e.deadline, true
}

func (t *Table) expire(e *entry) {
	t.mu.Lock()
	if t.entries[e.pending.Key] != e {
		// Completed, cancelled or discarded first.
		t.mu.Unlock()
		return
	}
	// Already fired, nothing to stop.
	t.deleteLocked(e)
	t.mu.Unlock()

	t.logger.Info("Pending request timed out", "key", e.pending.Key, "app", e.pending.AppID,
		"received", len(e.received), "expected", e.pending.Expected)
	e.done(outcome(e, true))
}

func (t *Table) removeLocked(e *entry) {
	e.timer.Stop()
	t.deleteLocked(e)
}

func (t *Table) deleteLocked(e *entry) {
	delete(t.entries, e.pending.Key)
	metrics.PendingCommands.Set(float64(len(t.entries)))
}

func outcome(e *entry, timedOut bool) Outcome {
	return Outcome{
		Key:       e.pending.Key,
		AppID:     e.pending.AppID,
		RequestID: e.pending.RequestID,
		Events:    e.received,
		TimedOut:  timedOut,
	}
}
