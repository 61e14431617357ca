package correlation

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	clocktesting "k8s.io/utils/clock/testing"

	"github.com/autopeer-io/hmibroker/internal/broker/core"
)

// recorder collects completion callbacks.
type recorder struct {
	mu       sync.Mutex
	outcomes []Outcome
}

func (r *recorder) done(o Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, o)
}

func (r *recorder) get() []Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Outcome(nil), r.outcomes...)
}

func newTable() (*Table, *clocktesting.FakeClock) {
	clk := clocktesting.NewFakeClock(time.Unix(1700000000, 0))
	return NewTable(clk), clk
}

func key(id int64) Key {
	return Key{FunctionID: core.FunctionSetInteriorVehicleData, CorrelationID: core.CorrelationID(id)}
}

func pending(id int64, app string, expected int) Pending {
	return Pending{Key: key(id), AppID: app, RequestID: "req", Expected: expected, Timeout: 10 * time.Second}
}

func TestInsertValidation(t *testing.T) {
	tbl, _ := newTable()
	r := &recorder{}

	require.NoError(t, tbl.Insert(pending(1, "app-1", 1), r.done))
	require.ErrorIs(t, tbl.Insert(pending(1, "app-2", 1), r.done), ErrDuplicateKey)

	require.Error(t, tbl.Insert(pending(2, "app-1", 0), r.done))

	p := pending(3, "app-1", 1)
	p.Timeout = 0
	require.Error(t, tbl.Insert(p, r.done))

	assert.Equal(t, 1, tbl.Len())
}

func TestExactlyOnceCompletion(t *testing.T) {
	tbl, clk := newTable()
	r := &recorder{}

	require.NoError(t, tbl.Insert(pending(1, "app-1", 1), r.done))

	assert.Equal(t, Completed, tbl.Deliver(key(1), core.Payload{"resultCode": "SUCCESS"}))
	assert.Equal(t, Unsolicited, tbl.Deliver(key(1), core.Payload{"resultCode": "SUCCESS"}))

	// The stopped timer must not fire a second outcome.
	clk.Step(time.Minute)
	time.Sleep(10 * time.Millisecond)

	outcomes := r.get()
	require.Len(t, outcomes, 1)
	assert.False(t, outcomes[0].TimedOut)
	assert.Equal(t, 0, tbl.Len())
}

func TestNEventCompletion(t *testing.T) {
	tbl, _ := newTable()
	r := &recorder{}

	require.NoError(t, tbl.Insert(pending(7, "app-1", 3), r.done))

	assert.Equal(t, Accepted, tbl.Deliver(key(7), core.Payload{"part": "a"}))
	assert.Equal(t, Duplicate, tbl.Deliver(key(7), core.Payload{"part": "a"}))
	assert.Equal(t, Accepted, tbl.Deliver(key(7), core.Payload{"part": "b"}))
	assert.Empty(t, r.get())

	assert.Equal(t, Completed, tbl.Deliver(key(7), core.Payload{"part": "c"}))

	outcomes := r.get()
	require.Len(t, outcomes, 1)
	assert.Equal(t, []core.Payload{{"part": "a"}, {"part": "b"}, {"part": "c"}}, outcomes[0].Events)
	assert.Equal(t, "app-1", outcomes[0].AppID)
}

func TestUnknownKeyIsUnsolicited(t *testing.T) {
	tbl, _ := newTable()
	r := &recorder{}
	require.NoError(t, tbl.Insert(pending(1, "app-1", 1), r.done))

	other := Key{FunctionID: core.FunctionButtonPress, CorrelationID: 1}
	assert.Equal(t, Unsolicited, tbl.Deliver(other, core.Payload{}))
	assert.Equal(t, Unsolicited, tbl.Deliver(key(2), core.Payload{}))
	assert.Equal(t, 1, tbl.Len())
}

func TestRejectsNonJSONPayload(t *testing.T) {
	tbl, _ := newTable()
	r := &recorder{}
	require.NoError(t, tbl.Insert(pending(1, "app-1", 1), r.done))

	assert.Equal(t, Rejected, tbl.Deliver(key(1), core.Payload{"n": 1}))
	assert.Equal(t, 1, tbl.Len())
}

func TestTimeout(t *testing.T) {
	tbl, clk := newTable()
	r := &recorder{}

	require.NoError(t, tbl.Insert(pending(1, "app-1", 2), r.done))
	assert.Equal(t, Accepted, tbl.Deliver(key(1), core.Payload{"part": "a"}))

	deadline, ok := tbl.Deadline(key(1))
	require.True(t, ok)
	assert.Equal(t, clk.Now().Add(10*time.Second), deadline)

	clk.Step(9 * time.Second)
	assert.Equal(t, 1, tbl.Len())

	clk.Step(time.Second)
	require.Eventually(t, func() bool { return len(r.get()) == 1 }, time.Second, 5*time.Millisecond)

	o := r.get()[0]
	assert.True(t, o.TimedOut)
	assert.Len(t, o.Events, 1)
	assert.Equal(t, 0, tbl.Len())

	assert.Equal(t, Unsolicited, tbl.Deliver(key(1), core.Payload{"part": "b"}))
}

func TestTimeoutCallbackMayUseTable(t *testing.T) {
	tbl, clk := newTable()

	fired := make(chan time.Time, 1)
	require.NoError(t, tbl.Insert(pending(1, "app-1", 1), func(o Outcome) {
		// A timed out request cancels its sibling and reads the clock.
		tbl.Cancel(key(2))
		fired <- clk.Now()
	}))
	require.NoError(t, tbl.Insert(pending(2, "app-1", 1), func(Outcome) {}))

	clk.Step(10 * time.Second)

	select {
	case now := <-fired:
		assert.Equal(t, time.Unix(1700000010, 0), now)
	case <-time.After(time.Second):
		t.Fatal("timeout callback did not run")
	}
	assert.Equal(t, 0, tbl.Len())
}

func TestCancelAndDiscardDoNotCallBack(t *testing.T) {
	tbl, clk := newTable()
	r := &recorder{}

	require.NoError(t, tbl.Insert(pending(1, "app-1", 1), r.done))
	require.NoError(t, tbl.Insert(pending(2, "app-1", 1), r.done))
	require.NoError(t, tbl.Insert(pending(3, "app-2", 1), r.done))

	assert.True(t, tbl.Cancel(key(1)))
	assert.False(t, tbl.Cancel(key(1)))

	keys := tbl.DiscardApp("app-1")
	assert.Equal(t, []Key{key(2)}, keys)
	assert.Equal(t, 1, tbl.Len())

	clk.Step(time.Minute)
	require.Eventually(t, func() bool { return len(r.get()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "app-2", r.get()[0].AppID)
}

func TestConcurrentDeliveryCompletesOnce(t *testing.T) {
	tbl, _ := newTable()
	r := &recorder{}
	require.NoError(t, tbl.Insert(pending(1, "app-1", 1), r.done))

	var wg sync.WaitGroup
	results := make(chan Delivery, 8)
	for i := range 8 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results <- tbl.Deliver(key(1), core.Payload{"n": float64(i)})
		}(i)
	}
	wg.Wait()
	close(results)

	completed := 0
	for d := range results {
		if d == Completed {
			completed++
		}
	}
	assert.Equal(t, 1, completed)
	assert.Len(t, r.get(), 1)
}
