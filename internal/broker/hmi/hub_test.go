package hmi

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autopeer-io/hmibroker/internal/broker/core"
	"github.com/autopeer-io/hmibroker/pkg/mqtt"
	"github.com/autopeer-io/hmibroker/pkg/mqtt/mqtttest"
	mqtttopic "github.com/autopeer-io/hmibroker/pkg/mqtt/topic"
)

type recordingHandler struct {
	mu           sync.Mutex
	connected    int
	events       []core.Event
	disconnected []string
}

func (r *recordingHandler) OnConnected(context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connected++
}

func (r *recordingHandler) OnHMIEvent(_ context.Context, ev core.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordingHandler) OnApplicationDisconnected(_ context.Context, appID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.disconnected = append(r.disconnected, appID)
}

func startHub(t *testing.T) (*Hub, *mqtttest.Client, *recordingHandler) {
	t.Helper()
	mc := mqtttest.NewClient()
	h := New(mc, mqtttopic.NewBuilder("ivi/v1"), 1, "broker-0")
	rec := &recordingHandler{}
	require.NoError(t, h.Start(context.Background(), rec))
	return h, mc, rec
}

func TestHubStart(t *testing.T) {
	h, mc, rec := startHub(t)

	assert.True(t, h.IsConnected())
	assert.Equal(t, 1, rec.connected)
	assert.ElementsMatch(t, []string{"ivi/v1/hmi/event/+", "ivi/v1/app/disconnected/+"}, mc.Subscriptions())

	pub := mc.Published()
	require.Len(t, pub, 1)
	assert.Equal(t, "ivi/v1/broker/online/broker-0", pub[0].Topic)
	assert.True(t, pub[0].Retain)
	assert.JSONEq(t, `{"online":true}`, string(pub[0].Payload))

	h.Stop()
	assert.False(t, h.IsConnected())
	assert.JSONEq(t, `{"online":false}`, string(mc.Published()[1].Payload))
}

func TestHubSend(t *testing.T) {
	h, mc, _ := startHub(t)

	id := h.NextCorrelationID()
	assert.Equal(t, id+1, h.NextCorrelationID())

	require.NoError(t, h.Send(context.Background(), core.Request{FunctionID: "UI.IsReady", CorrelationID: id}))
	last := mc.Published()[len(mc.Published())-1]
	assert.Equal(t, "ivi/v1/hmi/request/UI.IsReady", last.Topic)
	assert.False(t, last.Retain)
	assert.Equal(t, 1, last.QoS)
}

func TestHubRoutesInbound(t *testing.T) {
	_, mc, rec := startHub(t)
	ctx := context.Background()

	assert.True(t, mc.Deliver(ctx, "ivi/v1/hmi/event/VR.IsReady",
		[]byte(`{"function":"VR.IsReady","correlationId":3,"params":{"available":true}}`)))
	// Mismatched and malformed events are dropped.
	mc.Deliver(ctx, "ivi/v1/hmi/event/TTS.IsReady", []byte(`{"function":"VR.IsReady","correlationId":4}`))
	mc.Deliver(ctx, "ivi/v1/hmi/event/TTS.IsReady", []byte(`not json`))

	assert.True(t, mc.Deliver(ctx, "ivi/v1/app/disconnected/app-7", nil))
	assert.False(t, mc.Deliver(ctx, "ivi/v1/app/connected/app-7", nil))

	require.Len(t, rec.events, 1)
	assert.Equal(t, core.Event{
		FunctionID: "VR.IsReady", CorrelationID: 3, Payload: core.Payload{"available": true},
	}, rec.events[0])
	assert.Equal(t, []string{"app-7"}, rec.disconnected)
}

func TestConfigureWill(t *testing.T) {
	cfg := &mqtt.ClientConfig{BrokerURL: "tcp://localhost:1883", ClientID: "broker-0"}
	ConfigureWill(cfg, mqtttopic.NewBuilder("ivi/v1"), 1)

	assert.Equal(t, "ivi/v1/broker/online/broker-0", cfg.WillTopic)
	assert.JSONEq(t, `{"online":false}`, string(cfg.WillPayload))
	assert.True(t, cfg.WillRetain)
	assert.Equal(t, byte(1), cfg.WillQoS)
}
