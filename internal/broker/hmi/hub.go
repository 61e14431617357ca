// Package hmi connects the broker to the HMI components over MQTT.
package hmi

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/autopeer-io/hmibroker/internal/broker/core"
	"github.com/autopeer-io/hmibroker/internal/pkg/mqtt/paths"
	"github.com/autopeer-io/hmibroker/pkg/log"
	"github.com/autopeer-io/hmibroker/pkg/mqtt"
	mqtttopic "github.com/autopeer-io/hmibroker/pkg/mqtt/topic"
)

// presence is the retained payload on the broker presence topic.
type presence struct {
	Online bool `json:"online"`
}

// Hub publishes HMI requests and feeds inbound HMI traffic to a core.Handler.
type Hub struct {
	mc       mqtt.Client
	topics   *mqtttopic.Builder
	qos      int
	clientID string

	next    atomic.Int64
	handler core.Handler
	logger  log.Logger
}

var _ core.Sender = (*Hub)(nil)

func New(client mqtt.Client, builder *mqtttopic.Builder, qos int, clientID string) *Hub {
	return &Hub{
		mc:       client,
		topics:   builder,
		qos:      qos,
		clientID: clientID,
		logger:   log.WithName("hmi"),
	}
}

// ConfigureWill makes the MQTT broker publish the offline presence message
// when the client drops without disconnecting.
func ConfigureWill(cfg *mqtt.ClientConfig, builder *mqtttopic.Builder, qos int) {
	cfg.WillTopic = builder.Build(paths.BrokerOnline, cfg.ClientID)
	cfg.WillPayload, _ = json.Marshal(presence{Online: false})
	cfg.WillQoS = byte(qos)
	cfg.WillRetain = true
}

// NextCorrelationID implements core.Sender. Ids are unique for the process lifetime.
func (h *Hub) NextCorrelationID() core.CorrelationID {
	return core.CorrelationID(h.next.Add(1))
}

// Send implements core.Sender.
func (h *Hub) Send(ctx context.Context, req core.Request) error {
	payload, err := EncodeRequest(req)
	if err != nil {
		return err
	}
	topic := h.topics.Build(paths.HMIRequest, string(req.FunctionID))
	if err := h.mc.Publish(ctx, topic, h.qos, false, payload); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

func (h *Hub) IsConnected() bool {
	return h.mc.IsConnected()
}

// Start connects, subscribes to HMI events and application disconnects, and
// notifies handler that the HMI link is up.
func (h *Hub) Start(ctx context.Context, handler core.Handler) error {
	h.handler = handler

	if err := h.mc.Start(ctx); err != nil {
		return err
	}
	if err := h.mc.AwaitConnection(ctx); err != nil {
		return err
	}

	routes := map[string]mqtt.MessageHandler{
		h.topics.BuildWildcard(paths.HMIEvent):        h.onEvent,
		h.topics.BuildWildcard(paths.AppDisconnected): h.onAppDisconnected,
	}
	for topic, route := range routes {
		if err := h.mc.Subscribe(ctx, topic, h.qos, route); err != nil {
			return err
		}
	}

	if err := h.publishPresence(ctx, true); err != nil {
		h.logger.Error(err, "Failed to publish presence")
	}

	handler.OnConnected(ctx)
	return nil
}

func (h *Hub) Stop() {
	h.logger.Info("Disconnecting MQTT client...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := h.publishPresence(ctx, false); err != nil {
		h.logger.Error(err, "Failed to publish presence")
	}
	h.mc.Disconnect(ctx)
}

func (h *Hub) publishPresence(ctx context.Context, online bool) error {
	payload, _ := json.Marshal(presence{Online: online})
	return h.mc.Publish(ctx, h.topics.Build(paths.BrokerOnline, h.clientID), h.qos, true, payload)
}

func (h *Hub) onEvent(ctx context.Context, topic string, payload []byte) {
	fn, ok := h.topics.Identifier(paths.HMIEvent, topic)
	if !ok {
		h.logger.Warn("Ignoring event on unexpected topic", "topic", topic)
		return
	}
	ev, err := DecodeEvent(payload)
	if err != nil {
		h.logger.Error(err, "Dropping HMI event", "topic", topic)
		return
	}
	if string(ev.FunctionID) != fn {
		h.logger.Warn("Dropping HMI event with mismatched function", "topic", topic, "function", ev.FunctionID)
		return
	}
	h.handler.OnHMIEvent(ctx, ev)
}

func (h *Hub) onAppDisconnected(ctx context.Context, topic string, _ []byte) {
	appID, ok := h.topics.Identifier(paths.AppDisconnected, topic)
	if !ok {
		h.logger.Warn("Ignoring disconnect on unexpected topic", "topic", topic)
		return
	}
	h.handler.OnApplicationDisconnected(ctx, appID)
}
