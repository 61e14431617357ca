package mqtt

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"

	"github.com/autopeer-io/hmibroker/pkg/log"
	"github.com/autopeer-io/hmibroker/pkg/mqtt/topic"
)

var errNotStarted = errors.New("mqtt client not started")

type pahoClient struct {
	cfg    *ClientConfig
	cm     *autopaho.ConnectionManager
	logger log.Logger

	// ctx is the Start context; message handlers inherit it.
	ctx context.Context

	mu   sync.RWMutex
	subs map[string]subscription

	connected atomic.Bool
}

type subscription struct {
	qos     byte
	handler MessageHandler
}

// NewClient creates a Client backed by an autopaho connection manager.
// Nothing is dialled until Start.
func NewClient(cfg *ClientConfig) (Client, error) {
	if cfg == nil {
		return nil, errors.New("mqtt config is required")
	}
	setDefaultConfig(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid mqtt config: %w", err)
	}

	return &pahoClient{
		cfg:    cfg,
		logger: log.WithName("mqtt").WithValues("clientID", cfg.ClientID),
		ctx:    context.Background(),
		subs:   map[string]subscription{},
	}, nil
}

func (c *pahoClient) Start(ctx context.Context) error {
	brokerURL, _ := url.Parse(c.cfg.BrokerURL)

	pahoCfg := autopaho.ClientConfig{
		ServerUrls:                    []*url.URL{brokerURL},
		KeepAlive:                     c.cfg.KeepAlive,
		CleanStartOnInitialConnection: c.cfg.CleanStart,
		SessionExpiryInterval:         c.cfg.SessionExpiry,
		ReconnectBackoff:              autopaho.NewConstantBackoff(c.cfg.ReconnectBackoff),
		ConnectTimeout:                c.cfg.ConnectTimeout,
		ConnectUsername:               c.cfg.Username,
		ConnectPassword:               []byte(c.cfg.Password),
		TlsCfg:                        &tls.Config{InsecureSkipVerify: c.cfg.InsecureSkipVerify},
		WillMessage:                   c.cfg.will(),
		ClientConfig: paho.ClientConfig{
			ClientID:           c.cfg.ClientID,
			OnClientError:      func(err error) { c.logger.Error(err, "MQTT client error") },
			OnServerDisconnect: c.onServerDisconnect,
			OnPublishReceived:  []func(paho.PublishReceived) (bool, error){c.route},
		},
		OnConnectionUp: c.onConnectionUp,
		OnConnectError: c.onConnectError,
	}

	c.logger.Info("Connecting to MQTT broker", "broker", c.cfg.BrokerURL)

	c.ctx = ctx
	cm, err := autopaho.NewConnection(ctx, pahoCfg)
	if err != nil {
		return err
	}
	c.cm = cm
	return nil
}

func (c *pahoClient) Disconnect(ctx context.Context) {
	if c.cm == nil {
		return
	}
	if err := c.cm.Disconnect(ctx); err != nil {
		c.logger.Warn("MQTT disconnect did not complete", "error", err.Error())
	}
	c.connected.Store(false)
	c.logger.Info("Disconnected from MQTT broker")
}

func (c *pahoClient) Publish(ctx context.Context, name string, qos int, retain bool, payload []byte) error {
	if c.cm == nil {
		return errNotStarted
	}
	_, err := c.cm.Publish(ctx, &paho.Publish{
		Topic:   name,
		QoS:     byte(qos),
		Retain:  retain,
		Payload: payload,
	})
	return err
}

func (c *pahoClient) Subscribe(ctx context.Context, filter string, qos int, handler MessageHandler) error {
	if c.cm == nil {
		return errNotStarted
	}

	// Registered before the SUBSCRIBE goes out so a reconnect in between restores it.
	c.mu.Lock()
	c.subs[filter] = subscription{qos: byte(qos), handler: handler}
	c.mu.Unlock()

	if _, err := c.cm.Subscribe(ctx, &paho.Subscribe{
		Subscriptions: []paho.SubscribeOptions{{Topic: filter, QoS: byte(qos)}},
	}); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", filter, err)
	}
	c.logger.Info("Subscribed", "topic", filter, "qos", qos)
	return nil
}

func (c *pahoClient) Unsubscribe(ctx context.Context, filter string) error {
	if c.cm == nil {
		return errNotStarted
	}

	c.mu.Lock()
	delete(c.subs, filter)
	c.mu.Unlock()

	_, err := c.cm.Unsubscribe(ctx, &paho.Unsubscribe{Topics: []string{filter}})
	return err
}

func (c *pahoClient) AwaitConnection(ctx context.Context) error {
	if c.cm == nil {
		return errNotStarted
	}
	return c.cm.AwaitConnection(ctx)
}

// IsConnected reports the state last observed by the connection hooks.
func (c *pahoClient) IsConnected() bool {
	return c.connected.Load()
}

// onConnectionUp restores every registered subscription in a single SUBSCRIBE.
func (c *pahoClient) onConnectionUp(cm *autopaho.ConnectionManager, _ *paho.Connack) {
	c.connected.Store(true)

	c.mu.RLock()
	opts := make([]paho.SubscribeOptions, 0, len(c.subs))
	for filter, s := range c.subs {
		opts = append(opts, paho.SubscribeOptions{Topic: filter, QoS: s.qos})
	}
	c.mu.RUnlock()
	sort.Slice(opts, func(i, j int) bool { return opts[i].Topic < opts[j].Topic })

	c.logger.Info("MQTT connection up", "subscriptions", len(opts))
	if len(opts) == 0 {
		return
	}
	if _, err := cm.Subscribe(c.ctx, &paho.Subscribe{Subscriptions: opts}); err != nil {
		c.logger.Error(err, "Failed to restore subscriptions")
	}
}

func (c *pahoClient) onConnectError(err error) {
	c.connected.Store(false)
	c.logger.Error(err, "MQTT connection failed, retrying", "backoff", c.cfg.ReconnectBackoff)
}

func (c *pahoClient) onServerDisconnect(d *paho.Disconnect) {
	c.connected.Store(false)
	reason := ""
	if d.Properties != nil {
		reason = d.Properties.ReasonString
	}
	c.logger.Warn("MQTT broker closed the session", "reason", reason, "code", d.ReasonCode)
}

// route hands a received message to every matching handler.
func (c *pahoClient) route(p paho.PublishReceived) (bool, error) {
	name, payload := p.Packet.Topic, p.Packet.Payload

	c.mu.RLock()
	var handlers []MessageHandler
	for filter, s := range c.subs {
		if Matches(filter, name) {
			handlers = append(handlers, s.handler)
		}
	}
	c.mu.RUnlock()

	if len(handlers) == 0 {
		c.logger.Debug("Dropping message on unhandled topic", "topic", name)
	}
	for _, h := range handlers {
		// Off the paho reader loop; handlers may block.
		go h(c.ctx, name, payload)
	}
	return true, nil
}

// Matches reports whether a message on name is delivered to a subscription
// on filter. Shared subscription prefixes are ignored.
func Matches(filter, name string) bool {
	return topicsMatch(topicFilter(filter), name)
}

// topicsMatch compares level by level; "+" matches one level and "#" the rest.
func topicsMatch(filter, name string) bool {
	fl := strings.Split(filter, "/")
	tl := strings.Split(name, "/")
	for i, level := range fl {
		if level == topic.MultiWildcard {
			return true
		}
		if i >= len(tl) || (level != topic.Wildcard && level != tl[i]) {
			return false
		}
	}
	return len(fl) == len(tl)
}

// topicFilter drops the "$share/<group>/" prefix of a shared subscription.
func topicFilter(filter string) string {
	rest, ok := strings.CutPrefix(filter, "$share/")
	if !ok {
		return filter
	}
	if _, f, ok := strings.Cut(rest, "/"); ok {
		return f
	}
	return filter
}
