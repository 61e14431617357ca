package mqtt

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/eclipse/paho.golang/paho"
)

// ClientConfig holds the configuration for creating a new MQTT Client.
type ClientConfig struct {
	BrokerURL string
	ClientID  string
	Username  string
	Password  string

	// KeepAlive in seconds. Default is 60.
	KeepAlive uint16

	// ConnectTimeout for each connection attempt. Default is 5s.
	ConnectTimeout time.Duration

	// ReconnectBackoff is the pause between connection attempts. Default is 3s.
	ReconnectBackoff time.Duration

	CleanStart bool

	// SessionExpiry in seconds; 0 ends the session with the connection.
	SessionExpiry uint32

	InsecureSkipVerify bool

	// Will is published by the broker when this client drops without a DISCONNECT.
	WillTopic   string
	WillPayload []byte
	WillQoS     byte
	WillRetain  bool
}

func setDefaultConfig(cfg *ClientConfig) {
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}
	if cfg.ReconnectBackoff == 0 {
		cfg.ReconnectBackoff = 3 * time.Second
	}
	if cfg.KeepAlive == 0 {
		cfg.KeepAlive = 60
	}
}

// Validate checks the broker URL and the will message.
func (c *ClientConfig) Validate() error {
	if c.BrokerURL == "" {
		return errors.New("broker url is required")
	}
	u, err := url.Parse(c.BrokerURL)
	if err != nil {
		return err
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("broker url %q needs a scheme and a host", c.BrokerURL)
	}
	if c.WillQoS > 2 {
		return errors.New("will qos must be 0, 1 or 2")
	}
	if c.WillTopic == "" && len(c.WillPayload) > 0 {
		return errors.New("will payload set without a will topic")
	}
	return nil
}

func (c *ClientConfig) will() *paho.WillMessage {
	if c.WillTopic == "" {
		return nil
	}
	return &paho.WillMessage{
		Topic:   c.WillTopic,
		Payload: c.WillPayload,
		QoS:     c.WillQoS,
		Retain:  c.WillRetain,
	}
}
