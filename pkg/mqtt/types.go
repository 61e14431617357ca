package mqtt

import (
	"context"
)

// MessageHandler processes one received message. Handlers run on their own
// goroutine and may block.
type MessageHandler func(ctx context.Context, topic string, payload []byte)

// Client is the MQTT surface used by the broker, backed by paho autopaho.
type Client interface {
	// Start connects in the background and keeps reconnecting until ctx ends.
	// Use AwaitConnection to wait for the first session.
	Start(ctx context.Context) error

	// Disconnect sends DISCONNECT, so no will message is published.
	Disconnect(ctx context.Context)

	Publish(ctx context.Context, topic string, qos int, retain bool, payload []byte) error

	// Subscribe registers handler for a topic filter. Subscriptions are
	// restored on every reconnect.
	Subscribe(ctx context.Context, topic string, qos int, handler MessageHandler) error

	Unsubscribe(ctx context.Context, topic string) error

	// AwaitConnection blocks until a session is up or ctx ends.
	AwaitConnection(ctx context.Context) error

	IsConnected() bool
}
