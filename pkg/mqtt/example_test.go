package mqtt_test

import (
	"context"
	"fmt"
	"time"

	"github.com/autopeer-io/hmibroker/pkg/log"
	"github.com/autopeer-io/hmibroker/pkg/mqtt"
	"github.com/autopeer-io/hmibroker/pkg/mqtt/topic"
)

// ExampleClient shows how the broker talks to the HMI bridge: subscribe to
// every HMI event, then publish a correlated request.
func ExampleClient() {
	cfg := &mqtt.ClientConfig{
		BrokerURL:      "tcp://localhost:1883",
		ClientID:       "hmi-broker-example",
		KeepAlive:      60,
		ConnectTimeout: 5 * time.Second,
		CleanStart:     true,
	}

	client, err := mqtt.NewClient(cfg)
	if err != nil {
		log.Error(err, "Failed to create MQTT client")
		return
	}

	// Start returns immediately; reconnects happen in the background.
	ctx := context.Background()
	if err := client.Start(ctx); err != nil {
		log.Error(err, "Failed to start MQTT client")
		return
	}
	defer client.Disconnect(ctx)

	topics := topic.NewBuilder("ivi/v1")

	// Subscriptions survive reconnects. Handlers run on their own goroutine.
	events := topics.BuildWildcard("hmi/event")
	if err := client.Subscribe(ctx, events, 1, func(_ context.Context, t string, payload []byte) {
		fmt.Printf("event on %s: %s\n", t, payload)
	}); err != nil {
		log.Error(err, "Failed to subscribe", "topic", events)
	}

	if err := client.AwaitConnection(ctx); err != nil {
		log.Error(err, "Connection timed out")
		return
	}

	req := topics.Build("hmi/request", "VR.GetLanguage")
	payload := []byte(`{"function":"VR.GetLanguage","correlationId":1,"params":{}}`)
	if err := client.Publish(ctx, req, 1, false, payload); err != nil {
		log.Error(err, "Failed to publish message", "topic", req)
	}
}
