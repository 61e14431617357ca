package mqtt

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopicsMatch(t *testing.T) {
	tests := []struct {
		filter string
		topic  string
		want   bool
	}{
		{"ivi/v1/hmi/event/+", "ivi/v1/hmi/event/VR.GetLanguage", true},
		{"ivi/v1/hmi/event/+", "ivi/v1/hmi/event/VR/extra", false},
		{"ivi/v1/#", "ivi/v1/app/disconnected/app-1", true},
		{"ivi/v1/app/disconnected/app-1", "ivi/v1/app/disconnected/app-1", true},
		{"ivi/v1/app/disconnected/app-1", "ivi/v1/app/disconnected/app-2", false},
		{"ivi/v1/hmi/+/VR.IsReady", "ivi/v1/hmi/event/VR.IsReady", true},
	}

	for _, tt := range tests {
		t.Run(tt.filter+"|"+tt.topic, func(t *testing.T) {
			assert.Equal(t, tt.want, topicsMatch(tt.filter, tt.topic))
		})
	}
}

func TestTopicFilterStripsShare(t *testing.T) {
	assert.Equal(t, "ivi/v1/hmi/event/+", topicFilter("$share/brokers/ivi/v1/hmi/event/+"))
	assert.Equal(t, "ivi/v1/hmi/event/+", topicFilter("ivi/v1/hmi/event/+"))

	assert.True(t, Matches("$share/brokers/ivi/v1/hmi/event/+", "ivi/v1/hmi/event/UI.IsReady"))
}

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient(nil)
	require.Error(t, err)

	_, err = NewClient(&ClientConfig{})
	require.Error(t, err)

	_, err = NewClient(&ClientConfig{BrokerURL: "tcp://localhost:1883", WillQoS: 3})
	require.Error(t, err)

	c, err := NewClient(&ClientConfig{BrokerURL: "tcp://localhost:1883"})
	require.NoError(t, err)
	assert.False(t, c.IsConnected())

	pc := c.(*pahoClient)
	assert.EqualValues(t, 60, pc.cfg.KeepAlive)
	assert.NotZero(t, pc.cfg.ConnectTimeout)
	assert.Equal(t, 3*time.Second, pc.cfg.ReconnectBackoff)
	assert.Nil(t, pc.cfg.will())

	require.ErrorIs(t, c.Publish(context.Background(), "a/b", 1, false, nil), errNotStarted)
}

func TestClientConfigWill(t *testing.T) {
	cfg := &ClientConfig{BrokerURL: "tcp://localhost:1883", WillPayload: []byte(`{"online":false}`)}
	require.Error(t, cfg.Validate())

	cfg.WillTopic = "ivi/v1/broker/online/b1"
	cfg.WillQoS = 1
	cfg.WillRetain = true
	require.NoError(t, cfg.Validate())

	w := cfg.will()
	require.NotNil(t, w)
	assert.Equal(t, cfg.WillTopic, w.Topic)
	assert.True(t, w.Retain)
	assert.EqualValues(t, 1, w.QoS)
}

func TestClientConfigNeedsHost(t *testing.T) {
	cfg := &ClientConfig{BrokerURL: "localhost"}
	require.Error(t, cfg.Validate())
}
