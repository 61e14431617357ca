package broker

import (
	"fmt"
	"os"

	"k8s.io/utils/clock"

	"github.com/autopeer-io/hmibroker/internal/broker/hmi"
	"github.com/autopeer-io/hmibroker/pkg/mqtt"
	mqtttopic "github.com/autopeer-io/hmibroker/pkg/mqtt/topic"
	"github.com/autopeer-io/hmibroker/pkg/options"
)

type Config struct {
	MqttOptions   *options.MqttOptions
	HttpOptions   *options.HttpOptions
	GrpcOptions   *options.GrpcOptions
	BrokerOptions *options.BrokerOptions
	PolicyOptions *options.PolicyOptions
}

// NewBroker wires the broker to a live MQTT connection.
func (cfg *Config) NewBroker() (*Broker, error) {
	mqttClient, topicBuilder, clientID, err := cfg.initMqttClientAndTopicBuilder()
	if err != nil {
		return nil, fmt.Errorf("failed to init mqtt client: %w", err)
	}

	link := hmi.New(mqttClient, topicBuilder, cfg.MqttOptions.QoS, clientID)
	return New(cfg, link, clock.RealClock{})
}

func (cfg *Config) initMqttClientAndTopicBuilder() (mqtt.Client, *mqtttopic.Builder, string, error) {
	topicBuilder := mqtttopic.NewBuilder(cfg.MqttOptions.TopicRoot)

	mqttConfig := cfg.MqttOptions.ToClientConfig()
	if mqttConfig.ClientID == "" {
		hostname, _ := os.Hostname()
		mqttConfig.ClientID = fmt.Sprintf("cpeer-hmi-broker-%s", hostname)
	}
	hmi.ConfigureWill(mqttConfig, topicBuilder, cfg.MqttOptions.QoS)

	mqttClient, err := mqtt.NewClient(mqttConfig)
	if err != nil {
		return nil, nil, "", err
	}
	return mqttClient, topicBuilder, mqttConfig.ClientID, nil
}
