package options

import (
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAddress(t *testing.T) {
	tests := []struct {
		addr    string
		wantErr bool
	}{
		{"0.0.0.0:8443", false},
		{"localhost:1883", false},
		{":9090", false},
		{"8443", true},
		{"0.0.0.0:http", true},
		{"0.0.0.0:70000", true},
	}

	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			err := ValidateAddress(tt.addr)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDefaultsAreValid(t *testing.T) {
	for name, o := range map[string]IOptions{
		"http":   NewHttpOptions(),
		"grpc":   NewGrpcOptions(),
		"mqtt":   NewMqttOptions(),
		"broker": NewBrokerOptions(),
		"policy": NewPolicyOptions(),
	} {
		assert.Empty(t, o.Validate(), name)
	}
}

func TestBrokerOptionsFlags(t *testing.T) {
	o := NewBrokerOptions()
	assert.Empty(t, o.ShareableModules, "modules are exclusive unless listed")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	o.AddFlags(fs)

	require.NoError(t, fs.Parse([]string{
		"--broker.launch-hmi=false",
		"--broker.command-timeout=3s",
		"--broker.shareable-modules=RADIO,AUDIO",
	}))

	assert.False(t, o.LaunchHMI)
	assert.Equal(t, 3*time.Second, o.CommandTimeout)
	assert.Equal(t, []string{"RADIO", "AUDIO"}, o.ShareableModules)

	o.ShareableModules = append(o.ShareableModules, "TRUNK")
	o.CommandTimeout = 0
	assert.Len(t, o.Validate(), 2)
}

func TestPolicyOptionsFlags(t *testing.T) {
	o := NewPolicyOptions()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	o.AddFlags(fs, "acl")

	require.NoError(t, fs.Parse([]string{
		"--acl.default-allow=false",
		"--acl.rules=app-1=RADIO;climate,app-2=*",
	}))

	assert.False(t, o.DefaultAllow)
	assert.Equal(t, map[string]string{"app-1": "RADIO;climate", "app-2": "*"}, o.Rules)
	assert.Equal(t, []string{"RADIO", "CLIMATE"}, SplitModules(o.Rules["app-1"]))
	assert.Empty(t, o.Validate())

	o.Rules["app-3"] = "TRUNK"
	assert.Len(t, o.Validate(), 1)
}

func TestMqttOptionsValidate(t *testing.T) {
	o := NewMqttOptions()
	o.Broker = "not a url"
	o.TopicRoot = "ivi/#"
	o.QoS = 5
	assert.Len(t, o.Validate(), 3)

	cfg := NewMqttOptions().ToClientConfig()
	assert.EqualValues(t, 60, cfg.KeepAlive)
	assert.Equal(t, "tcp://127.0.0.1:1883", cfg.BrokerURL)
}
