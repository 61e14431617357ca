package options

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsValidate(t *testing.T) {
	o := NewBrokerOptions()
	require.NoError(t, o.Complete())
	assert.NoError(t, o.Validate())

	names := o.Flags().Order
	assert.Equal(t, []string{"mqtt", "http", "grpc", "broker", "policy", "log"}, names)
}

func TestValidateAggregates(t *testing.T) {
	o := NewBrokerOptions()
	o.HttpOptions.Addr = "nope"
	o.BrokerOptions.CommandTimeout = 0

	err := o.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nope")
	assert.Contains(t, err.Error(), "timeout")
}

func TestConfigSharesOptions(t *testing.T) {
	o := NewBrokerOptions()
	cfg, err := o.Config()
	require.NoError(t, err)

	o.PolicyOptions.Rules["app-1"] = "RADIO"
	assert.Equal(t, "RADIO", cfg.PolicyOptions.Rules["app-1"])
	assert.Same(t, o.BrokerOptions, cfg.BrokerOptions)
}
