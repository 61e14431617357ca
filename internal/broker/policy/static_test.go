package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/autopeer-io/hmibroker/pkg/options"
)

func TestStaticIsOperationPermitted(t *testing.T) {
	opts := options.NewPolicyOptions()
	opts.DefaultAllow = false
	opts.Rules = map[string]string{
		"nav-app":   "radio;CLIMATE",
		"super-app": "*",
		"muted-app": "",
	}
	s := NewStatic(opts)

	tests := []struct {
		app, module string
		want        bool
	}{
		{"nav-app", "RADIO", true},
		{"nav-app", "CLIMATE", true},
		{"nav-app", "SEAT", false},
		{"super-app", "SEAT", true},
		{"muted-app", "RADIO", false},
		{"stranger", "RADIO", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, s.IsOperationPermitted(tt.app, tt.module, "SetInteriorVehicleData"),
			"%s on %s", tt.app, tt.module)
	}
}

func TestStaticReload(t *testing.T) {
	s := NewStatic(options.NewPolicyOptions())
	assert.True(t, s.IsOperationPermitted("stranger", "RADIO", "ButtonPress"))

	opts := options.NewPolicyOptions()
	opts.Rules = map[string]string{"stranger": "LIGHT"}
	s.Reload(opts)

	assert.False(t, s.IsOperationPermitted("stranger", "RADIO", "ButtonPress"))
	assert.True(t, s.IsOperationPermitted("stranger", "LIGHT", "ButtonPress"))
	assert.True(t, s.IsOperationPermitted("other", "RADIO", "ButtonPress"))
}
