package options

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/pflag"
	"k8s.io/apimachinery/pkg/util/sets"
)

var _ IOptions = (*BrokerOptions)(nil)

// KnownModules lists the vehicle module types the broker can arbitrate.
var KnownModules = sets.New("RADIO", "CLIMATE", "SEAT", "AUDIO", "LIGHT", "HMI_SETTINGS")

// BrokerOptions configures capability negotiation and the command engine.
type BrokerOptions struct {
	// LaunchHMI is false when the broker runs without an HMI; the capability gate is then always open.
	LaunchHMI bool `json:"launch-hmi" mapstructure:"launch-hmi"`

	// CommandTimeout bounds how long a dispatched command waits for its HMI events.
	CommandTimeout time.Duration `json:"command-timeout" mapstructure:"command-timeout"`

	// ShareableModules may be leased in shared mode by several applications at once.
	// Every other module is always leased exclusively. Empty by default.
	ShareableModules []string `json:"shareable-modules" mapstructure:"shareable-modules"`
}

// NewBrokerOptions creates a BrokerOptions object with default parameters.
func NewBrokerOptions() *BrokerOptions {
	return &BrokerOptions{
		LaunchHMI:      true,
		CommandTimeout: 10 * time.Second,
	}
}

// Validate is used to parse and validate the parameters entered by the user at
// the command line when the program starts.
func (o *BrokerOptions) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error

	if o.CommandTimeout <= 0 {
		errs = append(errs, errors.New("broker.command-timeout must be positive"))
	}
	for _, m := range o.ShareableModules {
		if !KnownModules.Has(m) {
			errs = append(errs, fmt.Errorf("broker.shareable-modules: unknown module type %q", m))
		}
	}

	return errs
}

// AddFlags adds flags related to the broker core to the specified FlagSet.
func (o *BrokerOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.BoolVar(&o.LaunchHMI, flagName("broker", "launch-hmi", prefixes...), o.LaunchHMI,
		"Wait for the HMI capability handshake before reporting ready. Disable to run headless.")
	fs.DurationVar(&o.CommandTimeout, flagName("broker", "command-timeout", prefixes...), o.CommandTimeout,
		"How long a dispatched command waits for HMI responses.")
	fs.StringSliceVar(&o.ShareableModules, flagName("broker", "shareable-modules", prefixes...), o.ShareableModules,
		"Module types that several applications may lease in shared mode.")
}
