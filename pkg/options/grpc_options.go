package options

import (
	"errors"
	"time"

	"github.com/spf13/pflag"
)

var _ IOptions = (*GrpcOptions)(nil)

// GrpcOptions configures the gRPC health endpoint.
type GrpcOptions struct {
	// Network with server network.
	Network string `json:"network" mapstructure:"network"`

	// Address with server address.
	Addr string `json:"addr" mapstructure:"addr"`

	// HealthInterval is how often the serving status is refreshed from the capability gate.
	HealthInterval time.Duration `json:"health-interval" mapstructure:"health-interval"`
}

// NewGrpcOptions creates a GrpcOptions object with default parameters.
func NewGrpcOptions() *GrpcOptions {
	return &GrpcOptions{
		Network:        "tcp",
		Addr:           "0.0.0.0:8091",
		HealthInterval: time.Second,
	}
}

// Validate is used to parse and validate the parameters entered by the user at
// the command line when the program starts.
func (o *GrpcOptions) Validate() []error {
	var errs []error

	if err := ValidateAddress(o.Addr); err != nil {
		errs = append(errs, err)
	}
	if o.HealthInterval <= 0 {
		errs = append(errs, errors.New("grpc.health-interval must be positive"))
	}

	return errs
}

// AddFlags adds flags related to the gRPC server to the specified FlagSet.
func (o *GrpcOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.Network, flagName("grpc", "network", prefixes...), o.Network, "Specify the network for the gRPC server.")
	fs.StringVar(&o.Addr, flagName("grpc", "addr", prefixes...), o.Addr, "Specify the gRPC server bind address and port.")
	fs.DurationVar(&o.HealthInterval, flagName("grpc", "health-interval", prefixes...), o.HealthInterval,
		"How often the gRPC health status is refreshed.")
}
