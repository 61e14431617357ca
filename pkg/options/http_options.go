package options

import (
	"errors"
	"time"

	"github.com/spf13/pflag"
)

var _ IOptions = (*HttpOptions)(nil)

// HttpOptions contains configuration items related to HTTP server startup.
type HttpOptions struct {
	// Network with server network.
	Network string `json:"network" mapstructure:"network"`

	// Address with server address.
	Addr string `json:"addr" mapstructure:"addr"`

	// Timeout bounds request handling and graceful shutdown.
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`

	// JWTSecret enables HS256 bearer authentication of mobile applications when set.
	// The token subject must equal the application ID in the request path.
	JWTSecret string `json:"jwt-secret" mapstructure:"jwt-secret"`
}

// NewHttpOptions creates a HttpOptions object with default parameters.
func NewHttpOptions() *HttpOptions {
	return &HttpOptions{
		Network: "tcp",
		Addr:    "0.0.0.0:8443",
		Timeout: 30 * time.Second,
	}
}

// Validate is used to parse and validate the parameters entered by the user at
// the command line when the program starts.
func (o *HttpOptions) Validate() []error {
	if o == nil {
		return nil
	}

	errs := []error{}

	if err := ValidateAddress(o.Addr); err != nil {
		errs = append(errs, err)
	}
	if o.Timeout <= 0 {
		errs = append(errs, errors.New("http.timeout must be positive"))
	}
	if o.JWTSecret != "" && len(o.JWTSecret) < 16 {
		errs = append(errs, errors.New("http.jwt-secret must be at least 16 bytes"))
	}

	return errs
}

// AddFlags adds flags related to the HTTP ingress to the specified FlagSet.
func (o *HttpOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.Network, flagName("http", "network", prefixes...), o.Network, "Specify the network for the HTTP server.")
	fs.StringVar(&o.Addr, flagName("http", "addr", prefixes...), o.Addr, "Specify the HTTP server bind address and port.")
	fs.DurationVar(&o.Timeout, flagName("http", "timeout", prefixes...), o.Timeout, "Timeout for request handling and shutdown.")
	fs.StringVar(&o.JWTSecret, flagName("http", "jwt-secret", prefixes...), o.JWTSecret,
		"HS256 secret used to verify application bearer tokens. Empty disables authentication.")
}
