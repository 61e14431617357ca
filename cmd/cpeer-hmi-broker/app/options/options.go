package options

import (
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	cliflag "k8s.io/component-base/cli/flag"

	"github.com/autopeer-io/hmibroker/internal/broker"
	"github.com/autopeer-io/hmibroker/pkg/app"
	"github.com/autopeer-io/hmibroker/pkg/log"
	"github.com/autopeer-io/hmibroker/pkg/options"
)

type BrokerOptions struct {
	MqttOptions   *options.MqttOptions   `json:"mqtt" mapstructure:"mqtt"`
	HttpOptions   *options.HttpOptions   `json:"http" mapstructure:"http"`
	GrpcOptions   *options.GrpcOptions   `json:"grpc" mapstructure:"grpc"`
	BrokerOptions *options.BrokerOptions `json:"broker" mapstructure:"broker"`
	PolicyOptions *options.PolicyOptions `json:"policy" mapstructure:"policy"`
	Log           *log.Options           `json:"log" mapstructure:"log"`
}

var _ app.NamedFlagSetOptions = (*BrokerOptions)(nil)

func NewBrokerOptions() *BrokerOptions {
	return &BrokerOptions{
		MqttOptions:   options.NewMqttOptions(),
		HttpOptions:   options.NewHttpOptions(),
		GrpcOptions:   options.NewGrpcOptions(),
		BrokerOptions: options.NewBrokerOptions(),
		PolicyOptions: options.NewPolicyOptions(),
		Log:           log.NewOptions(),
	}
}

func (o *BrokerOptions) Flags() cliflag.NamedFlagSets {
	fss := cliflag.NamedFlagSets{}
	o.MqttOptions.AddFlags(fss.FlagSet("mqtt"))
	o.HttpOptions.AddFlags(fss.FlagSet("http"))
	o.GrpcOptions.AddFlags(fss.FlagSet("grpc"))
	o.BrokerOptions.AddFlags(fss.FlagSet("broker"))
	o.PolicyOptions.AddFlags(fss.FlagSet("policy"))
	o.Log.AddFlags(fss.FlagSet("log"))
	return fss
}

func (o *BrokerOptions) Complete() error {
	return nil
}

func (o *BrokerOptions) Validate() error {
	errs := []error{}
	errs = append(errs, o.MqttOptions.Validate()...)
	errs = append(errs, o.HttpOptions.Validate()...)
	errs = append(errs, o.GrpcOptions.Validate()...)
	errs = append(errs, o.BrokerOptions.Validate()...)
	errs = append(errs, o.PolicyOptions.Validate()...)
	errs = append(errs, o.Log.Validate()...)
	return utilerrors.NewAggregate(errs)
}

// Config shares the option structs with the broker, so a config reload that
// rewrites them is visible to Broker.Reload.
func (o *BrokerOptions) Config() (*broker.Config, error) {
	return &broker.Config{
		MqttOptions:   o.MqttOptions,
		HttpOptions:   o.HttpOptions,
		GrpcOptions:   o.GrpcOptions,
		BrokerOptions: o.BrokerOptions,
		PolicyOptions: o.PolicyOptions,
	}, nil
}
