package app

import (
	"fmt"
	"sync/atomic"

	genericapiserver "k8s.io/apiserver/pkg/server"
	"k8s.io/klog/v2"

	"github.com/autopeer-io/hmibroker/cmd/cpeer-hmi-broker/app/options"
	"github.com/autopeer-io/hmibroker/internal/broker"
	"github.com/autopeer-io/hmibroker/pkg/app"
	"github.com/autopeer-io/hmibroker/pkg/log"
)

const (
	commandName = "cpeer-hmi-broker"
	commandDesc = `The Cloupeer HMI broker negotiates capabilities with the in-vehicle HMI over
MQTT and runs remote-control RPCs from mobile applications against it,
arbitrating access to the vehicle modules they touch.`
)

func NewApp() *app.App {
	opts := options.NewBrokerOptions()
	// Set once the broker exists; config reloads before that have nothing to apply.
	var running atomic.Pointer[broker.Broker]
	application := app.NewApp(
		commandName,
		"Launch the Cloupeer HMI broker",
		app.WithDescription(commandDesc),
		app.WithOptions(opts),
		app.WithDefaultValidArgs(),
		app.WithSubCommands(newStatusCommand()),
		app.WithRunFunc(run(opts, &running)),
		app.WithConfigChangeHook(func() {
			if b := running.Load(); b != nil {
				b.Reload()
			}
		}),
	)
	return application
}

func run(opts *options.BrokerOptions, running *atomic.Pointer[broker.Broker]) app.RunFunc {
	return func() error {
		log.Init(opts.Log)
		defer func() { _ = log.Sync() }()
		klog.SetLogger(log.Std().Logr())

		ctx := genericapiserver.SetupSignalContext()

		cfg, err := opts.Config()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		b, err := cfg.NewBroker()
		if err != nil {
			return fmt.Errorf("failed to create broker: %w", err)
		}
		running.Store(b)

		return b.Run(ctx)
	}
}
