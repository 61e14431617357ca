// Package broker assembles the HMI capability negotiator, the command engine
// and the ingress servers into one process.
package broker

import (
	"context"
	"fmt"

	"k8s.io/utils/clock"

	"github.com/autopeer-io/hmibroker/internal/broker/capability"
	"github.com/autopeer-io/hmibroker/internal/broker/command"
	"github.com/autopeer-io/hmibroker/internal/broker/core"
	"github.com/autopeer-io/hmibroker/internal/broker/correlation"
	"github.com/autopeer-io/hmibroker/internal/broker/policy"
	"github.com/autopeer-io/hmibroker/internal/broker/resource"
	"github.com/autopeer-io/hmibroker/internal/broker/server"
	"github.com/autopeer-io/hmibroker/pkg/log"
)

// Link is the connection to the HMI.
type Link interface {
	core.Sender
	Start(ctx context.Context, handler core.Handler) error
	Stop()
	IsConnected() bool
}

type Broker struct {
	cfg        *Config
	link       Link
	negotiator *capability.Negotiator
	engine     *command.Engine
	resources  *resource.Manager
	policy     *policy.Static
	servers    *server.Manager
	logger     log.Logger
}

var _ core.Handler = (*Broker)(nil)

// New builds a Broker on top of link. clk drives command deadlines.
func New(cfg *Config, link Link, clk clock.WithDelayedExecution) (*Broker, error) {
	b := &Broker{
		cfg:        cfg,
		link:       link,
		negotiator: capability.NewNegotiator(capability.NewStore(), link, cfg.BrokerOptions.LaunchHMI),
		resources:  resource.NewManager(cfg.BrokerOptions.ShareableModules),
		policy:     policy.NewStatic(cfg.PolicyOptions),
		logger:     log.WithName("broker"),
	}

	engine, err := command.NewEngine(command.Config{
		Sender:       link,
		Policy:       b.policy,
		Resources:    b.resources,
		Capabilities: b.negotiator,
		Table:        correlation.NewTable(clk),
		Clock:        clk,
		Timeout:      cfg.BrokerOptions.CommandTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init command engine: %w", err)
	}
	b.engine = engine

	b.servers = server.NewManager(&server.Config{
		HttpOptions: cfg.HttpOptions,
		GrpcOptions: cfg.GrpcOptions,
	}, b)
	b.servers.Add(linkServer{b})

	return b, nil
}

// Run serves until ctx is cancelled or a server fails.
func (b *Broker) Run(ctx context.Context) error {
	b.logger.Info("Starting cpeer-hmi-broker",
		"launchHMI", b.cfg.BrokerOptions.LaunchHMI, "commandTimeout", b.cfg.BrokerOptions.CommandTimeout)
	return b.servers.Start(ctx)
}

// Reload applies the options that may change at runtime: the policy table and
// the shareable module types.
func (b *Broker) Reload() {
	b.policy.Reload(b.cfg.PolicyOptions)
	b.resources.SetShareable(b.cfg.BrokerOptions.ShareableModules)
}

// HandleRequest runs one mobile RPC.
func (b *Broker) HandleRequest(ctx context.Context, appID string, fn core.FunctionID, params core.Payload) command.Response {
	return b.engine.HandleRequest(ctx, appID, fn, params)
}

// DisconnectApplication ends an application session reported over HTTP.
func (b *Broker) DisconnectApplication(ctx context.Context, appID string) {
	b.engine.OnApplicationDisconnected(ctx, appID)
}

// Ready reports whether the HMI link is up and its capabilities are usable.
func (b *Broker) Ready() bool {
	return b.link.IsConnected() && b.negotiator.IsUsable()
}

func (b *Broker) Leases() []resource.Lease {
	return b.resources.Snapshot()
}

func (b *Broker) Capabilities() capability.Snapshot {
	return b.negotiator.Snapshot()
}

// linkServer runs the HMI link under the server manager.
type linkServer struct {
	b *Broker
}

func (s linkServer) Start(ctx context.Context) error {
	if err := s.b.link.Start(ctx, s.b); err != nil {
		return fmt.Errorf("failed to start hmi link: %w", err)
	}
	<-ctx.Done()
	s.b.link.Stop()
	return nil
}
