package broker

import (
	"context"

	"github.com/autopeer-io/hmibroker/internal/broker/capability"
	"github.com/autopeer-io/hmibroker/internal/broker/core"
)

// OnConnected starts capability negotiation each time the HMI link comes up.
func (b *Broker) OnConnected(ctx context.Context) {
	if err := b.negotiator.Begin(ctx); err != nil {
		b.logger.Error(err, "Capability negotiation could not be started")
	}
}

// OnHMIEvent routes readiness and discovery answers to the negotiator and
// everything else to the command engine.
func (b *Broker) OnHMIEvent(ctx context.Context, ev core.Event) {
	if c, available, ok := capability.IsReadyEvent(ev); ok {
		_ = b.negotiator.NotifyCooperation(ctx, c, available)
		return
	}
	if handled, err := b.negotiator.HandleDiscoveryEvent(ev); handled {
		if err != nil {
			b.logger.Error(err, "Discovery answer rejected", "function", ev.FunctionID)
		}
		return
	}
	b.engine.OnHMIEvent(ctx, ev)
}

// OnApplicationDisconnected ends an application session reported by the session layer.
func (b *Broker) OnApplicationDisconnected(ctx context.Context, appID string) {
	b.engine.OnApplicationDisconnected(ctx, appID)
}
