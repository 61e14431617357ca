package server

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/autopeer-io/hmibroker/internal/broker/server/grpc"
	"github.com/autopeer-io/hmibroker/internal/broker/server/http"
	"github.com/autopeer-io/hmibroker/pkg/log"
)

// Server defines the common interface for all sub-servers (grpc, http).
type Server interface {
	Start(ctx context.Context) error
}

// Manager manages the lifecycle of all protocol servers.
type Manager struct {
	servers []Server
}

// NewManager creates the ingress servers around svc.
func NewManager(cfg *Config, svc http.Service) *Manager {
	return &Manager{
		servers: []Server{
			// Mobile ingress, probes, metrics and debug views.
			http.NewServer(cfg.HttpOptions, svc),
			// Health checking for the vehicle's service supervisor.
			grpc.NewServer(cfg.GrpcOptions, svc),
		},
	}
}

// Add registers another server, e.g. the HMI link, to run alongside the ingress servers.
func (m *Manager) Add(s Server) {
	m.servers = append(m.servers, s)
}

// Start launches all servers in parallel and waits for termination.
// The first failure cancels the others.
func (m *Manager) Start(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	for _, srv := range m.servers {
		g.Go(func() error {
			return srv.Start(ctx)
		})
	}

	log.Info("All servers starting...")
	return g.Wait()
}
