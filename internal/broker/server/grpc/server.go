package grpc

import (
	"context"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	grpcmiddleware "github.com/autopeer-io/hmibroker/internal/pkg/middleware/grpc"
	"github.com/autopeer-io/hmibroker/pkg/log"
	"github.com/autopeer-io/hmibroker/pkg/options"
)

// ServiceName is the health service entry that follows the capability gate.
// The empty service name reports process liveness.
const ServiceName = "hmibroker.Broker"

// ReadinessChecker reports whether the broker can serve applications.
type ReadinessChecker interface {
	Ready() bool
}

type Server struct {
	server  *grpc.Server
	health  *health.Server
	ready   ReadinessChecker
	options *options.GrpcOptions
	logger  log.Logger
}

func NewServer(opts *options.GrpcOptions, ready ReadinessChecker) *Server {
	s := grpc.NewServer(grpc.ChainUnaryInterceptor(grpcmiddleware.UnaryServerTimeoutInterceptor))
	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	reflection.Register(s) // Enable grpc_cli support

	srv := &Server{
		server:  s,
		health:  hs,
		ready:   ready,
		options: opts,
		logger:  log.WithName("grpc"),
	}
	srv.refresh()
	return srv
}

func (s *Server) Start(ctx context.Context) error {
	lis, err := net.Listen(s.options.Network, s.options.Addr)
	if err != nil {
		return err
	}

	s.logger.Info("Starting gRPC Server", "addr", s.options.Addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.Serve(lis); err != nil {
			errCh <- err
		}
	}()

	ticker := time.NewTicker(s.options.HealthInterval)
	defer ticker.Stop()
	for {
		select {
		case err := <-errCh:
			return err
		case <-ticker.C:
			s.refresh()
		case <-ctx.Done():
			s.health.Shutdown()
			s.server.GracefulStop()
			return nil
		}
	}
}

// refresh publishes the capability gate as the serving status of ServiceName.
func (s *Server) refresh() {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if s.ready.Ready() {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s.health.SetServingStatus(ServiceName, status)
}
