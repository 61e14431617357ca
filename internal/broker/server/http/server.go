package http

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/autopeer-io/hmibroker/internal/broker/capability"
	"github.com/autopeer-io/hmibroker/internal/broker/command"
	"github.com/autopeer-io/hmibroker/internal/broker/core"
	"github.com/autopeer-io/hmibroker/internal/broker/resource"
	"github.com/autopeer-io/hmibroker/internal/pkg/metrics"
	"github.com/autopeer-io/hmibroker/pkg/log"
	"github.com/autopeer-io/hmibroker/pkg/options"
)

// Service is the broker surface exposed over HTTP.
type Service interface {
	HandleRequest(ctx context.Context, appID string, fn core.FunctionID, params core.Payload) command.Response
	DisconnectApplication(ctx context.Context, appID string)
	Ready() bool
	Leases() []resource.Lease
	Capabilities() capability.Snapshot
}

// CapabilitiesView is the body of GET /debug/capabilities.
type CapabilitiesView struct {
	Usable     bool                         `json:"usable"`
	Missing    []string                     `json:"missing,omitempty"`
	Components []capability.ComponentStatus `json:"components"`
}

type Server struct {
	server  *http.Server
	svc     Service
	options *options.HttpOptions
	logger  log.Logger
}

func NewServer(opts *options.HttpOptions, svc Service) *Server {
	s := &Server{
		svc:     svc,
		options: opts,
		logger:  log.WithName("http"),
	}
	s.server = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: opts.Timeout,
	}
	return s
}

// Handler returns the router, for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()

	// Basic Liveness Probe
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	// Readiness follows the HMI capability gate.
	r.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		if !s.svc.Ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("negotiating"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	debug := r.PathPrefix("/debug").Subrouter()
	debug.HandleFunc("/leases", s.getLeases).Methods(http.MethodGet)
	debug.HandleFunc("/capabilities", s.getCapabilities).Methods(http.MethodGet)

	// Registered on the root router: a path-prefix subrouter would turn a
	// method mismatch into 404.
	auth := func(h http.HandlerFunc) http.Handler { return h }
	if s.options.JWTSecret != "" {
		mw := bearerAuth([]byte(s.options.JWTSecret))
		auth = func(h http.HandlerFunc) http.Handler { return mw(h) }
	}
	r.Handle("/v1/applications/{appID}/rpc/{function}", auth(s.postRPC)).Methods(http.MethodPost)
	r.Handle("/v1/applications/{appID}", auth(s.deleteApplication)).Methods(http.MethodDelete)

	return r
}

func (s *Server) Start(ctx context.Context) error {
	lis, err := net.Listen(s.options.Network, s.options.Addr)
	if err != nil {
		return err
	}
	s.logger.Info("Starting HTTP Server", "addr", s.options.Addr, "auth", s.options.JWTSecret != "")

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.options.Timeout)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error(err, "Failed to write response")
	}
}

type errorBody struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}
