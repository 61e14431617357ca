package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/autopeer-io/hmibroker/internal/broker/resource"
	grpcserver "github.com/autopeer-io/hmibroker/internal/broker/server/grpc"
	brokerhttp "github.com/autopeer-io/hmibroker/internal/broker/server/http"
	grpcmw "github.com/autopeer-io/hmibroker/internal/pkg/middleware/grpc"
)

type statusOptions struct {
	server  string
	grpc    string
	timeout time.Duration
}

// newStatusCommand queries a running broker and prints its negotiation state,
// the module leases and, optionally, its gRPC health.
func newStatusCommand() *cobra.Command {
	o := &statusOptions{}
	cmd := &cobra.Command{
		Use:          "status",
		Short:        "Show the state of a running broker",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), o.timeout)
			defer cancel()
			return o.run(ctx, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&o.server, "server", "http://127.0.0.1:8443", "Base URL of the broker HTTP server.")
	cmd.Flags().StringVar(&o.grpc, "grpc", "", "Address of the broker gRPC server; when set its health is checked too.")
	cmd.Flags().DurationVar(&o.timeout, "timeout", 5*time.Second, "Overall time limit for the queries.")
	return cmd
}

func (o *statusOptions) run(ctx context.Context, w io.Writer) error {
	var caps brokerhttp.CapabilitiesView
	if err := getJSON(ctx, o.server, "/debug/capabilities", &caps); err != nil {
		return err
	}
	var leases []resource.Lease
	if err := getJSON(ctx, o.server, "/debug/leases", &leases); err != nil {
		return err
	}

	table := uitable.New()
	table.MaxColWidth = 60
	table.Wrap = true
	table.AddRow("COMPONENT", "READY", "COOPERATING", "LANGUAGE", "FEATURES")
	for _, c := range caps.Components {
		table.AddRow(c.Component, c.Ready, c.Cooperating, c.ActiveLanguage, strings.Join(c.Features, ","))
	}
	fmt.Fprintln(w, table)
	fmt.Fprintf(w, "\nUsable: %t\n", caps.Usable)
	if len(caps.Missing) > 0 {
		fmt.Fprintf(w, "Missing: %s\n", strings.Join(caps.Missing, ", "))
	}

	fmt.Fprintln(w)
	if len(leases) == 0 {
		fmt.Fprintln(w, "No module leases.")
	} else {
		table = uitable.New()
		table.AddRow("MODULE", "MODE", "HOLDERS")
		for _, l := range leases {
			table.AddRow(l.Module, l.Mode, strings.Join(l.Holders, ","))
		}
		fmt.Fprintln(w, table)
	}

	if o.grpc == "" {
		return nil
	}
	status, err := checkHealth(ctx, o.grpc)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "\ngRPC health: %s\n", status)
	return nil
}

func getJSON(ctx context.Context, base, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimSuffix(base, "/")+path, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to query %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned %s", path, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func checkHealth(ctx context.Context, addr string) (healthpb.HealthCheckResponse_ServingStatus, error) {
	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(grpcmw.UnaryTimeoutInterceptor),
	)
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, fmt.Errorf("failed to dial %s: %w", addr, err)
	}
	defer conn.Close()

	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: grpcserver.ServiceName})
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, fmt.Errorf("health check failed: %w", err)
	}
	return resp.GetStatus(), nil
}
