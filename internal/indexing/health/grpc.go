package health

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"

	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/vietddude/syncwatch/internal/indexing/reconcile"
)

// GRPCServer exposes the standard gRPC health service. Service "" reflects
// the system; each chain id is its own service.
type GRPCServer struct {
	port   int
	health *grpchealth.Server
	server *grpc.Server
	log    *slog.Logger
}

// NewGRPCServer creates a gRPC health server. Until the first report every
// service is NOT_SERVING.
func NewGRPCServer(port int, logger *slog.Logger) *GRPCServer {
	h := grpchealth.NewServer()
	h.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)

	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, h)

	return &GRPCServer{
		port:   port,
		health: h,
		server: srv,
		log:    logger.With("component", "grpc"),
	}
}

// Health returns the underlying health service.
func (g *GRPCServer) Health() healthpb.HealthServer {
	return g.health
}

// Update sets serving statuses from a report. Critical is NOT_SERVING;
// degraded still serves.
func (g *GRPCServer) Update(r *Report) {
	g.health.SetServingStatus("", servingStatus(r.Status))
	for id, ch := range r.Chains {
		g.health.SetServingStatus(id, servingStatus(ch.Status))
	}
}

func servingStatus(s reconcile.Status) healthpb.HealthCheckResponse_ServingStatus {
	if s == reconcile.StatusCritical {
		return healthpb.HealthCheckResponse_NOT_SERVING
	}
	return healthpb.HealthCheckResponse_SERVING
}

// Start listens on the configured port and blocks until Stop.
func (g *GRPCServer) Start() error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", g.port))
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}
	g.log.Info("gRPC health server listening", "addr", lis.Addr().String())
	if err := g.server.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

// Stop shuts the server down, marking every service NOT_SERVING first.
func (g *GRPCServer) Stop(ctx context.Context) {
	g.health.Shutdown()
	done := make(chan struct{})
	go func() {
		g.server.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		g.server.Stop()
	}
}
