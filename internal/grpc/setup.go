// Package grpc exposes the standard gRPC health service so orchestrators can
// tell whether the subtitle service is configured to serve.
package grpc

import (
	"maps"
	"slices"
	"sync"

	grpcprom "github.com/grpc-ecosystem/go-grpc-middleware/providers/prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/subgrab/subgrab/internal/config"
)

// Health service names reported besides the overall "" entry.
const (
	SearchService   = "subgrab.v1.Search"
	DownloadService = "subgrab.v1.Download"
)

// Checks maps a health service name to the check deciding its status. A nil
// error means SERVING.
type Checks map[string]func() error

var (
	grpcServerMetrics         *grpcprom.ServerMetrics
	registerServerMetricsOnce sync.Once
)

// NewGRPCServer creates a gRPC server with Prometheus metrics, health
// checking and reflection. The overall status is SERVING only when every
// check passes.
func NewGRPCServer(checks Checks) *grpc.Server {
	registerServerMetricsOnce.Do(func() {
		grpcServerMetrics = grpcprom.NewServerMetrics(
			grpcprom.WithServerHandlingTimeHistogram(),
		)
		prometheus.MustRegister(grpcServerMetrics)
	})

	srvMetrics := grpcServerMetrics
	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(srvMetrics.UnaryServerInterceptor()),
		grpc.ChainStreamInterceptor(srvMetrics.StreamServerInterceptor()),
	)

	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	applyChecks(healthServer, checks)

	reflection.Register(grpcServer)
	srvMetrics.InitializeMetrics(grpcServer)

	return grpcServer
}

// applyChecks evaluates checks in name order and records their statuses.
func applyChecks(hs *health.Server, checks Checks) {
	logger := config.GetLogger()
	overall := grpc_health_v1.HealthCheckResponse_SERVING

	for _, name := range slices.Sorted(maps.Keys(checks)) {
		status := grpc_health_v1.HealthCheckResponse_SERVING
		if err := checks[name](); err != nil {
			status = grpc_health_v1.HealthCheckResponse_NOT_SERVING
			overall = status
			logger.Warn().Err(err).Str("service", name).Msg("Service not ready")
		}
		hs.SetServingStatus(name, status)
	}
	hs.SetServingStatus("", overall)
}
