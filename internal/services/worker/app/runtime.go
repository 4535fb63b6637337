// Package app runs the membership expiration worker.
package app

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/louisbranch/paywall/internal/services/membership/service"
	"github.com/louisbranch/paywall/internal/services/membership/storage/sqlite"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthService is the gRPC health service name reported by the worker.
const HealthService = "paywall.worker"

// RuntimeConfig controls worker startup, dependencies, and loop behavior.
type RuntimeConfig struct {
	HealthAddr   string
	DBPath       string
	PollInterval time.Duration
	BatchSize    int
	MaxBatches   int
	// Ready, when set, receives the bound health address once serving.
	Ready func(addr string)
}

const (
	defaultHealthAddr = ":8089"
	defaultWorkerDB   = "data/membership.db"
)

// Run opens the membership store and sweeps expired members until ctx ends.
func Run(ctx context.Context, cfg RuntimeConfig) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(cfg.HealthAddr) == "" {
		cfg.HealthAddr = defaultHealthAddr
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		cfg.DBPath = defaultWorkerDB
	}

	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create worker storage dir: %w", err)
		}
	}

	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open membership sqlite store: %w", err)
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			log.Printf("close membership sqlite store: %v", closeErr)
		}
	}()

	sweeper := New(service.New(store, service.Options{}), Config{
		PollInterval: cfg.PollInterval,
		BatchSize:    cfg.BatchSize,
		MaxBatches:   cfg.MaxBatches,
	}, nil)

	listener, err := net.Listen("tcp", cfg.HealthAddr)
	if err != nil {
		return fmt.Errorf("listen on worker health addr %s: %w", cfg.HealthAddr, err)
	}
	defer listener.Close()

	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(HealthService, grpc_health_v1.HealthCheckResponse_SERVING)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- grpcServer.Serve(listener)
	}()
	defer func() {
		healthServer.Shutdown()
		grpcServer.GracefulStop()
		<-serveErr
	}()

	log.Printf("worker health listening at %v", listener.Addr())
	if cfg.Ready != nil {
		cfg.Ready(listener.Addr().String())
	}
	return sweeper.Run(ctx)
}
