// Package server wires the membership service into an HTTP API process with
// a gRPC health endpoint.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/louisbranch/paywall/internal/platform/telemetry/metrics"
	"github.com/louisbranch/paywall/internal/platform/timeouts"
	httpapi "github.com/louisbranch/paywall/internal/services/membership/api/http"
	"github.com/louisbranch/paywall/internal/services/membership/grant"
	"github.com/louisbranch/paywall/internal/services/membership/policyscript"
	"github.com/louisbranch/paywall/internal/services/membership/service"
	"github.com/louisbranch/paywall/internal/services/membership/storage/sqlite"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

const (
	defaultHTTPAddr   = ":8080"
	defaultHealthAddr = ":8081"
	defaultDBPath     = "data/membership.db"

	healthServiceName = "paywall.membership"
)

// Config controls membership server startup.
type Config struct {
	HTTPAddr       string
	HealthAddr     string
	DBPath         string
	PolicyScript   string
	LevelCacheSize int
	LevelCacheTTL  time.Duration
}

// Server hosts the membership API.
type Server struct {
	httpListener   net.Listener
	healthListener net.Listener
	httpServer     *http.Server
	grpcServer     *grpc.Server
	health         *health.Server
	store          *sqlite.Store
}

// New opens storage, loads grant keys and the optional policy script, and
// binds both listeners.
func New(cfg Config) (*Server, error) {
	if strings.TrimSpace(cfg.HTTPAddr) == "" {
		cfg.HTTPAddr = defaultHTTPAddr
	}
	if strings.TrimSpace(cfg.HealthAddr) == "" {
		cfg.HealthAddr = defaultHealthAddr
	}

	grants, grantsEnabled, err := grant.LoadConfigFromEnv(nil)
	if err != nil {
		return nil, err
	}
	var policy *policyscript.Engine
	if path := strings.TrimSpace(cfg.PolicyScript); path != "" {
		policy, err = policyscript.Load(path)
		if err != nil {
			return nil, err
		}
		log.Printf("access policy script loaded from %s", path)
	}

	store, err := openStore(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	m := metrics.Default()
	svc := service.New(store, service.Options{
		Grants:         grants,
		GrantsEnabled:  grantsEnabled,
		Policy:         policy,
		Metrics:        m,
		LevelCacheSize: cfg.LevelCacheSize,
		LevelCacheTTL:  cfg.LevelCacheTTL,
	})
	if !grantsEnabled {
		log.Printf("access grants disabled: no PAYWALL_GRANT_* key configured")
	}

	httpListener, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("listen on %s: %w", cfg.HTTPAddr, err)
	}
	healthListener, err := net.Listen("tcp", cfg.HealthAddr)
	if err != nil {
		_ = httpListener.Close()
		_ = store.Close()
		return nil, fmt.Errorf("listen on %s: %w", cfg.HealthAddr, err)
	}

	handler := httpapi.NewHandler(svc, httpapi.Options{Metrics: m})
	httpServer := &http.Server{
		Handler:           http.TimeoutHandler(handler, timeouts.Request, "request timed out"),
		ReadHeaderTimeout: timeouts.ReadHeader,
	}

	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(healthServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	return &Server{
		httpListener:   httpListener,
		healthListener: healthListener,
		httpServer:     httpServer,
		grpcServer:     grpcServer,
		health:         healthServer,
		store:          store,
	}, nil
}

// Addr returns the HTTP listener address.
func (s *Server) Addr() string {
	if s == nil || s.httpListener == nil {
		return ""
	}
	return s.httpListener.Addr().String()
}

// HealthAddr returns the gRPC health listener address.
func (s *Server) HealthAddr() string {
	if s == nil || s.healthListener == nil {
		return ""
	}
	return s.healthListener.Addr().String()
}

// Run creates and serves a membership server until the context ends.
func Run(ctx context.Context, cfg Config) error {
	srv, err := New(cfg)
	if err != nil {
		return err
	}
	return srv.Serve(ctx)
}

// Serve blocks until the context ends or either listener fails, then shuts
// both servers down.
func (s *Server) Serve(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	defer func() {
		if err := s.store.Close(); err != nil {
			log.Printf("close membership store: %v", err)
		}
	}()

	log.Printf("membership api listening at %v", s.httpListener.Addr())
	log.Printf("membership health listening at %v", s.healthListener.Addr())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := s.httpServer.Serve(s.httpListener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := s.grpcServer.Serve(s.healthListener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("serve gRPC health: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		s.health.Shutdown()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		defer cancel()
		err := s.httpServer.Shutdown(shutdownCtx)
		s.grpcServer.GracefulStop()
		if err != nil {
			return fmt.Errorf("shutdown http: %w", err)
		}
		return nil
	})
	return g.Wait()
}

func openStore(path string) (*sqlite.Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		path = defaultDBPath
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}

	store, err := sqlite.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	return store, nil
}
