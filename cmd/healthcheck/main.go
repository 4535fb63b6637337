// Package main probes a paywall gRPC health endpoint for container liveness
// checks. It exits non-zero unless the service reports SERVING.
package main

import (
	"context"
	"flag"
	"time"

	"github.com/louisbranch/paywall/internal/platform/config"
	platformgrpc "github.com/louisbranch/paywall/internal/platform/grpc"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:8081", "gRPC health address")
	service := flag.String("service", "", "health service name; empty checks the whole server")
	timeout := flag.Duration("timeout", 3*time.Second, "probe timeout")
	flag.Parse()

	if err := platformgrpc.Probe(context.Background(), *addr, *service, *timeout, nil); err != nil {
		config.Exitf("%v", err)
	}
}
