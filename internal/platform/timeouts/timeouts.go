// Package timeouts defines shared timeout constants used by paywall processes.
package timeouts

import "time"

// ReadHeader limits how long an HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Request caps the time allowed for a single API request against storage.
const Request = 10 * time.Second

// Shutdown limits how long servers wait for in-flight requests during
// graceful shutdown.
const Shutdown = 5 * time.Second

// SweepBatch caps one expiration sweep batch in the worker.
const SweepBatch = 30 * time.Second
