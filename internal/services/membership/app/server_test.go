package server

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	platformgrpc "github.com/louisbranch/paywall/internal/platform/grpc"
)

func clearGrantEnv(t *testing.T) {
	t.Helper()
	t.Setenv("PAYWALL_GRANT_PRIVATE_KEY", "")
	t.Setenv("PAYWALL_GRANT_PUBLIC_KEY", "")
}

func testConfig(t *testing.T) Config {
	t.Helper()
	return Config{
		HTTPAddr:   "127.0.0.1:0",
		HealthAddr: "127.0.0.1:0",
		DBPath:     filepath.Join(t.TempDir(), "nested", "membership.db"),
	}
}

func TestServeAnswersHTTPAndHealthUntilCanceled(t *testing.T) {
	clearGrantEnv(t)
	cfg := testConfig(t)

	srv, err := New(cfg)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	if _, err := os.Stat(cfg.DBPath); err != nil {
		t.Fatalf("expected database file: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- srv.Serve(ctx)
	}()

	if err := platformgrpc.Probe(context.Background(), srv.HealthAddr(), healthServiceName, 3*time.Second, nil); err != nil {
		t.Fatalf("probe health: %v", err)
	}

	resp, err := http.Get("http://" + srv.Addr() + "/v1/levels")
	if err != nil {
		t.Fatalf("get levels: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var body struct {
		Levels []json.RawMessage `json:"levels"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode levels: %v", err)
	}
	if len(body.Levels) != 0 {
		t.Fatalf("levels = %d, want 0", len(body.Levels))
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop after cancel")
	}
}

func TestNewRejectsMissingPolicyScript(t *testing.T) {
	clearGrantEnv(t)
	cfg := testConfig(t)
	cfg.PolicyScript = filepath.Join(t.TempDir(), "missing.lua")

	if _, err := New(cfg); err == nil {
		t.Fatal("expected error for missing policy script")
	}
}

func TestNewLoadsPolicyScript(t *testing.T) {
	clearGrantEnv(t)
	cfg := testConfig(t)
	cfg.PolicyScript = filepath.Join(t.TempDir(), "policy.lua")
	script := "function can_access(req)\n  return req.allowed\nend\n"
	if err := os.WriteFile(cfg.PolicyScript, []byte(script), 0o600); err != nil {
		t.Fatalf("write script: %v", err)
	}

	srv, err := New(cfg)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := srv.Serve(ctx); err != nil {
		t.Fatalf("serve canceled server: %v", err)
	}
}

func TestNewRejectsIncompleteGrantConfig(t *testing.T) {
	clearGrantEnv(t)
	t.Setenv("PAYWALL_GRANT_PUBLIC_KEY", "not-base64!")

	if _, err := New(testConfig(t)); err == nil {
		t.Fatal("expected error for malformed grant key")
	}
}
