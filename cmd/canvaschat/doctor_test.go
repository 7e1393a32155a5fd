package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"canvaschat/internal/infra/config"
)

func TestCheckConfigFile_NotFound(t *testing.T) {
	fn := checkConfigFile("/nonexistent/path/config.yaml", nil)
	result := fn(context.Background(), nil)
	if result.Status != StatusWarn {
		t.Errorf("expected WARN for missing config, got %s", result.Status)
	}
}

func TestCheckConfigFile_Error(t *testing.T) {
	fn := checkConfigFile("config.yaml", &config.ValidationError{Errors: []string{"bad yaml"}})
	result := fn(context.Background(), nil)
	if result.Status != StatusFail {
		t.Errorf("expected FAIL for config error, got %s", result.Status)
	}
	if result.Fix == "" {
		t.Error("expected fix suggestion for config error")
	}
}

func TestCheckConfigFile_Valid(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	writeTestFile(t, cfgPath, "chat:\n  daily_quota: 5\n")

	result := checkConfigFile(cfgPath, nil)(context.Background(), nil)
	if result.Status != StatusPass {
		t.Errorf("expected PASS for valid config, got %s: %s", result.Status, result.Message)
	}
}

func TestCheckWebhook(t *testing.T) {
	ctx := context.Background()
	if r := checkWebhook(ctx, nil); r.Status != StatusFail {
		t.Errorf("nil config: %s", r.Status)
	}
	if r := checkWebhook(ctx, config.Defaults()); r.Status != StatusFail || r.Fix == "" {
		t.Errorf("missing url: %+v", r)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusMethodNotAllowed)
	}))
	defer srv.Close()

	cfg := config.Defaults()
	cfg.Webhook.URL = srv.URL
	if r := checkWebhook(ctx, cfg); r.Status != StatusPass {
		t.Errorf("reachable webhook: %+v", r)
	}
}

func TestCheckReachable_Down(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	if r := checkReachable(context.Background(), url); r.Status != StatusFail {
		t.Errorf("closed server: %+v", r)
	}
}

func TestCheckStore(t *testing.T) {
	cfg := config.Defaults()
	cfg.Store.DSN = filepath.Join(t.TempDir(), "doctor.db")

	r := checkStore(context.Background(), cfg)
	if r.Status != StatusPass {
		t.Fatalf("sqlite store: %+v", r)
	}
	if !strings.Contains(r.Message, "sqlite") {
		t.Errorf("message = %q", r.Message)
	}

	cfg.Store.Driver = "mongo"
	if r := checkStore(context.Background(), cfg); r.Status != StatusFail {
		t.Errorf("unknown driver: %+v", r)
	}
}

func TestCheckGatewayAuth(t *testing.T) {
	cfg := config.Defaults()
	cfg.Gateway.Addr = "127.0.0.1:8080"
	if r := checkGatewayAuth(context.Background(), cfg); r.Status != StatusPass {
		t.Errorf("loopback without auth: %+v", r)
	}

	cfg.Gateway.Addr = ":8080"
	if r := checkGatewayAuth(context.Background(), cfg); r.Status != StatusWarn {
		t.Errorf("public without auth: %+v", r)
	}

	cfg.Gateway.Auth = config.AuthConfig{Type: "static", Tokens: []config.TokenConfig{{Token: "t", UserID: "u"}}}
	if r := checkGatewayAuth(context.Background(), cfg); r.Status != StatusPass {
		t.Errorf("static auth: %+v", r)
	}
}

func TestIsLoopback(t *testing.T) {
	tests := []struct {
		addr string
		want bool
	}{
		{"127.0.0.1:8080", true},
		{"localhost:1", true},
		{"[::1]:9000", true},
		{":8080", false},
		{"0.0.0.0:8080", false},
		{"example.com:80", false},
	}
	for _, tt := range tests {
		if got := isLoopback(tt.addr); got != tt.want {
			t.Errorf("isLoopback(%q) = %v, want %v", tt.addr, got, tt.want)
		}
	}
}

func TestRunDoctor(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
	defer srv.Close()

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	writeTestFile(t, cfgPath, "gateway:\n  addr: 127.0.0.1:0\n"+
		"webhook:\n  url: "+srv.URL+"\n"+
		"execution:\n  url: "+srv.URL+"\n"+
		"store:\n  driver: sqlite\n  dsn: "+filepath.Join(dir, "c.db")+"\n")

	var out bytes.Buffer
	if err := runDoctor(context.Background(), &out, cfgPath); err != nil {
		t.Fatalf("runDoctor: %v\n%s", err, out.String())
	}
	if !strings.Contains(out.String(), "5 passed") {
		t.Errorf("output:\n%s", out.String())
	}
}

func writeTestFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
}
