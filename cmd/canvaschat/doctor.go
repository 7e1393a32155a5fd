package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"canvaschat/internal/adapter/store"
	"canvaschat/internal/infra/config"
)

func init() {
	rootCmd.AddCommand(doctorCmd)
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run health checks on your setup",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runDoctor(cmd.Context(), cmd.OutOrStdout(), configPath(cmd))
	},
}

// CheckStatus represents the result of a health check.
type CheckStatus string

const (
	StatusPass CheckStatus = "PASS"
	StatusWarn CheckStatus = "WARN"
	StatusFail CheckStatus = "FAIL"
)

// CheckResult holds the outcome of a single health check.
type CheckResult struct {
	Name    string
	Status  CheckStatus
	Message string
	Fix     string // optional fix suggestion
}

// Check is a named health check function.
type Check struct {
	Name string
	Fn   func(ctx context.Context, cfg *config.Config) CheckResult
}

// runDoctor executes all health checks and reports results.
func runDoctor(ctx context.Context, w io.Writer, cfgPath string) error {
	// Some checks work without a config.
	cfg, cfgErr := config.Load(cfgPath)

	checks := []Check{
		{Name: "Config file", Fn: checkConfigFile(cfgPath, cfgErr)},
		{Name: "Webhook", Fn: checkWebhook},
		{Name: "Execution", Fn: checkExecution},
		{Name: "Store", Fn: checkStore},
		{Name: "Gateway auth", Fn: checkGatewayAuth},
	}

	fmt.Fprintln(w, "canvaschat doctor")
	fmt.Fprintln(w, strings.Repeat("=", 50))
	fmt.Fprintln(w)

	var pass, warn, fail int
	for _, check := range checks {
		result := check.Fn(ctx, cfg)
		result.Name = check.Name

		fmt.Fprintf(w, "  [%s] %s: %s\n", result.Status, result.Name, result.Message)
		if result.Fix != "" {
			fmt.Fprintf(w, "      Fix: %s\n", result.Fix)
		}

		switch result.Status {
		case StatusPass:
			pass++
		case StatusWarn:
			warn++
		case StatusFail:
			fail++
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.Repeat("-", 50))
	fmt.Fprintf(w, "Results: %d passed, %d warnings, %d failed\n", pass, warn, fail)

	if fail > 0 {
		return fmt.Errorf("%d check(s) failed", fail)
	}
	return nil
}

var notLoaded = CheckResult{Status: StatusFail, Message: "cannot check, config not loaded"}

// checkConfigFile reports whether the config file exists and loads.
func checkConfigFile(cfgPath string, cfgErr error) func(context.Context, *config.Config) CheckResult {
	return func(context.Context, *config.Config) CheckResult {
		if cfgErr != nil {
			return CheckResult{
				Status:  StatusFail,
				Message: fmt.Sprintf("config error: %v", cfgErr),
				Fix:     "Check config.yaml syntax and the CANVASCHAT_* environment",
			}
		}
		if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
			return CheckResult{
				Status:  StatusWarn,
				Message: fmt.Sprintf("no config file at %s, using defaults", cfgPath),
			}
		}
		return CheckResult{
			Status:  StatusPass,
			Message: fmt.Sprintf("config loaded from %s", cfgPath),
		}
	}
}

func checkWebhook(ctx context.Context, cfg *config.Config) CheckResult {
	if cfg == nil {
		return notLoaded
	}
	if cfg.Webhook.URL == "" {
		return CheckResult{
			Status:  StatusFail,
			Message: "webhook.url is not set",
			Fix:     "Set webhook.url in config.yaml or CANVASCHAT_WEBHOOK_URL",
		}
	}
	return checkReachable(ctx, cfg.Webhook.URL)
}

func checkExecution(ctx context.Context, cfg *config.Config) CheckResult {
	if cfg == nil {
		return notLoaded
	}
	return checkReachable(ctx, cfg.Execution.URL)
}

// checkReachable passes on any HTTP response: endpoints that only accept
// POST still prove the host is up.
func checkReachable(ctx context.Context, endpoint string) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, endpoint, nil)
	if err != nil {
		return CheckResult{Status: StatusFail, Message: fmt.Sprintf("invalid URL: %v", err)}
	}
	start := time.Now()
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return CheckResult{
			Status:  StatusFail,
			Message: fmt.Sprintf("cannot reach %s: %v", endpoint, err),
			Fix:     "Check your internet connection and firewall settings",
		}
	}
	resp.Body.Close()
	return CheckResult{
		Status:  StatusPass,
		Message: fmt.Sprintf("%s reachable (latency: %dms)", endpoint, time.Since(start).Milliseconds()),
	}
}

func checkStore(ctx context.Context, cfg *config.Config) CheckResult {
	if cfg == nil {
		return notLoaded
	}
	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return CheckResult{
			Status:  StatusFail,
			Message: err.Error(),
			Fix:     "Check store.driver and store.dsn",
		}
	}
	defer st.Close()
	if err := st.Ping(ctx); err != nil {
		return CheckResult{Status: StatusFail, Message: fmt.Sprintf("ping: %v", err)}
	}
	return CheckResult{Status: StatusPass, Message: fmt.Sprintf("%s store ready", st.Dialect())}
}

func checkGatewayAuth(_ context.Context, cfg *config.Config) CheckResult {
	if cfg == nil {
		return notLoaded
	}
	auth := cfg.Gateway.Auth
	if auth.Type == "static" {
		return CheckResult{
			Status:  StatusPass,
			Message: fmt.Sprintf("%d token(s) configured", len(auth.Tokens)),
		}
	}
	if isLoopback(cfg.Gateway.Addr) {
		return CheckResult{Status: StatusPass, Message: "no auth, bound to loopback"}
	}
	return CheckResult{
		Status:  StatusWarn,
		Message: fmt.Sprintf("no auth on %s, every client is the local user", cfg.Gateway.Addr),
		Fix:     "Set gateway.auth.type: static and list tokens",
	}
}

func isLoopback(addr string) bool {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
