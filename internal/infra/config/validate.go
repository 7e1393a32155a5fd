package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// ValidationError accumulates config validation errors.
type ValidationError struct {
	Errors []string
}

func (v *ValidationError) Error() string {
	return "config validation failed:\n  - " + strings.Join(v.Errors, "\n  - ")
}

// HasErrors reports whether any validation errors have been recorded.
func (v *ValidationError) HasErrors() bool {
	return len(v.Errors) > 0
}

// Add records a formatted validation error.
func (v *ValidationError) Add(format string, args ...interface{}) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}

// Validate checks cfg for structural correctness. It returns a *ValidationError
// when one or more problems are found, allowing callers to inspect all issues.
func Validate(cfg *Config) error {
	ve := &ValidationError{}
	validateLogger(cfg, ve)
	validateTracer(cfg, ve)
	validateGateway(cfg, ve)
	validateOutbound("webhook", cfg.Webhook.URL, cfg.Webhook.CircuitBreaker, ve)
	validateOutbound("execution", cfg.Execution.URL, cfg.Execution.CircuitBreaker, ve)
	validateRate("execution.rate_limit", cfg.Execution.RateLimit, ve)
	validateStore(cfg, ve)
	validateLimits(cfg, ve)
	if ve.HasErrors() {
		return ve
	}
	return nil
}

var validLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

var validLogFormats = map[string]bool{"text": true, "json": true}

func validateLogger(cfg *Config, ve *ValidationError) {
	if !validLogLevels[strings.ToLower(cfg.Logger.Level)] {
		ve.Add("logger.level %q must be one of debug, info, warn, error", cfg.Logger.Level)
	}
	if !validLogFormats[strings.ToLower(cfg.Logger.Format)] {
		ve.Add("logger.format %q must be text or json", cfg.Logger.Format)
	}
}

func validateTracer(cfg *Config, ve *ValidationError) {
	switch cfg.Tracer.Exporter {
	case "", "noop", "stdout":
	case "file":
		if cfg.Tracer.Endpoint == "" {
			ve.Add("tracer.endpoint is required for the file exporter")
		}
	default:
		ve.Add("tracer.exporter %q is not supported (noop, stdout, file)", cfg.Tracer.Exporter)
	}
}

func validateGateway(cfg *Config, ve *ValidationError) {
	if cfg.Gateway.Addr == "" {
		ve.Add("gateway.addr is required")
	} else if _, _, err := net.SplitHostPort(cfg.Gateway.Addr); err != nil {
		ve.Add("gateway.addr %q is not a valid host:port", cfg.Gateway.Addr)
	}

	switch cfg.Gateway.Auth.Type {
	case "":
	case "static":
		if len(cfg.Gateway.Auth.Tokens) == 0 {
			ve.Add("gateway.auth.tokens must not be empty for static auth")
		}
		seen := map[string]bool{}
		for i, t := range cfg.Gateway.Auth.Tokens {
			if t.Token == "" {
				ve.Add("gateway.auth.tokens[%d].token is required", i)
			}
			if t.UserID == "" {
				ve.Add("gateway.auth.tokens[%d].user_id is required", i)
			}
			if seen[t.Token] && t.Token != "" {
				ve.Add("gateway.auth.tokens[%d] duplicates another token", i)
			}
			seen[t.Token] = true
		}
	default:
		ve.Add("gateway.auth.type %q is not supported (static)", cfg.Gateway.Auth.Type)
	}

	for _, cidr := range cfg.Gateway.TrustedProxies {
		if _, _, err := net.ParseCIDR(cidr); err != nil && net.ParseIP(cidr) == nil {
			ve.Add("gateway.trusted_proxies entry %q is not an IP or CIDR", cidr)
		}
	}
	validateRate("gateway.rate_limit", cfg.Gateway.RateLimit, ve)
}

func validateOutbound(section, rawURL string, cb CircuitBreakerConfig, ve *ValidationError) {
	if rawURL != "" {
		u, err := url.Parse(rawURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			ve.Add("%s.url %q must be an absolute http(s) URL", section, rawURL)
		}
	}
	if cb.Enabled && cb.Timeout < 0 {
		ve.Add("%s.circuit_breaker.timeout must not be negative", section)
	}
}

func validateRate(field string, rl RateLimitConfig, ve *ValidationError) {
	if rl.RequestsPerSecond < 0 {
		ve.Add("%s.requests_per_second must not be negative", field)
	}
	if rl.RequestsPerSecond > 0 && rl.Burst < 1 {
		ve.Add("%s.burst must be at least 1", field)
	}
}

func validateStore(cfg *Config, ve *ValidationError) {
	switch cfg.Store.Driver {
	case "sqlite", "postgres":
	default:
		ve.Add("store.driver %q must be sqlite or postgres", cfg.Store.Driver)
	}
	if cfg.Store.DSN == "" {
		ve.Add("store.dsn is required")
	}
}

func validateLimits(cfg *Config, ve *ValidationError) {
	if cfg.Render.CacheSize < 1 {
		ve.Add("render.cache_size must be at least 1")
	}
	if cfg.Chat.DailyQuota < 0 {
		ve.Add("chat.daily_quota must not be negative")
	}
	if cfg.Chat.HistoryLimit < 0 {
		ve.Add("chat.history_limit must not be negative")
	}
	if w := cfg.Canvas.DefaultWidth; w != 0 && (w < 25 || w > 75) {
		ve.Add("canvas.default_width %v must be within [25, 75]", w)
	}
}
