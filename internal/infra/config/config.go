package config

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/argon2"
	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Logger    LoggerConfig    `yaml:"logger"`
	Tracer    TracerConfig    `yaml:"tracer"`
	Gateway   GatewayConfig   `yaml:"gateway"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Execution ExecutionConfig `yaml:"execution"`
	Store     StoreConfig     `yaml:"store"`
	Render    RenderConfig    `yaml:"render"`
	Chat      ChatConfig      `yaml:"chat"`
	Canvas    CanvasConfig    `yaml:"canvas"`
	Includes  []string        `yaml:"includes,omitempty"`
}

// GatewayConfig holds websocket gateway and REST settings.
type GatewayConfig struct {
	Addr           string          `yaml:"addr"`
	Auth           AuthConfig      `yaml:"auth"`
	AllowedOrigins []string        `yaml:"allowed_origins,omitempty"`
	TrustedProxies []string        `yaml:"trusted_proxies,omitempty"`
	RateLimit      RateLimitConfig `yaml:"rate_limit"`
}

// AuthConfig holds gateway authentication settings.
type AuthConfig struct {
	Type   string        `yaml:"type"` // "static" or "" (no auth)
	Tokens []TokenConfig `yaml:"tokens,omitempty"`
}

// TokenConfig maps one bearer token to a backend user.
type TokenConfig struct {
	Token  string `yaml:"token"`
	UserID string `yaml:"user_id"`
	Name   string `yaml:"name"`
}

// RateLimitConfig is a token bucket. Zero RequestsPerSecond disables it.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// CircuitBreakerConfig holds circuit breaker settings for outbound calls.
type CircuitBreakerConfig struct {
	Enabled     bool          `yaml:"enabled"`
	MaxFailures uint32        `yaml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout"`
	Interval    time.Duration `yaml:"interval"`
}

// PoolConfig holds HTTP connection pool settings.
type PoolConfig struct {
	MaxIdleConns        int           `yaml:"max_idle_conns"`
	MaxIdleConnsPerHost int           `yaml:"max_idle_conns_per_host"`
	MaxConnsPerHost     int           `yaml:"max_conns_per_host"`
	IdleConnTimeout     time.Duration `yaml:"idle_conn_timeout"`
}

// WebhookConfig configures the AI webhook client.
type WebhookConfig struct {
	URL            string               `yaml:"url"`
	Token          string               `yaml:"token,omitempty"`
	ConnTimeout    time.Duration        `yaml:"conn_timeout"`
	RespTimeout    time.Duration        `yaml:"resp_timeout"`
	Pool           PoolConfig           `yaml:"pool"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
}

// ExecutionConfig configures the remote execution client. The call has no
// response timeout: the remote compile and run limits bound it.
type ExecutionConfig struct {
	URL            string               `yaml:"url"`
	ConnTimeout    time.Duration        `yaml:"conn_timeout"`
	Pool           PoolConfig           `yaml:"pool"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
	RateLimit      RateLimitConfig      `yaml:"rate_limit"` // per session
}

// StoreConfig selects the conversation store.
type StoreConfig struct {
	Driver       string `yaml:"driver"` // "sqlite" or "postgres"
	DSN          string `yaml:"dsn"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

// RenderConfig tunes message rendering.
type RenderConfig struct {
	CacheSize int `yaml:"cache_size"`
}

// ChatConfig tunes the chat flows.
type ChatConfig struct {
	DailyQuota   int `yaml:"daily_quota"`
	HistoryLimit int `yaml:"history_limit"`
}

// CanvasConfig tunes the canvas panel.
type CanvasConfig struct {
	DefaultWidth float64 `yaml:"default_width"`
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// TracerConfig holds tracing settings.
type TracerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"`
	Endpoint string `yaml:"endpoint"`
}

// DefaultExecutionURL is the public Piston endpoint.
const DefaultExecutionURL = "https://emkc.org/api/v2/piston/execute"

// defaultDataDir returns the persistent data directory under $HOME/.canvaschat/data.
// Falls back to "./data" if $HOME cannot be determined.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./data"
	}
	return filepath.Join(home, ".canvaschat", "data")
}

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Logger: LoggerConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Tracer: TracerConfig{
			Exporter: "noop",
		},
		Gateway: GatewayConfig{
			Addr: "127.0.0.1:8080",
			RateLimit: RateLimitConfig{
				RequestsPerSecond: 10,
				Burst:             20,
			},
		},
		Webhook: WebhookConfig{
			ConnTimeout: 10 * time.Second,
			RespTimeout: 120 * time.Second,
			CircuitBreaker: CircuitBreakerConfig{
				Enabled:     true,
				MaxFailures: 5,
				Timeout:     30 * time.Second,
				Interval:    60 * time.Second,
			},
		},
		Execution: ExecutionConfig{
			URL:         DefaultExecutionURL,
			ConnTimeout: 10 * time.Second,
			CircuitBreaker: CircuitBreakerConfig{
				Enabled:     true,
				MaxFailures: 5,
				Timeout:     30 * time.Second,
				Interval:    60 * time.Second,
			},
			RateLimit: RateLimitConfig{
				RequestsPerSecond: 0.5,
				Burst:             3,
			},
		},
		Store: StoreConfig{
			Driver: "sqlite",
			DSN:    filepath.Join(defaultDataDir(), "canvaschat.db"),
		},
		Render: RenderConfig{
			CacheSize: 512,
		},
		Chat: ChatConfig{
			DailyQuota:   100,
			HistoryLimit: 200,
		},
		Canvas: CanvasConfig{
			DefaultWidth: 50,
		},
	}
}

// Load reads a YAML config file, overlays a .env file found next to it or
// in the working directory, applies env var overrides, and decrypts secrets.
// A missing config file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	loadDotEnv(path)

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		data = nil
	}

	if data != nil {
		if err := parseFile(cfg, path, data); err != nil {
			return nil, err
		}
	}

	ApplyEnvOverrides(cfg)

	if passphrase := os.Getenv("CANVASCHAT_CONFIG_KEY"); passphrase != "" {
		if err := decryptSecrets(cfg, passphrase); err != nil {
			return nil, fmt.Errorf("decrypt secrets: %w", err)
		}
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parseFile(cfg *Config, path string, data []byte) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve config path: %w", err)
	}
	if err := validatePermissions(absPath); err != nil {
		return err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	if len(cfg.Includes) == 0 {
		return nil
	}

	visited := map[string]bool{absPath: true}
	if err := processIncludes(cfg, filepath.Dir(absPath), visited, 0); err != nil {
		return err
	}
	// The main file wins over its includes.
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config (second pass): %w", err)
	}
	cfg.Includes = nil
	return nil
}

// loadDotEnv loads .env files without overriding variables already set.
func loadDotEnv(configPath string) {
	candidates := []string{".env"}
	if configPath != "" {
		if dir := filepath.Dir(configPath); dir != "." {
			candidates = append([]string{filepath.Join(dir, ".env")}, candidates...)
		}
	}
	for _, f := range candidates {
		if _, err := os.Stat(f); err == nil {
			_ = godotenv.Load(f)
		}
	}
}

// ApplyEnvOverrides maps CANVASCHAT_* env vars to config fields.
func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CANVASCHAT_LOGGER_LEVEL"); v != "" {
		cfg.Logger.Level = v
	}
	if v := os.Getenv("CANVASCHAT_LOGGER_FORMAT"); v != "" {
		cfg.Logger.Format = v
	}
	if v := os.Getenv("CANVASCHAT_LOGGER_OUTPUT"); v != "" {
		cfg.Logger.Output = v
	}
	if v := os.Getenv("CANVASCHAT_TRACER_ENABLED"); v == "true" {
		cfg.Tracer.Enabled = true
	}
	if v := os.Getenv("CANVASCHAT_TRACER_EXPORTER"); v != "" {
		cfg.Tracer.Exporter = v
	}

	if v := os.Getenv("CANVASCHAT_GATEWAY_ADDR"); v != "" {
		cfg.Gateway.Addr = v
	}
	if v := os.Getenv("CANVASCHAT_GATEWAY_ALLOWED_ORIGINS"); v != "" {
		cfg.Gateway.AllowedOrigins = splitAndTrim(v, ",")
	}
	if v := os.Getenv("CANVASCHAT_GATEWAY_TOKEN"); v != "" {
		user := os.Getenv("CANVASCHAT_GATEWAY_USER")
		if user == "" {
			user = "default"
		}
		cfg.Gateway.Auth.Type = "static"
		cfg.Gateway.Auth.Tokens = append(cfg.Gateway.Auth.Tokens, TokenConfig{Token: v, UserID: user, Name: "env"})
	}

	if v := os.Getenv("CANVASCHAT_WEBHOOK_URL"); v != "" {
		cfg.Webhook.URL = v
	}
	if v := os.Getenv("CANVASCHAT_WEBHOOK_TOKEN"); v != "" {
		cfg.Webhook.Token = v
	}
	if v := os.Getenv("CANVASCHAT_EXECUTION_URL"); v != "" {
		cfg.Execution.URL = v
	}

	if v := os.Getenv("CANVASCHAT_STORE_DRIVER"); v != "" {
		cfg.Store.Driver = v
	}
	if v := os.Getenv("CANVASCHAT_STORE_DSN"); v != "" {
		cfg.Store.DSN = v
	}

	if n, ok := envInt("CANVASCHAT_RENDER_CACHE_SIZE"); ok {
		cfg.Render.CacheSize = n
	}
	if n, ok := envInt("CANVASCHAT_CHAT_DAILY_QUOTA"); ok {
		cfg.Chat.DailyQuota = n
	}
	if v := os.Getenv("CANVASCHAT_CANVAS_DEFAULT_WIDTH"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Canvas.DefaultWidth = f
		}
	}
}

func envInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

// splitAndTrim splits s by sep and trims whitespace from each element.
func splitAndTrim(s, sep string) []string {
	parts := strings.Split(s, sep)
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// decryptSecrets replaces "enc:..." values of secret fields with their plaintext.
func decryptSecrets(cfg *Config, passphrase string) error {
	secrets := map[string]*string{
		"webhook token": &cfg.Webhook.Token,
		"store dsn":     &cfg.Store.DSN,
	}
	for i := range cfg.Gateway.Auth.Tokens {
		tok := &cfg.Gateway.Auth.Tokens[i]
		secrets["gateway auth token "+tok.Name] = &tok.Token
	}

	for name, fp := range secrets {
		if !strings.HasPrefix(*fp, "enc:") {
			continue
		}
		decrypted, err := DecryptValue(strings.TrimPrefix(*fp, "enc:"), passphrase)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		*fp = decrypted
	}
	return nil
}

// EncryptValue encrypts a plaintext value with AES-256-GCM using a passphrase.
// The result is hex(salt) + ":" + hex(nonce+ciphertext).
func EncryptValue(plaintext, passphrase string) (string, error) {
	salt := make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	gcm, err := newGCM(passphrase, salt)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return hex.EncodeToString(salt) + ":" + hex.EncodeToString(ciphertext), nil
}

// DecryptValue decrypts a value produced by EncryptValue.
func DecryptValue(encrypted, passphrase string) (string, error) {
	saltHex, dataHex, ok := strings.Cut(encrypted, ":")
	if !ok {
		return "", fmt.Errorf("invalid encrypted format")
	}

	salt, err := hex.DecodeString(saltHex)
	if err != nil {
		return "", fmt.Errorf("decode salt: %w", err)
	}
	data, err := hex.DecodeString(dataHex)
	if err != nil {
		return "", fmt.Errorf("decode ciphertext: %w", err)
	}

	gcm, err := newGCM(passphrase, salt)
	if err != nil {
		return "", err
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", fmt.Errorf("ciphertext too short")
	}

	plaintext, err := gcm.Open(nil, data[:nonceSize], data[nonceSize:], nil)
	if err != nil {
		return "", fmt.Errorf("decrypt: %w", err)
	}
	return string(plaintext), nil
}

func newGCM(passphrase string, salt []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(deriveKey(passphrase, salt))
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}
	return gcm, nil
}

// deriveKey uses Argon2id to derive a 32-byte key from passphrase + salt.
func deriveKey(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, 1, 64*1024, 4, 32)
}

// validatePermissions rejects config files writable by group or others.
func validatePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat config: %w", err)
	}
	if mode := info.Mode().Perm(); mode&0o022 != 0 {
		return fmt.Errorf("config file %s has insecure permissions %o (want 0600 or 0644)", path, mode)
	}
	return nil
}
