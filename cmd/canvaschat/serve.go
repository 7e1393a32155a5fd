package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"canvaschat/internal/adapter/gateway"
	"canvaschat/internal/adapter/piston"
	"canvaschat/internal/adapter/store"
	"canvaschat/internal/adapter/webhook"
	"canvaschat/internal/infra/config"
	"canvaschat/internal/infra/logger"
	"canvaschat/internal/infra/middleware"
	"canvaschat/internal/infra/tracer"
	"canvaschat/internal/usecase/chat"
	"canvaschat/internal/usecase/eventbus"
	"canvaschat/internal/usecase/render"
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("addr", "a", "", "address to bind, overrides gateway.addr")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the chat gateway",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.Gateway.Addr = addr
		}
		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()
		return serve(ctx, cfg)
	},
}

func serve(ctx context.Context, cfg *config.Config) error {
	if cfg.Webhook.URL == "" {
		return errors.New("webhook.url is required to serve (or set CANVASCHAT_WEBHOOK_URL)")
	}

	// 1. Logger & tracer
	log, logCloser, err := logger.New(cfg.Logger)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logCloser()

	tracerShutdown, err := tracer.Setup(ctx, cfg.Tracer)
	if err != nil {
		return fmt.Errorf("tracer: %w", err)
	}
	defer tracerShutdown(context.Background())

	// 2. Store
	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}
	defer st.Close()

	// 3. Outbound clients
	ai := webhook.New(cfg.Webhook, log.With("component", "webhook"))
	exec := piston.New(cfg.Execution, log.With("component", "execution"))

	// 4. Rendering, events, chat
	renderer, err := render.NewService(cfg.Render.CacheSize, log.With("component", "render"))
	if err != nil {
		return fmt.Errorf("render: %w", err)
	}
	previews, err := gateway.NewPreviewCache(cfg.Render.CacheSize)
	if err != nil {
		return fmt.Errorf("preview cache: %w", err)
	}
	bus := eventbus.New(log)
	defer bus.Close()

	chatSvc := chat.NewService(st, ai, renderer, bus, chat.Config{
		DailyQuota:   cfg.Chat.DailyQuota,
		HistoryLimit: cfg.Chat.HistoryLimit,
	}, log.With("component", "chat"))

	// 5. Gateway
	srv := newGateway(cfg, log)
	deps := gateway.HandlerDeps{
		Chat:     chatSvc,
		Renderer: renderer,
		Executor: exec,
		Previews: previews,
		Bus:      bus,
		Breakers: map[string]gateway.BreakerReporter{"webhook": ai, "execution": exec},
		Version:  version,
		Logger:   log.With("component", "gateway"),
	}
	if rl := cfg.Execution.RateLimit; rl.RequestsPerSecond > 0 {
		deps.ExecLimiter = middleware.NewKeyedLimiter(ctx, rl.RequestsPerSecond, rl.Burst)
	}
	gateway.RegisterDefaultHandlers(srv, deps)
	gateway.RegisterRESTHandlers(srv, deps)

	log.Info("canvaschat starting",
		"version", version,
		"addr", cfg.Gateway.Addr,
		"store", cfg.Store.Driver,
		"auth", cfg.Gateway.Auth.Type,
		"daily_quota", cfg.Chat.DailyQuota,
	)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(ctx) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		log.Error("gateway shutdown error", "error", err)
	}
	log.Info("canvaschat stopped")
	return nil
}

func newGateway(cfg *config.Config, log *slog.Logger) *gateway.Server {
	gw := cfg.Gateway
	return gateway.NewServer(
		gateway.NewAuthenticator(gw.Auth),
		gw.Addr,
		log.With("component", "gateway"),
		gateway.WithAllowedOrigins(gw.AllowedOrigins),
		gateway.WithCanvasWidth(cfg.Canvas.DefaultWidth),
		gateway.WithRateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: gw.RateLimit.RequestsPerSecond,
			Burst:             gw.RateLimit.Burst,
			TrustedProxies:    gw.TrustedProxies,
		}),
	)
}
