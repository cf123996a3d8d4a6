package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Strob0t/tasktimer/internal/adapter/discord"
	"github.com/Strob0t/tasktimer/internal/adapter/email"
	apphttp "github.com/Strob0t/tasktimer/internal/adapter/http"
	appmcp "github.com/Strob0t/tasktimer/internal/adapter/mcp"
	appnats "github.com/Strob0t/tasktimer/internal/adapter/nats"
	"github.com/Strob0t/tasktimer/internal/adapter/natskv"
	appotel "github.com/Strob0t/tasktimer/internal/adapter/otel"
	"github.com/Strob0t/tasktimer/internal/adapter/ristretto"
	"github.com/Strob0t/tasktimer/internal/adapter/slack"
	"github.com/Strob0t/tasktimer/internal/adapter/tiered"
	"github.com/Strob0t/tasktimer/internal/adapter/ws"
	"github.com/Strob0t/tasktimer/internal/config"
	"github.com/Strob0t/tasktimer/internal/middleware"
	"github.com/Strob0t/tasktimer/internal/port/cache"
	"github.com/Strob0t/tasktimer/internal/port/notifier"
	"github.com/Strob0t/tasktimer/internal/resilience"
	"github.com/Strob0t/tasktimer/internal/service"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, WebSocket push, MCP endpoint and timer ticker",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			closeLog := setupLogger(os.Stdout, cfg.Logging)
			defer closeLog.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg)
		},
	}
}

func runServe(ctx context.Context, cfg *config.Config) error {
	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"storage", cfg.Storage.Driver,
		"log_level", cfg.Logging.Level,
		"tick_interval", cfg.Timer.TickInterval,
	)

	// --- Observability ---
	shutdownOTel, err := appotel.Setup(ctx, cfg.OTel, cfg.Logging.Service)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			slog.Warn("otel shutdown", "error", err)
		}
	}()
	metrics, err := appotel.NewMetrics()
	if err != nil {
		return fmt.Errorf("otel metrics: %w", err)
	}

	// --- Storage ---
	st, err := openMigratedStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = st.store.Close() }()
	slog.Info("task store ready", "driver", cfg.Storage.Driver)

	// --- Services ---
	hub := ws.NewHub(cfg.Server.CORSOrigin)
	svc := service.NewTaskService(st.store, hub)
	svc.SetMetrics(metrics)
	hub.SetSnapshot(svc.Snapshot)
	if ns := buildNotifiers(cfg.Notify); len(ns) > 0 {
		svc.SetNotifiers(ns...)
	}

	l1, err := ristretto.New(cfg.Cache.L1MaxSizeMB << 20)
	if err != nil {
		return fmt.Errorf("ristretto: %w", err)
	}
	defer func() {
		slog.Info("idempotency cache closed", "l1_hit_ratio", l1.HitRatio())
		l1.Close()
	}()

	// NATS is optional: events and the L2 cache are skipped without it.
	var l2 cache.Cache
	if cfg.NATS.URL != "" {
		queue, err := appnats.Connect(ctx, cfg.NATS.URL)
		if err != nil {
			return fmt.Errorf("nats: %w", err)
		}
		defer func() {
			if err := queue.Drain(); err != nil {
				slog.Warn("nats drain", "error", err)
			}
		}()

		breaker := resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout)
		breaker.OnStateChange(func(from, to resilience.State) {
			slog.Warn("event publisher circuit changed", "from", from, "to", to)
		})
		svc.SetQueue(queue, breaker)

		kv, err := queue.KeyValue(ctx, cfg.Cache.L2Bucket, cfg.Cache.L2TTL)
		if err != nil {
			slog.Warn("idempotency L2 cache disabled", "bucket", cfg.Cache.L2Bucket, "error", err)
		} else {
			l2 = natskv.New(kv)
		}
	}
	idempotency := middleware.Idempotency(tiered.New(l1, l2, cfg.Idempotency.TTL), cfg.Idempotency.TTL)

	// --- HTTP ---
	r := chi.NewRouter()
	r.Use(appotel.HTTPMiddleware(cfg.Logging.Service))
	r.Use(middleware.RequestID)
	r.Use(chimw.RealIP)
	r.Use(apphttp.Logger)
	r.Use(chimw.Recoverer)
	r.Use(apphttp.SecurityHeaders)
	r.Use(apphttp.CORS(cfg.Server.CORSOrigin))

	// WebSocket and MCP streams outlive the request timeout.
	r.Get("/ws", hub.HandleWS)
	if cfg.MCP.Enabled {
		mcpSrv := appmcp.NewServer(appmcp.ServerConfig{
			Name:    "tasktimer",
			Version: version,
			Path:    cfg.MCP.Path,
		}, appmcp.ServerDeps{Tasks: svc})
		r.Handle(cfg.MCP.Path, appmcp.AuthMiddleware(cfg.MCP.APIKey, mcpSrv.Handler()))
		slog.Info("mcp endpoint enabled", "path", cfg.MCP.Path, "auth", cfg.MCP.APIKey != "")
	}

	r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(cfg.Server.RequestTimeout))
		apphttp.MountRoutes(r, &apphttp.Handlers{Tasks: svc}, idempotency)
	})

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return service.NewTicker(svc, cfg.Timer.TickInterval).Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down server")
		hub.Close()

		sctx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})

	return g.Wait()
}

// buildNotifiers returns one notifier per configured webhook.
func buildNotifiers(cfg config.Notify) []notifier.Notifier {
	var ns []notifier.Notifier
	if cfg.SlackWebhookURL != "" {
		ns = append(ns, slack.NewNotifier(cfg.SlackWebhookURL))
	}
	if cfg.DiscordWebhookURL != "" {
		ns = append(ns, discord.NewNotifier(cfg.DiscordWebhookURL))
	}
	if cfg.SMTP.Host != "" && cfg.SMTP.To != "" {
		ns = append(ns, email.NewNotifier(email.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			From:     cfg.SMTP.From,
			To:       cfg.SMTP.To,
			Password: cfg.SMTP.Password,
		}))
	}
	for _, n := range ns {
		slog.Info("over-estimate alerts enabled", "notifier", n.Name())
	}
	return ns
}
