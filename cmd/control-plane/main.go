// Command control-plane runs the workflow control plane server: the
// embedded store, the step interpreter, the secrets vault, and the HTTP
// API in front of them.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dara-labs/control-plane/pkg/api"
	"github.com/dara-labs/control-plane/pkg/config"
	"github.com/dara-labs/control-plane/pkg/connector"
	"github.com/dara-labs/control-plane/pkg/engine"
	"github.com/dara-labs/control-plane/pkg/notify"
	"github.com/dara-labs/control-plane/pkg/observability"
	"github.com/dara-labs/control-plane/pkg/presets"
	"github.com/dara-labs/control-plane/pkg/store"
	"github.com/dara-labs/control-plane/pkg/vault"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Load()
	setupLogging(cfg.LogLevel)
	logger := slog.Default().With("component", "main")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	obs, err := observability.New(ctx, &observability.Config{
		ServiceName:    "control-plane",
		ServiceVersion: "1.0.0",
		Environment:    "production",
		OTLPEndpoint:   cfg.OTLPEndpoint,
		SampleRate:     1.0,
		BatchTimeout:   5 * time.Second,
		Enabled:        cfg.OTLPEndpoint != "",
		Insecure:       true,
	})
	if err != nil {
		return fmt.Errorf("observability: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = obs.Shutdown(shutdownCtx)
	}()

	st, err := store.Open(cfg.DataDir)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	var secretVault *vault.Vault
	if cfg.MasterKey != "" {
		secretVault, err = vault.New(st, cfg.MasterKey)
		if err != nil {
			return err
		}
	} else {
		logger.Warn("MASTER_KEY not set, secrets vault disabled")
	}

	conn := connector.New(st, cfg.ConnectorURL, cfg.ConnectorAPIKey)

	registry := presets.New(st)
	if err := registry.Seed(ctx, cfg.PresetDefaults, cfg.DefaultPreset); err != nil {
		return err
	}

	notifier := notify.New(st, registry, notify.Config{
		WebhookURL:       cfg.WebhookURL,
		WebhookSecret:    cfg.WebhookSecret,
		NotifyOnComplete: cfg.NotifyOnComplete,
		TTSProvider:      cfg.TTSProvider,
		TTSVoice:         cfg.TTSVoice,
		TTSAPIKey:        cfg.TTSAPIKey,
	})

	var secrets engine.SecretSource
	if secretVault != nil {
		secrets = secretVault
	}
	eng := engine.New(st, secrets, conn, notifier, cfg.ArtifactsDir)

	extras, err := config.LoadWorkflowDefinitions(cfg.WorkflowsDir)
	if err != nil {
		return err
	}
	if err := eng.SeedWorkflows(ctx, extras); err != nil {
		return err
	}

	server := api.NewServer(eng, secretVault, conn, registry)
	limiter := api.NewGlobalRateLimiter(20, 40)
	handler := api.RequestLogger(slog.Default().With("component", "http"),
		api.MetricsMiddleware(limiter.Middleware(server.Routes())))

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", httpServer.Addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
	}
	return nil
}

func setupLogging(level string) {
	var lvl slog.Level
	switch strings.ToUpper(level) {
	case "DEBUG":
		lvl = slog.LevelDebug
	case "WARN", "WARNING":
		lvl = slog.LevelWarn
	case "ERROR":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})))
}
