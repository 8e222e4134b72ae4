package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/llanen/nl.eneco.toon/internal/core"
	"github.com/llanen/nl.eneco.toon/internal/handlers"
	"github.com/llanen/nl.eneco.toon/internal/providers/toon"
	"github.com/llanen/nl.eneco.toon/internal/session"
	"github.com/llanen/nl.eneco.toon/internal/sinks/mqtt"
	"github.com/llanen/nl.eneco.toon/pkg/config"
	"github.com/llanen/nl.eneco.toon/pkg/model"
)

var (
	configFile    = flag.String("config", "config.yaml", "Path to configuration file")
	exampleConfig = flag.String("example-config", "", "Write an example configuration file to the given path and exit")
	legacyTokens  = flag.String("legacy-tokens", "", "Path to a JSON file with legacy token pairs to migrate on startup")
	version       = flag.Bool("version", false, "Show version information")
)

const (
	appName    = "toon-bridge"
	appVersion = "1.0.0"
)

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("%s version %s\n", appName, appVersion)
		os.Exit(0)
	}

	if *exampleConfig != "" {
		if err := config.CreateExampleConfig(*exampleConfig); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write example configuration: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Example configuration written to %s\n", *exampleConfig)
		os.Exit(0)
	}

	// Load configuration
	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Set up logging
	logger := setupLogger(cfg.Bridge.LogLevel)
	logger.Info("Starting toon bridge",
		"version", appVersion,
		"config_file", *configFile)

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info("Received signal, shutting down gracefully", "signal", sig)
		cancel()
	}()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("Application failed", "error", err)
		os.Exit(1)
	}

	logger.Info("Application stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	// Session persistence
	store, err := session.NewSQLiteStore(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("opening session store: %w", err)
	}
	defer store.Close()

	if *legacyTokens != "" {
		if err := migrateLegacyTokens(ctx, store, cfg.Toon.ClientID, *legacyTokens, logger); err != nil {
			return fmt.Errorf("migrating legacy tokens: %w", err)
		}
	}

	metrics := core.NewMetricsCollector()

	opts := toon.Options{
		ClientID:           cfg.Toon.ClientID,
		ClientSecret:       cfg.Toon.ClientSecret,
		TenantID:           cfg.Toon.TenantID,
		APIBaseURL:         cfg.Toon.APIBaseURL,
		TokenURL:           cfg.Toon.TokenURL,
		AuthorizeURL:       cfg.Toon.AuthorizeURL,
		RedirectURL:        cfg.Toon.RedirectURL,
		WebhookCallbackURL: cfg.Toon.WebhookCallbackURL,
		Logger:             logger,
		Metrics:            metrics,
	}

	registry, err := session.NewRegistry(ctx, store, opts, logger)
	if err != nil {
		return fmt.Errorf("creating session registry: %w", err)
	}

	// Capability sink
	sink, err := mqtt.NewSink(cfg.MQTT, logger)
	if err != nil {
		return fmt.Errorf("creating mqtt sink: %w", err)
	}
	defer sink.Close()

	// Bring up a device per agreement when a session already exists;
	// agreements discovered by a later login are brought up through the
	// registry's new-agreement handler.
	var devMu sync.Mutex
	var devices []*core.DeviceSync

	registry.OnNewAgreement(func(ctx context.Context, client *toon.Session, sess model.Session, agreement model.Agreement) {
		device := newDevice(ctx, cfg, registry, sink, metrics, logger, client, sess, agreement)
		registry.RegisterDevice(device)
		device.Start(ctx)
		devMu.Lock()
		devices = append(devices, device)
		devMu.Unlock()
		logger.Info("Device started",
			"agreement_id", agreement.AgreementID,
			"name", agreement.FormatName(false))
	})

	initial, err := startDevices(ctx, cfg, registry, sink, metrics, logger)
	if err != nil {
		logger.Error("Failed to start devices", "error", err)
	}
	devMu.Lock()
	devices = append(devices, initial...)
	devMu.Unlock()

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		devMu.Lock()
		running := append([]*core.DeviceSync(nil), devices...)
		devMu.Unlock()
		for _, device := range running {
			device.Stop(shutdownCtx)
		}
	}()

	// HTTP server: webhook receiver and login endpoints
	mux := http.NewServeMux()
	handlers.New(registry, metrics, logger).RegisterRoutes(mux)

	server := &http.Server{
		Addr:              cfg.Bridge.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", cfg.Bridge.ListenAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", "error", err)
	}

	return nil
}

// startDevices creates a device engine for every agreement on the
// account of the restored session.
func startDevices(ctx context.Context, cfg *config.Config, registry *session.Registry, sink model.CapabilitySink, metrics *core.MetricsCollector, logger *slog.Logger) ([]*core.DeviceSync, error) {
	client := registry.Client()
	if client == nil {
		logger.Info("No active session, devices start after login")
		return nil, nil
	}

	sess, err := registry.GetSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading session: %w", err)
	}

	agreements, err := client.GetAgreements(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing agreements: %w", err)
	}

	var devices []*core.DeviceSync
	for _, agreement := range agreements {
		device := newDevice(ctx, cfg, registry, sink, metrics, logger, client, sess, agreement)

		registry.RegisterDevice(device)
		device.Start(ctx)
		devices = append(devices, device)

		logger.Info("Device started",
			"agreement_id", agreement.AgreementID,
			"name", agreement.FormatName(len(agreements) > 1))
	}

	return devices, nil
}

// newDevice builds one device engine bound to an agreement.
func newDevice(ctx context.Context, cfg *config.Config, registry *session.Registry, sink model.CapabilitySink, metrics *core.MetricsCollector, logger *slog.Logger, client *toon.Session, sess model.Session, agreement model.Agreement) *core.DeviceSync {
	return core.NewDeviceSync(core.DeviceSyncOptions{
		Client: client,
		Binding: model.DeviceBinding{
			AgreementID:       agreement.AgreementID,
			DisplayCommonName: agreement.DisplayCommonName,
			SessionID:         sess.ID,
			ConfigID:          sess.ConfigID,
		},
		Sink:         sink,
		Logger:       logger,
		PollInterval: cfg.Bridge.PollInterval,
		Metrics:      metrics,
		OnTokenRefresh: func(token model.Token) {
			if err := registry.SaveToken(ctx, token); err != nil {
				logger.Error("Failed to persist refreshed token", "error", err)
			}
		},
	})
}

// migrateLegacyTokens reads flat legacy token pairs from a JSON file and
// converts them into a persisted session unless one already exists.
func migrateLegacyTokens(ctx context.Context, store session.Store, configID, path string, logger *slog.Logger) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading legacy tokens file: %w", err)
	}

	var legacy []session.LegacyTokens
	if err := json.Unmarshal(data, &legacy); err != nil {
		return fmt.Errorf("parsing legacy tokens file: %w", err)
	}

	migrated, err := session.MigrateLegacyTokens(ctx, store, configID, legacy, logger)
	if err != nil {
		return err
	}
	if migrated {
		logger.Info("Legacy tokens migrated", "file", path)
	} else {
		logger.Info("Legacy token migration skipped", "file", path)
	}
	return nil
}

// setupLogger configures structured logging
func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: logLevel,
	}
	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(handler)
}
