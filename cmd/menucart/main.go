// Menucart serves a restaurant cart: the menu badge, the editable cart
// page, the read-only order page and a JSON API with live updates.
//
// Configuration is loaded from ~/.config/menucart/config.yaml and MENUCART_*
// environment variables. See internal/config for details.
//
// Usage:
//
//	# Start server with defaults
//	menucart
//
//	# Persist carts on disk and pick up edits from other processes
//	MENUCART_STORAGE_BACKEND=file MENUCART_STORAGE_PATH=/var/lib/menucart \
//	MENUCART_STORAGE_WATCH=true menucart
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/menucart/internal/cartstore"
	"github.com/fyrsmithlabs/menucart/internal/config"
	"github.com/fyrsmithlabs/menucart/internal/events"
	httpserver "github.com/fyrsmithlabs/menucart/internal/http"
	"github.com/fyrsmithlabs/menucart/internal/logging"
	"github.com/fyrsmithlabs/menucart/internal/metrics"
	"github.com/fyrsmithlabs/menucart/internal/render"
	"github.com/fyrsmithlabs/menucart/internal/storage"
	"github.com/fyrsmithlabs/menucart/internal/telemetry"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default ~/.config/menucart/config.yaml)")
	flag.Parse()
	args := flag.Args()

	if len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  menucart [-config FILE]   Start the cart server\n")
			fmt.Fprintf(os.Stderr, "  menucart version          Show version information\n")
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Printf("Received signal %v, shutting down gracefully...", sig)
		cancel()
	}()

	if err := run(ctx, *configPath); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Server error: %v", err)
	}

	log.Println("Server shutdown complete")
}

// printVersion prints version information
func printVersion() {
	fmt.Printf("menucart by Fyrsmith Labs\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run starts the server and blocks until ctx is cancelled.
//
// Returns http.ErrServerClosed on graceful shutdown.
func run(ctx context.Context, configPath string) error {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := initLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync() // Best-effort sync on shutdown
	}()

	logger.Info(ctx, "Starting menucart",
		zap.String("version", version),
		zap.String("addr", cfg.Server.Addr()),
		zap.String("storage", cfg.Storage.Backend),
		zap.String("sync", cfg.Sync.Driver))

	deps, err := initDependencies(ctx, cfg, logger.Underlying())
	if err != nil {
		return fmt.Errorf("failed to initialize dependencies: %w", err)
	}
	defer deps.Close()

	store, err := cartstore.New(deps.storage, cartstore.Options{
		Keys:           cartstore.Keys{Canonical: cfg.Storage.CanonicalKey, Mirror: cfg.Storage.MirrorKey},
		Bus:            deps.bus,
		Metrics:        deps.metrics,
		Logger:         logger.Underlying().Named("cartstore"),
		RedirectTarget: cfg.Checkout.RedirectTarget,
	})
	if err != nil {
		return fmt.Errorf("failed to create cart store: %w", err)
	}

	syncer := render.NewSyncer(store, deps.bus, logger.Underlying().Named("render"))
	go func() {
		if err := syncer.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error(ctx, "view sync stopped", zap.Error(err))
		}
	}()

	srv, err := httpserver.NewServer(store, syncer, logger.Named("http"), &httpserver.Config{
		Host:              cfg.Server.Host,
		Port:              cfg.Server.Port,
		ShutdownTimeout:   cfg.Server.ShutdownTimeout,
		HeartbeatInterval: cfg.Server.HeartbeatInterval,
		RateLimit:         cfg.Server.RateLimit,
		RateBurst:         cfg.Server.RateBurst,
		MeterProvider:     deps.telemetry.MeterProvider(),
	})
	if err != nil {
		return fmt.Errorf("failed to create HTTP server: %w", err)
	}

	logger.Info(ctx, "Server configured",
		zap.String("health_endpoint", fmt.Sprintf("http://%s/health", cfg.Server.Addr())),
		zap.String("cart_page", "/cart"),
		zap.String("metrics_endpoint", "/metrics"))

	return srv.Start(ctx)
}

// dependencies holds all infrastructure dependencies.
type dependencies struct {
	backend   storage.Backend
	storage   *storage.Store
	watcher   *storage.Watcher
	bus       events.Bus
	natsConn  *nats.Conn
	metrics   *metrics.Metrics
	telemetry *telemetry.Telemetry
	logger    *zap.Logger
}

// Close releases all infrastructure resources.
func (d *dependencies) Close() {
	if err := d.telemetry.Shutdown(context.Background()); err != nil {
		d.logger.Warn("telemetry shutdown", zap.Error(err))
	}
	if d.watcher != nil {
		d.watcher.Stop()
	}
	if d.bus != nil {
		_ = d.bus.Close()
	}
	if d.natsConn != nil {
		d.natsConn.Close()
	}
	if d.backend != nil {
		if err := d.backend.Close(); err != nil {
			d.logger.Warn("closing storage backend", zap.Error(err))
		}
	}
}

// initLogger builds the structured logger from the logging section.
func initLogger(cfg *config.Config) (*logging.Logger, error) {
	logCfg, err := logging.FromSettings(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return nil, err
	}
	return logging.NewLogger(logCfg)
}

// initDependencies opens storage, the change bus and, when enabled, the
// storage watcher.
func initDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*dependencies, error) {
	deps := &dependencies{
		metrics: metrics.New(),
		logger:  logger,
	}

	tel, err := telemetry.New(ctx, &telemetry.Config{
		Enabled:         cfg.Telemetry.Enabled,
		Endpoint:        cfg.Telemetry.Endpoint,
		Protocol:        cfg.Telemetry.Protocol,
		Insecure:        cfg.Telemetry.Insecure,
		ServiceName:     "menucart",
		ServiceVersion:  version,
		ExportInterval:  cfg.Telemetry.ExportInterval,
		ShutdownTimeout: 5 * time.Second,
	})
	if err != nil {
		return nil, err
	}
	deps.telemetry = tel
	if tel.IsEnabled() {
		logger.Info("Exporting OTLP metrics", zap.String("endpoint", cfg.Telemetry.Endpoint))
	}

	backend, err := storage.Open(storage.Config{
		Backend:    cfg.Storage.Backend,
		Path:       cfg.Storage.Path,
		QuotaBytes: cfg.Storage.QuotaBytes,
	})
	if err != nil {
		deps.Close()
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}
	deps.backend = backend
	deps.storage = storage.NewStore(backend, logger.Named("storage"), deps.metrics)

	switch cfg.Sync.Driver {
	case config.SyncNATS:
		nc, err := nats.Connect(cfg.Sync.NATSURL.Value(),
			nats.Name("menucart"),
			nats.RetryOnFailedConnect(true),
			nats.MaxReconnects(5),
			nats.ReconnectWait(1*time.Second),
		)
		if err != nil {
			deps.Close()
			return nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.Sync.NATSURL.Redacted(), err)
		}
		deps.natsConn = nc
		deps.bus = events.NewNATSBus(nc, cfg.Sync.SubjectPrefix, logger.Named("events"))
		logger.Info("Connected to NATS", zap.String("url", cfg.Sync.NATSURL.Redacted()))
	default:
		deps.bus = events.NewLocalBus(64)
	}

	if cfg.Storage.Watch {
		w, err := storage.NewWatcher(cfg.Storage.Path, logger.Named("watcher"))
		if err != nil {
			deps.Close()
			return nil, err
		}
		if err := w.Start(ctx); err != nil {
			w.Stop()
			deps.Close()
			return nil, err
		}
		deps.watcher = w
		go events.Forward(ctx, w.Keys(), deps.bus, logger.Named("watcher"))
		logger.Info("Watching storage directory", zap.String("path", cfg.Storage.Path))
	}

	return deps, nil
}
