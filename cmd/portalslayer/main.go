package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"portalslayer/internal/api"
	"portalslayer/pkg/config"
	"portalslayer/pkg/db"
	"portalslayer/pkg/engine"
	"portalslayer/pkg/host"
	"portalslayer/pkg/host/mockhost"
	"portalslayer/pkg/hub"
	"portalslayer/pkg/logging"
	"portalslayer/pkg/marker"
	"portalslayer/pkg/metrics"
	"portalslayer/pkg/store"
	"portalslayer/pkg/version"
)

const defaultConfigPath = "configs/portalslayer.yaml"

var initConfig = flag.Bool("init-config", false, "Generate default config file and exit")

func main() {
	flag.Parse()

	// Handle --init-config flag
	if *initConfig {
		if err := config.GenerateDefault(defaultConfigPath); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to generate config: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Config file generated: " + defaultConfigPath)
		return
	}

	if err := run(context.Background(), defaultConfigPath); err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL ERROR: Application failed: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	appCfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	cleanupLogs, err := logging.Init(&appCfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer cleanupLogs()

	slog.Info("PortalSlayer Started", "version", version.Version, "provider", appCfg.Host.Provider)

	dbConn, st, err := initDB(appCfg)
	if err != nil {
		return err
	}
	defer dbConn.Close()

	m := metrics.New()
	rt, hb := initHost(appCfg, m)
	if hb != nil {
		defer hb.Close()
	}

	eng := engine.New(ctx, rt, st, marker.Config{
		PaneName:   appCfg.Host.PaneName,
		PaneZIndex: appCfg.Host.PaneZIndex,
		LayerName:  appCfg.Host.LayerName,
	}, m)
	defer eng.Close()

	seq := engine.NewSequencer(eng, engine.SequencerConfig{
		PollInterval:    appCfg.Bootstrap.PollInterval.Std(),
		MaxPollInterval: appCfg.Bootstrap.MaxPollInterval.Std(),
		SiblingGrace:    appCfg.Bootstrap.SiblingGrace.Std(),
	})
	seq.Start(ctx)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(quit)
	shutdownFunc := func() { quit <- syscall.SIGTERM }

	var ws http.Handler
	if hb != nil {
		ws = hb
	}
	srv := api.NewServer(appCfg.Server.Address,
		api.NewTagsHandler(eng),
		api.NewModeHandler(eng),
		api.NewSettingsHandler(eng),
		api.NewSelectionHandler(eng),
		ws,
		m.Handler(),
		shutdownFunc,
	)
	srv.Handler = loggingMiddleware(srv.Handler)

	return runServerLifecycle(ctx, srv, quit)
}

func initDB(appCfg *config.Config) (*db.DB, store.Store, error) {
	dbConn, err := db.Init(appCfg.DB.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return dbConn, store.NewSQLiteStore(dbConn), nil
}

// initHost returns the host runtime and, for the websocket provider, the hub serving it.
func initHost(appCfg *config.Config, m *metrics.Metrics) (host.Runtime, *hub.Hub) {
	switch appCfg.Host.Provider {
	case "mock":
		slog.Info("Using mock host", "portals", len(appCfg.Host.Mock.Portals))
		return mockhost.FromConfig(appCfg.Host.Mock), nil
	default:
		hb := hub.New(appCfg.Host, m)
		return hb, hb
	}
}

func runServerLifecycle(ctx context.Context, srv *http.Server, quit chan os.Signal) error {
	slog.Info("Starting server", "addr", srv.Addr)
	serverErrors := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()
	select {
	case <-quit:
		slog.Info("Shutting down server...")
	case <-ctx.Done():
		slog.Info("Context cancelled, shutting down...")
	case err := <-serverErrors:
		return fmt.Errorf("server failed: %w", err)
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logging.RequestLogger.Info("Request Processed", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}
