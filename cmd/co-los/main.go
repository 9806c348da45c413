package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"github.com/yegors/co-los/internal/analysis"
	"github.com/yegors/co-los/internal/api"
	"github.com/yegors/co-los/internal/carriers"
	"github.com/yegors/co-los/internal/config"
	"github.com/yegors/co-los/internal/opensky"
	"github.com/yegors/co-los/internal/snapshot"
	"github.com/yegors/co-los/internal/storage/sqlite"
	"github.com/yegors/co-los/pkg/logger"
	"golang.org/x/sync/errgroup"
)

func main() {
	var configPath, logLevel string
	var printConfig bool

	pflag.StringVarP(&configPath, "config", "c", "", "path to the TOML configuration file")
	pflag.StringVar(&logLevel, "log-level", "", "override the configured log level (debug, info, warn, error)")
	pflag.BoolVar(&printConfig, "print-config", false, "print the effective configuration and exit")
	pflag.Parse()

	if err := run(configPath, logLevel, printConfig); err != nil {
		fmt.Fprintf(os.Stderr, "co-los: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, logLevel string, printConfig bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if logLevel != "" {
		if !logger.ValidLevel(logLevel) {
			return fmt.Errorf("invalid log level: %s", logLevel)
		}
		cfg.Logging.Level = logLevel
	}

	if printConfig {
		return cfg.Encode(os.Stdout)
	}

	log, err := logger.New(cfg.Logging.LoggerConfig())
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Sync()

	log.Info("Starting co-los",
		logger.String("addr", cfg.Server.Addr()),
		logger.Int("carrier_count", len(cfg.Carriers)),
		logger.Duration("refresh_interval", cfg.Snapshot.RefreshInterval()),
	)

	// Carrier registry, persisted when a database path is configured
	var store carriers.Store
	if cfg.Storage.SQLitePath != "" {
		db, err := sqlite.Open(cfg.Storage.SQLitePath)
		if err != nil {
			return err
		}
		defer db.Close()

		carrierStorage, err := sqlite.NewCarrierStorage(db, log)
		if err != nil {
			return err
		}
		store = carrierStorage
	}

	defaults := make([]carriers.Carrier, 0, len(cfg.Carriers))
	for _, c := range cfg.Carriers {
		defaults = append(defaults, carriers.Carrier{
			Code:           c.Code,
			Name:           c.Name,
			DefaultRangeKm: c.DefaultRangeKm,
		})
	}
	registry, err := carriers.NewRegistry(defaults, cfg.Analysis.DefaultRangeKm, store, log)
	if err != nil {
		return err
	}

	// Feed client and snapshot store
	client := opensky.NewClient(opensky.Options{
		URL:                cfg.OpenSky.URL,
		Username:           cfg.OpenSky.Username,
		Password:           cfg.OpenSky.Password,
		Timeout:            time.Duration(cfg.OpenSky.TimeoutSeconds) * time.Second,
		MaxRetries:         cfg.OpenSky.MaxRetries,
		MinRequestInterval: time.Duration(cfg.OpenSky.MinRequestIntervalSeconds) * time.Second,
	}, log)
	snapshots := snapshot.NewService(client, cfg.Snapshot.RefreshInterval(), log)

	analysisService := analysis.NewService(registry, analysis.Options{
		MaxDistanceRecords: cfg.Analysis.MaxDistanceRecords,
		DistanceBinsKm:     cfg.Analysis.DistanceBinsKm,
		CacheSize:          cfg.Analysis.CacheSize,
		CacheTTL:           cfg.Analysis.CacheTTL(),
	}, log)

	router := api.NewRouter(snapshots, registry, analysisService, cfg, log)
	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router.Routes(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSeconds) * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eg, ctx := errgroup.WithContext(ctx)

	if cfg.Snapshot.BackgroundRefresh {
		eg.Go(func() error {
			snapshots.Start(ctx)
			<-ctx.Done()
			snapshots.Stop()
			return nil
		})
	}

	eg.Go(func() error {
		log.Info("HTTP server listening", logger.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-ctx.Done()
		log.Info("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeoutSeconds)*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown failed: %w", err)
		}
		return nil
	})

	if err := eg.Wait(); err != nil {
		log.Error("Exited with error", logger.Error(err))
		return err
	}

	log.Info("Stopped")
	return nil
}
