package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rpattn/tamperlog/internal/config"
	"github.com/rpattn/tamperlog/internal/db"
	"github.com/rpattn/tamperlog/internal/ingestion"
	"github.com/rpattn/tamperlog/internal/logging"
	"github.com/rpattn/tamperlog/internal/metrics"
	"github.com/rpattn/tamperlog/internal/repository"
	"github.com/rpattn/tamperlog/internal/scheduler"
	"github.com/rpattn/tamperlog/internal/status"
	"github.com/rpattn/tamperlog/internal/transform"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", ".", "directory containing an optional config.yaml")
	once := flag.Bool("once", false, "run a single ETL cycle, ignoring the allowed window, then exit")
	flag.Parse()

	os.Exit(run(*configPath, *once))
}

func run(configPath string, once bool) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		// The monitoring sink itself may be unconfigured, so this goes to
		// stdout only.
		bootstrap, _ := logging.New(logging.Options{})
		var missing *config.MissingKeysError
		if errors.As(err, &missing) {
			logging.Critical(bootstrap.Named("scheduler"), "missing required environment variables",
				zap.Strings("missing_vars", missing.Keys),
			)
		} else {
			logging.Critical(bootstrap.Named("scheduler"), "invalid configuration", zap.Error(err))
		}
		_ = bootstrap.Sync()
		return 1
	}

	mongoClient, err := repository.ConnectMongo(ctx, cfg.Monitoring.URI, 3*time.Second)
	if err != nil {
		bootstrap, _ := logging.New(logging.Options{App: cfg.Monitoring.App, Environment: cfg.Monitoring.Environment})
		logging.Critical(bootstrap, "failed to create monitoring client", zap.Error(err))
		return 1
	}
	defer func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = mongoClient.Disconnect(disconnectCtx)
	}()
	events := repository.NewEventRepository(mongoClient, cfg.Monitoring.Database, cfg.Monitoring.Collection)

	logger, err := logging.New(logging.Options{
		Level:       cfg.LogLevel,
		App:         cfg.Monitoring.App,
		Environment: cfg.Monitoring.Environment,
		Events:      events,
	})
	if err != nil {
		bootstrap, _ := logging.New(logging.Options{})
		logging.Critical(bootstrap, "invalid configuration", zap.Error(err))
		return 1
	}
	defer func() { _ = logger.Sync() }()

	sourceDB, err := db.NewSourceDB(cfg.Source)
	if err != nil {
		logging.Critical(logger, "invalid source database settings", zap.Error(err))
		return 1
	}
	defer sourceDB.Close()

	targetConn, err := db.NewConnection(ctx, cfg.Target, logger.Named("target"))
	if err != nil {
		logging.Critical(logger, "invalid target database settings", zap.Error(err))
		return 1
	}
	defer targetConn.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	source := repository.NewSourceRepository(sourceDB, cfg.SourceTable, cfg.Source.AcquireTimeout)
	target := repository.NewTargetRepository(targetConn, cfg.TargetTable)
	transformer := transform.New(transform.NewPrefixTable(cfg.PartIDByPrefix), cfg.RowFailurePolicy)
	service := ingestion.NewService(source, target, transformer, ingestion.Options{
		BatchSize: cfg.BatchSize,
		Actor:     cfg.Actor,
	}, logger, m)

	if once {
		if _, err := service.RunCycle(ctx); err != nil {
			logging.Critical(logger.Named("scheduler"), "ETL execution failed", zap.Error(err))
			return 1
		}
		return 0
	}

	window, err := scheduler.NewWindow(cfg.StartHour, cfg.EndHour, cfg.Timezone)
	if err != nil {
		logging.Critical(logger, "invalid configuration", zap.Error(err))
		return 1
	}

	tracker := status.NewTracker()
	sched := scheduler.New(service, scheduler.Options{
		Interval: cfg.Interval,
		Window:   window,
		OnCycle:  tracker.Record,
	}, logger, m)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return sched.Run(groupCtx)
	})

	if cfg.StatusAddr != "" {
		server := &http.Server{
			Addr:         cfg.StatusAddr,
			Handler:      status.NewHTTPHandler(tracker, registry, status.Options{AllowedOrigins: cfg.AllowedOrigins}, logger),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		}
		group.Go(func() error {
			logger.Info("status server listening", zap.String("addr", cfg.StatusAddr))
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		group.Go(func() error {
			<-groupCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})
	}

	err = group.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		logging.Critical(logger, "scheduler stopped", zap.Error(err))
		return 1
	}
	logger.Info("scheduler stopped")
	return 0
}
