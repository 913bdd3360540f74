// Command healthcheck exits 0 when the ETL scheduler looks alive (or is
// outside its allowed window) and 1 otherwise. It is meant for container
// health probes.
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/rpattn/tamperlog/internal/config"
	"github.com/rpattn/tamperlog/internal/db"
	"github.com/rpattn/tamperlog/internal/health"
	"github.com/rpattn/tamperlog/internal/logging"
	"github.com/rpattn/tamperlog/internal/repository"
	"github.com/rpattn/tamperlog/internal/scheduler"

	"go.uber.org/zap"
)

const probeTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", ".", "directory containing an optional config.yaml")
	flag.Parse()

	os.Exit(run(*configPath))
}

func run(configPath string) int {
	bootstrap, _ := logging.New(logging.Options{})
	bootstrap = bootstrap.Named("healthcheck")
	defer func() { _ = bootstrap.Sync() }()

	// No cycles run outside the window, so it is checked before the
	// remaining settings are validated.
	schedule, err := config.LoadSchedule(configPath)
	if err != nil {
		bootstrap.Error("invalid configuration", zap.Error(err))
		return 1
	}
	window, err := scheduler.NewWindow(schedule.StartHour, schedule.EndHour, schedule.Timezone)
	if err != nil {
		bootstrap.Error("invalid configuration", zap.Error(err))
		return 1
	}
	if !window.Contains(time.Now()) {
		return 0
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		bootstrap.Error("invalid configuration", zap.Error(err))
		return 1
	}

	// Probe output must not reach the monitoring collection it inspects.
	logger, err := logging.New(logging.Options{
		Level:       cfg.LogLevel,
		App:         cfg.Monitoring.App,
		Environment: cfg.Monitoring.Environment,
	})
	if err != nil {
		return 1
	}
	logger = logger.Named("healthcheck")
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()

	mongoClient, err := repository.ConnectMongo(ctx, cfg.Monitoring.URI, 3*time.Second)
	if err != nil {
		logger.Error("monitoring store unreachable", zap.Error(err))
		return 1
	}
	defer func() { _ = mongoClient.Disconnect(context.Background()) }()
	events := repository.NewEventRepository(mongoClient, cfg.Monitoring.Database, cfg.Monitoring.Collection)

	sourceDB, err := db.NewSourceDB(cfg.Source)
	if err != nil {
		logger.Error("invalid source database settings", zap.Error(err))
		return 1
	}
	defer sourceDB.Close()

	targetCfg := cfg.Target
	targetCfg.MaxConns = 1
	targetConn, err := db.NewConnection(ctx, targetCfg, logger)
	if err != nil {
		logger.Error("invalid target database settings", zap.Error(err))
		return 1
	}
	defer targetConn.Close()

	probe := health.NewProbe(
		events,
		repository.NewSourceRepository(sourceDB, cfg.SourceTable, cfg.Source.AcquireTimeout),
		repository.NewTargetRepository(targetConn, cfg.TargetTable),
		health.Options{
			App:         cfg.Monitoring.App,
			Environment: cfg.Monitoring.Environment,
			Window:      window,
			Lookback:    cfg.HealthLookback,
		},
	)

	result := probe.Check(ctx)
	if result.Healthy {
		logger.Info("healthy", zap.String("reason", result.Reason))
	} else {
		logger.Error("unhealthy", zap.String("reason", result.Reason))
	}
	return result.ExitCode()
}
