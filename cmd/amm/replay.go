package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"liquidityEngine/internal/config"
	"liquidityEngine/internal/metrics"
	"liquidityEngine/internal/replay"
	"liquidityEngine/internal/storage"
	"liquidityEngine/internal/storage/leveldb"
	"liquidityEngine/internal/storage/postgres"
)

func runReplay(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadReplay(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.In == "" {
		return fmt.Errorf("input path is required")
	}
	if cfg.Out == "" {
		return fmt.Errorf("output path is required")
	}
	if cfg.StateFile != "" && cfg.SnapshotDB != "" {
		return fmt.Errorf("state-file and snapshot-db are mutually exclusive")
	}
	owner, err := parseAddress("owner", cfg.Owner)
	if err != nil {
		return err
	}
	custodian, err := parseAddress("custodian", cfg.Custodian)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	if cfg.MetricsAddr != "" {
		go func() {
			if err := m.Serve(ctx, cfg.MetricsAddr, logger); err != nil {
				logger.Error("metrics server stopped", zap.Error(err))
			}
		}()
	}

	sinks := replay.Sinks{
		Results:  storage.NewJsonlStorage(cfg.Out),
		Progress: m,
	}

	switch {
	case cfg.SnapshotDB != "":
		store, err := leveldb.Open(cfg.SnapshotDB, cfg.SnapshotHistory)
		if err != nil {
			return err
		}
		defer store.Close()
		sinks.Snapshots = store
	case cfg.StateFile != "":
		sinks.Snapshots = storage.NewFileSnapshotStore(cfg.StateFile)
	}

	if cfg.PostgresDSN != "" {
		pg, err := postgres.NewStore(ctx, cfg.PostgresDSN)
		if err != nil {
			return err
		}
		defer pg.Close()
		if err := pg.EnsureSchema(ctx); err != nil {
			return err
		}
		sinks.Materializer = pg
	}

	input, err := os.Open(cfg.In)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer input.Close()

	world := replay.NewWorld(owner, custodian, m, logger.Named("engine"))
	runner := replay.NewRunner(replay.RunConfig{
		Name:            cfg.Name,
		CheckpointEvery: cfg.CheckpointEvery,
		BatchSize:       cfg.BatchSize,
		MaxRetries:      cfg.MaxRetries,
		RetryBackoff:    cfg.RetryBackoff,
	}, world, sinks, logger)

	logger.Info("replay start",
		zap.String("run_id", runner.RunID()),
		zap.String("in", cfg.In),
		zap.String("out", cfg.Out),
		zap.String("owner", owner.Hex()),
		zap.String("custodian", custodian.Hex()),
		zap.String("state_file", cfg.StateFile),
		zap.String("snapshot_db", cfg.SnapshotDB),
		zap.Bool("postgres", cfg.PostgresDSN != ""),
		zap.Int("checkpoint_every", cfg.CheckpointEvery),
	)

	_, err = runner.Run(ctx, input)
	return err
}
