package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"liquidityEngine/internal/chain"
	"liquidityEngine/internal/config"
	"liquidityEngine/internal/tokens"
)

func runImport(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadImport(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}
	if len(cfg.Addresses) == 0 {
		return fmt.Errorf("address list is required")
	}
	if cfg.Out == "" {
		return fmt.Errorf("output path is required")
	}
	owner, err := parseAddress("owner", cfg.Owner)
	if err != nil {
		return err
	}
	addresses := make([]common.Address, 0, len(cfg.Addresses))
	for _, a := range cfg.Addresses {
		addr, err := parseAddress("token", a)
		if err != nil {
			return err
		}
		addresses = append(addresses, addr)
	}
	stable := make(map[common.Address]bool, len(cfg.Stable))
	for _, a := range cfg.Stable {
		addr, err := parseAddress("stable token", a)
		if err != nil {
			return err
		}
		stable[addr] = true
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	chainID, err := chainClient.GetChainID(ctx)
	if err != nil {
		return fmt.Errorf("get chain id: %w", err)
	}
	logger.Info("token import start",
		zap.String("chain_id", chainID.String()),
		zap.Int("addresses", len(addresses)),
		zap.Int("stable", len(stable)),
		zap.String("out", cfg.Out),
	)

	ops, err := tokens.NewImporter(chainClient, logger).Operations(ctx, addresses, stable, owner, cfg.StartSeq)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(cfg.Out); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create dir: %w", err)
		}
	}
	file, err := os.Create(cfg.Out)
	if err != nil {
		return fmt.Errorf("open output: %w", err)
	}
	defer file.Close()

	w := bufio.NewWriter(file)
	if err := tokens.WriteOperations(w, ops); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}

	logger.Info("token import complete", zap.Int("operations", len(ops)))
	return nil
}
