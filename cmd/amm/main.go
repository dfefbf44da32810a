package main

import (
	"fmt"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "amm",
		Short:        "Multi-curve AMM engine",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	replayCmd := &cobra.Command{
		Use:   "replay",
		Short: "Apply an operation log to the engine and record every outcome",
		RunE:  runReplay,
	}

	replayCmd.Flags().String("name", "default", "replay name in the materialized state table")
	replayCmd.Flags().String("in", "", "input operations JSONL")
	replayCmd.Flags().String("out", "./data/results.jsonl", "output results JSONL")
	replayCmd.Flags().String("owner", "0x0000000000000000000000000000000000000001", "governance owner address")
	replayCmd.Flags().String("custodian", "0x000000000000000000000000000000000000c0de", "address holding pool reserves")
	replayCmd.Flags().String("state-file", "", "snapshot JSON file for resume")
	replayCmd.Flags().String("snapshot-db", "", "leveldb directory for snapshots with history")
	replayCmd.Flags().Int("snapshot-history", 16, "snapshots kept in the leveldb store")
	replayCmd.Flags().String("pg-dsn", "", "Postgres DSN for materialized pools and positions")
	replayCmd.Flags().Int("checkpoint-every", 1000, "operations between snapshots, 0 for end only")
	replayCmd.Flags().Int("batch-size", 500, "results buffered per write")
	replayCmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	replayCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	replayCmd.Flags().String("metrics-addr", "", "serve prometheus metrics on this address")
	replayCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(replayCmd)

	tokensCmd := &cobra.Command{
		Use:   "tokens",
		Short: "Token registry helpers",
	}

	importCmd := &cobra.Command{
		Use:   "import",
		Short: "Read ERC20 metadata over RPC and emit register_token operations",
		RunE:  runImport,
	}

	importCmd.Flags().String("rpc", "", "RPC URL")
	importCmd.Flags().StringSlice("address", nil, "token addresses (comma-separated)")
	importCmd.Flags().StringSlice("stable", nil, "addresses to register as stable (comma-separated)")
	importCmd.Flags().String("owner", "0x0000000000000000000000000000000000000001", "caller of the emitted operations")
	importCmd.Flags().Uint64("start-seq", 1, "sequence number of the first operation")
	importCmd.Flags().String("out", "./data/tokens.jsonl", "output operations JSONL")
	importCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	tokensCmd.AddCommand(importCmd)
	root.AddCommand(tokensCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

func parseAddress(name, value string) (common.Address, error) {
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("invalid %s address: %q", name, value)
	}
	return common.HexToAddress(value), nil
}
