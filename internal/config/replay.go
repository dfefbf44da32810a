package config

import (
	"time"

	"github.com/spf13/pflag"
)

// ReplayConfig holds configuration for the replay command.
type ReplayConfig struct {
	Name            string
	In              string
	Out             string
	Owner           string
	Custodian       string
	StateFile       string
	SnapshotDB      string
	SnapshotHistory int
	PostgresDSN     string
	CheckpointEvery int
	BatchSize       int
	MaxRetries      int
	RetryBackoff    time.Duration
	MetricsAddr     string
	LogLevel        string
}

// LoadReplay merges config file, environment variables, and flags into ReplayConfig.
func LoadReplay(cfgFile string, flags *pflag.FlagSet) (ReplayConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"name":             "default",
		"out":              "./data/results.jsonl",
		"owner":            "0x0000000000000000000000000000000000000001",
		"custodian":        "0x000000000000000000000000000000000000c0de",
		"snapshot-history": 16,
		"checkpoint-every": 1000,
		"batch-size":       500,
		"max-retries":      5,
		"retry-backoff":    500 * time.Millisecond,
		"log-level":        "info",
	})
	if err != nil {
		return ReplayConfig{}, err
	}

	cfg := ReplayConfig{
		Name:            v.GetString("name"),
		In:              v.GetString("in"),
		Out:             v.GetString("out"),
		Owner:           v.GetString("owner"),
		Custodian:       v.GetString("custodian"),
		StateFile:       v.GetString("state-file"),
		SnapshotDB:      v.GetString("snapshot-db"),
		SnapshotHistory: v.GetInt("snapshot-history"),
		PostgresDSN:     v.GetString("pg-dsn"),
		CheckpointEvery: v.GetInt("checkpoint-every"),
		BatchSize:       v.GetInt("batch-size"),
		MaxRetries:      v.GetInt("max-retries"),
		RetryBackoff:    v.GetDuration("retry-backoff"),
		MetricsAddr:     v.GetString("metrics-addr"),
		LogLevel:        v.GetString("log-level"),
	}

	return cfg, nil
}
