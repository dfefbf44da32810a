package config

import (
	"github.com/spf13/pflag"
)

// ImportConfig holds configuration for the tokens import command.
type ImportConfig struct {
	RPCURL    string
	Addresses []string
	// Stable lists the addresses to register as stable assets.
	Stable   []string
	Owner    string
	StartSeq uint64
	Out      string
	LogLevel string
}

// LoadImport merges config file, environment variables, and flags into ImportConfig.
func LoadImport(cfgFile string, flags *pflag.FlagSet) (ImportConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"owner":     "0x0000000000000000000000000000000000000001",
		"start-seq": uint64(1),
		"out":       "./data/tokens.jsonl",
		"log-level": "info",
	})
	if err != nil {
		return ImportConfig{}, err
	}

	cfg := ImportConfig{
		RPCURL:    v.GetString("rpc"),
		Addresses: getStringSlice(v, "address"),
		Stable:    getStringSlice(v, "stable"),
		Owner:     v.GetString("owner"),
		StartSeq:  v.GetUint64("start-seq"),
		Out:       v.GetString("out"),
		LogLevel:  v.GetString("log-level"),
	}

	return cfg, nil
}
