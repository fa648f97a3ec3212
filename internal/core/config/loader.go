package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Load reads configuration from a YAML file. Environment variables inside
// the file are expanded before parsing, so endpoint URLs and DSNs can carry
// ${VAR} placeholders populated from the environment or a .env file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)

	if len(cfg.RPC.Endpoints) == 0 {
		return nil, fmt.Errorf("config: at least one rpc endpoint is required")
	}

	return &cfg, nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.RPC.Timeout == 0 {
		cfg.RPC.Timeout = 30 * time.Second
	}
	if cfg.RPC.MaxRetries == 0 {
		cfg.RPC.MaxRetries = 5
	}
	if cfg.RPC.BaseDelay == 0 {
		cfg.RPC.BaseDelay = time.Second
	}
	if cfg.RPC.MaxDelay == 0 {
		cfg.RPC.MaxDelay = 60 * time.Second
	}
	if cfg.RPC.SwitchAfter == 0 {
		cfg.RPC.SwitchAfter = 2
	}

	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = 10
	}
	if cfg.Database.MinConns == 0 {
		cfg.Database.MinConns = 2
	}

	if cfg.Indexer.BatchSize == 0 {
		cfg.Indexer.BatchSize = 100
	}
	if cfg.Indexer.Workers == 0 {
		cfg.Indexer.Workers = 8
	}
	if cfg.Indexer.WhaleThresholdAVAX == 0 {
		cfg.Indexer.WhaleThresholdAVAX = 1000
	}
	if cfg.Indexer.CheckpointFile == "" {
		cfg.Indexer.CheckpointFile = "./data/indexer_checkpoint.json"
	}
	if cfg.Indexer.ResumeLookback == 0 {
		cfg.Indexer.ResumeLookback = 10000
	}
	if cfg.Indexer.PollInterval == 0 {
		cfg.Indexer.PollInterval = 12 * time.Second
	}
	if cfg.Indexer.MaxInputBytes == 0 {
		cfg.Indexer.MaxInputBytes = 100
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}
