package config

import (
	"math/big"
	"time"
)

// AppConfig is the top-level configuration, constructed once at startup and
// passed into the orchestrator and its collaborators.
type AppConfig struct {
	RPC      RPCConfig      `yaml:"rpc"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Indexer  IndexerConfig  `yaml:"indexer"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// RPCConfig holds endpoint and retry settings for the C-Chain RPC layer.
type RPCConfig struct {
	Endpoints    []string      `yaml:"endpoints"` // ordered by preference
	Timeout      time.Duration `yaml:"timeout"`
	MaxRetries   int           `yaml:"max_retries"`
	BaseDelay    time.Duration `yaml:"base_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
	SwitchAfter  int           `yaml:"switch_after"` // consecutive retryable failures before endpoint switch
	RateLimitRPS float64       `yaml:"rate_limit_rps"`
	RateBurst    int           `yaml:"rate_burst"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// RedisConfig holds settings for the skipped-height queue. An empty Addr
// disables the queue.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// IndexerConfig holds indexing parameters.
type IndexerConfig struct {
	BatchSize          int           `yaml:"batch_size"`
	Workers            int           `yaml:"workers"`
	WhaleThresholdAVAX float64       `yaml:"whale_threshold_avax"`
	CheckpointFile     string        `yaml:"checkpoint_file"`
	ResumeLookback     uint64        `yaml:"resume_lookback"`
	PollInterval       time.Duration `yaml:"poll_interval"`
	MaxInputBytes      int           `yaml:"max_input_bytes"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// MetricsConfig holds the Prometheus listener settings (sync mode only).
type MetricsConfig struct {
	Addr string `yaml:"addr"` // empty disables the listener
}

var weiPerAVAX = new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))

// WhaleThresholdWei converts the configured native-unit threshold to wei.
// The conversion goes through big.Float exactly once at startup; all
// accumulation downstream stays in integer wei.
func (c IndexerConfig) WhaleThresholdWei() *big.Int {
	f := new(big.Float).SetFloat64(c.WhaleThresholdAVAX)
	f.Mul(f, weiPerAVAX)
	wei, _ := f.Int(nil)
	return wei
}
