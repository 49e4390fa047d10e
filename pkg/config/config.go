package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Host            string        `yaml:"host"`
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
		RateLimitRPS    float64       `yaml:"rate_limit_rps"`
		RateLimitBurst  int           `yaml:"rate_limit_burst"`
		SlowThreshold   time.Duration `yaml:"slow_threshold"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	Logger struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		Output string `yaml:"output"`
		// Collect aggregates error logs and ships them to Kafka.
		Collect       bool          `yaml:"collect"`
		CollectTopic  string        `yaml:"collect_topic"`
		FlushInterval time.Duration `yaml:"flush_interval"`
	} `yaml:"logger"`
	Binance struct {
		BaseURL string        `yaml:"base_url"`
		Timeout time.Duration `yaml:"timeout"`
		Retries int           `yaml:"retries"`
		Backoff time.Duration `yaml:"backoff"`
		RPS     float64       `yaml:"rps"`
		Burst   int           `yaml:"burst"`
	} `yaml:"binance"`
	Monitor   Monitor `yaml:"monitor"`
	Snapshots struct {
		Backend string `yaml:"backend"` // csv | clickhouse | none
		CSVPath string `yaml:"csv_path"`
		Table   string `yaml:"table"`
		Publish bool   `yaml:"publish"`
	} `yaml:"snapshots"`
	Kafka struct {
		Brokers      []string `yaml:"brokers"`
		Topic        string   `yaml:"topic"`
		FlipsTopic   string   `yaml:"flips_topic"`
		RequiredAcks int      `yaml:"required_acks"`
		Compression  string   `yaml:"compression"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			BatchBytes   int           `yaml:"batch_bytes"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			Enabled    bool          `yaml:"enabled"`
			GroupID    string        `yaml:"group_id"`
			Workers    int           `yaml:"workers"`
			BufferSize int           `yaml:"buffer_size"`
			RetryMax   int           `yaml:"retry_max"`
			BackoffMin time.Duration `yaml:"backoff_min"`
			BackoffMax time.Duration `yaml:"backoff_max"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes"`
			MaxBytes   int           `yaml:"max_bytes"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix"`
	} `yaml:"redis"`
}

// Monitor configures the watchlist refresh loop and the scoring parameters.
type Monitor struct {
	Symbols     []string      `yaml:"symbols"`
	Watchlist   string        `yaml:"watchlist"`
	Interval    string        `yaml:"interval"`
	Lookback    int           `yaml:"lookback"`
	Refresh     time.Duration `yaml:"refresh"`
	Sensitivity string        `yaml:"sensitivity"`
	ZWindow     int           `yaml:"zwin"`
	Weights     struct {
		Funding   float64 `yaml:"funding"`
		OI        float64 `yaml:"oi"`
		AbsReturn float64 `yaml:"abs_return"`
	} `yaml:"weights"`
	Policy        string        `yaml:"policy"`
	PStress       float64       `yaml:"p_stress"`
	PExtreme      float64       `yaml:"p_extreme"`
	KStress       float64       `yaml:"k_stress"`
	KExtreme      float64       `yaml:"k_extreme"`
	TopFraction   float64       `yaml:"top_fraction"`
	MinN          int           `yaml:"min_n"`
	ShareLookback int           `yaml:"share_lookback"`
	RecentFlips   int           `yaml:"recent_flips"`
	CacheTTL      time.Duration `yaml:"cache_ttl"`
	CacheEntries  int           `yaml:"cache_entries"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML bytes, applies defaults and validates the result.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	c.applyDefaults()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	c.applyEnv(os.Getenv)
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv("SYMBOLS"); v != "" {
		c.Monitor.Symbols = splitList(v, strings.ToUpper)
	}
	if v := getenv("INTERVAL"); v != "" {
		c.Monitor.Interval = v
	}
	if v := getenv("BINANCE_BASE_URL"); v != "" {
		c.Binance.BaseURL = v
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = splitList(v, strings.TrimSpace)
	}
	if v := getenv("SNAPSHOT_BACKEND"); v != "" {
		c.Snapshots.Backend = v
	}
}

func splitList(v string, norm func(string) string) []string {
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, norm(p))
		}
	}
	return out
}

func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
	if c.Logger.Level == "" {
		c.Logger.Level = "info"
	}
	m := &c.Monitor
	if m.Interval == "" {
		m.Interval = "1h"
	}
	if m.Lookback == 0 {
		m.Lookback = 500
	}
	if m.Refresh == 0 {
		m.Refresh = time.Minute
	}
	if m.ShareLookback == 0 {
		m.ShareLookback = 300
	}
	if m.RecentFlips == 0 {
		m.RecentFlips = 8
	}
	if m.CacheTTL == 0 {
		m.CacheTTL = 30 * time.Second
	}
	if m.CacheEntries == 0 {
		m.CacheEntries = 1000
	}
	if c.Snapshots.Backend == "" {
		c.Snapshots.Backend = "csv"
	}
	if c.Snapshots.CSVPath == "" {
		c.Snapshots.CSVPath = "snapshots.csv"
	}
	if c.Snapshots.Table == "" {
		c.Snapshots.Table = "clp_snapshots"
	}
	if c.Kafka.Topic == "" {
		c.Kafka.Topic = "clp.snapshots"
	}
	if c.Kafka.FlipsTopic == "" {
		c.Kafka.FlipsTopic = "clp.flips"
	}
	if c.Logger.CollectTopic == "" {
		c.Logger.CollectTopic = "clp.logs"
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if len(c.Monitor.Symbols) == 0 && c.Monitor.Watchlist == "" {
		return fmt.Errorf("monitor.symbols or monitor.watchlist is required")
	}
	switch c.Monitor.Interval {
	case "5m", "15m", "1h", "4h", "1d":
	default:
		return fmt.Errorf("monitor.interval must be one of 5m, 15m, 1h, 4h, 1d, got '%s'", c.Monitor.Interval)
	}
	if p := c.Monitor.Policy; p != "" && p != "percentile" && p != "std" {
		return fmt.Errorf("monitor.policy must be 'percentile' or 'std', got '%s'", c.Monitor.Policy)
	}
	switch c.Snapshots.Backend {
	case "csv", "clickhouse", "none":
	default:
		return fmt.Errorf("snapshots.backend must be 'csv', 'clickhouse' or 'none', got '%s'", c.Snapshots.Backend)
	}
	if (c.Snapshots.Publish || c.Kafka.Consumer.Enabled || c.Logger.Collect) && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers is required when publishing, consuming or collecting logs")
	}
	return nil
}
