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
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		Output string `yaml:"output"`
	} `yaml:"log"`
	ClickHouse struct {
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
		ObservationTable string        `yaml:"observation_table"`
		PredictionTable  string        `yaml:"prediction_table"`
	} `yaml:"clickhouse"`
	Feed struct {
		URL           string        `yaml:"url"`
		EnergyChannel string        `yaml:"energy_channel"`
		Timeout       time.Duration `yaml:"timeout"`
	} `yaml:"feed"`
	Pipeline struct {
		RetrievalHours     int    `yaml:"retrieval_hours"`
		BufferHours        int    `yaml:"buffer_hours"`
		ModelLookbackHours int    `yaml:"model_lookback_hours"`
		ModelVersion       string `yaml:"model_version"`
	} `yaml:"pipeline"`
	API struct {
		DefaultRequestHours int      `yaml:"default_request_hours"`
		MaxRequestHours     int      `yaml:"max_request_hours"`
		CORSOrigins         []string `yaml:"cors_origins"`
	} `yaml:"api"`
	Auth struct {
		Mode     string `yaml:"mode"` // none or token
		Issuer   string `yaml:"issuer"`
		Audience string `yaml:"audience"`
	} `yaml:"auth"`
	Kafka struct {
		Enabled      bool          `yaml:"enabled"`
		Brokers      []string      `yaml:"brokers"`
		Topic        string        `yaml:"topic"`
		RequiredAcks int           `yaml:"required_acks"`
		Compression  string        `yaml:"compression"`
		MaxAttempts  int           `yaml:"max_attempts"`
		WriteTimeout time.Duration `yaml:"write_timeout"`
		ReadTimeout  time.Duration `yaml:"read_timeout"`
	} `yaml:"kafka"`
	Cache struct {
		Backend string        `yaml:"backend"` // memory or redis
		TTL     time.Duration `yaml:"ttl"`
		Redis   struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
		} `yaml:"redis"`
	} `yaml:"cache"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

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

	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := os.Getenv("CLICKHOUSE_USER"); v != "" {
		c.ClickHouse.User = v
	}
	if v := os.Getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := os.Getenv("FEED_URL"); v != "" {
		c.Feed.URL = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Cache.Redis.Addr = v
	}
	if v := os.Getenv("AUTH_MODE"); v != "" {
		c.Auth.Mode = v
	}

	return c, nil
}

func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Log.Output == "" {
		c.Log.Output = "stdout"
	}
	if c.ClickHouse.ObservationTable == "" {
		c.ClickHouse.ObservationTable = "solar_observations"
	}
	if c.ClickHouse.PredictionTable == "" {
		c.ClickHouse.PredictionTable = "flare_predictions"
	}
	if c.Feed.EnergyChannel == "" {
		c.Feed.EnergyChannel = "0.1-0.8nm"
	}
	if c.Feed.Timeout == 0 {
		c.Feed.Timeout = 30 * time.Second
	}
	if c.Pipeline.RetrievalHours == 0 {
		c.Pipeline.RetrievalHours = 72
	}
	if c.Pipeline.BufferHours == 0 {
		c.Pipeline.BufferHours = 1
	}
	if c.Pipeline.ModelLookbackHours == 0 {
		c.Pipeline.ModelLookbackHours = 72
	}
	if c.Pipeline.ModelVersion == "" {
		c.Pipeline.ModelVersion = "1.0.0"
	}
	if c.API.DefaultRequestHours == 0 {
		c.API.DefaultRequestHours = 72
	}
	if c.API.MaxRequestHours == 0 {
		c.API.MaxRequestHours = 168
	}
	if c.Auth.Mode == "" {
		c.Auth.Mode = "token"
	}
	if c.Cache.Backend == "" {
		c.Cache.Backend = "memory"
	}
	if c.Cache.TTL == 0 {
		c.Cache.TTL = 15 * time.Second
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host is required")
	}
	if c.ClickHouse.Database == "" {
		return fmt.Errorf("clickhouse.database is required")
	}
	if c.Feed.URL == "" {
		return fmt.Errorf("feed.url is required")
	}
	if c.Auth.Mode != "none" && c.Auth.Mode != "token" {
		return fmt.Errorf("auth.mode must be 'none' or 'token', got '%s'", c.Auth.Mode)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.Cache.Backend != "memory" && c.Cache.Backend != "redis" {
		return fmt.Errorf("cache.backend must be 'memory' or 'redis', got '%s'", c.Cache.Backend)
	}
	if c.Cache.Backend == "redis" && c.Cache.Redis.Addr == "" {
		return fmt.Errorf("cache.redis.addr is required for redis cache")
	}
	if c.Pipeline.RetrievalHours < 1 {
		return fmt.Errorf("pipeline.retrieval_hours must be positive")
	}
	if c.Pipeline.ModelLookbackHours < 1 {
		return fmt.Errorf("pipeline.model_lookback_hours must be positive")
	}
	if c.API.MaxRequestHours < c.API.DefaultRequestHours {
		return fmt.Errorf("api.max_request_hours must be >= api.default_request_hours")
	}
	return nil
}
