package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Generator  GeneratorConfig  `yaml:"generator"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
	Redis      RedisConfig      `yaml:"redis"`
	Postgres   PostgresConfig   `yaml:"postgres"`
	GeoIP      GeoIPConfig      `yaml:"geoip"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`
	Batch      BatchConfig      `yaml:"batch"`
	Cache      CacheConfig      `yaml:"cache"`
}

type ServerConfig struct {
	HTTPPort     int   `yaml:"http_port"`
	MaxBodyBytes int64 `yaml:"max_body_bytes"`
}

// GeneratorConfig holds conversion defaults. Request parameters override
// Target and TestName.
type GeneratorConfig struct {
	DefaultTarget       string `yaml:"default_target"`
	PlaceholderURL      string `yaml:"placeholder_url"`
	TestName            string `yaml:"test_name"`
	DismissCookieBanner bool   `yaml:"dismiss_cookie_banner"`
	MaskedPlaceholder   string `yaml:"masked_placeholder"`
	MaxDepth            int    `yaml:"max_depth"`
	TemplatePath        string `yaml:"template_path"`

	// Template is the content of TemplatePath, read by Load
	Template string `yaml:"-"`
}

type KafkaConfig struct {
	Brokers       []string          `yaml:"brokers"`
	Topics        map[string]string `yaml:"topics"`
	ConsumerGroup string            `yaml:"consumer_group"`
}

type ClickHouseConfig struct {
	Addr         string `yaml:"addr"`
	Database     string `yaml:"database"`
	Username     string `yaml:"username"`
	Password     string `yaml:"password"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

type GeoIPConfig struct {
	DatabasePath string `yaml:"database_path"`
}

type RateLimitConfig struct {
	RequestsPerSecond int `yaml:"requests_per_second"`
}

type BatchConfig struct {
	Size          int           `yaml:"size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}

type CacheConfig struct {
	TTL time.Duration `yaml:"ttl"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}

	if cfg.Generator.TemplatePath != "" {
		tmpl, err := os.ReadFile(cfg.Generator.TemplatePath)
		if err != nil {
			return nil, fmt.Errorf("read template: %w", err)
		}
		cfg.Generator.Template = string(tmpl)
	}

	return cfg, nil
}

// Parse decodes YAML config data, expanding environment variables and
// applying defaults.
func Parse(data []byte) (*Config, error) {
	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, err
	}

	cfg.setDefaults()
	return &cfg, nil
}

func (cfg *Config) setDefaults() {
	if cfg.Server.HTTPPort == 0 {
		cfg.Server.HTTPPort = 8090
	}
	if cfg.Server.MaxBodyBytes == 0 {
		cfg.Server.MaxBodyBytes = 50 << 20
	}

	if cfg.Generator.DefaultTarget == "" {
		cfg.Generator.DefaultTarget = "playwright"
	}
	if cfg.Generator.PlaceholderURL == "" {
		cfg.Generator.PlaceholderURL = "about:blank"
	}
	if cfg.Generator.TestName == "" {
		cfg.Generator.TestName = "Generated from rrweb recording"
	}
	if cfg.Generator.MaskedPlaceholder == "" {
		cfg.Generator.MaskedPlaceholder = "TODO: Add realistic test data"
	}
	if cfg.Generator.MaxDepth == 0 {
		cfg.Generator.MaxDepth = 1000
	}

	if cfg.Kafka.Topics == nil {
		cfg.Kafka.Topics = map[string]string{}
	}
	if cfg.Kafka.ConsumerGroup == "" {
		cfg.Kafka.ConsumerGroup = "gosight-script-processor"
	}

	if cfg.ClickHouse.MaxOpenConns == 0 {
		cfg.ClickHouse.MaxOpenConns = 10
	}
	if cfg.ClickHouse.MaxIdleConns == 0 {
		cfg.ClickHouse.MaxIdleConns = 5
	}

	if cfg.RateLimit.RequestsPerSecond == 0 {
		cfg.RateLimit.RequestsPerSecond = 20
	}

	if cfg.Batch.Size == 0 {
		cfg.Batch.Size = 100
	}
	if cfg.Batch.FlushInterval == 0 {
		cfg.Batch.FlushInterval = 5 * time.Second
	}

	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = time.Hour
	}
}
