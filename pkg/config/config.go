package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"CaesarEcon/internal/domain/econ"

	"github.com/creasty/defaults"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development"`
	Server      struct {
		Host            string        `yaml:"host" default:"0.0.0.0"`
		Port            int           `yaml:"port" default:"8080"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
		CORS            bool          `yaml:"cors" default:"true"`
		SlowThreshold   time.Duration `yaml:"slow_threshold" default:"500ms"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Logging struct {
		Level     string `yaml:"level" default:"info"`
		Format    string `yaml:"format" default:"json"`
		Output    string `yaml:"output" default:"stdout"`
		Collector struct {
			Enabled   bool          `yaml:"enabled"`
			Topic     string        `yaml:"topic" default:"caesar.logs"`
			Interval  time.Duration `yaml:"interval" default:"30s"`
			Threshold int           `yaml:"threshold" default:"100"`
		} `yaml:"collector"`
	} `yaml:"logging"`
	Backend struct {
		Type    string `yaml:"type" default:"sqlite"` // sqlite or clickhouse
		Publish bool   `yaml:"publish"`               // also stream snapshots to Kafka
	} `yaml:"backend"`
	SQLite struct {
		Path string `yaml:"path" default:"caesar.db"`
	} `yaml:"sqlite"`
	ClickHouse struct {
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"caesar"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"30s"`
	} `yaml:"clickhouse"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		RequiredAcks int      `yaml:"required_acks" default:"-1"`
		Compression  string   `yaml:"compression" default:"snappy"`
		Topics       struct {
			Snapshots    string `yaml:"snapshots" default:"caesar.snapshots"`
			Observations string `yaml:"observations" default:"caesar.observations"`
		} `yaml:"topics"`
		Producer struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger" default:"100ms"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id" default:"caesar-econ"`
			Workers    int           `yaml:"workers" default:"4"`
			BufferSize int           `yaml:"buffer_size" default:"256"`
			RetryMax   int           `yaml:"retry_max" default:"3"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"50ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"2s"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes" default:"1"`
			MaxBytes   int           `yaml:"max_bytes" default:"10485760"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	Redis struct {
		Enabled    bool          `yaml:"enabled"`
		Host       string        `yaml:"host" default:"localhost"`
		Port       int           `yaml:"port" default:"6379"`
		Password   string        `yaml:"password"`
		DB         int           `yaml:"db"`
		Prefix     string        `yaml:"prefix" default:"caesar"`
		TTL        time.Duration `yaml:"ttl" default:"24h"`
		MemorySize int           `yaml:"memory_size" default:"1024"`
	} `yaml:"redis"`
	GoldFeed struct {
		Enabled        bool          `yaml:"enabled"`
		WebSocketURL   string        `yaml:"websocket_url"`
		RESTURL        string        `yaml:"rest_url"`
		APIKey         string        `yaml:"api_key"`
		Symbols        []string      `yaml:"symbols"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay" default:"5s"`
		PingInterval   time.Duration `yaml:"ping_interval" default:"30s"`
		RESTTimeout    time.Duration `yaml:"rest_timeout" default:"10s"`
	} `yaml:"goldfeed"`
	Pipeline struct {
		MaxRPS     int           `yaml:"max_rps" default:"20"`
		BufferSize int           `yaml:"buffer_size" default:"1000"`
		BackoffMin time.Duration `yaml:"backoff_min" default:"50ms"`
		BackoffMax time.Duration `yaml:"backoff_max" default:"2s"`
	} `yaml:"pipeline"`
	RateLimit struct {
		Enabled      bool    `yaml:"enabled" default:"true"`
		Capacity     float64 `yaml:"capacity" default:"50"`
		RefillPerSec float64 `yaml:"refill_per_sec" default:"25"`
	} `yaml:"ratelimit"`
	Economics econ.Params `yaml:"economics"`
}

// envOverrides are the deployment knobs that may be set from the
// environment as CAESAR_<NAME>.
type envOverrides struct {
	Environment        string   `envconfig:"ENVIRONMENT"`
	ServerPort         int      `envconfig:"SERVER_PORT"`
	LogLevel           string   `envconfig:"LOG_LEVEL"`
	Backend            string   `envconfig:"BACKEND"`
	SQLitePath         string   `envconfig:"SQLITE_PATH"`
	ClickHouseHost     string   `envconfig:"CLICKHOUSE_HOST"`
	ClickHousePassword string   `envconfig:"CLICKHOUSE_PASSWORD"`
	KafkaBrokers       []string `envconfig:"KAFKA_BROKERS"`
	RedisHost          string   `envconfig:"REDIS_HOST"`
	RedisPassword      string   `envconfig:"REDIS_PASSWORD"`
	GoldFeedAPIKey     string   `envconfig:"GOLDFEED_API_KEY"`
	GoldFeedSymbols    []string `envconfig:"GOLDFEED_SYMBOLS"`
}

const envPrefix = "CAESAR"

// Default returns a configuration with every default applied.
func Default() (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	return &c, nil
}

// Load reads a YAML file over the defaults and validates the result.
func Load(path string) (*Config, error) {
	c, err := read(path)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// LoadWithEnv loads optional .env files, reads the YAML file and then applies
// CAESAR_* environment overrides before validating.
func LoadWithEnv(path string, envFiles ...string) (*Config, error) {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	c, err := read(path)
	if err != nil {
		return nil, err
	}

	var ov envOverrides
	if err := envconfig.Process(envPrefix, &ov); err != nil {
		return nil, fmt.Errorf("env overrides: %w", err)
	}
	c.apply(ov)

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func read(path string) (*Config, error) {
	c, err := Default()
	if err != nil {
		return nil, err
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return c, nil
}

func (c *Config) apply(ov envOverrides) {
	if ov.Environment != "" {
		c.Environment = ov.Environment
	}
	if ov.ServerPort != 0 {
		c.Server.Port = ov.ServerPort
	}
	if ov.LogLevel != "" {
		c.Logging.Level = ov.LogLevel
	}
	if ov.Backend != "" {
		c.Backend.Type = ov.Backend
	}
	if ov.SQLitePath != "" {
		c.SQLite.Path = ov.SQLitePath
	}
	if ov.ClickHouseHost != "" {
		c.ClickHouse.Host = ov.ClickHouseHost
	}
	if ov.ClickHousePassword != "" {
		c.ClickHouse.Password = ov.ClickHousePassword
	}
	if len(ov.KafkaBrokers) > 0 {
		c.Kafka.Brokers = ov.KafkaBrokers
		c.Kafka.Enabled = true
	}
	if ov.RedisHost != "" {
		c.Redis.Host = ov.RedisHost
	}
	if ov.RedisPassword != "" {
		c.Redis.Password = ov.RedisPassword
	}
	if ov.GoldFeedAPIKey != "" {
		c.GoldFeed.APIKey = ov.GoldFeedAPIKey
	}
	if len(ov.GoldFeedSymbols) > 0 {
		c.GoldFeed.Symbols = ov.GoldFeedSymbols
	}
}

// Validate checks if the configuration is usable.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	switch c.Backend.Type {
	case "sqlite":
		if c.SQLite.Path == "" {
			return fmt.Errorf("sqlite.path is required for backend.type=sqlite")
		}
	case "clickhouse":
		if c.ClickHouse.Host == "" {
			return fmt.Errorf("clickhouse.host is required for backend.type=clickhouse")
		}
	default:
		return fmt.Errorf("backend.type must be 'sqlite' or 'clickhouse', got '%s'", c.Backend.Type)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.Backend.Publish && !c.Kafka.Enabled {
		return fmt.Errorf("backend.publish requires kafka.enabled")
	}
	if c.Logging.Collector.Enabled && !c.Kafka.Enabled {
		return fmt.Errorf("logging.collector requires kafka.enabled")
	}
	if c.GoldFeed.Enabled {
		if c.GoldFeed.WebSocketURL == "" {
			return fmt.Errorf("goldfeed.websocket_url is required")
		}
		if len(c.GoldFeed.Symbols) == 0 {
			return fmt.Errorf("goldfeed.symbols cannot be empty")
		}
	}
	if c.RateLimit.Enabled && (c.RateLimit.Capacity < 1 || c.RateLimit.RefillPerSec <= 0) {
		return fmt.Errorf("ratelimit.capacity must be >= 1 and refill_per_sec > 0")
	}
	if err := c.Economics.Validate(); err != nil {
		return fmt.Errorf("economics: %w", err)
	}
	return nil
}
