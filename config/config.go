package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Env     string        `yaml:"env" env:"ENV" env-default:"local"`
	HTTP    HTTPConfig    `yaml:"http"`
	GRPC    GRPCConfig    `yaml:"grpc"`
	Redis   RedisConfig   `yaml:"redis"`
	Kafka   KafkaConfig   `yaml:"kafka"`
	GenAI   GenAIConfig   `yaml:"genai"`
	Session SessionConfig `yaml:"session"`
	Pricing PricingConfig `yaml:"pricing"`
	Worker  WorkerConfig  `yaml:"worker"`
	Log     LogConfig     `yaml:"log"`
	Tracing TracingConfig `yaml:"tracing"`
}

type HTTPConfig struct {
	Address    string `yaml:"address" env:"HTTP_ADDRESS" env-default:":8080"`
	SwaggerDir string `yaml:"swagger_dir" env:"HTTP_SWAGGER_DIR"`
}

type GRPCConfig struct {
	Address string `yaml:"address" env:"GRPC_ADDRESS" env-default:":9090"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

// Enabled reports whether a redis address was configured.
func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

type KafkaConfig struct {
	Brokers     []string `yaml:"brokers" env:"KAFKA_BROKERS" env-separator:","`
	EventsTopic string   `yaml:"events_topic" env:"KAFKA_EVENTS_TOPIC"`
	GroupID     string   `yaml:"group_id" env:"KAFKA_GROUP_ID" env-default:"claimjet-worker"`
}

func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

// GenAIConfig configures the generation service. APIKey is only read from the
// environment and must never be written to logs.
type GenAIConfig struct {
	APIKey         string        `yaml:"-" env:"GEMINI_API_KEY"`
	Model          string        `yaml:"model" env:"GENAI_MODEL" env-default:"gemini-3-flash-preview"`
	SearchTimeout  time.Duration `yaml:"search_timeout" env:"GENAI_SEARCH_TIMEOUT" env-default:"30s"`
	ExtractTimeout time.Duration `yaml:"extract_timeout" env:"GENAI_EXTRACT_TIMEOUT" env-default:"20s"`
	DraftTimeout   time.Duration `yaml:"draft_timeout" env:"GENAI_DRAFT_TIMEOUT" env-default:"60s"`
	StatusCacheTTL time.Duration `yaml:"status_cache_ttl" env:"GENAI_STATUS_CACHE_TTL" env-default:"15m"`
}

type SessionConfig struct {
	IdleTTL time.Duration `yaml:"idle_ttl" env:"SESSION_IDLE_TTL" env-default:"30m"`
}

type PricingConfig struct {
	ServiceFeeCents int `yaml:"service_fee_cents" env:"PRICING_SERVICE_FEE_CENTS" env-default:"299"`
}

type WorkerConfig struct {
	SweepInterval time.Duration `yaml:"sweep_interval" env:"WORKER_SWEEP_INTERVAL" env-default:"1m"`
}

type LogConfig struct {
	Level string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
}

type TracingConfig struct {
	Enabled   bool   `yaml:"enabled" env:"TRACING_ENABLED"`
	Collector string `yaml:"collector" env:"TRACING_COLLECTOR"`
}

// LoadConfig reads the YAML file at path and then overlays environment
// variables. A missing file is not an error when path is empty.
func LoadConfig(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read env: %w", err)
	}

	return &cfg, nil
}

// Path resolves the config file location from CONFIG_PATH.
func Path() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	if _, err := os.Stat("config.yaml"); err == nil {
		return "config.yaml"
	}
	return ""
}

// Redacted returns a copy that is safe to log.
func (c Config) Redacted() Config {
	if c.GenAI.APIKey != "" {
		c.GenAI.APIKey = "***"
	}
	if c.Redis.Password != "" {
		c.Redis.Password = "***"
	}
	return c
}
