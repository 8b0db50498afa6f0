package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env     string        `yaml:"env" env:"ENV" env-default:"prod"`
	Schema  string        `yaml:"schema" env:"THRESHOLD_SCHEMA" env-default:"base" validate:"oneof=base volume product"`
	HTTP    HTTPConfig    `yaml:"http"`
	Backend BackendConfig `yaml:"backend"`
	Outbox  OutboxConfig  `yaml:"outbox"`
	Health  HealthConfig  `yaml:"health"`
	Log     LogConfig     `yaml:"log"`
}

type HTTPConfig struct {
	Address      string        `yaml:"address" env:"HTTP_ADDRESS" env-default:":8000"`
	ReadTimeout  time.Duration `yaml:"read_timeout" env-default:"5s"`
	WriteTimeout time.Duration `yaml:"write_timeout" env-default:"30s"`
}

type BackendConfig struct {
	URL     string        `yaml:"url" env:"BACKEND_URL" validate:"required,url"`
	Token   string        `yaml:"token" env:"BACKEND_TOKEN" validate:"required"`
	Timeout time.Duration `yaml:"timeout" env-default:"10s"`
	Retry   RetryConfig   `yaml:"retry"`
}

type RetryConfig struct {
	MaxAttempts  int           `yaml:"max_attempts" env-default:"3" validate:"min=1"`
	InitialDelay time.Duration `yaml:"initial_delay" env-default:"500ms"`
	MaxDelay     time.Duration `yaml:"max_delay" env-default:"5s"`
}

type OutboxConfig struct {
	Enabled   bool          `yaml:"enabled" env-default:"true"`
	Path      string        `yaml:"path" env-default:"/var/lib/threshold-console/outbox.db"`
	MaxAge    time.Duration `yaml:"max_age" env-default:"24h"`
	Interval  time.Duration `yaml:"interval" env-default:"30s"`
	BatchSize int           `yaml:"batch_size" env-default:"100" validate:"min=1"`
}

type HealthConfig struct {
	Address string `yaml:"address" env-default:":8080"`
}

type LogConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL" env-default:"info" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" env-default:"json" validate:"oneof=json text"`
}

var validate = validator.New()

type loadOptions struct {
	dryRun bool
}

type Option func(*loadOptions)

// WithDryRun skips the backend section checks. Dry runs never call the backend.
func WithDryRun(enabled bool) Option {
	return func(o *loadOptions) {
		o.dryRun = enabled
	}
}

func Load(configPath string, opts ...Option) (*Config, error) {
	var options loadOptions
	for _, opt := range opts {
		opt(&options)
	}

	if configPath == "" {
		configPath = os.Getenv("CONFIG_PATH")
	}

	if configPath == "" {
		configPath = "config/config.yaml"
	}

	if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config file not found: %s", configPath)
	}

	var cfg Config
	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var err error
	if options.dryRun {
		err = validate.StructExcept(&cfg, "Backend")
	} else {
		err = validate.Struct(&cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func MustLoad(configPath string, opts ...Option) *Config {
	cfg, err := Load(configPath, opts...)
	if err != nil {
		panic(err.Error())
	}
	return cfg
}
