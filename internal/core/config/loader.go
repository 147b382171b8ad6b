package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v2"

	"github.com/vietddude/weatherload/internal/core/domain"
	redisclient "github.com/vietddude/weatherload/internal/infra/redis"
	"github.com/vietddude/weatherload/internal/loader"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration, applies defaults and validates it.
func Parse(data []byte) (*AppConfig, error) {
	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *AppConfig {
	var cfg AppConfig
	applyDefaults(&cfg)
	return &cfg
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}

	if cfg.Loader.MaxAttempts == 0 {
		cfg.Loader.MaxAttempts = loader.DefaultRetryPolicy.MaxAttempts
	}
	if cfg.Loader.BaseDelay == nil {
		d := loader.DefaultRetryPolicy.BaseDelay
		cfg.Loader.BaseDelay = &d
	}

	// A lock must outlive every backoff sleep of one load even if a
	// heartbeat is missed.
	if cfg.Redis.LockTTL == 0 {
		cfg.Redis.LockTTL = cfg.RetryPolicy().TotalDelay() + redisclient.DefaultLockTTL
	}

	if cfg.Provider.BaseURL == "" {
		cfg.Provider.BaseURL = "http://api.wunderground.com/api"
	}
	if cfg.Provider.Country == "" {
		cfg.Provider.Country = "Russia"
	}
	if cfg.Provider.Timeout == 0 {
		cfg.Provider.Timeout = 30 * time.Second
	}
	if cfg.Provider.MaxRetries == 0 {
		cfg.Provider.MaxRetries = 3
	}

	if cfg.Tables.Forecast == "" {
		cfg.Tables.Forecast = "weather_forecast"
	}
	if cfg.Tables.History == "" {
		cfg.Tables.History = "weather_history"
	}

	if len(cfg.Cities) == 0 {
		cfg.Cities = append([]domain.City(nil), domain.DefaultCities...)
	}

	if cfg.Schedule.ForecastInterval == 0 {
		cfg.Schedule.ForecastInterval = time.Hour
	}
	if cfg.Schedule.HistoryAt == "" {
		cfg.Schedule.HistoryAt = "02:00"
	}
	if cfg.Schedule.Concurrency == 0 {
		cfg.Schedule.Concurrency = 2
	}
}

var validate = validator.New()

// Validate checks struct constraints and the table identifiers.
func Validate(cfg *AppConfig) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if err := cfg.RetryPolicy().Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	for _, t := range []string{cfg.Tables.Forecast, cfg.Tables.History} {
		if err := loader.Identifier(t).Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
	}

	seen := make(map[int64]string, len(cfg.Cities))
	for _, c := range cfg.Cities {
		if other, dup := seen[c.ID]; dup {
			return fmt.Errorf("invalid config: cities %s and %s share id %d", other, c.Name, c.ID)
		}
		seen[c.ID] = c.Name
	}
	return nil
}

// RetryPolicy returns the loader retry policy.
func (c *AppConfig) RetryPolicy() loader.RetryPolicy {
	p := loader.RetryPolicy{MaxAttempts: c.Loader.MaxAttempts, BaseDelay: loader.DefaultRetryPolicy.BaseDelay}
	if c.Loader.BaseDelay != nil {
		p.BaseDelay = *c.Loader.BaseDelay
	}
	return p
}
