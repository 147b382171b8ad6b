package config

import (
	"time"

	"github.com/vietddude/weatherload/internal/core/domain"
	"github.com/vietddude/weatherload/internal/infra/provider"
	redisclient "github.com/vietddude/weatherload/internal/infra/redis"
	"github.com/vietddude/weatherload/internal/infra/storage/postgres"
	"github.com/vietddude/weatherload/internal/ingest"
	"github.com/vietddude/weatherload/internal/notify"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server   ServerConfig          `yaml:"server"`
	Logging  LoggingConfig         `yaml:"logging"`
	Database postgres.Config       `yaml:"database"`
	Redis    redisclient.Config    `yaml:"redis"`
	Loader   LoaderConfig          `yaml:"loader"`
	Provider provider.Config       `yaml:"provider"`
	Notify   notify.Config         `yaml:"notify"`
	Tables   TablesConfig          `yaml:"tables"`
	Cities   []domain.City         `yaml:"cities"   validate:"required,min=1,dive"`
	Schedule ingest.ScheduleConfig `yaml:"schedule"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port" validate:"gt=0,lte=65535"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"  validate:"omitempty,oneof=debug info warn error"`
	Format string `yaml:"format" validate:"omitempty,oneof=json text"`
}

// LoaderConfig holds retry and null handling for the idempotent loader.
type LoaderConfig struct {
	MaxAttempts int            `yaml:"max_attempts" validate:"gte=1"`
	BaseDelay   *time.Duration `yaml:"base_delay"   validate:"omitempty,gte=0"` // nil = default, 0 = retry at once
	NullRepr    *float64       `yaml:"null_repr"`                               // nil = store SQL NULL
}

// TablesConfig names the warehouse tables, optionally schema qualified.
type TablesConfig struct {
	Forecast string `yaml:"forecast" validate:"required"`
	History  string `yaml:"history"  validate:"required"`
}
