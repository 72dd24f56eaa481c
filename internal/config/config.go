package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/Kilat-Pet-Delivery/service-adoption/internal/common/config"
)

const envPrefix = "ADOPTION"

// Storage backends.
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// ServiceConfig holds all configuration for the adoption service.
type ServiceConfig struct {
	Port            string
	AppEnv          string
	Storage         string
	LockTimeout     time.Duration
	ShutdownTimeout time.Duration
	EventsEnabled   bool
	DBConfig        config.DatabaseConfig
	JWTConfig       config.JWTConfig
	KafkaConfig     config.KafkaConfig
}

// Load reads configuration from environment variables.
func Load() (*ServiceConfig, error) {
	v, err := config.Load(envPrefix)
	if err != nil {
		return nil, err
	}
	v.SetDefault(envPrefix+"_DB_NAME", "adoption_db")
	v.SetDefault(envPrefix+"_STORAGE", StoragePostgres)
	v.SetDefault(envPrefix+"_LOCK_TIMEOUT", "5s")
	v.SetDefault(envPrefix+"_SHUTDOWN_TIMEOUT", "10s")
	v.SetDefault(envPrefix+"_EVENTS_ENABLED", true)

	cfg := &ServiceConfig{
		Port:            config.GetServicePort(v, envPrefix+"_SERVICE_PORT"),
		AppEnv:          config.GetAppEnv(v),
		Storage:         v.GetString(envPrefix + "_STORAGE"),
		LockTimeout:     v.GetDuration(envPrefix + "_LOCK_TIMEOUT"),
		ShutdownTimeout: v.GetDuration(envPrefix + "_SHUTDOWN_TIMEOUT"),
		EventsEnabled:   v.GetBool(envPrefix + "_EVENTS_ENABLED"),
		DBConfig:        config.LoadDatabaseConfig(v, envPrefix+"_DB_NAME"),
		JWTConfig:       config.LoadJWTConfig(v),
		KafkaConfig:     config.LoadKafkaConfig(v),
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *ServiceConfig) validate() error {
	if c.Storage != StoragePostgres && c.Storage != StorageMemory {
		return fmt.Errorf("invalid %s_STORAGE %q: want %s or %s", envPrefix, c.Storage, StoragePostgres, StorageMemory)
	}
	if c.JWTConfig.Secret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.AppEnv == "production" && c.JWTConfig.Secret == "change-me" {
		return errors.New("JWT_SECRET must be set in production")
	}
	if c.EventsEnabled && len(c.KafkaConfig.Brokers) == 0 {
		return errors.New("KAFKA_BROKERS is required when events are enabled")
	}
	return nil
}

// IsProduction reports whether the service runs in production mode.
func (c *ServiceConfig) IsProduction() bool {
	return c.AppEnv == "production"
}
