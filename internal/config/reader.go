package config

import (
	"fmt"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/adanyl0v/taskdock/internal/storage"
)

type Reader interface {
	Read() (*Config, error)
}

type EnvReader struct{}

func NewEnvReader() EnvReader {
	return EnvReader{}
}

func (EnvReader) Read() (*Config, error) {
	cfg := new(Config)
	err := cleanenv.ReadEnv(cfg)
	if err != nil {
		return nil, err
	}

	err = cfg.validate()
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Env {
	case EnvDev, EnvProd, EnvLocal:
	default:
		return fmt.Errorf("unknown env: %s", c.Env)
	}

	switch c.Store.Driver {
	case storage.DriverPostgres, storage.DriverSQLite:
	default:
		return fmt.Errorf("unknown store driver: %s", c.Store.Driver)
	}

	if c.Redis.EventsEnabled && !c.Redis.Enabled() {
		return fmt.Errorf("REDIS_EVENTS_ENABLED requires REDIS_URL or REDIS_ADDR")
	}
	return nil
}
