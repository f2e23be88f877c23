package app

import (
	_ "github.com/joho/godotenv/autoload"

	"github.com/adanyl0v/taskdock/internal/config"
)

func MustReadEnv() {
	cfg, err := config.NewEnvReader().Read()
	if err != nil {
		globalLogger.Error().
			Err(err).
			Msg("failed to read env")
		panic(err)
	}
	globalLogger.Info().
		Str("env", cfg.Env).
		Str("store_driver", cfg.Store.Driver).
		Bool("redis", cfg.Redis.Enabled()).
		Bool("redis_events", cfg.Redis.EventsEnabled).
		Bool("admin_routes", cfg.HTTP.AdminToken != "").
		Msg("read env")

	config.SetGlobal(cfg)
}
