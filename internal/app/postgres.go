package app

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/adanyl0v/taskdock/internal/config"
	"github.com/adanyl0v/taskdock/internal/storage"
	"github.com/adanyl0v/taskdock/internal/storage/postgres"
	"github.com/adanyl0v/taskdock/internal/storage/sqlite"
)

var globalStore storage.Store

// MustOpenStore opens the configured backend and brings its schema up to
// date.
func MustOpenStore() {
	switch config.Global().Store.Driver {
	case storage.DriverSQLite:
		mustOpenSQLite()
	default:
		mustMigratePostgres()
		mustConnectPostgres()
	}
}

func mustOpenSQLite() {
	cfg := config.Global().SQLite

	store, err := sqlite.Open(componentLogger("store"), cfg.Path)
	if err != nil {
		globalLogger.Error().
			Err(err).
			Str("path", cfg.Path).
			Msg("failed to open sqlite")
		panic(err)
	}
	globalStore = store

	globalLogger.Info().
		Str("path", cfg.Path).
		Msg("opened sqlite")
}

func mustMigratePostgres() {
	cfg := config.Global().Postgres
	if !cfg.AutoMigrate {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout+cfg.PingTimeout)
	defer cancel()

	err := postgres.Migrate(ctx, cfg.URL())
	if err != nil {
		globalLogger.Error().
			Err(err).
			Msg("failed to migrate postgres")
		panic(err)
	}
	globalLogger.Info().Msg("migrated postgres")
}

func mustConnectPostgres() {
	cfg := config.Global().Postgres

	poolCfg, err := pgxpool.ParseConfig(cfg.URL())
	if err != nil {
		globalLogger.Error().
			Err(err).
			Msg("failed to parse postgres config")
		panic(err)
	}
	poolCfg.ConnConfig.ConnectTimeout = cfg.ConnectTimeout

	pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		globalLogger.Error().
			Err(err).
			Msg("failed to connect to postgres")
		panic(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.PingTimeout)
	defer cancel()

	err = pool.Ping(ctx)
	if err != nil {
		pool.Close()
		globalLogger.Error().
			Err(err).
			Msg("failed to ping postgres")
		panic(err)
	}
	globalStore = postgres.New(componentLogger("store"), pool)

	globalLogger.Info().
		Str("host", cfg.Host).
		Int("port", cfg.Port).
		Msg("connected to postgres")
}

func CloseStore() {
	if globalStore == nil {
		return
	}
	err := globalStore.Close()
	if err != nil {
		globalLogger.Error().
			Err(err).
			Msg("failed to close store")
		return
	}
	globalLogger.Info().Msg("closed store")
}
