package main

import (
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	auth "github.com/mavi3006/hotel-auth"
	"github.com/mavi3006/hotel-auth/config"
)

type globalOptions struct {
	configFile string
	dotenv     []string
}

func (o *globalOptions) load() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(config.LoadOptions{
		ConfigFile: o.configFile,
		Dotenv:     o.dotenv,
	})
	if err != nil {
		return nil, nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, auth.NewLogger(cfg.Mode, cfg.LogLevel), nil
}

func openDB(cfg *config.Config) (*bun.DB, error) {
	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("database.url (DATABASE_URL) is required")
	}

	sqldb, err := sql.Open("pgx", cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if cfg.Database.MaxOpenConns > 0 {
		sqldb.SetMaxOpenConns(cfg.Database.MaxOpenConns)
		sqldb.SetMaxIdleConns(cfg.Database.MaxOpenConns)
	}

	return bun.NewDB(sqldb, pgdialect.New()), nil
}
