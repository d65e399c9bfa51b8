package auth

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
	"github.com/pressly/goose/v3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

// Migrate applies every pending embedded migration to db. The goose
// dialect follows the bun dialect so the same files serve postgres in
// production and sqlite in tests.
func Migrate(ctx context.Context, db *bun.DB, logger Logger) error {
	logger = normalizeLogger(logger)

	var gooseDialect goose.Dialect
	switch db.Dialect().Name() {
	case dialect.PG:
		gooseDialect = goose.DialectPostgres
	case dialect.SQLite:
		gooseDialect = goose.DialectSQLite3
	default:
		return goerrors.New("unsupported database dialect for migrations", goerrors.CategoryInternal).
			WithMetadata(map[string]any{"dialect": db.Dialect().Name().String()})
	}

	fsys, err := MigrationsDir()
	if err != nil {
		return DependencyError(err, "failed to open embedded migrations")
	}

	provider, err := goose.NewProvider(gooseDialect, db.DB, fsys)
	if err != nil {
		return DependencyError(err, "failed to create migration provider")
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return DependencyError(err, "failed to apply migrations")
	}

	for _, r := range results {
		if r == nil || r.Source == nil {
			continue
		}
		logger.Info("migration applied", "version", r.Source.Version, "path", r.Source.Path, "duration", r.Duration)
	}

	return nil
}
