// Package testdb opens throwaway in-memory databases with the schema applied.
package testdb

import (
	"context"
	"database/sql"
	"testing"

	auth "github.com/mavi3006/hotel-auth"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// Open returns a migrated in-memory sqlite database closed on test cleanup.
// A single connection keeps every query on the same in-memory schema, so
// code under test must not reach for the outer handle inside RunInTx.
func Open(t testing.TB) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, "file::memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() {
		_ = db.Close()
	})

	if err := auth.Migrate(context.Background(), db, nil); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	return db
}
