// Package migrations holds the schema, one Go migration per change.
package migrations

import (
	"context"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
)

var Migrations = migrate.NewMigrations()

// BringUpToDate creates the migration tables if needed and applies every
// pending migration as one group.
func BringUpToDate(ctx context.Context, db *bun.DB) (*migrate.MigrationGroup, error) {
	migrator := migrate.NewMigrator(db, Migrations)
	if err := migrator.Init(ctx); err != nil {
		return nil, errors.Wrap(err, "failed to create migration tables")
	}
	group, err := migrator.Migrate(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to migrate")
	}
	return group, nil
}

// Unapplied lists the migrations the database hasn't run yet.
func Unapplied(ctx context.Context, db *bun.DB) (migrate.MigrationSlice, error) {
	ms, err := migrate.NewMigrator(db, Migrations).MigrationsWithStatus(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return ms.Unapplied(), nil
}
