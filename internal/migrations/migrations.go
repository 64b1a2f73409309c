// Package migrations holds the bun schema migrations for the policy
// administration database. Files register themselves against Migrations in
// their init functions; the db CLI commands run them through bun's migrator.
package migrations

import "github.com/uptrace/bun/migrate"

var Migrations = migrate.NewMigrations()
