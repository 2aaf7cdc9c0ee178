// Package migrations holds the Postgres schema for the question bank.
package migrations

import "github.com/uptrace/bun/migrate"

var Migrations = migrate.NewMigrations()
