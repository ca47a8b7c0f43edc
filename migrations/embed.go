// Package migrations embeds SQL migration files into the binary.
//
// Importing it for side effects registers the schema with the database
// package, so udevparse runs migrations without the SQL files on disk.
package migrations

import (
	"embed"

	"github.com/nerrad567/udevparse/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.SetMigrations(migrationsFS)
}
