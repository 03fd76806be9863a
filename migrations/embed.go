// Package migrations embeds SQL migration files into the binary.
//
// This allows the service desk core to run migrations without needing the
// SQL files present on the filesystem. Each dialect has its own directory.
package migrations

import (
	"embed"

	"github.com/nerrad567/servicedesk-core/internal/infrastructure/database"
)

//go:embed sqlite/*.sql postgres/*.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "."
}
