// Package migrations embeds the run history schema into the binary.
//
// Importing this package (for side effects) registers the files with the
// database package, so the SQL files need not exist on disk at runtime.
package migrations

import (
	"embed"

	"github.com/nerrad567/gray-logic-devicesim/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "."
}
