package auth

import (
	"embed"
)

// MigrationsDir is the path of the SQL migrations inside GetMigrationsFS
const MigrationsDir = "data/sql/migrations"

//go:embed data/sql/migrations/*.sql
var migrationsFS embed.FS

// GetMigrationsFS returns the migration files for this package
func GetMigrationsFS() embed.FS {
	return migrationsFS
}
