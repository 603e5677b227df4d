// Package migrations embeds the SQL for the gateway's own tables.
//
// Only bookkeeping tables owned by the gateway live here. Tables served
// through /api belong to the operator and are never migrated.
package migrations

import (
	"embed"

	"github.com/nerrad567/sqlgate-core/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "."
}
