// Package migrations embeds the bridge's SQL schema changes and registers
// them with package database. Import it for its side effect.
package migrations

import (
	"embed"

	"github.com/nerrad567/eq3-bridge/internal/infrastructure/database"
)

//go:embed *.sql
var files embed.FS

func init() {
	database.Migrations = files
}
