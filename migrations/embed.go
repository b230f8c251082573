// Package migrations embeds the accounts schema.
package migrations

import "embed"

// FS holds the *.up.sql files applied at startup by database.RunMigrations.
//
//go:embed *.up.sql
var FS embed.FS
