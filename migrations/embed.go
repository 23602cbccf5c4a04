// Package migrations embeds the Postgres schema migrations.
package migrations

import "embed"

// FS holds the numbered up/down SQL files applied by cmd/migrate.
//
//go:embed *.sql
var FS embed.FS
