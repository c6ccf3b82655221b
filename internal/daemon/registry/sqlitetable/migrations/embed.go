package migrations

import "embed"

// FS contains embedded SQLite migrations for the code table.
//
//go:embed *.sql
var FS embed.FS
