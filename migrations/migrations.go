// Package migrations embeds the SQL schema of the workflow ledger.
package migrations

import "embed"

// FS holds the numbered migration files
//
//go:embed *.sql
var FS embed.FS
