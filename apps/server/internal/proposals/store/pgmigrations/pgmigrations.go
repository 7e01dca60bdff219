// Package pgmigrations embeds the SQL schema applied at startup via
// golang-migrate. Files follow the <seq>_<name>.<up|down>.sql convention.
package pgmigrations

import "embed"

// FS holds the migration files.
//
//go:embed *.sql
var FS embed.FS
