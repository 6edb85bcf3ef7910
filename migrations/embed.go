// Package migrations holds the SQL migrations for the optional Postgres
// tables.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
