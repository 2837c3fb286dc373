// Package migrations embeds the SQL schema so the server can migrate the
// store without the files present on disk.
package migrations

import "embed"

// FS holds every *.up.sql file in this directory.
//
//go:embed *.sql
var FS embed.FS
