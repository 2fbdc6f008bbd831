// Package migrations embeds the desk.db schema migrations.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
