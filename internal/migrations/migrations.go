// Package migrations embeds the goose SQL migrations for the persistence
// core's schema.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
