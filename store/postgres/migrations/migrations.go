// Package migrations embeds the PostgreSQL schema for goose.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
