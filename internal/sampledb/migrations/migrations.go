// Package migrations embeds the schema of the sample ActivityTracker
// database.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
