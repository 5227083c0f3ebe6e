// AngelaMos | 2026
// embed.go

// Package migrations embeds the goose SQL migrations for the API database.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS

// Dir is the directory within FS where migrations live.
const Dir = "."
