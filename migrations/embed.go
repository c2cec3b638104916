// Package migrations holds the versioned schema as embedded SQL files.
package migrations

import "embed"

// FS contains every *.sql migration in this directory.
//
//go:embed *.sql
var FS embed.FS
