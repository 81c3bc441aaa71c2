package migrations

import "embed"

// FS holds the versioned SQL files applied by Run, in filename order.
//
//go:embed *.sql
var FS embed.FS
