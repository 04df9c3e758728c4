package migrations

import "embed"

// FS contains the request store schema.
//
//go:embed *.sql
var FS embed.FS
