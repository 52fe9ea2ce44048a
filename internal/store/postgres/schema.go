package postgres

import _ "embed"

// Schema is the engine's DDL. Applied idempotently at startup; every
// statement guards with IF NOT EXISTS.
//
//go:embed schema.sql
var Schema string
