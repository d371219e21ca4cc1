package database

import _ "embed"

// Schema is the full schema produced by the migrations, for tests that
// want a ready database without running golang-migrate.
//
//go:embed sqlc/schema.sql
var Schema string
