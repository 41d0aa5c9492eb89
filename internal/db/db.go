// Package db holds the embedded SQL migrations for the postgres backend.
package db

import "embed"

//go:embed migrations/*.sql
var MigrationFS embed.FS
