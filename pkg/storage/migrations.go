package storage

import "embed"

// Migrations holds the sqlite schema of the state repository.
//
//go:embed migrations/*.sql
var Migrations embed.FS
