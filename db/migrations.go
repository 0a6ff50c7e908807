// Package db embeds the schema migrations for each supported driver.
package db

import "embed"

// Migrations holds the pg/ and sqlite/ migration folders.
//
//go:embed pg/*.sql sqlite/*.sql
var Migrations embed.FS
