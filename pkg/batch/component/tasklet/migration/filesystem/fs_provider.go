// Package filesystem embeds the framework migrations that create the batch
// metadata tables, one directory per database type.
package filesystem

import (
	"embed"
	"io/fs"
)

//go:embed resource
var rawFrameworkMigrationFS embed.FS

// ProvideFrameworkMigrationsFS returns the framework migrations rooted at the
// 'resource' directory, so "sqlite", "mysql" and "postgres" are top-level paths.
func ProvideFrameworkMigrationsFS() (fs.FS, error) {
	return fs.Sub(rawFrameworkMigrationFS, "resource")
}

// DirFor returns the migration directory for a database type.
func DirFor(dbType string) string {
	if dbType == "redshift" {
		return "postgres"
	}
	return dbType
}
