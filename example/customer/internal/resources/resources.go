// Package resources embeds the default configuration, the sample input and
// the CUSTOMER_INFO migrations of the customer application.
package resources

import (
	"embed"
	"io/fs"
)

// ApplicationYAML is the default application configuration.
//
//go:embed application.yaml
var ApplicationYAML []byte

// SampleInputName is the embedded input used when surfin.batch.input is empty.
const SampleInputName = "customers.csv"

//go:embed customers.csv
var sampleFS embed.FS

//go:embed all:migrations
var migrationsFS embed.FS

// SampleInput returns the file system holding SampleInputName.
func SampleInput() fs.FS { return sampleFS }

// Migrations returns the application migrations, one directory per database type.
func Migrations() fs.FS {
	sub, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}
