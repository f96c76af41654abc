// Package postgres registers the PostgreSQL dialect (also used for Redshift) with the gorm adapter.
package postgres

import (
	"fmt"
	"sort"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	dbconfig "github.com/tigerroll/csvload/pkg/batch/adapter/database/config"
	gormadapter "github.com/tigerroll/csvload/pkg/batch/adapter/database/gorm"
)

func init() {
	factory := func(cfg dbconfig.DatabaseConfig) (gorm.Dialector, error) {
		return postgres.Open(DSN(cfg)), nil
	}
	gormadapter.RegisterDialector("postgres", factory)
	gormadapter.RegisterDialector("redshift", factory)
}

// DSN builds a key=value DSN as expected by gorm.io/driver/postgres.
func DSN(c dbconfig.DatabaseConfig) string {
	sslmode := c.Sslmode
	if sslmode == "" {
		sslmode = "disable"
	}
	port := c.Port
	if port == 0 {
		port = 5432
	}
	parts := []string{
		fmt.Sprintf("host=%s", c.Host),
		fmt.Sprintf("port=%d", port),
		fmt.Sprintf("user=%s", c.User),
		fmt.Sprintf("password=%s", c.Password),
		fmt.Sprintf("dbname=%s", c.Database),
		fmt.Sprintf("sslmode=%s", sslmode),
	}
	if c.Schema != "" {
		parts = append(parts, fmt.Sprintf("search_path=%s", c.Schema))
	}
	keys := make([]string, 0, len(c.Params))
	for k := range c.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, c.Params[k]))
	}
	return strings.Join(parts, " ")
}
