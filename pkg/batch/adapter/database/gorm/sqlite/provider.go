// Package sqlite registers the SQLite dialect with the gorm adapter.
package sqlite

import (
	"errors"
	"net/url"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	dbconfig "github.com/tigerroll/csvload/pkg/batch/adapter/database/config"
	gormadapter "github.com/tigerroll/csvload/pkg/batch/adapter/database/gorm"
)

func init() {
	gormadapter.RegisterDialector("sqlite", func(cfg dbconfig.DatabaseConfig) (gorm.Dialector, error) {
		if cfg.Database == "" {
			return nil, errors.New("SQLite database path cannot be empty")
		}
		return sqlite.Open(DSN(cfg)), nil
	})
}

// DSN returns the file path, followed by the extra params as a query string
// (e.g. _busy_timeout, _foreign_keys).
func DSN(c dbconfig.DatabaseConfig) string {
	if len(c.Params) == 0 {
		return c.Database
	}
	q := url.Values{}
	for k, v := range c.Params {
		q.Set(k, v)
	}
	return c.Database + "?" + q.Encode()
}
