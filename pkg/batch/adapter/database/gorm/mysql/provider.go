// Package mysql registers the MySQL dialect with the gorm adapter.
package mysql

import (
	"fmt"

	driver "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	dbconfig "github.com/tigerroll/csvload/pkg/batch/adapter/database/config"
	gormadapter "github.com/tigerroll/csvload/pkg/batch/adapter/database/gorm"
)

func init() {
	gormadapter.RegisterDialector("mysql", func(cfg dbconfig.DatabaseConfig) (gorm.Dialector, error) {
		return mysql.Open(DSN(cfg)), nil
	})
}

// DSN builds a go-sql-driver DSN. Time columns are parsed into time.Time.
func DSN(c dbconfig.DatabaseConfig) string {
	dc := driver.NewConfig()
	dc.User = c.User
	dc.Passwd = c.Password
	dc.Net = "tcp"
	port := c.Port
	if port == 0 {
		port = 3306
	}
	dc.Addr = fmt.Sprintf("%s:%d", c.Host, port)
	dc.DBName = c.Database
	dc.ParseTime = true
	if len(c.Params) > 0 {
		dc.Params = make(map[string]string, len(c.Params))
		for k, v := range c.Params {
			dc.Params[k] = v
		}
	}
	return dc.FormatDSN()
}
