// Package config holds the connection settings of a database adapter.
package config

// PoolConfig holds connection pool settings.
type PoolConfig struct {
	MaxOpenConns           int `yaml:"max_open_conns"`
	MaxIdleConns           int `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int `yaml:"conn_max_lifetime_minutes"`
}

// DatabaseConfig holds the settings of one named connection, as found under
// surfin.adapter.database.<name> in the application configuration.
type DatabaseConfig struct {
	Type     string            `yaml:"type"`     // "sqlite", "mysql" or "postgres"
	Host     string            `yaml:"host"`     // ignored by sqlite
	Port     int               `yaml:"port"`     // ignored by sqlite
	Database string            `yaml:"database"` // database name, or file path for sqlite
	User     string            `yaml:"user"`
	Password string            `yaml:"password"`
	Schema   string            `yaml:"schema,omitempty"` // PostgreSQL search_path
	Sslmode  string            `yaml:"sslmode"`
	Params   map[string]string `yaml:"params,omitempty"` // extra DSN parameters
	LogLevel string            `yaml:"log_level"`        // GORM log level: SILENT, ERROR, WARN, INFO
	Pool     PoolConfig        `yaml:"pool"`
}
