package gorm

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/mitchellh/mapstructure"
	"gorm.io/gorm"

	"github.com/tigerroll/csvload/pkg/batch/adapter/database"
	dbconfig "github.com/tigerroll/csvload/pkg/batch/adapter/database/config"
	"github.com/tigerroll/csvload/pkg/batch/core/config"
	"github.com/tigerroll/csvload/pkg/batch/support/util/logger"
)

// DialectorFactory builds a gorm.Dialector from a connection config.
type DialectorFactory func(cfg dbconfig.DatabaseConfig) (gorm.Dialector, error)

var (
	dialectorRegistry = make(map[string]DialectorFactory)
	dialectorMutex    sync.RWMutex
)

// RegisterDialector registers factory for dbType. Dialect packages call it from init.
func RegisterDialector(dbType string, factory DialectorFactory) {
	dialectorMutex.Lock()
	defer dialectorMutex.Unlock()
	if _, exists := dialectorRegistry[dbType]; exists {
		logger.Warnf("Dialector for type '%s' already registered. Overwriting.", dbType)
	}
	dialectorRegistry[dbType] = factory
}

// GetDialectorFactory returns the factory registered for dbType.
func GetDialectorFactory(dbType string) (DialectorFactory, error) {
	dialectorMutex.RLock()
	defer dialectorMutex.RUnlock()
	factory, ok := dialectorRegistry[dbType]
	if !ok {
		return nil, fmt.Errorf("no dialector registered for database type: %s (missing import of its dialect package?)", dbType)
	}
	return factory, nil
}

// DecodeDatabaseConfig converts one raw entry of surfin.adapter.database into a DatabaseConfig.
func DecodeDatabaseConfig(raw interface{}) (dbconfig.DatabaseConfig, error) {
	var cfg dbconfig.DatabaseConfig
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "yaml",
		WeaklyTypedInput: true,
		Result:           &cfg,
	})
	if err != nil {
		return cfg, err
	}
	if err := decoder.Decode(raw); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Open opens a connection named name with cfg.
func Open(name string, cfg dbconfig.DatabaseConfig) (*GormDBAdapter, error) {
	factory, err := GetDialectorFactory(cfg.Type)
	if err != nil {
		return nil, err
	}
	dialector, err := factory(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create dialector for %s: %w", cfg.Type, err)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: NewGormLogger(cfg.LogLevel)})
	if err != nil {
		return nil, fmt.Errorf("failed to open GORM connection '%s': %w", name, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	if cfg.Pool.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.Pool.MaxOpenConns)
	}
	if cfg.Pool.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.Pool.MaxIdleConns)
	}
	if cfg.Pool.ConnMaxLifetimeMinutes > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(cfg.Pool.ConnMaxLifetimeMinutes) * time.Minute)
	}
	return NewGormDBAdapter(db, cfg, name)
}

// Provider opens the connections declared under surfin.adapter.database and caches them by name.
type Provider struct {
	configs     map[string]interface{}
	connections map[string]database.DBConnection
	mu          sync.RWMutex
}

var _ database.DBProvider = (*Provider)(nil)

// NewProvider creates a Provider over the database section of cfg.
func NewProvider(cfg *config.Config) *Provider {
	return &Provider{
		configs:     cfg.Surfin.Adapter.Database,
		connections: make(map[string]database.DBConnection),
	}
}

// GetConnection returns the connection called name, opening it on first use.
func (p *Provider) GetConnection(name string) (database.DBConnection, error) {
	p.mu.RLock()
	conn, ok := p.connections[name]
	p.mu.RUnlock()
	if ok {
		return conn, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if conn, ok = p.connections[name]; ok {
		return conn, nil
	}

	raw, ok := p.configs[name]
	if !ok {
		return nil, fmt.Errorf("database configuration '%s' not found in surfin.adapter.database", name)
	}
	dbCfg, err := DecodeDatabaseConfig(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode database config for '%s': %w", name, err)
	}
	adapter, err := Open(name, dbCfg)
	if err != nil {
		return nil, err
	}
	p.connections[name] = adapter
	logger.Infof("Established new DB connection: %s (%s)", name, dbCfg.Type)
	return adapter, nil
}

// CloseAll closes every open connection and forgets it.
func (p *Provider) CloseAll() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	names := make([]string, 0, len(p.connections))
	for name := range p.connections {
		names = append(names, name)
	}
	sort.Strings(names)

	var result error
	for _, name := range names {
		if err := p.connections[name].Close(); err != nil {
			logger.Errorf("Failed to close connection '%s': %v", name, err)
			result = multierror.Append(result, fmt.Errorf("close '%s': %w", name, err))
		}
		delete(p.connections, name)
	}
	return result
}
