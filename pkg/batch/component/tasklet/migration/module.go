package migration

import (
	"context"
	"io/fs"

	"go.uber.org/fx"

	"github.com/tigerroll/csvload/pkg/batch/adapter/database"
	"github.com/tigerroll/csvload/pkg/batch/component/tasklet/migration/filesystem"
	"github.com/tigerroll/csvload/pkg/batch/core/config"
	"github.com/tigerroll/csvload/pkg/batch/support/util/logger"
)

// MetadataDBTag names the connection holding the batch metadata tables.
const MetadataDBTag = `name:"metadataDB"`

type frameworkMigrationParams struct {
	fx.In
	Lifecycle   fx.Lifecycle
	Config      *config.Config
	Conn        database.DBConnection `name:"metadataDB" optional:"true"`
	MigrationFS fs.FS                 `name:"frameworkMigrationsFS"`
}

// registerFrameworkMigration applies the framework migrations to the metadata
// connection when the application starts, unless migrate_on_start is off.
// Without a metadata connection (in-memory repository) nothing is registered.
func registerFrameworkMigration(p frameworkMigrationParams) {
	if !p.Config.Surfin.Infrastructure.MigrateOnStart {
		logger.Infof("migrate_on_start is disabled; framework migrations are not applied.")
		return
	}
	if p.Conn == nil {
		logger.Debugf("No metadata database connection; framework migrations are skipped.")
		return
	}
	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return NewMigrator(p.Conn).Up(ctx, p.MigrationFS, filesystem.DirFor(p.Conn.Type()), FrameworkMigrationsTable)
		},
	})
}

// Module applies the framework migrations on start.
var Module = fx.Options(
	filesystem.Module,
	fx.Invoke(registerFrameworkMigration),
)
