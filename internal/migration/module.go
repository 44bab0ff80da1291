package migration

import (
	"context"
	"fmt"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/elskow/users-api/internal/config"
)

// Module brings the schema to the latest version on startup.
func Module() fx.Option {
	return fx.Options(
		fx.Provide(
			fx.Annotate(
				func(config *config.AppConfig) (*Migrator, error) {
					return NewMigrator(&config.Database)
				},
			),
		),
		fx.Invoke(registerHooks),
	)
}

func registerHooks(
	lifecycle fx.Lifecycle,
	migrator *Migrator,
	logger *zap.Logger,
) {
	lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return migrate(ctx, migrator, logger)
		},
		OnStop: func(ctx context.Context) error {
			return migrator.Close()
		},
	})
}

func migrate(ctx context.Context, migrator *Migrator, logger *zap.Logger) error {
	current, err := migrator.Version(ctx)
	if err != nil {
		return fmt.Errorf("failed to get current migration version: %w", err)
	}
	latest, err := migrator.LatestVersion()
	if err != nil {
		return fmt.Errorf("failed to get latest migration version: %w", err)
	}

	logger.Info("Database migration status",
		zap.Int64("current_version", current),
		zap.Int64("latest_version", latest))

	switch {
	case current > latest:
		// Never roll back a schema written by a newer build.
		return fmt.Errorf("database schema version %d is ahead of this build (%d)", current, latest)
	case current < latest:
		logger.Info("Upgrading database schema",
			zap.Int64("from_version", current),
			zap.Int64("to_version", latest))
		return migrator.Up(ctx)
	}
	return nil
}
