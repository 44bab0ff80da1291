package app

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/elskow/users-api/internal/account"
	"github.com/elskow/users-api/internal/auth"
	"github.com/elskow/users-api/internal/config"
	"github.com/elskow/users-api/internal/database"
	"github.com/elskow/users-api/internal/federation"
	"github.com/elskow/users-api/internal/httpx"
	"github.com/elskow/users-api/internal/metrics"
	"github.com/elskow/users-api/internal/migration"
	"github.com/elskow/users-api/internal/notification"
	"github.com/elskow/users-api/internal/server"
	"github.com/elskow/users-api/internal/user"
	"github.com/elskow/users-api/internal/verification"
)

// Module combines all application modules
func Module() fx.Option {
	return fx.Options(
		// Configuration
		fx.Provide(server.LoadConfig),

		// Logger
		fx.Provide(newLogger),

		// Storage
		database.Module(),
		migration.Module(),
		user.NewModule(),

		// Domain
		verification.NewModule(),
		notification.NewModule(),
		federation.NewModule(),
		auth.NewModule(),
		account.NewModule(),

		// HTTP
		httpx.NewModule(),
		fx.Provide(server.NewServer),

		fx.Invoke(metrics.MustRegister),
		fx.Invoke(registerHooks),
	)
}

func newLogger(cfg *config.AppConfig) (*zap.Logger, error) {
	return server.NewLogger(cfg.Env)
}

func registerHooks(
	lifecycle fx.Lifecycle,
	shutdowner fx.Shutdowner,
	srv *server.Server,
	log *zap.Logger,
) {
	lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.Start(); err != nil {
					log.Error("failed to start server", zap.Error(err))
					_ = shutdowner.Shutdown(fx.ExitCode(1))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("shutting down server...")
			return srv.Stop(ctx)
		},
	})
}
