package verification

import (
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/elskow/users-api/internal/config"
	"github.com/elskow/users-api/internal/user"
)

func NewModule() fx.Option {
	return fx.Options(
		fx.Provide(
			fx.Annotate(
				func(db *gorm.DB) Repository {
					return NewRepository(db)
				},
			),
			fx.Annotate(
				func(cfg *config.AppConfig, log *zap.Logger, users user.Repository, pins Repository, notifier Notifier) *Engine {
					return NewEngine(&cfg.Pin, log, users, pins, notifier)
				},
			),
		),
	)
}
