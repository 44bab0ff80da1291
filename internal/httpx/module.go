package httpx

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/elskow/users-api/internal/config"
)

func NewModule() fx.Option {
	return fx.Provide(
		func(cfg *config.AppConfig, log *zap.Logger) *Responder {
			return NewResponder(&cfg.API, log)
		},
	)
}
