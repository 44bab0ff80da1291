package account

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/elskow/users-api/internal/auth"
	"github.com/elskow/users-api/internal/httpx"
	"github.com/elskow/users-api/internal/user"
	"github.com/elskow/users-api/internal/verification"
)

func NewModule() fx.Option {
	return fx.Options(
		fx.Provide(
			fx.Annotate(
				func(log *zap.Logger, users user.Repository, engine *verification.Engine, authSvc *auth.Service) *Service {
					return NewService(log, users, engine, authSvc, authSvc)
				},
			),
			fx.Annotate(
				func(svc *Service, gate *auth.SessionAuth, respond *httpx.Responder, log *zap.Logger) *Handler {
					return NewHandler(svc, gate, respond, log)
				},
			),
		),
	)
}
