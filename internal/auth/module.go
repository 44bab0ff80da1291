package auth

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/elskow/users-api/internal/config"
	"github.com/elskow/users-api/internal/federation"
	"github.com/elskow/users-api/internal/httpx"
	"github.com/elskow/users-api/internal/user"
)

// NewModule returns the auth module options
func NewModule() fx.Option {
	return fx.Options(
		fx.Provide(
			fx.Annotate(
				func(cfg *config.AppConfig, log *zap.Logger, users user.Repository, verifier federation.Verifier, oauth *federation.GoogleOAuth) *Service {
					return NewService(&cfg.Auth, log, users, verifier, oauth)
				},
			),
			fx.Annotate(
				func(cfg *config.AppConfig, log *zap.Logger) *SessionManager {
					return NewSessionManager(&cfg.Session, cfg.IsTesting(), log)
				},
			),
			// Session-cookie gate for read endpoints
			fx.Annotate(
				func(sessions *SessionManager, respond *httpx.Responder, log *zap.Logger) *SessionAuth {
					return NewSessionAuth(sessions, respond, log)
				},
			),
			fx.Annotate(
				func(svc *Service, sessions *SessionManager, respond *httpx.Responder, log *zap.Logger) *Handler {
					return NewHandler(svc, sessions, respond, log)
				},
			),
		),
	)
}
