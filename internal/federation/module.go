package federation

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/elskow/users-api/internal/config"
)

func NewModule() fx.Option {
	return fx.Options(
		fx.Provide(
			fx.Annotate(
				func(lc fx.Lifecycle, cfg *config.AppConfig, log *zap.Logger) KeySource {
					keys := NewRemoteKeys(cfg.Google.JWKSURL, cfg.Google.JWKSRefresh, log)
					lc.Append(fx.Hook{
						OnStop: func(context.Context) error {
							keys.Close()
							return nil
						},
					})
					return keys
				},
			),
			fx.Annotate(
				func(cfg *config.AppConfig, keys KeySource) Verifier {
					return NewGoogleVerifier(cfg.Google.ClientID, keys)
				},
			),
			fx.Annotate(
				func(cfg *config.AppConfig, verifier Verifier) *GoogleOAuth {
					return NewGoogleOAuth(&cfg.Google, verifier)
				},
			),
		),
	)
}
