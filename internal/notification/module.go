package notification

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/elskow/users-api/internal/config"
	"github.com/elskow/users-api/internal/verification"
)

func NewModule() fx.Option {
	return fx.Options(
		fx.Provide(
			fx.Annotate(
				func(cfg *config.AppConfig, log *zap.Logger) verification.Notifier {
					return NewNotifier(cfg, log)
				},
			),
		),
	)
}

// NewNotifier picks the SMTP sender when a relay is configured.
func NewNotifier(cfg *config.AppConfig, log *zap.Logger) verification.Notifier {
	if cfg.SMTP.Host == "" {
		if cfg.Env == "production" {
			log.Error("smtp.host is empty in production, pins will only be logged")
		}
		return NewLogSender(log)
	}
	return NewSMTPSender(&cfg.SMTP, log, cfg.Pin.TTL)
}
