package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/elskow/users-api/internal/app"
	"github.com/elskow/users-api/internal/server"
)

// Connection retries happen inside OnStart, so the default 15s is too short.
const startTimeout = time.Minute

func main() {
	checkConfig := flag.Bool("check-config", false, "load and validate the configuration, then exit")
	flag.Parse()

	if os.Getenv("APP_ENV") == "" {
		os.Setenv("APP_ENV", server.EnvDevelopment)
	}

	if *checkConfig {
		cfg, err := server.LoadConfig()
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("configuration ok (env=%s, listen=%s:%s)\n", cfg.Env, cfg.Server.Host, cfg.Server.Port)
		return
	}

	fx.New(
		app.Module(),
		fx.StartTimeout(startTimeout),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Named("fx")}
		}),
	).Run()
}
