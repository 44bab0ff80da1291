package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/elskow/users-api/internal/account"
	"github.com/elskow/users-api/internal/api"
	"github.com/elskow/users-api/internal/auth"
	"github.com/elskow/users-api/internal/config"
	"github.com/elskow/users-api/internal/httpx"
)

type Server struct {
	config     *config.AppConfig
	log        *zap.Logger
	httpServer *http.Server
	health     *HealthServer
}

type Params struct {
	fx.In
	Config         *config.AppConfig
	Logger         *zap.Logger
	Responder      *httpx.Responder
	AuthHandler    *auth.Handler
	AccountHandler *account.Handler
}

// NewRouter builds the HTTP surface. It is exported for end-to-end tests.
func NewRouter(cfg *config.AppConfig, log *zap.Logger, respond *httpx.Responder, authHandler *auth.Handler, accountHandler *account.Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(httpx.RequestLogger(log))
	r.Use(middleware.Recoverer)
	if cfg.Server.WriteTimeout > 0 {
		r.Use(middleware.Timeout(cfg.Server.WriteTimeout))
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           cfg.CORS.MaxAge,
	}))

	r.Get(api.Health, func(w http.ResponseWriter, _ *http.Request) {
		respond.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, api.Metrics, promhttp.Handler())

	authHandler.Routes(r)
	accountHandler.Routes(r)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respond.Problem(w, r, http.StatusNotFound, "The requested URL was not found on the server")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respond.Problem(w, r, http.StatusMethodNotAllowed, "The method is not allowed for the requested URL")
	})

	return r
}

func NewServer(p Params) *Server {
	cfg := p.Config
	server := &Server{
		config: cfg,
		log:    p.Logger,
		httpServer: &http.Server{
			Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
			Handler:      NewRouter(cfg, p.Logger, p.Responder, p.AuthHandler, p.AccountHandler),
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
	}

	if cfg.GRPC.Enabled {
		server.health = NewHealthServer(&cfg.GRPC, p.Logger)
	}

	return server
}

// Start serves HTTP and, when enabled, the gRPC health listener. It blocks
// until the HTTP server stops.
func (s *Server) Start() error {
	lis, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	if s.health != nil {
		go func() {
			if err := s.health.Start(); err != nil {
				s.log.Error("gRPC health server stopped", zap.Error(err))
			}
		}()
	}

	s.log.Info("Starting HTTP server",
		zap.String("address", s.httpServer.Addr),
		zap.Object("config", serverConfigToField(s.config)),
	)

	if err := s.httpServer.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to serve: %w", err)
	}
	return nil
}

func serverConfigToField(config *config.AppConfig) zapcore.ObjectMarshaler {
	return zapcore.ObjectMarshalerFunc(func(enc zapcore.ObjectEncoder) error {
		enc.AddString("environment", config.Env)
		enc.AddDuration("read_timeout", config.Server.ReadTimeout)
		enc.AddDuration("write_timeout", config.Server.WriteTimeout)
		enc.AddBool("grpc_health", config.GRPC.Enabled)
		enc.AddBool("testing_mode", config.IsTesting())
		return nil
	})
}

func (s *Server) Stop(ctx context.Context) error {
	s.log.Info("shutting down HTTP server")

	ctx, cancel := context.WithTimeout(ctx, s.config.Server.ShutdownTimeout)
	defer cancel()

	if s.health != nil {
		s.health.Stop()
	}
	return s.httpServer.Shutdown(ctx)
}
