package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"

	"github.com/elskow/users-api/internal/account"
	"github.com/elskow/users-api/internal/auth"
	"github.com/elskow/users-api/internal/config"
	"github.com/elskow/users-api/internal/httpx"
	"github.com/elskow/users-api/internal/user"
	"github.com/elskow/users-api/internal/verification"
)

type nopNotifier struct{}

func (nopNotifier) SendPin(_ context.Context, _, _ string, _ verification.Purpose) error {
	return nil
}

func newTestConfig() *config.AppConfig {
	return &config.AppConfig{
		Env: EnvDevelopment,
		Server: config.ServerConfig{
			Host:            "127.0.0.1",
			Port:            "0",
			ReadTimeout:     time.Second,
			WriteTimeout:    5 * time.Second,
			ShutdownTimeout: time.Second,
		},
		Session: config.SessionConfig{
			Secret:     "test-secret",
			CookieName: "session",
			Lifetime:   5 * time.Minute,
			SameSite:   "lax",
		},
		Auth: config.AuthConfig{LegacyAdminPlaintext: true, BcryptCost: bcrypt.MinCost},
		Pin:  config.PinConfig{TTL: verification.DefaultTTL},
		CORS: config.CORSConfig{AllowedOrigins: []string{"http://localhost:3000"}, MaxAge: 300},
	}
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	cfg := newTestConfig()
	log := zaptest.NewLogger(t)
	users := user.NewMemoryRepository()
	engine := verification.NewEngine(&cfg.Pin, log, users, verification.NewMemoryRepository(), nopNotifier{})
	authSvc := auth.NewService(&cfg.Auth, log, users, nil, nil)
	sessions := auth.NewSessionManager(&cfg.Session, false, log)
	respond := httpx.NewResponder(&cfg.API, log)

	return NewRouter(cfg, log, respond,
		auth.NewHandler(authSvc, sessions, respond, log),
		account.NewHandler(
			account.NewService(log, users, engine, authSvc, authSvc),
			auth.NewSessionAuth(sessions, respond, log),
			respond, log,
		),
	)
}

func send(t *testing.T, h http.Handler, method, path string, body interface{}, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRouter_Health(t *testing.T) {
	h := newTestRouter(t)

	rec := send(t, h, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("Content-Type"))
}

func TestRouter_Metrics(t *testing.T) {
	h := newTestRouter(t)

	send(t, h, http.MethodGet, "/health", nil)
	rec := send(t, h, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestRouter_UnknownRoute(t *testing.T) {
	h := newTestRouter(t)

	rec := send(t, h, http.MethodGet, "/nope", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	var p httpx.Problem
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&p))
	assert.Equal(t, "about:blank", p.Type)
	assert.Equal(t, "NotFound", p.Title)
	assert.Equal(t, 0, p.Status)
	assert.Equal(t, "/nope", p.Instance)
}

func TestRouter_CORSPreflight(t *testing.T) {
	h := newTestRouter(t)

	req := httptest.NewRequest(http.MethodOptions, "/users/login", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
}

func TestRouter_RegisterLoginAndBrowse(t *testing.T) {
	h := newTestRouter(t)

	rec := send(t, h, http.MethodPost, "/users", map[string]interface{}{
		"name":     "Ada",
		"surname":  "Lovelace",
		"password": "analytical",
		"email":    "ada@example.com",
		"status":   "active",
		"role":     "teacher",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = send(t, h, http.MethodGet, "/users/teachers", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = send(t, h, http.MethodPost, "/users/login", map[string]string{
		"email":    "ada@example.com",
		"password": "analytical",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)

	rec = send(t, h, http.MethodGet, "/users/teachers", nil, cookies...)
	require.Equal(t, http.StatusOK, rec.Code)

	var env struct {
		Data []map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	require.Len(t, env.Data, 1)
	assert.Equal(t, "ada@example.com", env.Data[0]["email"])
}
