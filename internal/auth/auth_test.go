package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"

	"github.com/elskow/users-api/internal/config"
	"github.com/elskow/users-api/internal/federation"
	"github.com/elskow/users-api/internal/httpx"
	"github.com/elskow/users-api/internal/user"
)

func newTestLogger(t *testing.T) *zap.Logger {
	return zaptest.NewLogger(t)
}

func newTestConfig() *config.AuthConfig {
	return &config.AuthConfig{
		LegacyAdminPlaintext: true,
		BcryptCost:           bcrypt.MinCost,
	}
}

func newTestSessionConfig() *config.SessionConfig {
	return &config.SessionConfig{
		Secret:     "test-secret-key",
		CookieName: "session",
		Lifetime:   5 * time.Minute,
		Secure:     true,
		SameSite:   "none",
	}
}

// stubVerifier accepts the tokens it knows about.
type stubVerifier map[string]*federation.Identity

func (v stubVerifier) Verify(_ context.Context, token string) (*federation.Identity, error) {
	if id, ok := v[token]; ok {
		return id, nil
	}
	return nil, federation.ErrInvalidToken
}

// stubExchanger treats authorization codes as pre-verified tokens.
type stubExchanger struct {
	stubVerifier
}

func (e stubExchanger) AuthCodeURL(state string) string {
	return "https://accounts.example.com/auth?state=" + state
}

func (e stubExchanger) Exchange(ctx context.Context, code string) (*federation.Identity, error) {
	return e.Verify(ctx, code)
}

var testIdentities = stubVerifier{
	"token-ada": {Subject: "1", Email: "ada@example.com", GivenName: "Ada", FamilyName: "Lovelace"},
	"token-bob": {Subject: "2", Email: "bob@example.com", GivenName: "Bob", FamilyName: "Builder"},
}

type fixture struct {
	svc      *Service
	users    *user.MemoryRepository
	sessions *SessionManager
	handler  *Handler
}

func newTestService(t *testing.T) *Service {
	return newFixture(t).svc
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	log := newTestLogger(t)
	users := user.NewMemoryRepository()
	svc := NewService(newTestConfig(), log, users, testIdentities, stubExchanger{testIdentities})
	sessions := NewSessionManager(newTestSessionConfig(), false, log)
	respond := httpx.NewResponder(&config.APIConfig{}, log)

	return &fixture{
		svc:      svc,
		users:    users,
		sessions: sessions,
		handler:  NewHandler(svc, sessions, respond, log),
	}
}

func (f *fixture) addUser(t *testing.T, email, password string, role user.Role, status user.Status) *user.User {
	t.Helper()

	stored, err := f.svc.StoredPassword(role, password)
	require.NoError(t, err)

	u := &user.User{
		Name:         "Test",
		Surname:      "User",
		Email:        email,
		Password:     stored,
		Status:       status,
		Role:         role,
		Notification: true,
	}
	require.NoError(t, f.users.CreateUser(context.Background(), u))
	return u
}
