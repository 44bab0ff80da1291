package account

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"

	"github.com/elskow/users-api/internal/auth"
	"github.com/elskow/users-api/internal/config"
	"github.com/elskow/users-api/internal/httpx"
	"github.com/elskow/users-api/internal/user"
	"github.com/elskow/users-api/internal/verification"
)

type stubNotifier struct {
	mu    sync.Mutex
	codes map[string]string
	err   error
}

func (n *stubNotifier) SendPin(_ context.Context, recipient, code string, _ verification.Purpose) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.codes[recipient] = code
	return n.err
}

func (n *stubNotifier) lastCode(recipient string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.codes[recipient]
}

type fixture struct {
	svc      *Service
	authSvc  *auth.Service
	users    *user.MemoryRepository
	pins     *verification.MemoryRepository
	notifier *stubNotifier
	sessions *auth.SessionManager
	router   http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	log := zaptest.NewLogger(t)
	users := user.NewMemoryRepository()
	pins := verification.NewMemoryRepository()
	notifier := &stubNotifier{codes: make(map[string]string)}

	engine := verification.NewEngine(&config.PinConfig{TTL: verification.DefaultTTL}, log, users, pins, notifier)
	authSvc := auth.NewService(&config.AuthConfig{LegacyAdminPlaintext: true, BcryptCost: bcrypt.MinCost}, log, users, nil, nil)
	svc := NewService(log, users, engine, authSvc, authSvc)

	sessions := auth.NewSessionManager(&config.SessionConfig{
		Secret:     "test-secret-key",
		CookieName: "session",
		Lifetime:   5 * time.Minute,
		Secure:     true,
		SameSite:   "none",
	}, false, log)
	respond := httpx.NewResponder(&config.APIConfig{}, log)

	r := chi.NewRouter()
	NewHandler(svc, auth.NewSessionAuth(sessions, respond, log), respond, log).Routes(r)

	return &fixture{
		svc:      svc,
		authSvc:  authSvc,
		users:    users,
		pins:     pins,
		notifier: notifier,
		sessions: sessions,
		router:   r,
	}
}

// addUser stores an established account, as admin creation, federated
// sign-up or the bootstrap CLI would.
func (f *fixture) addUser(t *testing.T, email, password string, role user.Role, status user.Status) *user.User {
	t.Helper()
	return f.store(t, email, password, role, status, true)
}

// addPending stores a self-registered account that was never confirmed.
func (f *fixture) addPending(t *testing.T, email, password string, role user.Role) *user.User {
	t.Helper()
	return f.store(t, email, password, role, user.StatusInactive, false)
}

func (f *fixture) store(t *testing.T, email, password string, role user.Role, status user.Status, confirmed bool) *user.User {
	t.Helper()

	stored, err := f.authSvc.StoredPassword(role, password)
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
	if confirmed {
		u.MarkConfirmed(time.Now())
	}
	require.NoError(t, f.users.CreateUser(context.Background(), u))
	return u
}

func (f *fixture) sessionCookie(t *testing.T, email string) *http.Cookie {
	t.Helper()
	rec := httptest.NewRecorder()
	require.NoError(t, f.sessions.Issue(rec, email, false))
	return rec.Result().Cookies()[0]
}

func registration(email string) Registration {
	return Registration{
		Name:     "Ada",
		Surname:  "Lovelace",
		Password: "analytical",
		Email:    email,
		Status:   "inactive",
		Role:     "student",
	}
}
