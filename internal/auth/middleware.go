package auth

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/elskow/users-api/internal/httpx"
)

type contextKey string

// SessionContextKey holds the *Session of an authenticated request.
const SessionContextKey contextKey = "session"

// SessionFromContext returns the session stored by RequireSession. It is
// absent in the testing execution mode when no cookie was sent.
func SessionFromContext(ctx context.Context) (*Session, error) {
	s, ok := ctx.Value(SessionContextKey).(*Session)
	if !ok {
		return nil, errors.New("session not found in context")
	}
	return s, nil
}

// SessionAuth gates read endpoints on the session cookie.
type SessionAuth struct {
	sessions *SessionManager
	respond  *httpx.Responder
	log      *zap.Logger
}

func NewSessionAuth(sessions *SessionManager, respond *httpx.Responder, log *zap.Logger) *SessionAuth {
	return &SessionAuth{sessions: sessions, respond: respond, log: log}
}

func (a *SessionAuth) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := a.sessions.Validate(r); err != nil {
			a.log.Warn("session rejected", zap.String("path", r.URL.Path), zap.Error(err))
			a.respond.Problem(w, r, http.StatusUnauthorized, "Session expired or missing")
			return
		}

		if s, err := a.sessions.Current(r); err == nil {
			r = r.WithContext(context.WithValue(r.Context(), SessionContextKey, s))
		}
		next.ServeHTTP(w, r)
	})
}
