package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/elskow/users-api/internal/config"
)

var (
	ErrNoSession      = errors.New("no session")
	ErrSessionExpired = errors.New("session expired")
)

// Claims is the signed payload of the session cookie. Privileged sessions
// carry no expiry.
type Claims struct {
	Privileged bool `json:"priv"`
	jwt.RegisteredClaims
}

type Session struct {
	Subject    string
	Privileged bool
	// ExpiresAt is zero for privileged sessions.
	ExpiresAt time.Time
}

// SessionManager issues and reads HS256-signed session cookies.
type SessionManager struct {
	config  *config.SessionConfig
	log     *zap.Logger
	testing bool
	now     func() time.Time
}

func NewSessionManager(config *config.SessionConfig, testing bool, log *zap.Logger) *SessionManager {
	return &SessionManager{
		config:  config,
		log:     log,
		testing: testing,
		now:     time.Now,
	}
}

func (m *SessionManager) cookieName() string {
	if m.config.CookieName == "" {
		return "session"
	}
	return m.config.CookieName
}

func (m *SessionManager) sameSite() http.SameSite {
	switch strings.ToLower(m.config.SameSite) {
	case "lax":
		return http.SameSiteLaxMode
	case "strict":
		return http.SameSiteStrictMode
	case "default":
		return http.SameSiteDefaultMode
	default:
		return http.SameSiteNoneMode
	}
}

// Issue writes a new session cookie for email, replacing any previous one.
func (m *SessionManager) Issue(w http.ResponseWriter, email string, privileged bool) error {
	now := m.now()
	claims := &Claims{
		Privileged: privileged,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  email,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if !privileged {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(m.config.Lifetime))
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(m.config.Secret))
	if err != nil {
		return fmt.Errorf("sign session: %w", err)
	}

	cookie := &http.Cookie{
		Name:     m.cookieName(),
		Value:    token,
		Path:     "/",
		Domain:   m.config.Domain,
		HttpOnly: true,
		Secure:   m.config.Secure,
		SameSite: m.sameSite(),
	}
	if !privileged {
		cookie.MaxAge = int(m.config.Lifetime / time.Second)
		cookie.Expires = now.Add(m.config.Lifetime)
	}
	http.SetCookie(w, cookie)
	return nil
}

// Current returns the session carried by r.
func (m *SessionManager) Current(r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(m.cookieName())
	if err != nil || cookie.Value == "" {
		return nil, ErrNoSession
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(cookie.Value, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(m.config.Secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(m.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrSessionExpired
		}
		return nil, ErrNoSession
	}
	if !token.Valid || claims.Subject == "" {
		return nil, ErrNoSession
	}
	// A standard session without expiry was not issued here.
	if !claims.Privileged && claims.ExpiresAt == nil {
		return nil, ErrNoSession
	}

	s := &Session{Subject: claims.Subject, Privileged: claims.Privileged}
	if claims.ExpiresAt != nil {
		s.ExpiresAt = claims.ExpiresAt.Time
	}
	return s, nil
}

// Validate reports whether r carries a live session. The testing execution
// mode accepts every request.
func (m *SessionManager) Validate(r *http.Request) error {
	if m.testing {
		return nil
	}
	_, err := m.Current(r)
	return err
}

// Clear expires the session cookie.
func (m *SessionManager) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName(),
		Value:    "",
		Path:     "/",
		Domain:   m.config.Domain,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   m.config.Secure,
		SameSite: m.sameSite(),
	})
}
