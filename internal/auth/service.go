package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/elskow/users-api/internal/config"
	"github.com/elskow/users-api/internal/federation"
	"github.com/elskow/users-api/internal/metrics"
	"github.com/elskow/users-api/internal/user"
)

var (
	ErrInvalidPassword      = errors.New("invalid password")
	ErrNotAdmin             = errors.New("not admin or not check password hash")
	ErrAccountDisabled      = errors.New("account is disabled")
	ErrBiometricMismatch    = errors.New("biometric id does not match")
	ErrInvalidIdentityToken = errors.New("invalid identity token")
	ErrInvalidRole          = errors.New("role must be student or teacher")
)

// CodeExchanger completes an external authorization-code flow.
type CodeExchanger interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*federation.Identity, error)
}

type Service struct {
	config   *config.AuthConfig
	log      *zap.Logger
	users    user.Repository
	verifier federation.Verifier
	oauth    CodeExchanger
}

func NewService(config *config.AuthConfig, log *zap.Logger, users user.Repository, verifier federation.Verifier, oauth CodeExchanger) *Service {
	return &Service{
		config:   config,
		log:      log,
		users:    users,
		verifier: verifier,
		oauth:    oauth,
	}
}

// Login checks email and password. Unknown emails yield user.ErrUserNotFound
// and wrong passwords ErrInvalidPassword; callers expose both as distinct codes.
func (s *Service) Login(ctx context.Context, email, password string) (*user.User, error) {
	u, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			metrics.LoginsTotal.WithLabelValues("password", "not_found").Inc()
		}
		return nil, err
	}

	if !s.checkCredential(u, password) {
		metrics.LoginsTotal.WithLabelValues("password", "invalid_password").Inc()
		return nil, ErrInvalidPassword
	}

	metrics.LoginsTotal.WithLabelValues("password", "success").Inc()
	return u, nil
}

func (s *Service) LoginAdmin(ctx context.Context, email, password string) (*user.User, error) {
	u, err := s.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if !u.IsAdmin() {
		return nil, ErrNotAdmin
	}
	return u, nil
}

func (s *Service) LoginBiometric(ctx context.Context, email, biometricID string) (*user.User, error) {
	u, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if u.Status == user.StatusDisabled {
		metrics.LoginsTotal.WithLabelValues("biometric", "disabled").Inc()
		return nil, ErrAccountDisabled
	}
	if u.BiometricID == nil || *u.BiometricID != biometricID {
		metrics.LoginsTotal.WithLabelValues("biometric", "mismatch").Inc()
		return nil, ErrBiometricMismatch
	}

	metrics.LoginsTotal.WithLabelValues("biometric", "success").Inc()
	return u, nil
}

// ReauthenticateAdmin verifies the credentials carried by a privileged
// request. Every failure is reported as ErrNotAdmin; disabled admins also
// match ErrAccountDisabled.
func (s *Service) ReauthenticateAdmin(ctx context.Context, email, password string) (*user.User, error) {
	u, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return nil, ErrNotAdmin
		}
		return nil, err
	}
	if !u.IsAdmin() || !s.checkCredential(u, password) {
		s.log.Warn("admin re-authentication failed", zap.String("email", email))
		return nil, ErrNotAdmin
	}
	if u.Status == user.StatusDisabled {
		s.log.Warn("disabled admin refused", zap.String("email", email))
		return nil, fmt.Errorf("%w: %w", ErrNotAdmin, ErrAccountDisabled)
	}
	return u, nil
}

// ParseRoleHint maps the role requested by a federated sign-up. Empty means
// student; admin is never granted this way.
func ParseRoleHint(hint string) (user.Role, error) {
	if hint == "" {
		return user.RoleStudent, nil
	}
	role, ok := user.ParseRole(hint)
	if !ok || role == user.RoleAdmin {
		return "", ErrInvalidRole
	}
	return role, nil
}

func (s *Service) verifyToken(ctx context.Context, token string) (*federation.Identity, error) {
	identity, err := s.verifier.Verify(ctx, token)
	if err != nil {
		s.log.Warn("identity token rejected", zap.Error(err))
		metrics.LoginsTotal.WithLabelValues("google", "invalid_token").Inc()
		return nil, ErrInvalidIdentityToken
	}
	return identity, nil
}

// SignUpFederated returns the account matching a verified ID token, creating
// an active one with roleHint when none exists.
func (s *Service) SignUpFederated(ctx context.Context, token, roleHint string) (*user.User, bool, error) {
	role, err := ParseRoleHint(roleHint)
	if err != nil {
		return nil, false, err
	}
	identity, err := s.verifyToken(ctx, token)
	if err != nil {
		return nil, false, err
	}
	return s.provisionFederated(ctx, identity, role)
}

// LoginFederated requires an existing, non-disabled account.
func (s *Service) LoginFederated(ctx context.Context, token string) (*user.User, error) {
	identity, err := s.verifyToken(ctx, token)
	if err != nil {
		return nil, err
	}

	u, err := s.users.GetUserByEmail(ctx, identity.Email)
	if err != nil {
		return nil, err
	}
	if u.Status == user.StatusDisabled {
		metrics.LoginsTotal.WithLabelValues("google", "disabled").Inc()
		return nil, ErrAccountDisabled
	}

	metrics.LoginsTotal.WithLabelValues("google", "success").Inc()
	return u, nil
}

func (s *Service) GoogleConsentURL(roleHint string) (string, error) {
	role, err := ParseRoleHint(roleHint)
	if err != nil {
		return "", err
	}
	return s.oauth.AuthCodeURL(string(role)), nil
}

// AuthorizeFederated completes the consent redirect; state carries the role
// chosen before the redirect.
func (s *Service) AuthorizeFederated(ctx context.Context, code, state string) (*user.User, bool, error) {
	role, err := ParseRoleHint(state)
	if err != nil {
		return nil, false, err
	}
	identity, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		s.log.Warn("authorization code exchange failed", zap.Error(err))
		metrics.LoginsTotal.WithLabelValues("google", "invalid_token").Inc()
		return nil, false, ErrInvalidIdentityToken
	}

	u, created, err := s.provisionFederated(ctx, identity, role)
	if err != nil {
		return nil, false, err
	}
	if u.Status == user.StatusDisabled {
		metrics.LoginsTotal.WithLabelValues("google", "disabled").Inc()
		return nil, false, ErrAccountDisabled
	}
	return u, created, nil
}

func (s *Service) provisionFederated(ctx context.Context, identity *federation.Identity, role user.Role) (*user.User, bool, error) {
	existing, err := s.users.GetUserByEmail(ctx, identity.Email)
	if err == nil {
		metrics.LoginsTotal.WithLabelValues("google", "success").Inc()
		return existing, false, nil
	}
	if !errors.Is(err, user.ErrUserNotFound) {
		return nil, false, err
	}

	// Federated accounts carry no usable password.
	u := &user.User{
		Name:         identity.GivenName,
		Surname:      identity.FamilyName,
		Email:        identity.Email,
		Status:       user.StatusActive,
		Role:         role,
		Notification: true,
	}
	// The identity provider has already verified the email.
	u.MarkConfirmed(time.Now())
	if err := s.users.CreateUser(ctx, u); err != nil {
		if errors.Is(err, user.ErrEmailTaken) {
			// Lost a race with a concurrent sign-up for the same email.
			existing, getErr := s.users.GetUserByEmail(ctx, identity.Email)
			if getErr != nil {
				return nil, false, getErr
			}
			return existing, false, nil
		}
		return nil, false, fmt.Errorf("create federated user: %w", err)
	}

	s.log.Info("federated user created", zap.String("email", u.Email), zap.String("role", string(role)))
	metrics.RegistrationsTotal.WithLabelValues("federated").Inc()
	return u, true, nil
}
