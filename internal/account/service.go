package account

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/elskow/users-api/internal/metrics"
	"github.com/elskow/users-api/internal/user"
	"github.com/elskow/users-api/internal/verification"
)

var (
	ErrAdminSelfRegistration = errors.New("admin accounts cannot be self-registered")
	ErrTargetDisabled        = errors.New("disabled accounts cannot be toggled")
)

// ValidationError reports a field-level input problem.
type ValidationError struct {
	Detail string
}

func (e *ValidationError) Error() string {
	return e.Detail
}

func invalid(format string, args ...interface{}) error {
	return &ValidationError{Detail: fmt.Sprintf(format, args...)}
}

// Verifier issues and consumes verification pins.
type Verifier interface {
	Initiate(ctx context.Context, email string, purpose verification.Purpose) (*verification.Pin, error)
	Validate(ctx context.Context, email, code string, purpose verification.Purpose) (*user.User, error)
	InvalidateAll(ctx context.Context, userID uuid.UUID) error
	PendingRegistration(ctx context.Context, userID uuid.UUID) (bool, error)
	ExpiredRegistration(ctx context.Context, userID uuid.UUID) (bool, error)
}

// ReauthAuth re-authenticates the admin credentials carried in the body of
// privileged requests.
type ReauthAuth interface {
	ReauthenticateAdmin(ctx context.Context, email, password string) (*user.User, error)
}

// PasswordEncoder encodes a password for storage under a role.
type PasswordEncoder interface {
	StoredPassword(role user.Role, password string) (string, error)
}

type Service struct {
	log       *zap.Logger
	users     user.Repository
	verifier  Verifier
	reauth    ReauthAuth
	passwords PasswordEncoder
}

func NewService(log *zap.Logger, users user.Repository, verifier Verifier, reauth ReauthAuth, passwords PasswordEncoder) *Service {
	return &Service{
		log:       log,
		users:     users,
		verifier:  verifier,
		reauth:    reauth,
		passwords: passwords,
	}
}

// CreateOutcome tells the caller which registration path was taken.
type CreateOutcome int

const (
	// Created is a brand new account.
	Created CreateOutcome = iota
	// ResumedPending updated an account still holding an active
	// registration pin; the client should finish that verification.
	ResumedPending
	// Reprovisioned overwrote an account whose registration pin expired.
	Reprovisioned
)

// Registration is a self-service sign-up request. Status and Role hold the
// raw values sent by the client.
type Registration struct {
	Name         string
	Surname      string
	Password     string
	Email        string
	Status       string
	Role         string
	Notification *bool
}

func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

func (s *Service) CreateUser(ctx context.Context, reg Registration) (*user.User, CreateOutcome, error) {
	if reg.Role == string(user.RoleAdmin) {
		metrics.RegistrationsTotal.WithLabelValues("forbidden").Inc()
		return nil, Created, ErrAdminSelfRegistration
	}
	if !validEmail(reg.Email) {
		return nil, Created, invalid("Invalid email: %s", reg.Email)
	}
	role, ok := user.ParseRole(reg.Role)
	if !ok {
		return nil, Created, invalid("Invalid role: %s", reg.Role)
	}
	status, ok := user.ParseStatus(reg.Status)
	if !ok {
		return nil, Created, invalid("Invalid status: %s", reg.Status)
	}

	password, err := s.passwords.StoredPassword(role, reg.Password)
	if err != nil {
		return nil, Created, fmt.Errorf("encode password: %w", err)
	}

	fields := user.Fields{
		Name:         reg.Name,
		Surname:      reg.Surname,
		Password:     password,
		Status:       status,
		Role:         role,
		Notification: reg.Notification == nil || *reg.Notification,
	}

	existing, err := s.users.GetUserByEmail(ctx, reg.Email)
	switch {
	case errors.Is(err, user.ErrUserNotFound):
		return s.insert(ctx, reg.Email, fields)
	case err != nil:
		return nil, Created, err
	}

	// Only self-registrations still awaiting confirmation may be overwritten.
	if existing.Confirmed() || existing.IsAdmin() {
		metrics.RegistrationsTotal.WithLabelValues("conflict").Inc()
		return nil, Created, user.ErrEmailTaken
	}

	pending, err := s.verifier.PendingRegistration(ctx, existing.ID)
	if err != nil {
		return nil, Created, err
	}
	if pending {
		u, err := s.reprovision(ctx, existing.ID, fields)
		if err != nil {
			return nil, Created, err
		}
		metrics.RegistrationsTotal.WithLabelValues("resumed").Inc()
		return u, ResumedPending, nil
	}

	expired, err := s.verifier.ExpiredRegistration(ctx, existing.ID)
	if err != nil {
		return nil, Created, err
	}
	if expired {
		u, err := s.reprovision(ctx, existing.ID, fields)
		if err != nil {
			return nil, Created, err
		}
		metrics.RegistrationsTotal.WithLabelValues("reprovisioned").Inc()
		return u, Reprovisioned, nil
	}

	metrics.RegistrationsTotal.WithLabelValues("conflict").Inc()
	return nil, Created, user.ErrEmailTaken
}

func (s *Service) insert(ctx context.Context, email string, fields user.Fields) (*user.User, CreateOutcome, error) {
	u := &user.User{
		Name:         fields.Name,
		Surname:      fields.Surname,
		Password:     fields.Password,
		Email:        email,
		Status:       fields.Status,
		Role:         fields.Role,
		Notification: fields.Notification,
	}
	if err := s.users.CreateUser(ctx, u); err != nil {
		if errors.Is(err, user.ErrEmailTaken) {
			metrics.RegistrationsTotal.WithLabelValues("conflict").Inc()
		}
		return nil, Created, err
	}

	s.log.Info("user created", zap.String("email", email), zap.String("role", string(fields.Role)))
	metrics.RegistrationsTotal.WithLabelValues("created").Inc()
	return u, Created, nil
}

func (s *Service) reprovision(ctx context.Context, id uuid.UUID, fields user.Fields) (*user.User, error) {
	if err := s.users.UpdateFields(ctx, id, fields); err != nil {
		return nil, err
	}
	return s.users.GetUserByID(ctx, id)
}

// AdminCredentials are the re-authentication fields of privileged requests.
type AdminCredentials struct {
	Email    string
	Password string
}

type NewAdmin struct {
	Name     string
	Surname  string
	Email    string
	Password string
}

// CreateAdmin creates an active admin account on behalf of an existing admin.
func (s *Service) CreateAdmin(ctx context.Context, creds AdminCredentials, in NewAdmin) (*user.User, error) {
	requestor, err := s.reauth.ReauthenticateAdmin(ctx, creds.Email, creds.Password)
	if err != nil {
		return nil, err
	}
	if !validEmail(in.Email) {
		return nil, invalid("Invalid email: %s", in.Email)
	}

	password, err := s.passwords.StoredPassword(user.RoleAdmin, in.Password)
	if err != nil {
		return nil, fmt.Errorf("encode password: %w", err)
	}

	admin := &user.User{
		Name:         in.Name,
		Surname:      in.Surname,
		Email:        in.Email,
		Password:     password,
		Status:       user.StatusActive,
		Role:         user.RoleAdmin,
		Notification: true,
	}
	admin.MarkConfirmed(time.Now())
	if err := s.users.CreateUser(ctx, admin); err != nil {
		return nil, err
	}

	s.log.Info("admin created", zap.String("email", admin.Email), zap.String("created_by", requestor.Email))
	return admin, nil
}

// ChangeStatus flips the target between active and inactive. Disabled
// accounts are left untouched.
func (s *Service) ChangeStatus(ctx context.Context, creds AdminCredentials, targetID uuid.UUID) (*user.User, error) {
	requestor, err := s.reauth.ReauthenticateAdmin(ctx, creds.Email, creds.Password)
	if err != nil {
		return nil, err
	}

	target, err := s.users.GetUserByID(ctx, targetID)
	if err != nil {
		return nil, err
	}

	if target.Status == user.StatusDisabled {
		return nil, ErrTargetDisabled
	}

	next := user.StatusActive
	if target.Status == user.StatusActive {
		next = user.StatusInactive
	}
	if err := s.users.UpdateStatus(ctx, target.ID, next); err != nil {
		return nil, fmt.Errorf("update status: %w", err)
	}
	target.Status = next

	s.log.Info("user status changed",
		zap.String("email", target.Email),
		zap.String("status", string(next)),
		zap.String("changed_by", requestor.Email),
	)
	return target, nil
}

func (s *Service) SetLocation(ctx context.Context, id uuid.UUID, latitude, longitude *float64) (*user.Location, error) {
	if latitude == nil && longitude == nil {
		return nil, invalid("Location is required")
	}
	if latitude == nil || *latitude < -90 || *latitude > 90 {
		return nil, invalid("Invalid latitude")
	}
	if longitude == nil || *longitude < -180 || *longitude > 180 {
		return nil, invalid("Invalid longitude")
	}

	if _, err := s.users.GetUserByID(ctx, id); err != nil {
		return nil, err
	}

	loc := &user.Location{UserID: id, Latitude: *latitude, Longitude: *longitude}
	if err := s.users.UpsertLocation(ctx, loc); err != nil {
		return nil, fmt.Errorf("upsert location: %w", err)
	}
	return loc, nil
}

func (s *Service) UpdateNotification(ctx context.Context, id uuid.UUID, enabled bool) error {
	return s.users.UpdateNotification(ctx, id, enabled)
}

func (s *Service) UpdateBiometricID(ctx context.Context, id uuid.UUID, biometricID string) error {
	if biometricID == "" {
		return invalid("Missing fields: id_biometric")
	}
	if _, err := s.users.GetUserByID(ctx, id); err != nil {
		return err
	}
	if err := s.users.UpdateBiometricID(ctx, id, biometricID); err != nil {
		return fmt.Errorf("update biometric id: %w", err)
	}
	return nil
}

func (s *Service) InitiatePasswordRecovery(ctx context.Context, email string) error {
	_, err := s.verifier.Initiate(ctx, email, verification.PurposePasswordRecovery)
	return err
}

func (s *Service) ValidateRecoveryPin(ctx context.Context, email, code string) error {
	if !verification.ValidCode(code) {
		return invalid("PIN must be 4 digits")
	}
	_, err := s.verifier.Validate(ctx, email, code, verification.PurposePasswordRecovery)
	return err
}

// UpdatePassword stores a new password and retires every outstanding pin.
func (s *Service) UpdatePassword(ctx context.Context, email, password string) error {
	if password == "" {
		return invalid("Missing fields: password")
	}
	u, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return err
	}

	stored, err := s.passwords.StoredPassword(u.Role, password)
	if err != nil {
		return fmt.Errorf("encode password: %w", err)
	}
	if err := s.users.UpdatePassword(ctx, u.ID, stored); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if err := s.verifier.InvalidateAll(ctx, u.ID); err != nil {
		return fmt.Errorf("invalidate pins: %w", err)
	}

	s.log.Info("password updated", zap.String("email", email))
	return nil
}

func (s *Service) InitiateRegistrationConfirmation(ctx context.Context, email string) error {
	_, err := s.verifier.Initiate(ctx, email, verification.PurposeRegistration)
	return err
}

// ValidateRegistrationPin consumes the registration pin and activates the account.
func (s *Service) ValidateRegistrationPin(ctx context.Context, email, code string) (*user.User, error) {
	if !verification.ValidCode(code) {
		return nil, invalid("PIN must be 4 digits")
	}
	u, err := s.verifier.Validate(ctx, email, code, verification.PurposeRegistration)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	if err := s.users.Confirm(ctx, u.ID, now); err != nil {
		return nil, fmt.Errorf("confirm user: %w", err)
	}
	u.Status = user.StatusActive
	u.MarkConfirmed(now)
	s.log.Info("registration confirmed", zap.String("email", u.Email))
	return u, nil
}

func (s *Service) ListUsers(ctx context.Context) ([]user.User, error) {
	return s.users.ListUsers(ctx)
}

func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*user.User, error) {
	return s.users.GetUserByID(ctx, id)
}

func (s *Service) DeleteUser(ctx context.Context, id uuid.UUID) error {
	return s.users.DeleteUser(ctx, id)
}

func (s *Service) ListActiveTeachers(ctx context.Context) ([]user.User, error) {
	return s.users.ListUsersByRole(ctx, user.RoleTeacher, user.StatusActive)
}
