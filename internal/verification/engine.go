package verification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/elskow/users-api/internal/config"
	"github.com/elskow/users-api/internal/metrics"
	"github.com/elskow/users-api/internal/user"
)

var (
	ErrPinAlreadyActive   = errors.New("an active pin already exists")
	ErrInvalidPin         = errors.New("invalid pin")
	ErrNotificationFailed = errors.New("pin notification failed")
	ErrAlreadyConfirmed   = errors.New("registration already confirmed")
)

const DefaultTTL = 10 * time.Minute

// Notifier delivers a freshly issued code to its recipient.
type Notifier interface {
	SendPin(ctx context.Context, recipient, code string, purpose Purpose) error
}

type Engine struct {
	log      *zap.Logger
	users    user.Repository
	pins     Repository
	notifier Notifier
	ttl      time.Duration
	locks    *keyedMutex

	now      func() time.Time
	generate func() (string, error)
}

func NewEngine(cfg *config.PinConfig, log *zap.Logger, users user.Repository, pins Repository, notifier Notifier) *Engine {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Engine{
		log:      log,
		users:    users,
		pins:     pins,
		notifier: notifier,
		ttl:      ttl,
		locks:    newKeyedMutex(),
		now:      time.Now,
		generate: GenerateCode,
	}
}

func (e *Engine) TTL() time.Duration {
	return e.ttl
}

func (e *Engine) cutoff() time.Time {
	return e.now().Add(-e.ttl)
}

// Initiate issues a new pin for the user owning email. Concurrent calls for
// the same user and purpose are serialized so at most one pin is active.
//
// Registration pins are never issued to confirmed accounts. When delivery
// fails the pin is kept and returned together with ErrNotificationFailed.
func (e *Engine) Initiate(ctx context.Context, email string, purpose Purpose) (*Pin, error) {
	u, err := e.users.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if purpose == PurposeRegistration && u.Confirmed() {
		metrics.PinsIssuedTotal.WithLabelValues(string(purpose), "already_confirmed").Inc()
		return nil, ErrAlreadyConfirmed
	}

	unlock := e.locks.Lock(u.ID.String() + "/" + string(purpose))
	defer unlock()

	if _, err := e.pins.FindActivePin(ctx, u.ID, purpose, e.cutoff()); err == nil {
		metrics.PinsIssuedTotal.WithLabelValues(string(purpose), "already_active").Inc()
		return nil, ErrPinAlreadyActive
	} else if !errors.Is(err, ErrPinNotFound) {
		return nil, fmt.Errorf("lookup active pin: %w", err)
	}

	code, err := e.generate()
	if err != nil {
		return nil, err
	}

	pin := &Pin{
		UserID:    u.ID,
		Code:      code,
		Purpose:   purpose,
		CreatedAt: e.now(),
	}
	if err := e.pins.CreatePin(ctx, pin); err != nil {
		return nil, err
	}

	if err := e.notifier.SendPin(ctx, u.Email, code, purpose); err != nil {
		e.log.Error("failed to deliver pin",
			zap.String("email", u.Email),
			zap.String("purpose", string(purpose)),
			zap.Error(err),
		)
		metrics.PinsIssuedTotal.WithLabelValues(string(purpose), "notification_failed").Inc()
		return pin, fmt.Errorf("%w: %v", ErrNotificationFailed, err)
	}

	metrics.PinsIssuedTotal.WithLabelValues(string(purpose), "issued").Inc()
	e.log.Info("pin issued", zap.String("email", u.Email), zap.String("purpose", string(purpose)))
	return pin, nil
}

// Validate consumes the pin matching code. Expired, used and mismatched
// codes are all reported as ErrInvalidPin.
func (e *Engine) Validate(ctx context.Context, email, code string, purpose Purpose) (*user.User, error) {
	u, err := e.users.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	if !ValidCode(code) {
		metrics.PinValidationsTotal.WithLabelValues(string(purpose), "invalid").Inc()
		return nil, ErrInvalidPin
	}

	ok, err := e.pins.ConsumePin(ctx, u.ID, code, purpose, e.cutoff())
	if err != nil {
		return nil, err
	}
	if !ok {
		metrics.PinValidationsTotal.WithLabelValues(string(purpose), "invalid").Inc()
		return nil, ErrInvalidPin
	}

	metrics.PinValidationsTotal.WithLabelValues(string(purpose), "valid").Inc()
	return u, nil
}

func (e *Engine) InvalidateAll(ctx context.Context, userID uuid.UUID) error {
	return e.pins.InvalidateAll(ctx, userID)
}

// PendingRegistration reports whether the user holds an unused, unexpired
// registration pin.
func (e *Engine) PendingRegistration(ctx context.Context, userID uuid.UUID) (bool, error) {
	_, err := e.pins.FindActivePin(ctx, userID, PurposeRegistration, e.cutoff())
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrPinNotFound):
		return false, nil
	default:
		return false, err
	}
}

// ExpiredRegistration reports whether the newest registration pin of the
// user was never used and has run past its validity window.
func (e *Engine) ExpiredRegistration(ctx context.Context, userID uuid.UUID) (bool, error) {
	pin, err := e.pins.LatestPin(ctx, userID, PurposeRegistration)
	if err != nil {
		if errors.Is(err, ErrPinNotFound) {
			return false, nil
		}
		return false, err
	}
	return !pin.Used && !pin.Active(e.now(), e.ttl), nil
}
