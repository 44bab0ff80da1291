package verification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrPinNotFound = errors.New("pin not found")

type Repository interface {
	CreatePin(ctx context.Context, pin *Pin) error
	// FindActivePin returns the newest unused pin created after notBefore.
	FindActivePin(ctx context.Context, userID uuid.UUID, purpose Purpose, notBefore time.Time) (*Pin, error)
	// LatestPin returns the newest pin regardless of state.
	LatestPin(ctx context.Context, userID uuid.UUID, purpose Purpose) (*Pin, error)
	// ConsumePin marks a matching active pin as used in one statement and
	// reports whether a row was consumed.
	ConsumePin(ctx context.Context, userID uuid.UUID, code string, purpose Purpose, notBefore time.Time) (bool, error)
	InvalidateAll(ctx context.Context, userID uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) CreatePin(ctx context.Context, pin *Pin) error {
	if err := r.db.WithContext(ctx).Create(pin).Error; err != nil {
		return fmt.Errorf("create pin: %w", err)
	}
	return nil
}

func (r *repository) FindActivePin(ctx context.Context, userID uuid.UUID, purpose Purpose, notBefore time.Time) (*Pin, error) {
	var pin Pin
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND purpose = ? AND used = ? AND created_at > ?", userID, purpose, false, notBefore).
		Order("created_at DESC").
		First(&pin).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPinNotFound
		}
		return nil, err
	}
	return &pin, nil
}

func (r *repository) LatestPin(ctx context.Context, userID uuid.UUID, purpose Purpose) (*Pin, error) {
	var pin Pin
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND purpose = ?", userID, purpose).
		Order("created_at DESC").
		First(&pin).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPinNotFound
		}
		return nil, err
	}
	return &pin, nil
}

func (r *repository) ConsumePin(ctx context.Context, userID uuid.UUID, code string, purpose Purpose, notBefore time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&Pin{}).
		Where("user_id = ? AND code = ? AND purpose = ? AND used = ? AND created_at > ?", userID, code, purpose, false, notBefore).
		Update("used", true)
	if res.Error != nil {
		return false, fmt.Errorf("consume pin: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) InvalidateAll(ctx context.Context, userID uuid.UUID) error {
	err := r.db.WithContext(ctx).
		Model(&Pin{}).
		Where("user_id = ? AND used = ?", userID, false).
		Update("used", true).Error
	if err != nil {
		return fmt.Errorf("invalidate pins: %w", err)
	}
	return nil
}
