package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrEmailTaken   = errors.New("email already registered")
)

type Repository interface {
	CreateUser(ctx context.Context, user *User) error
	GetUserByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	ListUsers(ctx context.Context) ([]User, error)
	ListUsersByRole(ctx context.Context, role Role, status Status) ([]User, error)
	AdminExists(ctx context.Context) (bool, error)
	UpdateFields(ctx context.Context, id uuid.UUID, fields Fields) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error
	// Confirm activates the account and records when its registration was confirmed.
	Confirm(ctx context.Context, id uuid.UUID, at time.Time) error
	UpdatePassword(ctx context.Context, id uuid.UUID, password string) error
	UpdateNotification(ctx context.Context, id uuid.UUID, enabled bool) error
	UpdateBiometricID(ctx context.Context, id uuid.UUID, biometricID string) error
	UpsertLocation(ctx context.Context, location *Location) error
	DeleteUser(ctx context.Context, id uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) CreateUser(ctx context.Context, user *User) error {
	if err := r.db.WithContext(ctx).Omit("Location").Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrEmailTaken
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (r *repository) GetUserByID(ctx context.Context, id uuid.UUID) (*User, error) {
	var user User
	if err := r.db.WithContext(ctx).Preload("Location").Where("id = ?", id).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *repository) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	var user User
	if err := r.db.WithContext(ctx).Preload("Location").Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *repository) ListUsers(ctx context.Context) ([]User, error) {
	var users []User
	if err := r.db.WithContext(ctx).Preload("Location").Order("created_at").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (r *repository) ListUsersByRole(ctx context.Context, role Role, status Status) ([]User, error) {
	var users []User
	err := r.db.WithContext(ctx).
		Preload("Location").
		Where("role = ? AND status = ?", role, status).
		Order("created_at").
		Find(&users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}

func (r *repository) AdminExists(ctx context.Context) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&User{}).Where("role = ?", RoleAdmin).Limit(1).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) UpdateFields(ctx context.Context, id uuid.UUID, fields Fields) error {
	return r.update(ctx, id, map[string]interface{}{
		"name":         fields.Name,
		"surname":      fields.Surname,
		"password":     fields.Password,
		"status":       fields.Status,
		"role":         fields.Role,
		"notification": fields.Notification,
	})
}

func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error {
	return r.update(ctx, id, map[string]interface{}{"status": status})
}

func (r *repository) Confirm(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.update(ctx, id, map[string]interface{}{
		"status":       StatusActive,
		"confirmed_at": at.UTC(),
	})
}

func (r *repository) UpdatePassword(ctx context.Context, id uuid.UUID, password string) error {
	return r.update(ctx, id, map[string]interface{}{"password": password})
}

func (r *repository) UpdateNotification(ctx context.Context, id uuid.UUID, enabled bool) error {
	return r.update(ctx, id, map[string]interface{}{"notification": enabled})
}

func (r *repository) UpdateBiometricID(ctx context.Context, id uuid.UUID, biometricID string) error {
	return r.update(ctx, id, map[string]interface{}{"biometric_id": biometricID})
}

func (r *repository) update(ctx context.Context, id uuid.UUID, values map[string]interface{}) error {
	res := r.db.WithContext(ctx).Model(&User{}).Where("id = ?", id).Updates(values)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// UpsertLocation keeps a single location row per user.
func (r *repository) UpsertLocation(ctx context.Context, location *Location) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"latitude", "longitude"}),
	}).Create(location).Error
}

func (r *repository) DeleteUser(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&User{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}
