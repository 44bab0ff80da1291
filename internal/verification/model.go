package verification

import (
	"time"

	"github.com/google/uuid"
)

type Purpose string

const (
	PurposePasswordRecovery Purpose = "password_recovery"
	PurposeRegistration     Purpose = "registration"
)

// Pin rows are never deleted; consumed or expired ones stay as an audit trail.
type Pin struct {
	ID        uint      `gorm:"primaryKey"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index:idx_verification_pins_owner"`
	Code      string    `gorm:"type:char(4);not null"`
	Purpose   Purpose   `gorm:"type:varchar(32);not null;index:idx_verification_pins_owner"`
	Used      bool      `gorm:"not null;default:false;index:idx_verification_pins_owner"`
	CreatedAt time.Time `gorm:"not null"`
}

func (Pin) TableName() string {
	return "verification_pins"
}

// Active reports whether the pin can still be consumed at now.
func (p *Pin) Active(now time.Time, ttl time.Duration) bool {
	return !p.Used && now.Sub(p.CreatedAt) < ttl
}
