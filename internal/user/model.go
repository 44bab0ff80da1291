package user

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
	StatusDisabled Status = "disabled"
)

// ParseStatus accepts the "enabled" literal older clients send as an alias of active.
func ParseStatus(s string) (Status, bool) {
	switch Status(s) {
	case StatusActive, "enabled":
		return StatusActive, true
	case StatusInactive:
		return StatusInactive, true
	case StatusDisabled:
		return StatusDisabled, true
	}
	return "", false
}

type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
	RoleAdmin   Role = "admin"
)

func ParseRole(s string) (Role, bool) {
	switch r := Role(s); r {
	case RoleStudent, RoleTeacher, RoleAdmin:
		return r, true
	}
	return "", false
}

type User struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey" json:"uuid"`
	Name         string     `gorm:"not null" json:"name"`
	Surname      string     `gorm:"not null" json:"surname"`
	Password     string     `gorm:"not null" json:"-"`
	Email        string     `gorm:"uniqueIndex;not null" json:"email"`
	Status       Status     `gorm:"type:varchar(16);not null" json:"status"`
	Role         Role       `gorm:"type:varchar(16);not null" json:"role"`
	Notification bool       `gorm:"not null;default:true" json:"notification"`
	BiometricID  *string    `json:"id_biometric"`
	Location     *Location  `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"location"`
	// ConfirmedAt is nil only for self-registered accounts that have not
	// yet consumed a registration pin.
	ConfirmedAt *time.Time `json:"-"`
	CreatedAt   time.Time  `json:"-"`
	UpdatedAt   time.Time  `json:"-"`
}

func (User) TableName() string {
	return "users"
}

func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

func (u *User) Confirmed() bool {
	return u.ConfirmedAt != nil
}

// MarkConfirmed stamps accounts created outside self-registration.
func (u *User) MarkConfirmed(at time.Time) {
	t := at.UTC()
	u.ConfirmedAt = &t
}

type Location struct {
	UserID    uuid.UUID `gorm:"type:uuid;primaryKey" json:"-"`
	Latitude  float64   `gorm:"not null" json:"latitude"`
	Longitude float64   `gorm:"not null" json:"longitude"`
}

func (Location) TableName() string {
	return "user_locations"
}

// Fields holds the mutable profile columns written on re-provisioning.
type Fields struct {
	Name         string
	Surname      string
	Password     string
	Status       Status
	Role         Role
	Notification bool
}
