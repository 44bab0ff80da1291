package user

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository is a map-backed Repository used by tests across packages.
type MemoryRepository struct {
	users        map[uuid.UUID]*User
	usersByEmail map[string]*User
	failUpdates  error
	mu           sync.RWMutex
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		users:        make(map[uuid.UUID]*User),
		usersByEmail: make(map[string]*User),
	}
}

// FailUpdates makes subsequent update calls return err (nil restores normal behavior).
func (r *MemoryRepository) FailUpdates(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failUpdates = err
}

func (r *MemoryRepository) CreateUser(_ context.Context, user *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.usersByEmail[user.Email]; exists {
		return ErrEmailTaken
	}

	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	stored := cloneUser(user)
	r.users[stored.ID] = stored
	r.usersByEmail[stored.Email] = stored
	return nil
}

func (r *MemoryRepository) GetUserByID(_ context.Context, id uuid.UUID) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, exists := r.users[id]
	if !exists {
		return nil, ErrUserNotFound
	}
	return cloneUser(user), nil
}

func (r *MemoryRepository) GetUserByEmail(_ context.Context, email string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, exists := r.usersByEmail[email]
	if !exists {
		return nil, ErrUserNotFound
	}
	return cloneUser(user), nil
}

func (r *MemoryRepository) ListUsers(_ context.Context) ([]User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.sorted(func(*User) bool { return true }), nil
}

func (r *MemoryRepository) ListUsersByRole(_ context.Context, role Role, status Status) ([]User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.sorted(func(u *User) bool { return u.Role == role && u.Status == status }), nil
}

func (r *MemoryRepository) AdminExists(_ context.Context) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if u.Role == RoleAdmin {
			return true, nil
		}
	}
	return false, nil
}

func (r *MemoryRepository) UpdateFields(_ context.Context, id uuid.UUID, fields Fields) error {
	return r.mutate(id, func(u *User) {
		u.Name = fields.Name
		u.Surname = fields.Surname
		u.Password = fields.Password
		u.Status = fields.Status
		u.Role = fields.Role
		u.Notification = fields.Notification
	})
}

func (r *MemoryRepository) UpdateStatus(_ context.Context, id uuid.UUID, status Status) error {
	return r.mutate(id, func(u *User) { u.Status = status })
}

func (r *MemoryRepository) Confirm(_ context.Context, id uuid.UUID, at time.Time) error {
	return r.mutate(id, func(u *User) {
		u.Status = StatusActive
		u.MarkConfirmed(at)
	})
}

func (r *MemoryRepository) UpdatePassword(_ context.Context, id uuid.UUID, password string) error {
	return r.mutate(id, func(u *User) { u.Password = password })
}

func (r *MemoryRepository) UpdateNotification(_ context.Context, id uuid.UUID, enabled bool) error {
	return r.mutate(id, func(u *User) { u.Notification = enabled })
}

func (r *MemoryRepository) UpdateBiometricID(_ context.Context, id uuid.UUID, biometricID string) error {
	return r.mutate(id, func(u *User) { u.BiometricID = &biometricID })
}

func (r *MemoryRepository) UpsertLocation(_ context.Context, location *Location) error {
	return r.mutate(location.UserID, func(u *User) {
		loc := *location
		u.Location = &loc
	})
}

func (r *MemoryRepository) DeleteUser(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, exists := r.users[id]
	if !exists {
		return ErrUserNotFound
	}
	delete(r.users, id)
	delete(r.usersByEmail, user.Email)
	return nil
}

func (r *MemoryRepository) mutate(id uuid.UUID, fn func(*User)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.failUpdates != nil {
		return r.failUpdates
	}
	user, exists := r.users[id]
	if !exists {
		return ErrUserNotFound
	}
	fn(user)
	user.UpdatedAt = time.Now()
	return nil
}

func (r *MemoryRepository) sorted(keep func(*User) bool) []User {
	users := make([]User, 0, len(r.users))
	for _, u := range r.users {
		if keep(u) {
			users = append(users, *cloneUser(u))
		}
	}
	sort.Slice(users, func(i, j int) bool {
		return users[i].CreatedAt.Before(users[j].CreatedAt)
	})
	return users
}

// Clone the user to prevent external modifications
func cloneUser(u *User) *User {
	c := *u
	if u.Location != nil {
		loc := *u.Location
		c.Location = &loc
	}
	if u.BiometricID != nil {
		id := *u.BiometricID
		c.BiometricID = &id
	}
	if u.ConfirmedAt != nil {
		at := *u.ConfirmedAt
		c.ConfirmedAt = &at
	}
	return &c
}
