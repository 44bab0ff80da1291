package verification

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository keeps pins in insertion order; tests may backdate them
// through Backdate.
type MemoryRepository struct {
	pins   []*Pin
	nextID uint
	mu     sync.Mutex
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func (r *MemoryRepository) CreatePin(_ context.Context, pin *Pin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	pin.ID = r.nextID
	if pin.CreatedAt.IsZero() {
		pin.CreatedAt = time.Now()
	}
	stored := *pin
	r.pins = append(r.pins, &stored)
	return nil
}

func (r *MemoryRepository) FindActivePin(_ context.Context, userID uuid.UUID, purpose Purpose, notBefore time.Time) (*Pin, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := len(r.pins) - 1; i >= 0; i-- {
		p := r.pins[i]
		if p.UserID == userID && p.Purpose == purpose && !p.Used && p.CreatedAt.After(notBefore) {
			found := *p
			return &found, nil
		}
	}
	return nil, ErrPinNotFound
}

func (r *MemoryRepository) LatestPin(_ context.Context, userID uuid.UUID, purpose Purpose) (*Pin, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := len(r.pins) - 1; i >= 0; i-- {
		p := r.pins[i]
		if p.UserID == userID && p.Purpose == purpose {
			found := *p
			return &found, nil
		}
	}
	return nil, ErrPinNotFound
}

func (r *MemoryRepository) ConsumePin(_ context.Context, userID uuid.UUID, code string, purpose Purpose, notBefore time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	consumed := false
	for _, p := range r.pins {
		if p.UserID == userID && p.Code == code && p.Purpose == purpose && !p.Used && p.CreatedAt.After(notBefore) {
			p.Used = true
			consumed = true
		}
	}
	return consumed, nil
}

func (r *MemoryRepository) InvalidateAll(_ context.Context, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, p := range r.pins {
		if p.UserID == userID {
			p.Used = true
		}
	}
	return nil
}

// Backdate shifts the creation time of every pin owned by userID.
func (r *MemoryRepository) Backdate(userID uuid.UUID, by time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, p := range r.pins {
		if p.UserID == userID {
			p.CreatedAt = p.CreatedAt.Add(-by)
		}
	}
}

// Pins returns a snapshot of every stored pin.
func (r *MemoryRepository) Pins() []Pin {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Pin, 0, len(r.pins))
	for _, p := range r.pins {
		out = append(out, *p)
	}
	return out
}
