package staff

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	// ErrNotFound is returned for unknown staff ids.
	ErrNotFound = errors.New("staff member not found")
	// ErrCapacityExhausted is returned when no caregiver of the requested
	// role can take another patient.
	ErrCapacityExhausted = errors.New("caregiver capacity exhausted")
)

// Repository is the in-memory staff store.
type Repository struct {
	mu    sync.RWMutex
	staff map[string]*Staff
}

func NewRepository() *Repository {
	return &Repository{staff: make(map[string]*Staff)}
}

// Add registers a caregiver. Duplicate ids are rejected.
func (r *Repository) Add(s *Staff) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.staff[s.ID]; ok {
		return fmt.Errorf("staff %s already registered", s.ID)
	}
	if s.Status == "" {
		s.Status = StatusAvailable
	}
	r.staff[s.ID] = s.Clone()
	return nil
}

// Get returns a copy of the caregiver with the given id.
func (r *Repository) Get(id string) (*Staff, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.staff[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s.Clone(), nil
}

// List returns copies of all caregivers ordered by id.
func (r *Repository) List() []*Staff {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sortedLocked(func(*Staff) bool { return true })
}

// ListByRole returns caregivers of one role ordered by id.
func (r *Repository) ListByRole(role Role) []*Staff {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sortedLocked(func(s *Staff) bool { return s.Role == role })
}

func (r *Repository) sortedLocked(keep func(*Staff) bool) []*Staff {
	out := make([]*Staff, 0, len(r.staff))
	for _, s := range r.staff {
		if keep(s) {
			out = append(out, s.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Update applies fn to the caregiver under the write lock.
func (r *Repository) Update(id string, fn func(*Staff)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.staff[id]
	if !ok {
		return ErrNotFound
	}
	fn(s)
	return nil
}

// Remove deletes a caregiver record.
func (r *Repository) Remove(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.staff[id]; !ok {
		return ErrNotFound
	}
	delete(r.staff, id)
	return nil
}

// Count returns the number of registered caregivers.
func (r *Repository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.staff)
}
