package patient

import (
	"errors"
	"sort"
	"sync"
)

// ErrNotFound is returned for lookups of patients that were never admitted or
// have been discharged.
var ErrNotFound = errors.New("patient not found")

// ErrAlreadyAdmitted is returned when an admission reuses an active id.
var ErrAlreadyAdmitted = errors.New("patient already admitted")

// Repository is the in-memory store for active patients. A single coarse
// RWMutex guards the whole set; reads get defensive copies so callers never
// observe a half-applied mutation.
type Repository struct {
	mu       sync.RWMutex
	patients map[string]*Patient
}

func NewRepository() *Repository {
	return &Repository{patients: make(map[string]*Patient)}
}

// Add registers a new patient. The id must not be in the active set.
func (r *Repository) Add(p *Patient) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.patients[p.ID]; ok {
		return ErrAlreadyAdmitted
	}
	r.patients[p.ID] = p.Clone()
	return nil
}

// Get returns a copy of the patient with the given id.
func (r *Repository) Get(id string) (*Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.patients[id]
	if !ok {
		return nil, ErrNotFound
	}
	return p.Clone(), nil
}

// List returns copies of all active patients ordered by id for deterministic
// iteration.
func (r *Repository) List() []*Patient {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Patient, 0, len(r.patients))
	for _, p := range r.patients {
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Update applies fn to the stored patient under the write lock. fn sees the
// live record; it must not retain the pointer.
func (r *Repository) Update(id string, fn func(*Patient)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.patients[id]
	if !ok {
		return ErrNotFound
	}
	fn(p)
	return nil
}

// Remove deletes a patient from the active set (discharge).
func (r *Repository) Remove(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.patients[id]; !ok {
		return ErrNotFound
	}
	delete(r.patients, id)
	return nil
}

// Count returns the number of active patients.
func (r *Repository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.patients)
}
