package bed

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	// ErrNotFound is returned for unknown bed ids.
	ErrNotFound = errors.New("bed not found")
	// ErrAlreadyOccupied is returned when assigning into a bed that holds a
	// different patient.
	ErrAlreadyOccupied = errors.New("bed already occupied")
	// ErrAlreadyAssigned is returned when a patient is already placed where
	// the caller wants them; the conflict is idempotent.
	ErrAlreadyAssigned = errors.New("patient already assigned to bed")
	// ErrCapacityExhausted is returned when no bed of any acceptable class is
	// free and no swap is possible.
	ErrCapacityExhausted = errors.New("bed capacity exhausted")
	// ErrNoSwapCandidate is returned when every occupant is too unstable (or
	// too critical) to evict.
	ErrNoSwapCandidate = errors.New("no stable occupant available for swap")
)

// Pool is the typed bed inventory. One RWMutex guards the whole pool; the
// multi-step swap mutation runs entirely under the write lock so no reader
// ever observes a partial swap.
type Pool struct {
	mu   sync.RWMutex
	beds map[string]*Bed
}

func NewPool() *Pool {
	return &Pool{beds: make(map[string]*Bed)}
}

// Add registers a bed. Duplicate ids are rejected.
func (p *Pool) Add(b *Bed) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.beds[b.ID]; ok {
		return fmt.Errorf("bed %s already registered", b.ID)
	}
	p.beds[b.ID] = b.Clone()
	return nil
}

// Get returns a copy of the bed with the given id.
func (p *Pool) Get(id string) (*Bed, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	b, ok := p.beds[id]
	if !ok {
		return nil, ErrNotFound
	}
	return b.Clone(), nil
}

// List returns copies of all beds ordered by id.
func (p *Pool) List() []*Bed {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.sortedLocked(func(*Bed) bool { return true })
}

// Available returns free beds, optionally filtered by class (empty Class
// matches all). Results are ordered by id for deterministic placement.
func (p *Pool) Available(class Class) []*Bed {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.sortedLocked(func(b *Bed) bool {
		return !b.Occupied && (class == "" || b.Class == class)
	})
}

// OccupiedByClass returns occupied beds of the given class ordered by id.
func (p *Pool) OccupiedByClass(class Class) []*Bed {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.sortedLocked(func(b *Bed) bool {
		return b.Occupied && b.Class == class
	})
}

func (p *Pool) sortedLocked(keep func(*Bed) bool) []*Bed {
	out := make([]*Bed, 0, len(p.beds))
	for _, b := range p.beds {
		if keep(b) {
			out = append(out, b.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Assign places a patient into a bed. Assigning a patient to the bed they
// already hold is an idempotent conflict; assigning into someone else's bed
// fails. If the patient holds a different bed the pool does NOT release it;
// callers move patients with Move or Swap.
func (p *Pool) Assign(bedID, patientID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.assignLocked(bedID, patientID)
}

func (p *Pool) assignLocked(bedID, patientID string) error {
	b, ok := p.beds[bedID]
	if !ok {
		return ErrNotFound
	}
	if b.Occupied {
		if b.PatientID == patientID {
			return ErrAlreadyAssigned
		}
		return ErrAlreadyOccupied
	}
	b.Occupied = true
	b.PatientID = patientID
	return nil
}

// Release frees a bed and returns the id of the patient who held it. This is
// the only path by which a bed becomes free.
func (p *Pool) Release(bedID string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.releaseLocked(bedID)
}

func (p *Pool) releaseLocked(bedID string) (string, error) {
	b, ok := p.beds[bedID]
	if !ok {
		return "", ErrNotFound
	}
	prev := b.PatientID
	b.Occupied = false
	b.PatientID = ""
	return prev, nil
}

// Swap performs the full preemptive reallocation on the bed side under one
// write lock: the evicted occupant leaves freedBedID for downgradeBedID and
// the incoming patient takes freedBedID. Either all three steps apply or the
// pool is left untouched.
func (p *Pool) Swap(freedBedID, downgradeBedID, evictedID, incomingID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	freed, ok := p.beds[freedBedID]
	if !ok {
		return ErrNotFound
	}
	if !freed.Occupied || freed.PatientID != evictedID {
		return ErrNotFound
	}
	down, ok := p.beds[downgradeBedID]
	if !ok {
		return ErrNotFound
	}
	if down.Occupied {
		return ErrAlreadyOccupied
	}

	if _, err := p.releaseLocked(freedBedID); err != nil {
		return err
	}
	if err := p.assignLocked(downgradeBedID, evictedID); err != nil {
		// Roll back the release; the checks above make this unreachable but
		// the pool must never stay half-swapped.
		_ = p.assignLocked(freedBedID, evictedID)
		return err
	}
	if err := p.assignLocked(freedBedID, incomingID); err != nil {
		_, _ = p.releaseLocked(downgradeBedID)
		_ = p.assignLocked(freedBedID, evictedID)
		return err
	}
	return nil
}

// OccupancyByClass returns per-class occupancy stats.
func (p *Pool) OccupancyByClass() map[Class]Occupancy {
	p.mu.RLock()
	defer p.mu.RUnlock()
	stats := make(map[Class]Occupancy, 3)
	for _, class := range []Class{ClassICU, ClassEmergency, ClassGeneral} {
		var occ Occupancy
		for _, b := range p.beds {
			if b.Class != class {
				continue
			}
			occ.Total++
			if b.Occupied {
				occ.Occupied++
			}
		}
		occ.Available = occ.Total - occ.Occupied
		stats[class] = occ
	}
	return stats
}
