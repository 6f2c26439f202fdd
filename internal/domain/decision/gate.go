package decision

import (
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Gate is the pending-approval queue. Decisions parked here stay pending
// until explicitly approved or rejected; there is no timeout.
type Gate struct {
	mu      sync.RWMutex
	pending map[uuid.UUID]*Decision
}

func NewGate() *Gate {
	return &Gate{pending: make(map[uuid.UUID]*Decision)}
}

// Enqueue parks a decision. The decision must transition to
// PendingApproval; terminal decisions are refused.
func (g *Gate) Enqueue(d *Decision) error {
	if err := d.MarkPending(); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.pending[d.ID] = d
	return nil
}

// Take removes and returns the pending decision with the given id. The
// caller owns the returned decision's next transition.
func (g *Gate) Take(id uuid.UUID) (*Decision, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	d, ok := g.pending[id]
	if !ok {
		return nil, ErrNotFound
	}
	delete(g.pending, id)
	return d, nil
}

// List returns copies of all pending decisions, severity first, then
// creation time.
func (g *Gate) List() []*Decision {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*Decision, 0, len(g.pending))
	for _, d := range g.pending {
		out = append(out, d.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Severity.Rank() != out[j].Severity.Rank() {
			return out[i].Severity.Rank() < out[j].Severity.Rank()
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Len returns the number of pending decisions.
func (g *Gate) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.pending)
}
