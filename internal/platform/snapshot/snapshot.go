// Package snapshot periodically captures the four in-memory stores. The
// capture is advisory (debugging, dashboards, warm restarts); it is not a
// durability guarantee and the core never reads it on the hot path.
package snapshot

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vitalflow/vitalflow/internal/domain/audit"
	"github.com/vitalflow/vitalflow/internal/domain/bed"
	"github.com/vitalflow/vitalflow/internal/domain/patient"
	"github.com/vitalflow/vitalflow/internal/domain/staff"
)

// Snapshot is one full capture of hospital state, keyed by entity id on the
// wire.
type Snapshot struct {
	TakenAt  time.Time          `json:"taken_at"`
	Patients []*patient.Patient `json:"patients"`
	Beds     []*bed.Bed         `json:"beds"`
	Staff    []*staff.Staff     `json:"staff"`
	Audit    []audit.Entry      `json:"audit"`
}

// Store persists snapshots somewhere.
type Store interface {
	Save(ctx context.Context, snap *Snapshot) error
	Load(ctx context.Context) (*Snapshot, error)
}

// Snapshotter captures on a fixed interval.
type Snapshotter struct {
	patients *patient.Repository
	pool     *bed.Pool
	staff    *staff.Repository
	audit    *audit.Log
	store    Store
	logger   zerolog.Logger
	interval time.Duration

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

func New(
	patients *patient.Repository,
	pool *bed.Pool,
	staffRepo *staff.Repository,
	auditLog *audit.Log,
	store Store,
	logger zerolog.Logger,
	interval time.Duration,
) *Snapshotter {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Snapshotter{
		patients: patients,
		pool:     pool,
		staff:    staffRepo,
		audit:    auditLog,
		store:    store,
		logger:   logger.With().Str("component", "snapshot").Logger(),
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Capture builds a snapshot from the live stores. Each store is read under
// its own lock; the capture is consistent per store, not across stores.
func (s *Snapshotter) Capture() *Snapshot {
	return &Snapshot{
		TakenAt:  time.Now(),
		Patients: s.patients.List(),
		Beds:     s.pool.List(),
		Staff:    s.staff.List(),
		Audit:    s.audit.Recent(0),
	}
}

// Run captures on the interval until Stop or context cancellation. Save
// errors are logged and the loop continues.
func (s *Snapshotter) Run(ctx context.Context) {
	defer close(s.done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case <-ticker.C:
			if err := s.store.Save(ctx, s.Capture()); err != nil {
				s.logger.Error().Err(err).Msg("snapshot save failed")
			}
		}
	}
}

// Stop ends the loop and takes one final capture.
func (s *Snapshotter) Stop(ctx context.Context) {
	s.stopOnce.Do(func() { close(s.stop) })
	select {
	case <-s.done:
	case <-ctx.Done():
		return
	}
	if err := s.store.Save(ctx, s.Capture()); err != nil {
		s.logger.Error().Err(err).Msg("final snapshot failed")
	}
}
