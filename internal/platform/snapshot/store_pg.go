package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore keeps the latest snapshot in a single-row jsonb table. Older rows
// are overwritten; history lives in the audit log, not here.
type PGStore struct {
	pool *pgxpool.Pool
}

func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// Migrate creates the snapshot table if it does not exist.
func (s *PGStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS hospital_snapshot (
			id       smallint PRIMARY KEY DEFAULT 1 CHECK (id = 1),
			taken_at timestamptz NOT NULL,
			state    jsonb NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("migrate snapshot table: %w", err)
	}
	return nil
}

func (s *PGStore) Save(ctx context.Context, snap *Snapshot) error {
	state, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO hospital_snapshot (id, taken_at, state)
		VALUES (1, $1, $2)
		ON CONFLICT (id) DO UPDATE SET taken_at = EXCLUDED.taken_at, state = EXCLUDED.state`,
		snap.TakenAt, state)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

func (s *PGStore) Load(ctx context.Context) (*Snapshot, error) {
	var state []byte
	err := s.pool.QueryRow(ctx,
		`SELECT state FROM hospital_snapshot WHERE id = 1`).Scan(&state)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoSnapshot
		}
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(state, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &snap, nil
}
