// Package audit keeps the append-only decision trail. Entries are the sole
// source of truth for why the system did anything; they are never mutated or
// deleted.
package audit

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Entry is one immutable audit record.
type Entry struct {
	ID        uuid.UUID      `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Action    string         `json:"action"`
	Reason    string         `json:"reason"`
	Details   map[string]any `json:"details,omitempty"`
}

// Log is the in-memory append-only audit log.
type Log struct {
	mu      sync.RWMutex
	entries []Entry
	logger  zerolog.Logger
	now     func() time.Time
}

func NewLog(logger zerolog.Logger) *Log {
	return &Log{logger: logger, now: time.Now}
}

// Record appends an entry and mirrors it to the structured logger.
func (l *Log) Record(action, reason string, details map[string]any) Entry {
	e := Entry{
		ID:        uuid.New(),
		Timestamp: l.now(),
		Action:    action,
		Reason:    reason,
		Details:   details,
	}

	l.mu.Lock()
	l.entries = append(l.entries, e)
	l.mu.Unlock()

	l.logger.Info().
		Str("audit_id", e.ID.String()).
		Str("action", action).
		Fields(map[string]any{"details": details}).
		Msg(reason)

	return e
}

// Recent returns up to limit entries, newest last. limit <= 0 returns all.
func (l *Log) Recent(limit int) []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	n := len(l.entries)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]Entry, limit)
	copy(out, l.entries[n-limit:])
	return out
}

// Len returns the number of entries recorded so far.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}
