package audit

import (
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newLog() *Log {
	return NewLog(zerolog.New(io.Discard))
}

func TestRecordAssignsIdentityAndTimestamp(t *testing.T) {
	l := newLog()
	fixed := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return fixed }

	e := l.Record("PATIENT_ADMITTED", "admitted P1", map[string]any{"patient_id": "P1"})
	if e.ID.String() == "00000000-0000-0000-0000-000000000000" {
		t.Error("entry has zero id")
	}
	if !e.Timestamp.Equal(fixed) {
		t.Errorf("timestamp = %s, want %s", e.Timestamp, fixed)
	}
	if l.Len() != 1 {
		t.Errorf("len = %d, want 1", l.Len())
	}
}

func TestRecentReturnsNewestLast(t *testing.T) {
	l := newLog()
	for _, action := range []string{"A", "B", "C", "D"} {
		l.Record(action, "", nil)
	}

	got := l.Recent(2)
	if len(got) != 2 || got[0].Action != "C" || got[1].Action != "D" {
		t.Errorf("Recent(2) = %v", got)
	}
	if all := l.Recent(0); len(all) != 4 {
		t.Errorf("Recent(0) = %d entries, want all 4", len(all))
	}
	if over := l.Recent(100); len(over) != 4 {
		t.Errorf("Recent(100) = %d entries, want 4", len(over))
	}
}

func TestRecentCopyIsDetached(t *testing.T) {
	l := newLog()
	l.Record("A", "first", nil)

	got := l.Recent(0)
	got[0].Action = "TAMPERED"
	if l.Recent(0)[0].Action != "A" {
		t.Error("caller mutation reached the log")
	}
}

func TestConcurrentRecord(t *testing.T) {
	l := newLog()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Record("CONCURRENT", "", nil)
		}()
	}
	wg.Wait()
	if l.Len() != 50 {
		t.Errorf("len = %d, want 50", l.Len())
	}
}
