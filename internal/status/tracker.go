// Package status serves a read-only view of the ETL loop over HTTP.
package status

import (
	"sync"
	"time"

	"github.com/rpattn/tamperlog/internal/domain"
)

// Snapshot is the last known state of the loop.
type Snapshot struct {
	StartedAt       time.Time          `json:"started_at"`
	Cycles          int64              `json:"cycles"`
	FailedCycles    int64              `json:"failed_cycles"`
	LastCycleAt     *time.Time         `json:"last_cycle_at,omitempty"`
	LastSuccessAt   *time.Time         `json:"last_success_at,omitempty"`
	LastError       string             `json:"last_error,omitempty"`
	LastSummary     *domain.RunSummary `json:"last_summary,omitempty"`
	LastTamperLogID int64              `json:"last_tamper_log_id"`
}

// Tracker records cycle outcomes. It is safe for concurrent use.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
	now  func() time.Time
}

// NewTracker creates a tracker.
func NewTracker() *Tracker {
	t := &Tracker{now: time.Now}
	t.snap.StartedAt = t.now()
	return t
}

// Record stores the outcome of one cycle. Its signature matches the
// scheduler's OnCycle hook.
func (t *Tracker) Record(summary domain.RunSummary, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	at := t.now()
	t.snap.Cycles++
	t.snap.LastCycleAt = &at
	t.snap.LastSummary = &summary
	if summary.EndWatermark > t.snap.LastTamperLogID {
		t.snap.LastTamperLogID = summary.EndWatermark
	}
	if err != nil {
		t.snap.FailedCycles++
		t.snap.LastError = err.Error()
		return
	}
	t.snap.LastSuccessAt = &at
	t.snap.LastError = ""
}

// Snapshot returns a copy of the current state.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	snap := t.snap
	if t.snap.LastSummary != nil {
		summary := *t.snap.LastSummary
		snap.LastSummary = &summary
	}
	return snap
}
