package retention

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sponsorscout/jobengine/app/database"
)

// ErrCleanupRunning is returned to a trigger when a cleanup is already in
// flight. The caller gets nothing queued.
var ErrCleanupRunning = errors.New("cleanup already in progress")

// Stats summarizes one cleanup run. Counts only, never record identities,
// to bound report size.
type Stats struct {
	DeactivatedCount   int64     `json:"deactivated_count"`
	DeletedCount       int64     `json:"deleted_count"`
	CutoffInactiveDate time.Time `json:"cutoff_inactive_date"`
	CutoffDeleteDate   time.Time `json:"cutoff_delete_date"`
	ExecutedAt         time.Time `json:"executed_at"`
}

// Engine ages out stale listings: not refreshed within the inactive window
// means deactivated but retained; not refreshed within the (longer) delete
// window means hard-deleted. Cleanup is idempotent and guarded by its own
// single-flight lock so it cannot overlap itself.
type Engine struct {
	repo           database.JobRepository
	inactiveWindow time.Duration
	deleteWindow   time.Duration
	now            func() time.Time

	mu        sync.Mutex
	running   bool
	lastStats *Stats
}

func NewEngine(repo database.JobRepository, inactiveDays, deleteDays int) (*Engine, error) {
	if deleteDays < inactiveDays {
		return nil, fmt.Errorf("delete window (%dd) must not be shorter than inactive window (%dd)",
			deleteDays, inactiveDays)
	}

	return &Engine{
		repo:           repo,
		inactiveWindow: time.Duration(inactiveDays) * 24 * time.Hour,
		deleteWindow:   time.Duration(deleteDays) * 24 * time.Hour,
		now:            time.Now,
	}, nil
}

// Cleanup runs one retention pass and returns its stats. A second trigger
// while one is in flight gets ErrCleanupRunning.
func (e *Engine) Cleanup(ctx context.Context) (*Stats, error) {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return nil, ErrCleanupRunning
	}
	e.running = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
	}()

	now := e.now().UTC()
	stats := &Stats{
		CutoffInactiveDate: now.Add(-e.inactiveWindow),
		CutoffDeleteDate:   now.Add(-e.deleteWindow),
		ExecutedAt:         now,
	}

	// Delete first so rows past both cutoffs are not counted twice.
	deleted, err := e.repo.DeleteOlderThan(ctx, stats.CutoffDeleteDate)
	if err != nil {
		return nil, fmt.Errorf("failed to delete expired listings: %w", err)
	}
	stats.DeletedCount = deleted

	deactivated, err := e.repo.DeactivateOlderThan(ctx, stats.CutoffInactiveDate)
	if err != nil {
		return nil, fmt.Errorf("failed to deactivate stale listings: %w", err)
	}
	stats.DeactivatedCount = deactivated

	e.mu.Lock()
	e.lastStats = stats
	e.mu.Unlock()

	slog.Info("Cleanup completed",
		"deactivated", stats.DeactivatedCount,
		"deleted", stats.DeletedCount,
		"inactive_cutoff", stats.CutoffInactiveDate,
		"delete_cutoff", stats.CutoffDeleteDate)

	return stats, nil
}

// IsRunning reports whether a cleanup is currently in flight.
func (e *Engine) IsRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// LastStats returns the most recent cleanup stats, or nil before the first
// cleanup.
func (e *Engine) LastStats() *Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastStats
}

// SetLastStats seeds the retained stats, used when restoring persisted stats
// at startup.
func (e *Engine) SetLastStats(stats *Stats) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastStats = stats
}
