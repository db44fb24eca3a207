package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/sponsorscout/jobengine/app/cache"
	"github.com/sponsorscout/jobengine/app/cfg"
	"github.com/sponsorscout/jobengine/app/classify"
	"github.com/sponsorscout/jobengine/app/database"
	"github.com/sponsorscout/jobengine/app/dedup"
	"github.com/sponsorscout/jobengine/app/job"
	"github.com/sponsorscout/jobengine/app/retention"
	"github.com/sponsorscout/jobengine/app/sources"
)

// ErrAlreadyRunning is returned to a trigger that arrives while a run is in
// progress. Triggers are rejected, never queued.
var ErrAlreadyRunning = errors.New("aggregation run already in progress")

const maxReclassifyBatch = 1000

// Coordinator owns the aggregation run lifecycle: the single-flight guard,
// the cron recurrence, and the run statistics. State is IDLE or RUNNING,
// mutated only under the mutex; the completion path always executes so the
// guard can never deadlock the next run.
type Coordinator struct {
	connectors []sources.Connector
	repo       database.JobRepository
	engine     *dedup.Engine
	classifier *classify.Classifier
	cleanup    *retention.Engine
	statsCache *cache.StatsCache

	schedule        cron.Schedule
	cleanupSchedule cron.Schedule
	runTimeout      time.Duration
	sourceTimeout   time.Duration

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu      sync.Mutex
	running bool
	lastRun *RunStats
}

func NewCoordinator(connectors []sources.Connector, repo database.JobRepository,
	engine *dedup.Engine, classifier *classify.Classifier, cleanup *retention.Engine,
	statsCache *cache.StatsCache) (*Coordinator, error) {

	c := cfg.Get()

	schedule, err := cron.ParseStandard(c.RunSchedule)
	if err != nil {
		return nil, fmt.Errorf("invalid run schedule %q: %w", c.RunSchedule, err)
	}

	cleanupSchedule, err := cron.ParseStandard(c.CleanupSchedule)
	if err != nil {
		return nil, fmt.Errorf("invalid cleanup schedule %q: %w", c.CleanupSchedule, err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Coordinator{
		connectors:      connectors,
		repo:            repo,
		engine:          engine,
		classifier:      classifier,
		cleanup:         cleanup,
		statsCache:      statsCache,
		schedule:        schedule,
		cleanupSchedule: cleanupSchedule,
		runTimeout:      time.Duration(c.RunTimeout) * time.Second,
		sourceTimeout:   time.Duration(c.SourceTimeout) * time.Second,
		baseCtx:         ctx,
		cancel:          cancel,
	}, nil
}

// Start launches the scheduling loops. The timer side only calls TriggerRun
// and tolerates rejection; the single-flight contract lives in TriggerRun
// itself, not in the timer.
func (c *Coordinator) Start() {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			next := c.schedule.Next(time.Now())
			timer := time.NewTimer(time.Until(next))
			select {
			case <-c.baseCtx.Done():
				timer.Stop()
				return
			case <-timer.C:
				if _, err := c.TriggerRun(TriggerScheduled); err != nil {
					slog.Warn("Scheduled run rejected", "error", err)
				}
			}
		}
	}()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			next := c.cleanupSchedule.Next(time.Now())
			timer := time.NewTimer(time.Until(next))
			select {
			case <-c.baseCtx.Done():
				timer.Stop()
				return
			case <-timer.C:
				if _, err := c.TriggerCleanup(c.baseCtx); err != nil {
					slog.Warn("Scheduled cleanup rejected", "error", err)
				}
			}
		}
	}()
}

// Stop cancels any in-flight run and waits for the scheduling loops and the
// run goroutine to finish.
func (c *Coordinator) Stop() {
	c.cancel()
	c.wg.Wait()
}

// TriggerRun starts an aggregation run in the background and returns its run
// ID. Only permitted from IDLE; while RUNNING it fails fast with
// ErrAlreadyRunning and starts nothing.
func (c *Coordinator) TriggerRun(trigger Trigger) (string, error) {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return "", ErrAlreadyRunning
	}
	c.running = true
	c.mu.Unlock()

	runID := uuid.NewString()

	c.wg.Add(1)
	go c.run(runID, trigger)

	return runID, nil
}

// IsRunning reports whether an aggregation run is in progress.
func (c *Coordinator) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// LastRunStats returns the most recent completed run, or nil before the
// first one.
func (c *Coordinator) LastRunStats() *RunStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastRun
}

// SetLastRunStats seeds the retained stats, used when restoring persisted
// stats at startup.
func (c *Coordinator) SetLastRunStats(stats *RunStats) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastRun = stats
}

// NextScheduledRun evaluates the recurrence rule against now. Pure query,
// independent of run state.
func (c *Coordinator) NextScheduledRun() time.Time {
	return c.schedule.Next(time.Now())
}

// TriggerCleanup runs one synchronous retention pass. The retention engine
// carries its own single-flight guard, so a concurrent trigger is rejected
// there.
func (c *Coordinator) TriggerCleanup(ctx context.Context) (*retention.Stats, error) {
	stats, err := c.cleanup.Cleanup(ctx)
	if err != nil {
		return nil, err
	}

	if err := c.statsCache.SaveLastCleanup(ctx, stats); err != nil {
		slog.Warn("Failed to persist cleanup stats", "error", err)
	}
	return stats, nil
}

// LastCleanupStats returns the most recent cleanup stats, or nil.
func (c *Coordinator) LastCleanupStats() *retention.Stats {
	return c.cleanup.LastStats()
}

type sourceResult struct {
	source job.Source
	raws   []sources.Raw
	err    error
}

// run executes one aggregation run. The deferred completion path finalizes
// stats and releases the guard on every exit, including panics in the
// processing phase surfacing as a crashed process rather than a stuck guard.
func (c *Coordinator) run(runID string, trigger Trigger) {
	defer c.wg.Done()

	stats := &RunStats{
		RunID:     runID,
		Trigger:   trigger,
		StartedAt: time.Now().UTC(),
		PerSource: make(map[job.Source]SourceStats, len(c.connectors)),
	}

	defer func() {
		stats.FinishedAt = time.Now().UTC()
		stats.DurationMs = stats.FinishedAt.Sub(stats.StartedAt).Milliseconds()

		c.mu.Lock()
		c.lastRun = stats
		c.running = false
		c.mu.Unlock()

		if err := c.statsCache.SaveLastRun(context.Background(), stats); err != nil {
			slog.Warn("Failed to persist run stats", "error", err)
		}

		slog.Info("Run completed",
			"run_id", runID,
			"trigger", string(trigger),
			"created", stats.TotalCreated,
			"updated", stats.TotalUpdated,
			"errors", stats.TotalErrors,
			"duration_ms", stats.DurationMs)
	}()

	slog.Info("Run started", "run_id", runID, "trigger", string(trigger), "sources", len(c.connectors))

	// Fan-out: one goroutine per connector, each writing only its own slot.
	// The barrier keeps stats accounting single-writer afterwards.
	fetchCtx, cancelFetch := context.WithTimeout(c.baseCtx, c.runTimeout)
	defer cancelFetch()

	slots := make([]sourceResult, len(c.connectors))
	var fanout sync.WaitGroup
	for i, conn := range c.connectors {
		fanout.Add(1)
		go func(i int, conn sources.Connector) {
			defer fanout.Done()
			ctx, cancel := context.WithTimeout(fetchCtx, c.sourceTimeout)
			defer cancel()
			raws, err := conn.Fetch(ctx)
			slots[i] = sourceResult{source: conn.Source(), raws: raws, err: err}
		}(i, conn)
	}
	fanout.Wait()

	// Results fetched before an overall timeout are still processed; the
	// processing phase gets its own budget instead of the possibly-expired
	// fetch context.
	procCtx, cancelProc := context.WithTimeout(c.baseCtx, c.runTimeout)
	defer cancelProc()

	for _, slot := range slots {
		stats.PerSource[slot.source] = c.processSource(procCtx, slot, stats)
	}
}

func (c *Coordinator) processSource(ctx context.Context, slot sourceResult, stats *RunStats) SourceStats {
	var ss SourceStats

	if slot.err != nil {
		ss.ErrorMessage = slot.err.Error()
		stats.TotalErrors++
		slog.Error("Source fetch failed", "source", string(slot.source), "error", slot.err)
		return ss
	}

	ss.Fetched = len(slot.raws)

	for _, raw := range slot.raws {
		listing, err := sources.Normalize(raw)
		if err != nil {
			ss.Dropped++
			slog.Warn("Dropped malformed listing", "source", string(slot.source), "error", err)
			continue
		}

		outcome, err := c.engine.Process(ctx, listing)
		if err != nil {
			stats.TotalErrors++
			slog.Error("Failed to process listing",
				"source", string(slot.source), "title", listing.Title, "error", err)
			continue
		}

		switch outcome {
		case dedup.OutcomeCreated:
			ss.Created++
			stats.TotalCreated++
		case dedup.OutcomeUpdated:
			ss.Updated++
			stats.TotalUpdated++
		case dedup.OutcomeSkipped:
			ss.Skipped++
		}
	}

	return ss
}

// ReclassifyResult is one listing's outcome from a batch re-analysis.
type ReclassifyResult struct {
	ID      string              `json:"id"`
	Title   string              `json:"title"`
	Source  job.Source          `json:"source"`
	Visa    job.VisaSponsorship `json:"visa"`
	Changed bool                `json:"changed"`
}

// ReclassifyReport summarizes a batch re-analysis pass. Analyzed + Errors
// equals the number of listings scanned.
type ReclassifyReport struct {
	Analyzed int                `json:"analyzed"`
	Updated  int                `json:"updated"`
	Errors   int                `json:"errors"`
	Results  []ReclassifyResult `json:"results"`
}

// BatchReclassify re-runs the classifier over stored listings. The classifier
// is pure, so re-running it over unchanged text is idempotent: only listings
// whose determination actually differs are written back.
func (c *Coordinator) BatchReclassify(ctx context.Context, filter database.ReclassifyFilter, limit int) (*ReclassifyReport, error) {
	if limit <= 0 || limit > maxReclassifyBatch {
		limit = maxReclassifyBatch
	}

	listings, err := c.repo.ListForReclassify(ctx, filter, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list listings: %w", err)
	}

	report := &ReclassifyReport{Results: make([]ReclassifyResult, 0, len(listings))}

	for _, l := range listings {
		res := c.classifier.Detect(l.Title, l.Description, l.Company)
		visa := job.VisaSponsorship{
			H1B:        res.H1B,
			OPT:        res.OPT,
			StemOPT:    res.StemOPT,
			Confidence: res.Confidence,
		}

		changed := visa != l.Visa
		if changed {
			if err := c.repo.UpdateSponsorship(ctx, l.ID, visa); err != nil {
				slog.Error("Failed to update sponsorship", "id", l.ID, "error", err)
				report.Errors++
				continue
			}
			report.Updated++
		}

		report.Analyzed++
		report.Results = append(report.Results, ReclassifyResult{
			ID:      l.ID,
			Title:   l.Title,
			Source:  l.Source,
			Visa:    visa,
			Changed: changed,
		})
	}

	return report, nil
}
