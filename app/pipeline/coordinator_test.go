package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/sponsorscout/jobengine/app/cfg"
	"github.com/sponsorscout/jobengine/app/classify"
	"github.com/sponsorscout/jobengine/app/database"
	"github.com/sponsorscout/jobengine/app/dedup"
	"github.com/sponsorscout/jobengine/app/job"
	"github.com/sponsorscout/jobengine/app/retention"
	"github.com/sponsorscout/jobengine/app/sources"
)

type fakeConnector struct {
	source job.Source
	raws   []sources.Raw
	err    error
	block  chan struct{} // when set, Fetch blocks until closed
}

func (f *fakeConnector) Source() job.Source { return f.source }

func (f *fakeConnector) Fetch(ctx context.Context) ([]sources.Raw, error) {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.raws, f.err
}

// fakeRepo is an in-memory store keyed by fingerprint.
type fakeRepo struct {
	database.JobRepository
	mu             sync.Mutex
	byFingerprint  map[string]*job.Listing
	nextID         int
	sponsorshipErr error // when set, UpdateSponsorship fails with it
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{byFingerprint: make(map[string]*job.Listing)}
}

func (f *fakeRepo) GetByFingerprint(_ context.Context, fingerprint string) (*job.Listing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if l, ok := f.byFingerprint[fingerprint]; ok {
		copied := *l
		return &copied, nil
	}
	return nil, nil
}

func (f *fakeRepo) Upsert(_ context.Context, listing *job.Listing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if listing.ID == "" {
		f.nextID++
		listing.ID = fmt.Sprintf("id-%d", f.nextID)
	}
	stored := *listing
	f.byFingerprint[listing.Fingerprint] = &stored
	return nil
}

func (f *fakeRepo) Refresh(_ context.Context, fingerprint string, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if l, ok := f.byFingerprint[fingerprint]; ok {
		l.LastRefreshed = now
		l.IsActive = true
	}
	return nil
}

func (f *fakeRepo) ListForReclassify(_ context.Context, filter database.ReclassifyFilter, limit int) ([]job.Listing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []job.Listing
	for _, l := range f.byFingerprint {
		if filter.OnlyActive && !l.IsActive {
			continue
		}
		if filter.Source != "" && l.Source != filter.Source {
			continue
		}
		out = append(out, *l)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeRepo) UpdateSponsorship(_ context.Context, id string, visa job.VisaSponsorship) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sponsorshipErr != nil {
		return f.sponsorshipErr
	}
	for _, l := range f.byFingerprint {
		if l.ID == id {
			l.Visa = visa
			return nil
		}
	}
	return fmt.Errorf("listing %s not found", id)
}

func (f *fakeRepo) DeactivateOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var count int64
	for _, l := range f.byFingerprint {
		if l.IsActive && l.LastRefreshed.Before(cutoff) {
			l.IsActive = false
			count++
		}
	}
	return count, nil
}

func (f *fakeRepo) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var count int64
	for fp, l := range f.byFingerprint {
		if l.LastRefreshed.Before(cutoff) {
			delete(f.byFingerprint, fp)
			count++
		}
	}
	return count, nil
}

func (f *fakeRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.byFingerprint)
}

func newTestCoordinator(t *testing.T, repo database.JobRepository, connectors ...sources.Connector) *Coordinator {
	t.Helper()

	cfg.SetForTest(&cfg.Cfg{
		RunSchedule:       "0 6 * * *",
		CleanupSchedule:   "30 4 * * *",
		RunTimeout:        10,
		SourceTimeout:     5,
		InactiveAfterDays: 30,
		DeleteAfterDays:   90,
	})

	classifier, err := classify.New("")
	if err != nil {
		t.Fatalf("classify.New returned error: %v", err)
	}

	cleanup, err := retention.NewEngine(repo, 30, 90)
	if err != nil {
		t.Fatalf("retention.NewEngine returned error: %v", err)
	}

	coord, err := NewCoordinator(connectors, repo, dedup.NewEngine(repo, classifier), classifier, cleanup, nil)
	if err != nil {
		t.Fatalf("NewCoordinator returned error: %v", err)
	}
	return coord
}

func waitIdle(t *testing.T, c *Coordinator) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for c.IsRunning() {
		select {
		case <-deadline:
			t.Fatalf("Run never completed")
		case <-time.After(time.Millisecond):
		}
	}
}

func remoteOKRaw(id, title, company string) sources.Raw {
	return sources.RemoteOKJob{
		ID:       json.Number(id),
		Position: title,
		Company:  company,
		URL:      "https://remoteok.com/jobs/" + id,
	}
}

func TestNewCoordinator_RejectsInvalidSchedule(t *testing.T) {
	cfg.SetForTest(&cfg.Cfg{
		RunSchedule:     "not a cron spec",
		CleanupSchedule: "30 4 * * *",
		RunTimeout:      10,
		SourceTimeout:   5,
	})

	classifier, err := classify.New("")
	if err != nil {
		t.Fatalf("classify.New returned error: %v", err)
	}
	repo := newFakeRepo()
	cleanup, err := retention.NewEngine(repo, 30, 90)
	if err != nil {
		t.Fatalf("retention.NewEngine returned error: %v", err)
	}

	if _, err := NewCoordinator(nil, repo, dedup.NewEngine(repo, classifier), classifier, cleanup, nil); err == nil {
		t.Errorf("Expected error for malformed run schedule")
	}
}

func TestTriggerRun_SingleFlight(t *testing.T) {
	block := make(chan struct{})
	conn := &fakeConnector{source: job.SourceRemoteOK, block: block}
	coord := newTestCoordinator(t, newFakeRepo(), conn)
	defer coord.Stop()

	first, err := coord.TriggerRun(TriggerManual)
	if err != nil {
		t.Fatalf("First trigger returned error: %v", err)
	}

	if _, err := coord.TriggerRun(TriggerManual); err != ErrAlreadyRunning {
		t.Errorf("Expected ErrAlreadyRunning while a run is in flight, got %v", err)
	}

	close(block)
	waitIdle(t, coord)

	second, err := coord.TriggerRun(TriggerScheduled)
	if err != nil {
		t.Fatalf("Trigger after completion returned error: %v", err)
	}
	if second == first {
		t.Errorf("Each run must get a distinct run ID")
	}
	waitIdle(t, coord)
}

func TestRun_AggregatesStats(t *testing.T) {
	repo := newFakeRepo()
	conn := &fakeConnector{
		source: job.SourceRemoteOK,
		raws: []sources.Raw{
			remoteOKRaw("1", "Backend Engineer", "Acme"),
			remoteOKRaw("2", "Data Engineer", "Globex"),
		},
	}
	coord := newTestCoordinator(t, repo, conn)
	defer coord.Stop()

	runID, err := coord.TriggerRun(TriggerManual)
	if err != nil {
		t.Fatalf("TriggerRun returned error: %v", err)
	}
	waitIdle(t, coord)

	stats := coord.LastRunStats()
	if stats == nil {
		t.Fatalf("Completed run must record stats")
	}
	if stats.RunID != runID {
		t.Errorf("Expected run ID %s, got %s", runID, stats.RunID)
	}
	if stats.Trigger != TriggerManual {
		t.Errorf("Expected manual trigger, got %s", stats.Trigger)
	}

	ss := stats.PerSource[job.SourceRemoteOK]
	if ss.Fetched != 2 || ss.Created != 2 {
		t.Errorf("Expected 2 fetched and 2 created, got %+v", ss)
	}
	if stats.TotalCreated != 2 || stats.TotalErrors != 0 {
		t.Errorf("Unexpected totals: %+v", stats)
	}
	if stats.FinishedAt.Before(stats.StartedAt) {
		t.Errorf("FinishedAt must not precede StartedAt")
	}
	if repo.count() != 2 {
		t.Errorf("Expected 2 stored listings, got %d", repo.count())
	}
}

func TestRun_SourceFailureIsolated(t *testing.T) {
	repo := newFakeRepo()
	good := &fakeConnector{
		source: job.SourceRemoteOK,
		raws:   []sources.Raw{remoteOKRaw("1", "Backend Engineer", "Acme")},
	}
	bad := &fakeConnector{
		source: job.SourceArbeitnow,
		err:    fmt.Errorf("connection refused"),
	}
	coord := newTestCoordinator(t, repo, good, bad)
	defer coord.Stop()

	if _, err := coord.TriggerRun(TriggerManual); err != nil {
		t.Fatalf("TriggerRun returned error: %v", err)
	}
	waitIdle(t, coord)

	stats := coord.LastRunStats()
	if stats.PerSource[job.SourceArbeitnow].ErrorMessage == "" {
		t.Errorf("Failed source must record its error message")
	}
	if stats.PerSource[job.SourceRemoteOK].Created != 1 {
		t.Errorf("Healthy source must still be ingested, got %+v", stats.PerSource[job.SourceRemoteOK])
	}
	if stats.TotalErrors != 1 {
		t.Errorf("Expected 1 error, got %d", stats.TotalErrors)
	}
	if !stats.CompletedWithErrors() {
		t.Errorf("Run with a failed source must report degraded completion")
	}
}

func TestRun_SecondRunSkipsUnchanged(t *testing.T) {
	repo := newFakeRepo()
	conn := &fakeConnector{
		source: job.SourceRemoteOK,
		raws:   []sources.Raw{remoteOKRaw("1", "Backend Engineer", "Acme")},
	}
	coord := newTestCoordinator(t, repo, conn)
	defer coord.Stop()

	if _, err := coord.TriggerRun(TriggerManual); err != nil {
		t.Fatalf("TriggerRun returned error: %v", err)
	}
	waitIdle(t, coord)

	if _, err := coord.TriggerRun(TriggerManual); err != nil {
		t.Fatalf("Second trigger returned error: %v", err)
	}
	waitIdle(t, coord)

	stats := coord.LastRunStats()
	ss := stats.PerSource[job.SourceRemoteOK]
	if ss.Created != 0 || ss.Skipped != 1 {
		t.Errorf("Replayed payload must skip, not create, got %+v", ss)
	}
	if repo.count() != 1 {
		t.Errorf("Expected exactly 1 stored listing, got %d", repo.count())
	}
}

func TestRun_MalformedListingsDropped(t *testing.T) {
	repo := newFakeRepo()
	conn := &fakeConnector{
		source: job.SourceRemoteOK,
		raws: []sources.Raw{
			remoteOKRaw("1", "Backend Engineer", "Acme"),
			remoteOKRaw("2", "Data Engineer", ""), // no company
		},
	}
	coord := newTestCoordinator(t, repo, conn)
	defer coord.Stop()

	if _, err := coord.TriggerRun(TriggerManual); err != nil {
		t.Fatalf("TriggerRun returned error: %v", err)
	}
	waitIdle(t, coord)

	ss := coord.LastRunStats().PerSource[job.SourceRemoteOK]
	if ss.Fetched != 2 || ss.Created != 1 || ss.Dropped != 1 {
		t.Errorf("Expected 2 fetched, 1 created, 1 dropped, got %+v", ss)
	}
}

func TestNextScheduledRun(t *testing.T) {
	coord := newTestCoordinator(t, newFakeRepo())
	defer coord.Stop()

	next := coord.NextScheduledRun()
	if !next.After(time.Now()) {
		t.Errorf("Next scheduled run must be in the future, got %v", next)
	}
	if coord.IsRunning() {
		t.Errorf("Querying the schedule must not change run state")
	}
}

func TestBatchReclassify(t *testing.T) {
	repo := newFakeRepo()
	coord := newTestCoordinator(t, repo)
	defer coord.Stop()

	ctx := context.Background()
	sponsored := &job.Listing{
		Source:      job.SourceManual,
		Fingerprint: "fp-1",
		Title:       "Backend Engineer",
		Company:     "Acme",
		Description: "We offer h1b sponsorship to qualified candidates.",
		IsActive:    true,
	}
	plain := &job.Listing{
		Source:      job.SourceManual,
		Fingerprint: "fp-2",
		Title:       "Office Manager",
		Company:     "Acme",
		Description: "Keep the office running.",
		IsActive:    true,
	}
	if err := repo.Upsert(ctx, sponsored); err != nil {
		t.Fatalf("Upsert returned error: %v", err)
	}
	if err := repo.Upsert(ctx, plain); err != nil {
		t.Fatalf("Upsert returned error: %v", err)
	}

	report, err := coord.BatchReclassify(ctx, database.ReclassifyFilter{OnlyActive: true}, 100)
	if err != nil {
		t.Fatalf("BatchReclassify returned error: %v", err)
	}

	if report.Analyzed != 2 {
		t.Errorf("Expected 2 analyzed, got %d", report.Analyzed)
	}
	if report.Updated != 1 {
		t.Errorf("Only the sponsored listing should change, got %d updates", report.Updated)
	}

	stored, err := repo.GetByFingerprint(ctx, "fp-1")
	if err != nil {
		t.Fatalf("GetByFingerprint returned error: %v", err)
	}
	if !stored.Visa.H1B {
		t.Errorf("Sponsored listing must carry the H1B flag after reclassification")
	}

	// The classifier is pure, so a second pass over unchanged text is a no-op.
	again, err := coord.BatchReclassify(ctx, database.ReclassifyFilter{OnlyActive: true}, 100)
	if err != nil {
		t.Fatalf("BatchReclassify returned error: %v", err)
	}
	if again.Updated != 0 {
		t.Errorf("Second pass over unchanged text must update nothing, got %d", again.Updated)
	}
}

func TestBatchReclassify_WriteFailureCounted(t *testing.T) {
	repo := newFakeRepo()
	coord := newTestCoordinator(t, repo)
	defer coord.Stop()

	ctx := context.Background()
	listing := &job.Listing{
		Source:      job.SourceManual,
		Fingerprint: "fp-1",
		Title:       "Backend Engineer",
		Company:     "Acme",
		Description: "We offer h1b sponsorship to qualified candidates.",
		IsActive:    true,
	}
	if err := repo.Upsert(ctx, listing); err != nil {
		t.Fatalf("Upsert returned error: %v", err)
	}
	repo.sponsorshipErr = fmt.Errorf("connection reset")

	report, err := coord.BatchReclassify(ctx, database.ReclassifyFilter{}, 100)
	if err != nil {
		t.Fatalf("BatchReclassify returned error: %v", err)
	}

	if report.Errors != 1 {
		t.Errorf("Failed write must be counted, got %d errors", report.Errors)
	}
	if report.Updated != 0 || report.Analyzed != 0 {
		t.Errorf("Failed write must not count as analyzed or updated, got %+v", report)
	}
	if report.Analyzed+report.Errors != 1 {
		t.Errorf("Analyzed plus errors must cover every scanned listing, got %+v", report)
	}
}

func TestTriggerCleanup(t *testing.T) {
	repo := newFakeRepo()
	now := time.Now().UTC()

	// 30d/90d windows: one fresh, one past the inactive cutoff, one past
	// the delete cutoff.
	ctx := context.Background()
	for fp, age := range map[string]time.Duration{
		"fresh":   10 * 24 * time.Hour,
		"stale":   45 * 24 * time.Hour,
		"expired": 120 * 24 * time.Hour,
	} {
		l := &job.Listing{
			Source:        job.SourceManual,
			Fingerprint:   fp,
			Title:         "Engineer",
			Company:       "Acme",
			IsActive:      true,
			LastRefreshed: now.Add(-age),
		}
		if err := repo.Upsert(ctx, l); err != nil {
			t.Fatalf("Upsert returned error: %v", err)
		}
	}

	coord := newTestCoordinator(t, repo)
	defer coord.Stop()

	stats, err := coord.TriggerCleanup(ctx)
	if err != nil {
		t.Fatalf("TriggerCleanup returned error: %v", err)
	}
	if stats.DeletedCount != 1 || stats.DeactivatedCount != 1 {
		t.Errorf("Expected 1 deletion and 1 deactivation, got %+v", stats)
	}
	if repo.count() != 2 {
		t.Errorf("Expected 2 surviving listings, got %d", repo.count())
	}
	if got := coord.LastCleanupStats(); got == nil {
		t.Errorf("Cleanup stats must be retained")
	}
}
