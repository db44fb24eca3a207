package dedup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sponsorscout/jobengine/app/classify"
	"github.com/sponsorscout/jobengine/app/database"
	"github.com/sponsorscout/jobengine/app/job"
)

// fakeRepo is an in-memory JobRepository. Unused methods panic via the
// embedded nil interface.
type fakeRepo struct {
	database.JobRepository
	byFingerprint map[string]*job.Listing
	lookupErr     error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{byFingerprint: make(map[string]*job.Listing)}
}

func (f *fakeRepo) GetByFingerprint(_ context.Context, fp string) (*job.Listing, error) {
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	if l, ok := f.byFingerprint[fp]; ok {
		copied := *l
		return &copied, nil
	}
	return nil, nil
}

func (f *fakeRepo) Upsert(_ context.Context, l *job.Listing) error {
	if l.ID == "" {
		l.ID = "id-" + l.Fingerprint[:8]
	}
	copied := *l
	f.byFingerprint[l.Fingerprint] = &copied
	return nil
}

func (f *fakeRepo) Refresh(_ context.Context, fp string, now time.Time) error {
	if l, ok := f.byFingerprint[fp]; ok {
		l.LastRefreshed = now
		l.IsActive = true
	}
	return nil
}

func newTestEngine(t *testing.T, repo database.JobRepository) *Engine {
	t.Helper()
	classifier, err := classify.New("")
	if err != nil {
		t.Fatalf("Failed to build classifier: %v", err)
	}
	return NewEngine(repo, classifier)
}

func sampleListing() job.Listing {
	return job.Listing{
		Source:      job.SourceRemoteOK,
		SourceJobID: "100001",
		Title:       "Backend Engineer",
		Company:     "Acme",
		Location:    "Worldwide",
		Description: "Go services. h1b sponsorship available.",
	}
}

func TestEngine_CreateThenSkip(t *testing.T) {
	repo := newFakeRepo()
	engine := newTestEngine(t, repo)
	ctx := context.Background()

	outcome, err := engine.Process(ctx, sampleListing())
	if err != nil {
		t.Fatalf("Process returned error: %v", err)
	}
	if outcome != OutcomeCreated {
		t.Errorf("First observation should create, got %s", outcome)
	}

	// Identical payload on a later run: only last_refreshed moves.
	outcome, err = engine.Process(ctx, sampleListing())
	if err != nil {
		t.Fatalf("Process returned error: %v", err)
	}
	if outcome != OutcomeSkipped {
		t.Errorf("Unchanged re-observation should skip, got %s", outcome)
	}

	if len(repo.byFingerprint) != 1 {
		t.Errorf("Expected exactly one stored record, got %d", len(repo.byFingerprint))
	}
}

func TestEngine_UpdateOnContentChange(t *testing.T) {
	repo := newFakeRepo()
	engine := newTestEngine(t, repo)
	ctx := context.Background()

	if _, err := engine.Process(ctx, sampleListing()); err != nil {
		t.Fatalf("Process returned error: %v", err)
	}

	stored := repo.byFingerprint[Fingerprint(sampleListing())]
	if !stored.Visa.H1B {
		t.Fatalf("Expected initial classification to flag h1b")
	}

	changed := sampleListing()
	changed.Description = "Go services. No sponsorship available."

	outcome, err := engine.Process(ctx, changed)
	if err != nil {
		t.Fatalf("Process returned error: %v", err)
	}
	if outcome != OutcomeUpdated {
		t.Errorf("Changed content should update, got %s", outcome)
	}

	stored = repo.byFingerprint[Fingerprint(changed)]
	if stored.Visa.H1B {
		t.Errorf("Update must re-run classification; negative signal should clear h1b")
	}
	if stored.Description != changed.Description {
		t.Errorf("Update must rewrite mutable fields")
	}
	if stored.ID == "" {
		t.Errorf("Update must keep the stored record identity")
	}
}

func TestEngine_ReactivatesInactiveListing(t *testing.T) {
	repo := newFakeRepo()
	engine := newTestEngine(t, repo)
	ctx := context.Background()

	if _, err := engine.Process(ctx, sampleListing()); err != nil {
		t.Fatalf("Process returned error: %v", err)
	}

	fp := Fingerprint(sampleListing())
	repo.byFingerprint[fp].IsActive = false

	if _, err := engine.Process(ctx, sampleListing()); err != nil {
		t.Fatalf("Process returned error: %v", err)
	}
	if !repo.byFingerprint[fp].IsActive {
		t.Errorf("A re-observed posting is implicitly active again")
	}
}

func TestEngine_StoreErrorSurfaces(t *testing.T) {
	repo := newFakeRepo()
	repo.lookupErr = errors.New("connection reset")
	engine := newTestEngine(t, repo)

	if _, err := engine.Process(context.Background(), sampleListing()); err == nil {
		t.Errorf("Expected store error to surface")
	}
}
