package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/sponsorscout/jobengine/app/classify"
	"github.com/sponsorscout/jobengine/app/database"
	"github.com/sponsorscout/jobengine/app/job"
)

// Outcome describes what the upsert engine did with one incoming listing.
type Outcome int

const (
	OutcomeCreated Outcome = iota
	OutcomeUpdated
	OutcomeSkipped
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCreated:
		return "created"
	case OutcomeUpdated:
		return "updated"
	case OutcomeSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Engine decides insert vs. update vs. skip for each incoming listing.
// Processing the same payload twice yields the same stored state, with the
// second pass reporting skips instead of creates.
type Engine struct {
	repo       database.JobRepository
	classifier *classify.Classifier
	now        func() time.Time
}

func NewEngine(repo database.JobRepository, classifier *classify.Classifier) *Engine {
	return &Engine{
		repo:       repo,
		classifier: classifier,
		now:        time.Now,
	}
}

// Process fingerprints the listing, checks the store, and applies the upsert
// algorithm. New fingerprints are classified and inserted; changed content is
// re-classified and updated; unchanged content only bumps last_refreshed.
func (e *Engine) Process(ctx context.Context, l job.Listing) (Outcome, error) {
	l.Fingerprint = Fingerprint(l)
	l.ContentHash = ContentHash(l)
	now := e.now().UTC()

	existing, err := e.repo.GetByFingerprint(ctx, l.Fingerprint)
	if err != nil {
		return 0, fmt.Errorf("failed to look up fingerprint: %w", err)
	}

	if existing == nil {
		l.Visa = e.classify(l)
		l.IsActive = true
		l.LastRefreshed = now
		l.CreatedAt = now

		if err := e.repo.Upsert(ctx, &l); err != nil {
			return 0, fmt.Errorf("failed to insert listing: %w", err)
		}
		return OutcomeCreated, nil
	}

	if existing.ContentHash != l.ContentHash {
		l.ID = existing.ID
		l.CreatedAt = existing.CreatedAt
		l.IsFeatured = existing.IsFeatured
		l.Visa = e.classify(l)
		// A re-observed posting is implicitly still active.
		l.IsActive = true
		l.LastRefreshed = now

		if err := e.repo.Upsert(ctx, &l); err != nil {
			return 0, fmt.Errorf("failed to update listing: %w", err)
		}
		return OutcomeUpdated, nil
	}

	if err := e.repo.Refresh(ctx, l.Fingerprint, now); err != nil {
		return 0, fmt.Errorf("failed to refresh listing: %w", err)
	}
	return OutcomeSkipped, nil
}

func (e *Engine) classify(l job.Listing) job.VisaSponsorship {
	res := e.classifier.Detect(l.Title, l.Description, l.Company)
	return job.VisaSponsorship{
		H1B:        res.H1B,
		OPT:        res.OPT,
		StemOPT:    res.StemOPT,
		Confidence: res.Confidence,
	}
}
