package database

import (
	"context"
	"time"

	"github.com/sponsorscout/jobengine/app/job"
)

// ReclassifyFilter narrows the listing set scanned by batch re-analysis.
type ReclassifyFilter struct {
	OnlyActive bool
	Source     job.Source // empty matches every source
}

// JobRepository is the narrow store contract the pipeline depends on.
// Upserts are keyed by fingerprint; the store holds at most one record per
// fingerprint.
type JobRepository interface {
	GetByFingerprint(ctx context.Context, fingerprint string) (*job.Listing, error)
	Upsert(ctx context.Context, listing *job.Listing) error
	Refresh(ctx context.Context, fingerprint string, now time.Time) error

	DeactivateOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)

	UpdateSponsorship(ctx context.Context, id string, visa job.VisaSponsorship) error
	ListForReclassify(ctx context.Context, filter ReclassifyFilter, limit int) ([]job.Listing, error)

	CountBySource(ctx context.Context) (map[job.Source]int, error)
	CountActive(ctx context.Context) (int, error)
}
