package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/sponsorscout/jobengine/app/job"
)

var _ JobRepository = (*PostgresJobRepository)(nil)

// PostgresJobRepository implements JobRepository on top of Postgres.
type PostgresJobRepository struct {
	db *DB
}

func NewJobRepository(db *DB) *PostgresJobRepository {
	return &PostgresJobRepository{db: db}
}

const listingColumns = `
	id, source, source_job_id, fingerprint, title, company, location,
	description, employment_type, remote, salary_min, salary_max,
	salary_currency, skills, posted_at, source_url, apply_url,
	visa_h1b, visa_opt, visa_stem_opt, visa_confidence, content_hash,
	is_active, is_featured, university, last_refreshed, created_at`

// GetByFingerprint returns the listing with the given fingerprint, or nil
// when none exists.
func (r *PostgresJobRepository) GetByFingerprint(ctx context.Context, fingerprint string) (*job.Listing, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+listingColumns+` FROM jobs WHERE fingerprint = $1`, fingerprint)

	listing, err := scanListing(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get listing by fingerprint: %w", err)
	}
	return listing, nil
}

// Upsert inserts the listing or, when the fingerprint already exists, updates
// its mutable fields. The fingerprint uniqueness makes duplicate inserts
// impossible even if two writers race.
func (r *PostgresJobRepository) Upsert(ctx context.Context, l *job.Listing) error {
	var salaryMin, salaryMax sql.NullFloat64
	var salaryCurrency sql.NullString
	if l.Salary != nil {
		salaryMin = sql.NullFloat64{Float64: l.Salary.Min, Valid: true}
		salaryMax = sql.NullFloat64{Float64: l.Salary.Max, Valid: true}
		salaryCurrency = sql.NullString{String: l.Salary.Currency, Valid: true}
	}

	var postedAt sql.NullTime
	if l.PostedAt != nil {
		postedAt = sql.NullTime{Time: *l.PostedAt, Valid: true}
	}

	err := r.db.QueryRowContext(ctx, `
		INSERT INTO jobs (
			source, source_job_id, fingerprint, title, company, location,
			description, employment_type, remote, salary_min, salary_max,
			salary_currency, skills, posted_at, source_url, apply_url,
			visa_h1b, visa_opt, visa_stem_opt, visa_confidence, content_hash,
			is_active, university, last_refreshed, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25)
		ON CONFLICT (fingerprint) DO UPDATE SET
			title = EXCLUDED.title,
			company = EXCLUDED.company,
			location = EXCLUDED.location,
			description = EXCLUDED.description,
			employment_type = EXCLUDED.employment_type,
			remote = EXCLUDED.remote,
			salary_min = EXCLUDED.salary_min,
			salary_max = EXCLUDED.salary_max,
			salary_currency = EXCLUDED.salary_currency,
			skills = EXCLUDED.skills,
			posted_at = EXCLUDED.posted_at,
			source_url = EXCLUDED.source_url,
			apply_url = EXCLUDED.apply_url,
			visa_h1b = EXCLUDED.visa_h1b,
			visa_opt = EXCLUDED.visa_opt,
			visa_stem_opt = EXCLUDED.visa_stem_opt,
			visa_confidence = EXCLUDED.visa_confidence,
			content_hash = EXCLUDED.content_hash,
			is_active = EXCLUDED.is_active,
			last_refreshed = EXCLUDED.last_refreshed
		RETURNING id, created_at
	`, l.Source, l.SourceJobID, l.Fingerprint, l.Title, l.Company, l.Location,
		l.Description, l.EmploymentType, l.Remote, salaryMin, salaryMax,
		salaryCurrency, pq.Array(l.Skills), postedAt, l.SourceURL, l.ApplyURL,
		l.Visa.H1B, l.Visa.OPT, l.Visa.StemOPT, l.Visa.Confidence, l.ContentHash,
		l.IsActive, l.University, l.LastRefreshed, l.CreatedAt,
	).Scan(&l.ID, &l.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to upsert listing: %w", err)
	}

	return nil
}

// Refresh bumps last_refreshed and reactivates the listing without touching
// content fields. Used when a re-observed posting is unchanged.
func (r *PostgresJobRepository) Refresh(ctx context.Context, fingerprint string, now time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE jobs
		SET last_refreshed = $2, is_active = TRUE
		WHERE fingerprint = $1
	`, fingerprint, now)

	if err != nil {
		return fmt.Errorf("failed to refresh listing: %w", err)
	}
	return nil
}

// DeactivateOlderThan marks listings not refreshed since cutoff as inactive
// and returns the number of rows changed. Already-inactive rows are left
// alone, which keeps repeated cleanups idempotent.
func (r *PostgresJobRepository) DeactivateOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE jobs
		SET is_active = FALSE
		WHERE is_active = TRUE
		  AND COALESCE(last_refreshed, posted_at, created_at) < $1
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate stale listings: %w", err)
	}

	count, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deactivated listings: %w", err)
	}
	return count, nil
}

// DeleteOlderThan hard-deletes listings not refreshed since cutoff,
// regardless of their active flag.
func (r *PostgresJobRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM jobs
		WHERE COALESCE(last_refreshed, posted_at, created_at) < $1
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired listings: %w", err)
	}

	count, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted listings: %w", err)
	}
	return count, nil
}

// UpdateSponsorship rewrites the classifier fields of a single listing.
func (r *PostgresJobRepository) UpdateSponsorship(ctx context.Context, id string, visa job.VisaSponsorship) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE jobs
		SET visa_h1b = $2, visa_opt = $3, visa_stem_opt = $4, visa_confidence = $5
		WHERE id = $1
	`, id, visa.H1B, visa.OPT, visa.StemOPT, visa.Confidence)

	if err != nil {
		return fmt.Errorf("failed to update sponsorship: %w", err)
	}
	return nil
}

// ListForReclassify returns listings for batch re-analysis, newest first.
func (r *PostgresJobRepository) ListForReclassify(ctx context.Context, filter ReclassifyFilter, limit int) ([]job.Listing, error) {
	query := `SELECT ` + listingColumns + ` FROM jobs WHERE 1=1`
	args := []interface{}{}

	if filter.OnlyActive {
		query += ` AND is_active = TRUE`
	}
	if filter.Source != "" {
		args = append(args, filter.Source)
		query += fmt.Sprintf(` AND source = $%d`, len(args))
	}

	args = append(args, limit)
	query += fmt.Sprintf(` ORDER BY last_refreshed DESC LIMIT $%d`, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list listings for reclassify: %w", err)
	}
	defer rows.Close()

	var listings []job.Listing
	for rows.Next() {
		listing, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan listing row: %w", err)
		}
		listings = append(listings, *listing)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating listing rows: %w", err)
	}

	return listings, nil
}

// CountBySource returns the number of stored listings per source.
func (r *PostgresJobRepository) CountBySource(ctx context.Context) (map[job.Source]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT source, COUNT(*) FROM jobs GROUP BY source`)
	if err != nil {
		return nil, fmt.Errorf("failed to count listings by source: %w", err)
	}
	defer rows.Close()

	counts := make(map[job.Source]int)
	for rows.Next() {
		var source job.Source
		var count int
		if err := rows.Scan(&source, &count); err != nil {
			return nil, fmt.Errorf("failed to scan source count: %w", err)
		}
		counts[source] = count
	}

	return counts, rows.Err()
}

// CountActive returns the number of active listings.
func (r *PostgresJobRepository) CountActive(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM jobs WHERE is_active = TRUE`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count active listings: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanListing(row rowScanner) (*job.Listing, error) {
	var l job.Listing
	var salaryMin, salaryMax sql.NullFloat64
	var salaryCurrency sql.NullString
	var postedAt sql.NullTime

	err := row.Scan(
		&l.ID, &l.Source, &l.SourceJobID, &l.Fingerprint, &l.Title, &l.Company,
		&l.Location, &l.Description, &l.EmploymentType, &l.Remote,
		&salaryMin, &salaryMax, &salaryCurrency, pq.Array(&l.Skills), &postedAt,
		&l.SourceURL, &l.ApplyURL, &l.Visa.H1B, &l.Visa.OPT, &l.Visa.StemOPT,
		&l.Visa.Confidence, &l.ContentHash, &l.IsActive, &l.IsFeatured,
		&l.University, &l.LastRefreshed, &l.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if salaryMin.Valid || salaryMax.Valid {
		l.Salary = &job.SalaryRange{
			Min:      salaryMin.Float64,
			Max:      salaryMax.Float64,
			Currency: salaryCurrency.String,
		}
	}

	return &l, nil
}
