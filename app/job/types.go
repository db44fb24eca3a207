package job

import (
	"time"
)

// Source identifies the external board a listing was aggregated from.
type Source string

const (
	SourceRemoteOK   Source = "remoteok"
	SourceArbeitnow  Source = "arbeitnow"
	SourceUSAJobs    Source = "usajobs"
	SourceJooble     Source = "jooble"
	SourceCareerjet  Source = "careerjet"
	SourceUniversity Source = "university"
	SourceManual     Source = "manual"
)

// EmploymentType is the coerced contract type of a listing.
type EmploymentType string

const (
	EmploymentFullTime   EmploymentType = "full_time"
	EmploymentPartTime   EmploymentType = "part_time"
	EmploymentContract   EmploymentType = "contract"
	EmploymentInternship EmploymentType = "internship"
	EmploymentTemporary  EmploymentType = "temporary"
	EmploymentUnknown    EmploymentType = "unknown"
)

// SalaryRange holds parsed salary bounds. Nil on a Listing means the source
// provided nothing parseable.
type SalaryRange struct {
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	Currency string  `json:"currency"`
}

// VisaSponsorship holds the classifier's determination for a listing,
// recorded at the time the listing content was last analyzed.
type VisaSponsorship struct {
	H1B        bool    `json:"h1b"`
	OPT        bool    `json:"opt"`
	StemOPT    bool    `json:"stem_opt"`
	Confidence float64 `json:"confidence"`
}

// Listing is the canonical persisted job record. One row per fingerprint;
// the store enforces uniqueness via the fingerprint index.
type Listing struct {
	ID          string `json:"id"`
	Source      Source `json:"source"`
	SourceJobID string `json:"source_job_id"` // empty for sources without stable IDs
	Fingerprint string `json:"fingerprint"`

	Title          string         `json:"title"`
	Company        string         `json:"company"`
	Location       string         `json:"location"`
	Description    string         `json:"description"`
	EmploymentType EmploymentType `json:"employment_type"`
	Remote         bool           `json:"remote"`
	Salary         *SalaryRange   `json:"salary,omitempty"`
	Skills         []string       `json:"skills"`
	PostedAt       *time.Time     `json:"posted_at,omitempty"`
	SourceURL      string         `json:"source_url"`
	ApplyURL       string         `json:"apply_url"`

	Visa        VisaSponsorship `json:"visa"`
	ContentHash string          `json:"-"`

	IsActive      bool      `json:"is_active"`
	IsFeatured    bool      `json:"is_featured"`
	University    string    `json:"university,omitempty"` // set when Source == SourceUniversity
	LastRefreshed time.Time `json:"last_refreshed"`
	CreatedAt     time.Time `json:"created_at"`
}
