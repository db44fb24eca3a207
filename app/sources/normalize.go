package sources

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sponsorscout/jobengine/app/job"
)

// Normalize maps a raw source payload to the canonical listing shape. It does
// field mapping and type coercion only; fingerprinting and classification
// happen downstream. A malformed listing yields an error so callers can drop
// and count it without losing the rest of the batch.
func Normalize(raw Raw) (job.Listing, error) {
	var listing job.Listing

	switch r := raw.(type) {
	case RemoteOKJob:
		listing = normalizeRemoteOK(r)
	case ArbeitnowJob:
		listing = normalizeArbeitnow(r)
	case USAJobsItem:
		listing = normalizeUSAJobs(r)
	case JoobleJob:
		listing = normalizeJooble(r)
	case CareerjetJob:
		listing = normalizeCareerjet(r)
	case UniversityPosting:
		listing = normalizeUniversity(r)
	default:
		return job.Listing{}, fmt.Errorf("unsupported raw listing type %T", raw)
	}

	if listing.Title == "" {
		return job.Listing{}, fmt.Errorf("%s listing has no title", listing.Source)
	}
	if listing.Company == "" {
		return job.Listing{}, fmt.Errorf("%s listing has no company", listing.Source)
	}

	return listing, nil
}

func normalizeRemoteOK(r RemoteOKJob) job.Listing {
	listing := job.Listing{
		Source:         job.SourceRemoteOK,
		SourceJobID:    r.ID.String(),
		Title:          r.Position,
		Company:        r.Company,
		Location:       r.Location,
		Description:    r.Description,
		EmploymentType: employmentFromTags(r.Tags),
		Remote:         true, // RemoteOK lists remote positions only
		Skills:         r.Tags,
		SourceURL:      r.URL,
		ApplyURL:       r.ApplyURL,
		PostedAt:       parseDate(r.Date, time.RFC3339, "2006-01-02T15:04:05-07:00", "2006-01-02"),
	}

	if r.SalaryMin > 0 || r.SalaryMax > 0 {
		listing.Salary = &job.SalaryRange{Min: r.SalaryMin, Max: r.SalaryMax, Currency: "USD"}
	}

	return listing
}

func normalizeArbeitnow(r ArbeitnowJob) job.Listing {
	listing := job.Listing{
		Source:         job.SourceArbeitnow,
		SourceJobID:    r.Slug,
		Title:          r.Title,
		Company:        r.CompanyName,
		Location:       r.Location,
		Description:    r.Description,
		EmploymentType: coerceEmploymentType(firstNonEmpty(r.JobTypes)),
		Remote:         r.Remote,
		Skills:         r.Tags,
		SourceURL:      r.URL,
		ApplyURL:       r.URL,
	}

	if r.CreatedAt > 0 {
		created := time.Unix(r.CreatedAt, 0).UTC()
		listing.PostedAt = &created
	}

	return listing
}

func normalizeUSAJobs(r USAJobsItem) job.Listing {
	d := r.MatchedObjectDescriptor

	listing := job.Listing{
		Source:         job.SourceUSAJobs,
		SourceJobID:    firstNonEmpty([]string{d.PositionID, r.MatchedObjectID}),
		Title:          d.PositionTitle,
		Company:        d.OrganizationName,
		Location:       d.PositionLocationDisplay,
		Description:    d.UserArea.Details.JobSummary,
		EmploymentType: job.EmploymentUnknown,
		Remote:         d.UserArea.Details.Teleworkable,
		SourceURL:      d.PositionURI,
		PostedAt:       parseDate(d.PublicationStartDate, "2006-01-02", time.RFC3339),
	}

	if len(d.ApplyURI) > 0 {
		listing.ApplyURL = d.ApplyURI[0]
	} else {
		listing.ApplyURL = d.PositionURI
	}

	if len(d.PositionSchedule) > 0 {
		listing.EmploymentType = coerceEmploymentType(d.PositionSchedule[0].Name)
	}

	if len(d.PositionRemuneration) > 0 {
		rem := d.PositionRemuneration[0]
		min, errMin := strconv.ParseFloat(rem.MinimumRange, 64)
		max, errMax := strconv.ParseFloat(rem.MaximumRange, 64)
		if errMin == nil && errMax == nil && (min > 0 || max > 0) {
			listing.Salary = &job.SalaryRange{Min: min, Max: max, Currency: "USD"}
		}
	}

	return listing
}

func normalizeJooble(r JoobleJob) job.Listing {
	var sourceJobID string
	if r.ID != 0 {
		sourceJobID = strconv.FormatInt(r.ID, 10)
	}

	return job.Listing{
		Source:         job.SourceJooble,
		SourceJobID:    sourceJobID,
		Title:          r.Title,
		Company:        r.Company,
		Location:       r.Location,
		Description:    r.Snippet,
		EmploymentType: coerceEmploymentType(r.Type),
		Remote:         containsRemote(r.Location),
		Salary:         parseSalaryText(r.Salary),
		SourceURL:      r.Link,
		ApplyURL:       r.Link,
		PostedAt:       parseDate(r.Updated, time.RFC3339, "2006-01-02T15:04:05.9999999", "2006-01-02"),
	}
}

func normalizeCareerjet(r CareerjetJob) job.Listing {
	return job.Listing{
		Source:         job.SourceCareerjet,
		SourceJobID:    "", // Careerjet results carry no stable identifier
		Title:          r.Title,
		Company:        r.Company,
		Location:       r.Locations,
		Description:    r.Snippet,
		EmploymentType: job.EmploymentUnknown,
		Remote:         containsRemote(r.Locations),
		Salary:         parseSalaryText(r.Salary),
		SourceURL:      r.URL,
		ApplyURL:       r.URL,
		PostedAt:       parseDate(r.Date, "2006-01-02 15:04:05", "2006-01-02"),
	}
}

func normalizeUniversity(r UniversityPosting) job.Listing {
	return job.Listing{
		Source:         job.SourceUniversity,
		SourceJobID:    r.GUID,
		Title:          r.Title,
		Company:        r.University,
		Location:       r.Location,
		Description:    r.Description,
		EmploymentType: job.EmploymentUnknown,
		SourceURL:      r.URL,
		ApplyURL:       r.URL,
		University:     r.University,
		PostedAt:       r.PostedAt,
	}
}

// coerceEmploymentType maps free-form contract-type strings onto the enum.
func coerceEmploymentType(s string) job.EmploymentType {
	normalized := strings.ToLower(strings.TrimSpace(s))
	normalized = strings.NewReplacer("-", "_", " ", "_").Replace(normalized)

	switch normalized {
	case "full_time", "fulltime", "permanent":
		return job.EmploymentFullTime
	case "part_time", "parttime":
		return job.EmploymentPartTime
	case "contract", "contractor", "freelance", "b2b":
		return job.EmploymentContract
	case "internship", "intern", "trainee", "werkstudent":
		return job.EmploymentInternship
	case "temporary", "temp", "seasonal":
		return job.EmploymentTemporary
	default:
		return job.EmploymentUnknown
	}
}

func employmentFromTags(tags []string) job.EmploymentType {
	for _, tag := range tags {
		if et := coerceEmploymentType(tag); et != job.EmploymentUnknown {
			return et
		}
	}
	return job.EmploymentUnknown
}

var salaryNumberRe = regexp.MustCompile(`\d[\d,]*(?:\.\d+)?\s*[kK]?`)

// parseSalaryText extracts numeric bounds from free-form salary strings like
// "$80,000 - $100,000 per year" or "€60k-€75k". Unparseable input yields nil.
func parseSalaryText(s string) *job.SalaryRange {
	if strings.TrimSpace(s) == "" {
		return nil
	}

	matches := salaryNumberRe.FindAllString(s, 2)
	if len(matches) == 0 {
		return nil
	}

	values := make([]float64, 0, len(matches))
	for _, m := range matches {
		v, ok := parseSalaryNumber(m)
		if !ok {
			continue
		}
		values = append(values, v)
	}
	if len(values) == 0 {
		return nil
	}

	r := &job.SalaryRange{Min: values[0], Max: values[0], Currency: currencyFromSymbol(s)}
	if len(values) > 1 {
		r.Max = values[1]
	}
	if r.Max < r.Min {
		r.Min, r.Max = r.Max, r.Min
	}
	return r
}

func parseSalaryNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	multiplier := 1.0
	if strings.HasSuffix(s, "k") || strings.HasSuffix(s, "K") {
		multiplier = 1000
		s = strings.TrimSpace(s[:len(s)-1])
	}
	s = strings.ReplaceAll(s, ",", "")

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v * multiplier, true
}

func currencyFromSymbol(s string) string {
	switch {
	case strings.Contains(s, "$"):
		return "USD"
	case strings.Contains(s, "€"):
		return "EUR"
	case strings.Contains(s, "£"):
		return "GBP"
	default:
		return ""
	}
}

func containsRemote(s string) bool {
	return strings.Contains(strings.ToLower(s), "remote")
}

func parseDate(s string, layouts ...string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

func firstNonEmpty(values []string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
