package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/sponsorscout/jobengine/app/job"
)

// Fingerprint derives the stable identity key for a listing. The primary key
// is (source, sourceJobId); sources without stable IDs fall back to a
// lowercased title|company|location composite. The fallback accepts a higher
// false-negative rate on dedup in exchange for never merging unrelated
// postings.
func Fingerprint(l job.Listing) string {
	var key string
	if l.SourceJobID != "" {
		key = string(l.Source) + "|" + l.SourceJobID
	} else {
		key = strings.ToLower(strings.Join([]string{
			string(l.Source), l.Title, l.Company, l.Location,
		}, "|"))
	}

	hash := sha256.Sum256([]byte(key))
	return hex.EncodeToString(hash[:])
}

// ContentHash covers the mutable fields whose change makes a re-observed
// posting count as updated rather than skipped.
func ContentHash(l job.Listing) string {
	var salary string
	if l.Salary != nil {
		salary = fmt.Sprintf("%.2f|%.2f|%s", l.Salary.Min, l.Salary.Max, l.Salary.Currency)
	}

	content := strings.Join([]string{
		l.Title,
		l.Description,
		salary,
		fmt.Sprintf("%t", l.Remote),
		string(l.EmploymentType),
	}, "|")

	hash := sha256.Sum256([]byte(content))
	return hex.EncodeToString(hash[:])
}
