package sources

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/sponsorscout/jobengine/app/job"
)

const remoteOKURL = "https://remoteok.com/api"

// RemoteOKJob mirrors one entry of the RemoteOK public API array. The first
// array element is a legal notice without position data and is skipped.
type RemoteOKJob struct {
	ID          json.Number `json:"id"`
	Slug        string      `json:"slug"`
	Position    string      `json:"position"`
	Company     string      `json:"company"`
	Location    string      `json:"location"`
	Description string      `json:"description"`
	Tags        []string    `json:"tags"`
	Date        string      `json:"date"`
	URL         string      `json:"url"`
	ApplyURL    string      `json:"apply_url"`
	SalaryMin   float64     `json:"salary_min"`
	SalaryMax   float64     `json:"salary_max"`
}

func (RemoteOKJob) rawListing() {}

// RemoteOK fetches listings from the RemoteOK public API. No key required.
type RemoteOK struct {
	client    *http.Client
	userAgent string
	baseURL   string
}

func NewRemoteOK(client *http.Client, userAgent string) *RemoteOK {
	return &RemoteOK{client: client, userAgent: userAgent, baseURL: remoteOKURL}
}

func (r *RemoteOK) Source() job.Source {
	return job.SourceRemoteOK
}

func (r *RemoteOK) Fetch(ctx context.Context) ([]Raw, error) {
	var entries []RemoteOKJob
	if err := getJSON(ctx, r.client, r.baseURL, r.userAgent, nil, &entries); err != nil {
		return nil, err
	}

	raws := make([]Raw, 0, len(entries))
	for _, entry := range entries {
		// Legal-notice element and any malformed entries carry no position.
		if entry.Position == "" {
			continue
		}
		raws = append(raws, entry)
	}

	return raws, nil
}
