package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/sponsorscout/jobengine/app/job"
)

const joobleURL = "https://jooble.org/api/"

// JoobleJob mirrors one entry of the Jooble search API response.
type JoobleJob struct {
	ID       int64  `json:"id"`
	Title    string `json:"title"`
	Location string `json:"location"`
	Snippet  string `json:"snippet"`
	Salary   string `json:"salary"`
	Source   string `json:"source"`
	Type     string `json:"type"`
	Link     string `json:"link"`
	Company  string `json:"company"`
	Updated  string `json:"updated"`
}

func (JoobleJob) rawListing() {}

type joobleResponse struct {
	TotalCount int         `json:"totalCount"`
	Jobs       []JoobleJob `json:"jobs"`
}

// Jooble fetches listings from the Jooble API (key appended to the URL,
// search criteria POSTed as JSON).
type Jooble struct {
	client   *http.Client
	apiKey   string
	keywords string
	location string
	baseURL  string
}

func NewJooble(client *http.Client, apiKey, keywords, location string) *Jooble {
	return &Jooble{
		client:   client,
		apiKey:   apiKey,
		keywords: keywords,
		location: location,
		baseURL:  joobleURL,
	}
}

func (j *Jooble) Source() job.Source {
	return job.SourceJooble
}

func (j *Jooble) Fetch(ctx context.Context) ([]Raw, error) {
	payload, err := json.Marshal(map[string]string{
		"keywords": j.keywords,
		"location": j.location,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode search payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, j.baseURL+j.apiKey, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := j.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	var decoded joobleResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	raws := make([]Raw, 0, len(decoded.Jobs))
	for _, entry := range decoded.Jobs {
		raws = append(raws, entry)
	}

	return raws, nil
}
