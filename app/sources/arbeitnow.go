package sources

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sponsorscout/jobengine/app/job"
)

const (
	arbeitnowURL      = "https://www.arbeitnow.com/api/job-board-api"
	arbeitnowMaxPages = 3
)

// ArbeitnowJob mirrors one entry of the Arbeitnow job-board API.
type ArbeitnowJob struct {
	Slug        string   `json:"slug"`
	CompanyName string   `json:"company_name"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Remote      bool     `json:"remote"`
	URL         string   `json:"url"`
	Tags        []string `json:"tags"`
	JobTypes    []string `json:"job_types"`
	Location    string   `json:"location"`
	CreatedAt   int64    `json:"created_at"` // unix seconds
}

func (ArbeitnowJob) rawListing() {}

type arbeitnowResponse struct {
	Data  []ArbeitnowJob `json:"data"`
	Links struct {
		Next string `json:"next"`
	} `json:"links"`
}

// Arbeitnow fetches listings from the Arbeitnow job-board API. No key
// required; pagination is bounded to keep run time predictable.
type Arbeitnow struct {
	client    *http.Client
	userAgent string
	baseURL   string
}

func NewArbeitnow(client *http.Client, userAgent string) *Arbeitnow {
	return &Arbeitnow{client: client, userAgent: userAgent, baseURL: arbeitnowURL}
}

func (a *Arbeitnow) Source() job.Source {
	return job.SourceArbeitnow
}

func (a *Arbeitnow) Fetch(ctx context.Context) ([]Raw, error) {
	var raws []Raw

	for page := 1; page <= arbeitnowMaxPages; page++ {
		var resp arbeitnowResponse
		url := fmt.Sprintf("%s?page=%d", a.baseURL, page)
		if err := getJSON(ctx, a.client, url, a.userAgent, nil, &resp); err != nil {
			return nil, fmt.Errorf("page %d: %w", page, err)
		}

		for _, entry := range resp.Data {
			raws = append(raws, entry)
		}

		if resp.Links.Next == "" || len(resp.Data) == 0 {
			break
		}
	}

	return raws, nil
}
