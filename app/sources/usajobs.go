package sources

import (
	"context"
	"net/http"
	"net/url"

	"github.com/sponsorscout/jobengine/app/job"
)

const (
	usaJobsURL  = "https://data.usajobs.gov/api/search"
	usaJobsHost = "data.usajobs.gov"
)

// USAJobsItem mirrors one search result of the USAJobs API. The interesting
// fields sit under MatchedObjectDescriptor.
type USAJobsItem struct {
	MatchedObjectID         string `json:"MatchedObjectId"`
	MatchedObjectDescriptor struct {
		PositionID              string   `json:"PositionID"`
		PositionTitle           string   `json:"PositionTitle"`
		OrganizationName        string   `json:"OrganizationName"`
		PositionLocationDisplay string   `json:"PositionLocationDisplay"`
		PositionURI             string   `json:"PositionURI"`
		ApplyURI                []string `json:"ApplyURI"`
		PublicationStartDate    string   `json:"PublicationStartDate"`
		PositionSchedule        []struct {
			Name string `json:"Name"`
			Code string `json:"Code"`
		} `json:"PositionSchedule"`
		PositionRemuneration []struct {
			MinimumRange     string `json:"MinimumRange"`
			MaximumRange     string `json:"MaximumRange"`
			RateIntervalCode string `json:"RateIntervalCode"`
		} `json:"PositionRemuneration"`
		UserArea struct {
			Details struct {
				JobSummary   string `json:"JobSummary"`
				Teleworkable bool   `json:"Teleworkable"`
			} `json:"Details"`
		} `json:"UserArea"`
	} `json:"MatchedObjectDescriptor"`
}

func (USAJobsItem) rawListing() {}

type usaJobsResponse struct {
	SearchResult struct {
		SearchResultItems []USAJobsItem `json:"SearchResultItems"`
	} `json:"SearchResult"`
}

// USAJobs fetches federal listings from the USAJobs search API. The API
// requires an Authorization-Key header and a User-Agent set to the
// registered contact email.
type USAJobs struct {
	client   *http.Client
	apiKey   string
	email    string
	keywords string
	baseURL  string
}

func NewUSAJobs(client *http.Client, apiKey, email, keywords string) *USAJobs {
	return &USAJobs{
		client:   client,
		apiKey:   apiKey,
		email:    email,
		keywords: keywords,
		baseURL:  usaJobsURL,
	}
}

func (u *USAJobs) Source() job.Source {
	return job.SourceUSAJobs
}

func (u *USAJobs) Fetch(ctx context.Context) ([]Raw, error) {
	params := url.Values{}
	params.Set("Keyword", u.keywords)
	params.Set("ResultsPerPage", "500")

	headers := map[string]string{
		"Host":              usaJobsHost,
		"Authorization-Key": u.apiKey,
	}

	var resp usaJobsResponse
	if err := getJSON(ctx, u.client, u.baseURL+"?"+params.Encode(), u.email, headers, &resp); err != nil {
		return nil, err
	}

	raws := make([]Raw, 0, len(resp.SearchResult.SearchResultItems))
	for _, item := range resp.SearchResult.SearchResultItems {
		raws = append(raws, item)
	}

	return raws, nil
}
