package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/sponsorscout/jobengine/app/job"
)

const careerjetURL = "http://public.api.careerjet.net/search"

// CareerjetJob mirrors one entry of the Careerjet public search API.
type CareerjetJob struct {
	Title     string `json:"title"`
	Company   string `json:"company"`
	Locations string `json:"locations"`
	Salary    string `json:"salary"`
	Date      string `json:"date"`
	URL       string `json:"url"`
	Site      string `json:"site"`
	Snippet   string `json:"description"`
}

func (CareerjetJob) rawListing() {}

type careerjetResponse struct {
	Type  string         `json:"type"`
	Jobs  []CareerjetJob `json:"jobs"`
	Pages int            `json:"pages"`
}

// Careerjet fetches listings from the Careerjet public search API using an
// affiliate ID.
type Careerjet struct {
	client    *http.Client
	affID     string
	userAgent string
	keywords  string
	location  string
	baseURL   string
}

func NewCareerjet(client *http.Client, affID, userAgent, keywords, location string) *Careerjet {
	return &Careerjet{
		client:    client,
		affID:     affID,
		userAgent: userAgent,
		keywords:  keywords,
		location:  location,
		baseURL:   careerjetURL,
	}
}

func (c *Careerjet) Source() job.Source {
	return job.SourceCareerjet
}

func (c *Careerjet) Fetch(ctx context.Context) ([]Raw, error) {
	params := url.Values{}
	params.Set("locale_code", "en_US")
	params.Set("keywords", c.keywords)
	params.Set("location", c.location)
	params.Set("affid", c.affID)
	params.Set("user_agent", c.userAgent)
	params.Set("user_ip", "127.0.0.1")

	var resp careerjetResponse
	if err := getJSON(ctx, c.client, c.baseURL+"?"+params.Encode(), c.userAgent, nil, &resp); err != nil {
		return nil, err
	}

	if resp.Type == "ERROR" {
		return nil, fmt.Errorf("careerjet returned error response")
	}

	raws := make([]Raw, 0, len(resp.Jobs))
	for _, entry := range resp.Jobs {
		raws = append(raws, entry)
	}

	return raws, nil
}
