package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/sponsorscout/jobengine/app/cfg"
	"github.com/sponsorscout/jobengine/app/job"
)

// Raw is the sealed set of per-source payload variants. Each connector
// returns its own typed shape; the normalizer consumes them by type switch so
// mapping errors surface at the boundary instead of downstream.
type Raw interface {
	rawListing()
}

// Connector fetches raw listings from one external job source. Zero results
// is success; transport errors, non-2xx responses, and malformed payloads are
// errors scoped to that source only.
type Connector interface {
	Source() job.Source
	Fetch(ctx context.Context) ([]Raw, error)
}

// Registry builds the enabled connector set. A source whose required
// credentials are missing is skipped with a warning, never a fatal error.
func Registry(client *http.Client) []Connector {
	c := cfg.Get()

	connectors := []Connector{
		NewRemoteOK(client, c.UserAgent),
		NewArbeitnow(client, c.UserAgent),
	}

	if c.USAJobsAPIKey != "" && c.USAJobsEmail != "" {
		connectors = append(connectors, NewUSAJobs(client, c.USAJobsAPIKey, c.USAJobsEmail, c.SearchKeywords))
	} else {
		slog.Warn("USAJobs source disabled", "reason", "USAJOBS_API_KEY or USAJOBS_EMAIL not set")
	}

	if c.JoobleAPIKey != "" {
		connectors = append(connectors, NewJooble(client, c.JoobleAPIKey, c.SearchKeywords, c.SearchLocation))
	} else {
		slog.Warn("Jooble source disabled", "reason", "JOOBLE_API_KEY not set")
	}

	if c.CareerjetAffID != "" {
		connectors = append(connectors, NewCareerjet(client, c.CareerjetAffID, c.UserAgent, c.SearchKeywords, c.SearchLocation))
	} else {
		slog.Warn("Careerjet source disabled", "reason", "CAREERJET_AFFID not set")
	}

	targets, err := LoadUniversityTargets(c.UniversityFile)
	if err != nil {
		slog.Warn("University source disabled", "reason", err.Error())
	} else if len(targets) > 0 {
		connectors = append(connectors, NewUniversity(client, c.UserAgent, targets))
	}

	return connectors
}

// getJSON issues a GET with the given headers and decodes the JSON body into
// out. Non-2xx responses are returned as errors.
func getJSON(ctx context.Context, client *http.Client, url, userAgent string, headers map[string]string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}
