package sources

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	"gopkg.in/yaml.v3"

	"github.com/sponsorscout/jobengine/app/job"
)

// UniversityTarget describes one career-page endpoint. HTML targets are
// scraped with CSS selectors; RSS targets are parsed as feeds.
type UniversityTarget struct {
	Name      string `yaml:"name"`
	URL       string `yaml:"url"`
	Kind      string `yaml:"kind"` // "html" or "rss"
	Selectors struct {
		Item     string `yaml:"item"`
		Title    string `yaml:"title"`
		Link     string `yaml:"link"`
		Location string `yaml:"location"`
	} `yaml:"selectors"`
}

type universityTargetsFile struct {
	Universities []UniversityTarget `yaml:"universities"`
}

// UniversityPosting is a raw posting scraped from a university career page.
// University sources lack stable job IDs; RSS GUIDs are used when present.
type UniversityPosting struct {
	University  string
	Title       string
	Location    string
	URL         string
	GUID        string
	Description string
	PostedAt    *time.Time
}

func (UniversityPosting) rawListing() {}

// LoadUniversityTargets reads the target list from path, or returns the
// built-in list when path is empty.
func LoadUniversityTargets(path string) ([]UniversityTarget, error) {
	if path == "" {
		return defaultUniversityTargets(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read university targets: %w", err)
	}

	var parsed universityTargetsFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse university targets: %w", err)
	}

	for i, target := range parsed.Universities {
		if target.Name == "" || target.URL == "" {
			return nil, fmt.Errorf("university target %d is missing name or url", i)
		}
		switch target.Kind {
		case "rss":
		case "html":
			if target.Selectors.Item == "" || target.Selectors.Title == "" {
				return nil, fmt.Errorf("html target %q needs item and title selectors", target.Name)
			}
		default:
			return nil, fmt.Errorf("university target %q has unknown kind %q", target.Name, target.Kind)
		}
	}

	return parsed.Universities, nil
}

func defaultUniversityTargets() []UniversityTarget {
	hei := func(name, feedURL string) UniversityTarget {
		return UniversityTarget{Name: name, URL: feedURL, Kind: "rss"}
	}
	return []UniversityTarget{
		hei("Massachusetts Institute of Technology", "https://careers.mit.edu/feed/"),
		hei("Stanford University", "https://careersearch.stanford.edu/jobs.rss"),
		hei("University of Michigan", "https://careers.umich.edu/rss.xml"),
	}
}

// University iterates a fixed set of career-page targets. A failing target is
// logged and skipped; the fetch only fails when every target fails, matching
// the per-source partial-failure contract one level down.
type University struct {
	client    *http.Client
	userAgent string
	targets   []UniversityTarget
	rss       *gofeed.Parser
}

func NewUniversity(client *http.Client, userAgent string, targets []UniversityTarget) *University {
	return &University{
		client:    client,
		userAgent: userAgent,
		targets:   targets,
		rss:       gofeed.NewParser(),
	}
}

func (u *University) Source() job.Source {
	return job.SourceUniversity
}

func (u *University) Fetch(ctx context.Context) ([]Raw, error) {
	var raws []Raw
	failures := 0

	for _, target := range u.targets {
		postings, err := u.fetchTarget(ctx, target)
		if err != nil {
			slog.Warn("University target fetch failed", "university", target.Name, "error", err)
			failures++
			continue
		}
		raws = append(raws, postings...)
	}

	if failures == len(u.targets) && len(u.targets) > 0 {
		return nil, fmt.Errorf("all %d university targets failed", failures)
	}

	return raws, nil
}

func (u *University) fetchTarget(ctx context.Context, target UniversityTarget) ([]Raw, error) {
	body, err := u.fetchBody(ctx, target.URL)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	if target.Kind == "rss" {
		return u.parseFeed(target, body)
	}
	return u.parsePage(target, body)
}

func (u *University) fetchBody(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", u.userAgent)

	resp, err := u.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	return resp.Body, nil
}

func (u *University) parseFeed(target UniversityTarget, body io.Reader) ([]Raw, error) {
	feed, err := u.rss.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	raws := make([]Raw, 0, len(feed.Items))
	for _, item := range feed.Items {
		posting := UniversityPosting{
			University:  target.Name,
			Title:       strings.TrimSpace(item.Title),
			URL:         item.Link,
			GUID:        item.GUID,
			Description: item.Description,
		}
		if item.PublishedParsed != nil {
			posting.PostedAt = item.PublishedParsed
		}
		raws = append(raws, posting)
	}

	return raws, nil
}

func (u *University) parsePage(target UniversityTarget, body io.Reader) ([]Raw, error) {
	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}

	base, err := url.Parse(target.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid target URL: %w", err)
	}

	var raws []Raw
	doc.Find(target.Selectors.Item).Each(func(_ int, sel *goquery.Selection) {
		posting := UniversityPosting{
			University: target.Name,
			Title:      strings.TrimSpace(sel.Find(target.Selectors.Title).First().Text()),
		}

		if target.Selectors.Location != "" {
			posting.Location = strings.TrimSpace(sel.Find(target.Selectors.Location).First().Text())
		}

		linkSel := sel.Find(target.Selectors.Link).First()
		if href, ok := linkSel.Attr("href"); ok {
			if ref, err := url.Parse(href); err == nil {
				posting.URL = base.ResolveReference(ref).String()
			}
		}

		raws = append(raws, posting)
	})

	return raws, nil
}
