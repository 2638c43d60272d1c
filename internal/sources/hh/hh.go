// Package hh searches the public vacancies API of hh.ru.
package hh

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/job-aggregator/internal/jobs"
	"github.com/spigell/job-aggregator/internal/webclient"
)

const (
	Name = "hh"

	apiURL  = "https://api.hh.ru"
	siteURL = "https://hh.ru"

	SearchPath = "/vacancies"
	AreasPath  = "/suggests/areas"

	// Max value for search per page.
	maxPerPage = 100

	defaultMaxPages  = 2
	defaultPageDelay = 500 * time.Millisecond
)

type Config struct {
	BaseURL    string
	SiteURL    string
	MaxPages   int
	PageDelay  time.Duration
	PageJitter time.Duration
}

type Client struct {
	web    *webclient.Client
	cfg    Config
	logger *zap.Logger
}

func New(web *webclient.Client, cfg Config, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = apiURL
	}
	if cfg.SiteURL == "" {
		cfg.SiteURL = siteURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	cfg.SiteURL = strings.TrimRight(cfg.SiteURL, "/")
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = defaultMaxPages
	}
	if cfg.PageDelay <= 0 {
		cfg.PageDelay = defaultPageDelay
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{web: web, cfg: cfg, logger: logger}
}

func (c *Client) Name() string { return Name }

// SearchURL points at the public search page, not the API.
func (c *Client) SearchURL(q jobs.SearchQuery) string {
	v := url.Values{"text": {q.Keywords}}
	return c.cfg.SiteURL + "/search/vacancy?" + v.Encode()
}

func (c *Client) Fetch(ctx context.Context, q jobs.SearchQuery, limit int) ([]jobs.RawListing, error) {
	params := &SearchParams{
		Text:    q.Keywords,
		OrderBy: "publication_time",
		PerPage: perPage(limit),
	}

	if q.Location != "" {
		area, err := c.resolveArea(ctx, q.Location)
		switch {
		case err != nil:
			return nil, jobs.Classify(Name, fmt.Errorf("resolve area %q: %w", q.Location, err))
		case area == "":
			c.logger.Debug("unknown area, searching everywhere", zap.String("location", q.Location))
		default:
			params.Areas = []string{area}
		}
	}

	vacancies, err := c.search(ctx, params, limit)

	out := make([]jobs.RawListing, 0, len(vacancies))
	for _, v := range vacancies {
		out = append(out, v.Raw())
	}

	if err != nil {
		return out, jobs.Classify(Name, err)
	}
	return out, nil
}

func (c *Client) resolveArea(ctx context.Context, location string) (string, error) {
	var resp struct {
		Items []struct {
			ID   string `json:"id"`
			Text string `json:"text"`
		} `json:"items"`
	}

	if err := c.web.GetJSON(ctx, c.cfg.BaseURL+AreasPath, url.Values{"text": {location}}, &resp); err != nil {
		return "", err
	}

	if len(resp.Items) == 0 {
		return "", nil
	}
	return resp.Items[0].ID, nil
}

func perPage(limit int) int {
	if limit <= 0 || limit > maxPerPage {
		return maxPerPage
	}
	return limit
}
