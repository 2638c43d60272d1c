// Package remoteok reads the public RemoteOK JSON feed.
package remoteok

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"github.com/spigell/job-aggregator/internal/jobs"
	"github.com/spigell/job-aggregator/internal/webclient"
)

const (
	Name    = "remoteok"
	baseURL = "https://remoteok.com"
)

type Config struct {
	BaseURL string
}

type Client struct {
	web    *webclient.Client
	cfg    Config
	logger *zap.Logger
}

func New(web *webclient.Client, cfg Config, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = baseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{web: web, cfg: cfg, logger: logger}
}

type posting struct {
	ID          string `json:"id"`
	Position    string `json:"position"`
	Company     string `json:"company"`
	Location    string `json:"location"`
	Description string `json:"description"`
	Date        string `json:"date"`
	URL         string `json:"url"`
	SalaryMin   int    `json:"salary_min"`
	SalaryMax   int    `json:"salary_max"`
}

func (c *Client) Name() string { return Name }

func (c *Client) SearchURL(q jobs.SearchQuery) string {
	return c.cfg.BaseURL + "/remote-" + strings.Join(tags(q.Keywords), "+") + "-jobs"
}

// Fetch returns the newest postings tagged with the query keywords.
// RemoteOK is remote-only, so the location is not sent.
func (c *Client) Fetch(ctx context.Context, q jobs.SearchQuery, limit int) ([]jobs.RawListing, error) {
	var feed []any
	params := url.Values{"tags": {strings.Join(tags(q.Keywords), ",")}}
	if err := c.web.GetJSON(ctx, c.cfg.BaseURL+"/api", params, &feed); err != nil {
		return nil, jobs.Classify(Name, err)
	}

	// The first element is legal notice metadata.
	if len(feed) > 0 {
		feed = feed[1:]
	}

	var postings []posting
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &postings,
		TagName:          "json",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(feed); err != nil {
		return nil, jobs.NewSourceError(Name, jobs.ErrSourceParse, err)
	}

	c.logger.Debug("remoteok feed", zap.Int("postings", len(postings)))

	out := make([]jobs.RawListing, 0, len(postings))
	for _, p := range postings {
		if p.Position == "" {
			continue
		}
		location := p.Location
		if location == "" {
			location = "Remote"
		}
		out = append(out, jobs.RawListing{
			Title:       p.Position,
			Company:     p.Company,
			Location:    location,
			JobType:     string(jobs.JobTypeRemote),
			Salary:      salary(p.SalaryMin, p.SalaryMax),
			Description: p.Description,
			URL:         p.URL,
			PostedText:  p.Date,
		})
		if limit > 0 && len(out) == limit {
			break
		}
	}

	return out, nil
}

func tags(keywords string) []string {
	return strings.Fields(strings.ToLower(keywords))
}

func salary(lo, hi int) string {
	switch {
	case lo > 0 && hi > 0:
		return fmt.Sprintf("$%d-$%d", lo, hi)
	case lo > 0:
		return fmt.Sprintf("from $%d", lo)
	default:
		return ""
	}
}
