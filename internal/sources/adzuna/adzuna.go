// Package adzuna searches the Adzuna jobs API. It needs an application id and key.
package adzuna

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/job-aggregator/internal/jobs"
	"github.com/spigell/job-aggregator/internal/utils"
	"github.com/spigell/job-aggregator/internal/webclient"
)

const (
	Name = "adzuna"

	baseURL        = "https://api.adzuna.com/v1/api/jobs"
	defaultCountry = "in"
	maxPageSize    = 50
	maxPages       = 3
)

var ErrCredentials = errors.New("adzuna app id and app key are required")

type Config struct {
	BaseURL    string
	AppID      string
	AppKey     string
	Country    string
	PageDelay  time.Duration
	PageJitter time.Duration
}

// Fetcher fetches job offers from the Adzuna public API.
type Fetcher struct {
	web    *webclient.Client
	cfg    Config
	logger *zap.Logger
}

// New fails fast when credentials are missing.
func New(web *webclient.Client, cfg Config, logger *zap.Logger) (*Fetcher, error) {
	if strings.TrimSpace(cfg.AppID) == "" || strings.TrimSpace(cfg.AppKey) == "" {
		return nil, ErrCredentials
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = baseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Country == "" {
		cfg.Country = defaultCountry
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Fetcher{web: web, cfg: cfg, logger: logger}, nil
}

// response mirrors the top-level Adzuna JSON response.
type response struct {
	Results []result `json:"results"`
	Count   int      `json:"count"`
}

// result mirrors a single Adzuna job listing.
type result struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	SalaryMin   float64 `json:"salary_min"`
	SalaryMax   float64 `json:"salary_max"`
	RedirectURL string  `json:"redirect_url"`
	Created     string  `json:"created"`
	Company     struct {
		DisplayName string `json:"display_name"`
	} `json:"company"`
	Location struct {
		DisplayName string `json:"display_name"`
	} `json:"location"`
	ContractTime string `json:"contract_time"`
	ContractType string `json:"contract_type"`
}

func (f *Fetcher) Name() string { return Name }

// SearchURL is the public Adzuna search page for the configured country.
func (f *Fetcher) SearchURL(q jobs.SearchQuery) string {
	v := url.Values{"q": {q.Keywords}}
	if q.Location != "" {
		v.Set("w", q.Location)
	}
	return "https://" + siteHost(f.cfg.Country) + "/search?" + v.Encode()
}

// Fetch iterates through pages until the limit, an empty page or maxPages.
func (f *Fetcher) Fetch(ctx context.Context, q jobs.SearchQuery, limit int) ([]jobs.RawListing, error) {
	var out []jobs.RawListing

	for page := 1; page <= maxPages; page++ {
		if page > 1 {
			if err := utils.WaitFor(ctx, utils.Jitter(f.cfg.PageDelay, f.cfg.PageJitter)); err != nil {
				return out, jobs.Classify(Name, err)
			}
		}

		batch, err := f.fetchPage(ctx, q, page, limit)
		if err != nil {
			return out, jobs.Classify(Name, fmt.Errorf("page %d: %w", page, err))
		}
		out = append(out, batch...)

		if limit > 0 && len(out) >= limit {
			return out[:limit], nil
		}
		if len(batch) < pageSize(limit) {
			break
		}
	}

	return out, nil
}

func (f *Fetcher) fetchPage(ctx context.Context, q jobs.SearchQuery, page, limit int) ([]jobs.RawListing, error) {
	endpoint := fmt.Sprintf("%s/%s/search/%d", f.cfg.BaseURL, f.cfg.Country, page)

	params := url.Values{}
	params.Set("app_id", f.cfg.AppID)
	params.Set("app_key", f.cfg.AppKey)
	params.Set("results_per_page", strconv.Itoa(pageSize(limit)))
	params.Set("what", q.Keywords)
	if q.Location != "" {
		params.Set("where", q.Location)
	}
	params.Set("sort_by", "date")

	var resp response
	if err := f.web.GetJSON(ctx, endpoint, params, &resp); err != nil {
		return nil, err
	}

	f.logger.Debug("adzuna page", zap.Int("page", page), zap.Int("results", len(resp.Results)), zap.Int("count", resp.Count))

	out := make([]jobs.RawListing, 0, len(resp.Results))
	for _, r := range resp.Results {
		out = append(out, jobs.RawListing{
			Title:       r.Title,
			Company:     r.Company.DisplayName,
			Location:    r.Location.DisplayName,
			JobType:     jobType(r.ContractTime, r.ContractType),
			Salary:      salary(r.SalaryMin, r.SalaryMax),
			Description: r.Description,
			URL:         r.RedirectURL,
			PostedText:  r.Created,
		})
	}

	return out, nil
}

func siteHost(country string) string {
	switch country {
	case "gb":
		return "www.adzuna.co.uk"
	case "in", "za", "nz":
		return "www.adzuna.co." + country
	case "au", "br", "mx", "sg":
		return "www.adzuna.com." + country
	default:
		return "www.adzuna." + country
	}
}

func pageSize(limit int) int {
	if limit > 0 && limit < maxPageSize {
		return limit
	}
	return maxPageSize
}

func jobType(contractTime, contractType string) string {
	switch {
	case contractType == "contract":
		return string(jobs.JobTypeContract)
	case contractTime == "part_time":
		return string(jobs.JobTypePartTime)
	case contractTime == "full_time":
		return string(jobs.JobTypeFullTime)
	default:
		return contractType
	}
}

func salary(lo, hi float64) string {
	switch {
	case lo > 0 && hi > 0 && lo != hi:
		return fmt.Sprintf("%.0f-%.0f", lo, hi)
	case lo > 0:
		return fmt.Sprintf("%.0f", lo)
	case hi > 0:
		return fmt.Sprintf("up to %.0f", hi)
	default:
		return ""
	}
}
