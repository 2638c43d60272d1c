// Package htmlboard scrapes job portals that only publish HTML search pages.
// Each portal is described by a Layout of CSS selectors.
package htmlboard

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/spigell/job-aggregator/internal/jobs"
	"github.com/spigell/job-aggregator/internal/utils"
)

const (
	defaultMaxPages   = 2
	defaultPageDelay  = time.Second
	defaultPageJitter = time.Second
)

// Layout describes where a portal keeps the parts of a job card.
type Layout struct {
	Name    string
	BaseURL string

	Card        string
	Title       string
	Link        string
	Company     string
	Location    string
	Salary      string
	Experience  string
	JobType     string
	Posted      string
	Description string
	// PostedAttr holds an exact timestamp attribute on the Posted element.
	PostedAttr string

	// PageURL builds the search URL for a zero-based page.
	PageURL func(base string, q jobs.SearchQuery, page int) string
}

type Config struct {
	BaseURL    string
	UserAgent  string
	MaxPages   int
	PageDelay  time.Duration
	PageJitter time.Duration
}

type Board struct {
	layout Layout
	cfg    Config
	logger *zap.Logger
}

func New(layout Layout, cfg Config, logger *zap.Logger) *Board {
	if cfg.BaseURL == "" {
		cfg.BaseURL = layout.BaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = defaultMaxPages
	}
	if cfg.PageDelay <= 0 {
		cfg.PageDelay = defaultPageDelay
	}
	if cfg.PageJitter < 0 {
		cfg.PageJitter = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Board{layout: layout, cfg: cfg, logger: logger}
}

func (b *Board) Name() string { return b.layout.Name }

func (b *Board) SearchURL(q jobs.SearchQuery) string {
	return b.layout.PageURL(b.cfg.BaseURL, q, 0)
}

// Fetch walks search pages until limit cards are collected or pages run out.
// On failure it returns what earlier pages yielded together with the error.
func (b *Board) Fetch(ctx context.Context, q jobs.SearchQuery, limit int) ([]jobs.RawListing, error) {
	var (
		out     []jobs.RawListing
		page    []jobs.RawListing
		skipped int
	)

	c := b.collector(ctx)
	c.OnHTML(b.layout.Card, func(e *colly.HTMLElement) {
		raw, ok := b.extract(e)
		if !ok {
			skipped++
			return
		}
		page = append(page, raw)
	})

	for p := 0; p < b.cfg.MaxPages && (limit <= 0 || len(out) < limit); p++ {
		if p > 0 {
			if err := utils.WaitFor(ctx, utils.Jitter(b.cfg.PageDelay, b.cfg.PageJitter)); err != nil {
				return trim(out, limit), jobs.Classify(b.Name(), err)
			}
		}

		page, skipped = nil, 0
		pageURL := b.layout.PageURL(b.cfg.BaseURL, q, p)

		if err := c.Visit(pageURL); err != nil {
			return trim(out, limit), jobs.Classify(b.Name(), fmt.Errorf("page %d: %w", p+1, err))
		}

		b.logger.Debug("page scraped",
			zap.String("url", pageURL),
			zap.Int("cards", len(page)),
			zap.Int("skipped", skipped),
		)

		if len(page) == 0 {
			if skipped > 0 {
				return trim(out, limit), jobs.NewSourceError(b.Name(), jobs.ErrSourceParse,
					fmt.Errorf("page %d: %d cards without a title", p+1, skipped))
			}
			break
		}

		out = append(out, page...)
	}

	return trim(out, limit), nil
}

func (b *Board) collector(ctx context.Context) *colly.Collector {
	c := colly.NewCollector(
		colly.UserAgent(b.cfg.UserAgent),
		colly.StdlibContext(ctx),
		colly.AllowURLRevisit(),
		colly.IgnoreRobotsTxt(),
	)

	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/html,application/xhtml+xml")
	})

	return c
}

func (b *Board) extract(e *colly.HTMLElement) (jobs.RawListing, bool) {
	l := b.layout
	raw := jobs.RawListing{
		Title:       text(e.DOM, l.Title),
		Company:     text(e.DOM, l.Company),
		Location:    text(e.DOM, l.Location),
		Salary:      text(e.DOM, l.Salary),
		Experience:  text(e.DOM, l.Experience),
		JobType:     text(e.DOM, l.JobType),
		Description: text(e.DOM, l.Description),
	}

	link := l.Link
	if link == "" {
		link = l.Title
	}
	if href := attr(e.DOM, link, "href"); href != "" {
		raw.URL = e.Request.AbsoluteURL(href)
	}

	if l.PostedAttr != "" {
		raw.PostedText = attr(e.DOM, l.Posted, l.PostedAttr)
	}
	if raw.PostedText == "" {
		raw.PostedText = text(e.DOM, l.Posted)
	}

	return raw, raw.Title != ""
}

func text(s *goquery.Selection, selector string) string {
	if selector == "" {
		return ""
	}
	return strings.TrimSpace(s.Find(selector).First().Text())
}

func attr(s *goquery.Selection, selector, name string) string {
	if selector == "" {
		return ""
	}
	v, _ := s.Find(selector).First().Attr(name)
	return strings.TrimSpace(v)
}

func trim(out []jobs.RawListing, limit int) []jobs.RawListing {
	if limit > 0 && len(out) > limit {
		return out[:limit]
	}
	return out
}
