// Package normalize turns raw source records into canonical job listings.
// Everything here is pure: the caller supplies the clock.
package normalize

import (
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/spigell/job-aggregator/internal/jobs"
)

// Listing builds the canonical record for one raw record of source.
// Relative links are resolved against searchURL.
func Listing(source, searchURL string, raw jobs.RawListing, now time.Time) jobs.JobListing {
	postedAt := raw.PostedAt
	if postedAt.IsZero() {
		postedAt = ParsePosted(raw.PostedText, now)
	}

	location := orDefault(raw.Location, jobs.NotSpecified)

	return jobs.JobListing{
		Source:      source,
		Title:       orDefault(raw.Title, jobs.NotSpecified),
		Company:     orDefault(raw.Company, jobs.NotSpecified),
		Location:    location,
		JobType:     ClassifyJobType(raw.JobType, location),
		Experience:  orDefault(raw.Experience, jobs.NotSpecified),
		Salary:      orDefault(raw.Salary, jobs.NotDisclosed),
		Description: Description(raw.Description),
		URL:         ResolveURL(searchURL, raw.URL),
		Posted:      jobs.HumanizeAge(now.Sub(postedAt)),
		PostedAt:    postedAt,
		FetchedAt:   now,
	}
}

// Listings normalizes a whole batch, keeping fetch order.
func Listings(source, searchURL string, raws []jobs.RawListing, now time.Time) []jobs.JobListing {
	out := make([]jobs.JobListing, 0, len(raws))
	for _, raw := range raws {
		out = append(out, Listing(source, searchURL, raw, now))
	}
	return out
}

// Description strips markup, collapses whitespace and truncates to
// jobs.DescriptionSize characters.
func Description(s string) string {
	s = CleanText(s)
	if s == "" {
		return jobs.NoDescription
	}
	return Truncate(s, jobs.DescriptionSize)
}

// CleanText removes HTML markup when present and collapses whitespace.
func CleanText(s string) string {
	if strings.ContainsRune(s, '<') {
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(s)); err == nil {
			doc.Find("br, p, li, div").Each(func(_ int, sel *goquery.Selection) {
				sel.AppendHtml(" ")
			})
			s = doc.Text()
		}
	}
	return strings.Join(strings.Fields(s), " ")
}

// Truncate cuts s to at most limit characters without splitting a
// multi-byte character.
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}

	count := 0
	for i := range s {
		if count == limit {
			return strings.TrimRight(s[:i], " ")
		}
		count++
	}
	return s
}

// ResolveURL makes ref absolute against base. An empty ref resolves to base.
func ResolveURL(base, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return base
	}

	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	r.Fragment = ""

	if r.IsAbs() {
		return r.String()
	}

	b, err := url.Parse(base)
	if err != nil || !b.IsAbs() {
		return r.String()
	}

	return b.ResolveReference(r).String()
}

// ClassifyJobType maps free-text employment types onto the closed enum.
// A remote location implies a remote job when nothing else is known.
func ClassifyJobType(text, location string) jobs.JobType {
	if t, err := jobs.ParseJobType(text); err == nil && t.IsSpecified() {
		return t
	}

	v := strings.ToLower(text)
	switch {
	case strings.Contains(v, "intern"), strings.Contains(v, "trainee"):
		return jobs.JobTypeInternship
	case strings.Contains(v, "part"):
		return jobs.JobTypePartTime
	case strings.Contains(v, "contract"), strings.Contains(v, "freelance"),
		strings.Contains(v, "temporary"), strings.Contains(v, "project"):
		return jobs.JobTypeContract
	case strings.Contains(v, "remote"), strings.Contains(v, "work from home"), strings.Contains(v, "wfh"):
		return jobs.JobTypeRemote
	case strings.Contains(v, "full"), strings.Contains(v, "permanent"):
		return jobs.JobTypeFullTime
	}

	loc := strings.ToLower(location)
	if strings.Contains(loc, "remote") || strings.Contains(loc, "work from home") {
		return jobs.JobTypeRemote
	}

	return jobs.JobTypeUnspecified
}

func orDefault(s, def string) string {
	s = CleanText(s)
	if s == "" {
		return def
	}
	return s
}
