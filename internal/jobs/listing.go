package jobs

import (
	"fmt"
	"strings"
	"time"
)

const (
	NotSpecified    = "Not specified"
	NotDisclosed    = "Not disclosed"
	NoDescription   = "No description available"
	DescriptionSize = 500
)

// JobListing is the canonical record every source is normalized into.
type JobListing struct {
	Source      string    `json:"source"`
	Title       string    `json:"title"`
	Company     string    `json:"company"`
	Location    string    `json:"location"`
	JobType     JobType   `json:"job_type"`
	Experience  string    `json:"experience_required"`
	Salary      string    `json:"salary_range"`
	Description string    `json:"description"`
	URL         string    `json:"job_url"`
	Posted      string    `json:"posted"`
	PostedAt    time.Time `json:"posted_at"`
	FetchedAt   time.Time `json:"fetched_at"`
	IsCurrent   bool      `json:"is_current"`
	IsSynthetic bool      `json:"is_synthetic"`
}

// Key identifies a listing inside a single source.
type Key struct {
	Source  string
	Title   string
	Company string
}

func (l *JobListing) Key() Key {
	return Key{
		Source:  l.Source,
		Title:   foldKey(l.Title),
		Company: foldKey(l.Company),
	}
}

func (l *JobListing) String() string {
	return fmt.Sprintf("%s / %s / %s / %s", l.Title, l.Company, l.Location, l.URL)
}

func foldKey(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// RawListing is what a source adapter extracts before normalization.
// Any field may be empty.
type RawListing struct {
	Title       string
	Company     string
	Location    string
	JobType     string
	Experience  string
	Salary      string
	Description string
	URL         string
	// PostedText is the portal's own wording, e.g. "3 days ago".
	PostedText string
	// PostedAt is set when the portal exposes an exact timestamp.
	PostedAt time.Time
}

// Bucket holds the listings of one source during and after an aggregation run.
type Bucket struct {
	Source    string
	SearchURL string
	Listings  []JobListing
	// Stale keeps tagged listings excluded from the current-only view.
	Stale []JobListing
}

func (b *Bucket) Len() int {
	return len(b.Listings)
}

func (b *Bucket) Genuine() int {
	n := 0
	for i := range b.Listings {
		if !b.Listings[i].IsSynthetic {
			n++
		}
	}
	return n
}

func (b *Bucket) Synthetic() int {
	return b.Len() - b.Genuine()
}

// HumanizeAge renders the age of a posting the way job portals do.
func HumanizeAge(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return plural(int(d/time.Minute), "minute")
	case d < 24*time.Hour:
		return plural(int(d/time.Hour), "hour")
	case d < 48*time.Hour:
		return "yesterday"
	case d < 7*24*time.Hour:
		return plural(int(d/(24*time.Hour)), "day")
	default:
		return plural(int(d/(7*24*time.Hour)), "week")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s ago", unit)
	}
	return fmt.Sprintf("%d %ss ago", n, unit)
}
