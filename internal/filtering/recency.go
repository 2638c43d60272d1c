package filtering

import (
	"context"
	"errors"
	"time"

	"github.com/spigell/job-aggregator/internal/jobs"
)

const RecencyName = "recency"

type recencyFilter struct {
	toggle
	window       time.Duration
	includeStale bool
}

// NewRecency creates the filter tagging listings as current or stale.
// Stale listings leave the visible bucket unless stale ones were requested.
func NewRecency() Filter {
	return &recencyFilter{}
}

func (f *recencyFilter) Name() string { return RecencyName }

func (f *recencyFilter) Validate(cfg *Config) error {
	f.window = DefaultFreshnessWindow
	f.includeStale = false
	if cfg == nil {
		return nil
	}
	if cfg.FreshnessWindow < 0 {
		return errors.New("freshness window must not be negative")
	}
	if cfg.FreshnessWindow > 0 {
		f.window = cfg.FreshnessWindow
	}
	f.includeStale = cfg.IncludeStale
	return nil
}

func (f *recencyFilter) Apply(_ context.Context, deps Deps, b *jobs.Bucket) (*jobs.Bucket, Step, error) {
	initial := b.Len()
	MarkRecency(b.Listings, deps.Now, f.window)

	if f.includeStale {
		return b, Step{Initial: initial, Left: b.Len()}, nil
	}

	current := b.Listings[:0:0]
	for _, l := range b.Listings {
		if l.IsCurrent {
			current = append(current, l)
			continue
		}
		b.Stale = append(b.Stale, l)
	}
	b.Listings = current

	return b, Step{Initial: initial, Dropped: initial - len(current), Left: b.Len()}, nil
}

func (f *recencyFilter) Status() Status {
	return Status{
		Name:    f.Name(),
		Enabled: f.IsEnabled(),
		Reason:  f.reason,
		Details: map[string]string{"window": f.window.String()},
	}
}

// IsCurrent reports whether a posting is inside the freshness window.
// The edge is inclusive and future timestamps count as current.
func IsCurrent(postedAt, now time.Time, window time.Duration) bool {
	return now.Sub(postedAt) <= window
}

// MarkRecency sets IsCurrent on every listing in place.
func MarkRecency(listings []jobs.JobListing, now time.Time, window time.Duration) {
	for i := range listings {
		listings[i].IsCurrent = IsCurrent(listings[i].PostedAt, now, window)
	}
}
