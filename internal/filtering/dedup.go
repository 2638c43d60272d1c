package filtering

import (
	"context"

	"github.com/spigell/job-aggregator/internal/jobs"
)

const DedupName = "dedup"

type dedupFilter struct {
	toggle
}

// NewDedup creates the filter removing repeated listings within a source.
func NewDedup() Filter {
	return &dedupFilter{}
}

func (f *dedupFilter) Name() string { return DedupName }

func (f *dedupFilter) Validate(*Config) error { return nil }

func (f *dedupFilter) Apply(_ context.Context, _ Deps, b *jobs.Bucket) (*jobs.Bucket, Step, error) {
	initial := b.Len()
	var dropped int
	b.Listings, dropped = Dedup(b.Listings)
	return b, Step{Initial: initial, Dropped: dropped, Left: b.Len()}, nil
}

// Dedup keeps one listing per key, preferring the most recent posting.
// The survivor takes the slot of the first occurrence; ties keep the first seen.
func Dedup(listings []jobs.JobListing) ([]jobs.JobListing, int) {
	out := make([]jobs.JobListing, 0, len(listings))
	seen := make(map[jobs.Key]int, len(listings))

	for _, l := range listings {
		key := l.Key()
		if pos, ok := seen[key]; ok {
			if l.PostedAt.After(out[pos].PostedAt) {
				out[pos] = l
			}
			continue
		}
		seen[key] = len(out)
		out = append(out, l)
	}

	return out, len(listings) - len(out)
}
