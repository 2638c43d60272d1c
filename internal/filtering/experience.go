package filtering

import (
	"context"
	"strings"

	"github.com/spigell/job-aggregator/internal/jobs"
)

const ExperienceName = "experience"

type experienceFilter struct {
	toggle
	want string
}

// NewExperience keeps listings whose experience text contains the requested
// value, ignoring case. Placeholders always pass.
func NewExperience() Filter {
	return &experienceFilter{}
}

func (f *experienceFilter) Name() string { return ExperienceName }

func (f *experienceFilter) Validate(cfg *Config) error {
	f.want = ""
	if cfg != nil {
		f.want = strings.ToLower(strings.TrimSpace(cfg.Experience))
	}
	return nil
}

func (f *experienceFilter) Apply(_ context.Context, _ Deps, b *jobs.Bucket) (*jobs.Bucket, Step, error) {
	initial := b.Len()
	if f.want == "" {
		return b, Step{Initial: initial, Left: initial}, nil
	}

	kept := b.Listings[:0:0]
	for _, l := range b.Listings {
		if l.IsSynthetic || strings.Contains(strings.ToLower(l.Experience), f.want) {
			kept = append(kept, l)
		}
	}
	b.Listings = kept

	return b, Step{Initial: initial, Dropped: initial - len(kept), Left: b.Len()}, nil
}

func (f *experienceFilter) Status() Status {
	return Status{
		Name:    f.Name(),
		Enabled: f.IsEnabled(),
		Reason:  f.reason,
		Details: map[string]string{"experience": f.want},
	}
}
