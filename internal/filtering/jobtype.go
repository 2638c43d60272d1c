package filtering

import (
	"context"

	"github.com/spigell/job-aggregator/internal/jobs"
)

const JobTypeName = "job_type"

type jobTypeFilter struct {
	toggle
	want jobs.JobType
}

// NewJobType creates the filter keeping only listings of the requested type.
func NewJobType() Filter {
	return &jobTypeFilter{}
}

func (f *jobTypeFilter) Name() string { return JobTypeName }

func (f *jobTypeFilter) Validate(cfg *Config) error {
	f.want = jobs.JobTypeUnspecified
	if cfg != nil {
		f.want = cfg.JobType
	}
	return nil
}

func (f *jobTypeFilter) Apply(_ context.Context, _ Deps, b *jobs.Bucket) (*jobs.Bucket, Step, error) {
	initial := b.Len()
	if !f.want.IsSpecified() {
		return b, Step{Initial: initial, Left: initial}, nil
	}

	kept := b.Listings[:0:0]
	for _, l := range b.Listings {
		if l.IsSynthetic || l.JobType == f.want {
			kept = append(kept, l)
		}
	}
	b.Listings = kept

	return b, Step{Initial: initial, Dropped: initial - len(kept), Left: b.Len()}, nil
}

func (f *jobTypeFilter) Status() Status {
	return Status{
		Name:    f.Name(),
		Enabled: f.IsEnabled(),
		Reason:  f.reason,
		Details: map[string]string{"job_type": string(f.want)},
	}
}
