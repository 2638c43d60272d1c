package filtering

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/job-aggregator/internal/jobs"
)

const (
	DefaultFreshnessWindow = 24 * time.Hour
	DefaultMinimum         = 5
)

// Filter represents a single step applied to the listings of one source.
type Filter interface {
	Name() string
	Disable(reason string)
	IsEnabled() bool

	Validate(cfg *Config) error
	Apply(ctx context.Context, deps Deps, b *jobs.Bucket) (*jobs.Bucket, Step, error)
}

// Deps carries per-run values shared by all steps.
type Deps struct {
	Logger *zap.Logger
	Query  jobs.SearchQuery
	Now    time.Time
}

// Step describes the result of executing a filtering step.
type Step struct {
	Initial int
	Dropped int
	Added   int
	Left    int
}

// Config contains the settings consumed by the filters.
type Config struct {
	FreshnessWindow time.Duration
	Minimum         int
	IncludeStale    bool
	JobType         jobs.JobType

	// Experience is matched as a case-insensitive substring.
	Experience string
}

// Status represents runtime information about a filter.
type Status struct {
	Name    string
	Enabled bool
	Reason  string
	Details map[string]string
}

// statusProvider is implemented by filters that can supply detailed status information.
type statusProvider interface {
	Status() Status
}

// Default returns the standard chain: dedup, recency, job type, experience
// and backfill.
func Default(cfg *Config) []Filter {
	steps := []Filter{
		NewDedup(),
		NewRecency(),
		NewJobType(),
		NewExperience(),
		NewBackfill(),
	}

	if cfg == nil || !cfg.JobType.IsSpecified() {
		DisableByName(steps, JobTypeName, "no job type requested")
	}
	if cfg == nil || strings.TrimSpace(cfg.Experience) == "" {
		DisableByName(steps, ExperienceName, "no experience requested")
	}

	return steps
}

// DisableByName marks a filter with the provided name as disabled while keeping it in the list.
func DisableByName(steps []Filter, name, reason string) {
	for _, step := range steps {
		if step.Name() == name {
			step.Disable(reason)
		}
	}
}

// Validate checks every enabled step against cfg.
func Validate(cfg *Config, steps []Filter) error {
	for _, step := range steps {
		if !step.IsEnabled() {
			continue
		}
		if err := step.Validate(cfg); err != nil {
			return fmt.Errorf("%s: %w", step.Name(), err)
		}
	}
	return nil
}

// Run validates and executes the supplied filters sequentially on one bucket.
func Run(ctx context.Context, cfg *Config, deps Deps, steps []Filter, b *jobs.Bucket) (*jobs.Bucket, error) {
	if err := Validate(cfg, steps); err != nil {
		return nil, err
	}

	for _, step := range steps {
		next, _, err := RunStep(ctx, deps, step, b)
		if err != nil {
			return nil, err
		}
		b = next
	}

	return b, nil
}

// RunStep executes a single filter on b and logs its outcome.
// Disabled filters pass the bucket through untouched.
func RunStep(ctx context.Context, deps Deps, step Filter, b *jobs.Bucket) (*jobs.Bucket, Step, error) {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	if !step.IsEnabled() {
		logger.Debug("filter disabled", zap.String("name", step.Name()), zap.String("source", b.Source))
		return b, Step{Initial: b.Len(), Left: b.Len()}, nil
	}

	next, info, err := step.Apply(ctx, deps, b)
	if err != nil {
		return nil, Step{}, fmt.Errorf("%s: %w", step.Name(), err)
	}

	logger.Debug("filter step",
		zap.String("name", step.Name()),
		zap.String("source", b.Source),
		zap.Int("initial", info.Initial),
		zap.Int("dropped", info.Dropped),
		zap.Int("added", info.Added),
		zap.Int("left", info.Left),
	)

	return next, info, nil
}

// Describe returns status entries for the provided filters.
func Describe(steps []Filter) []Status {
	statuses := make([]Status, 0, len(steps))
	for _, step := range steps {
		if reporter, ok := step.(statusProvider); ok {
			statuses = append(statuses, reporter.Status())
			continue
		}

		statuses = append(statuses, Status{
			Name:    step.Name(),
			Enabled: step.IsEnabled(),
		})
	}
	return statuses
}

// toggle is embedded by filters that can be switched off at runtime.
type toggle struct {
	disabled bool
	reason   string
}

func (t *toggle) Disable(reason string) {
	t.disabled = true
	t.reason = reason
}

func (t *toggle) IsEnabled() bool { return !t.disabled }
