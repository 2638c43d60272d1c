// Package aggregator runs one search across every enabled source and turns
// the raw results into per-source buckets of normalized listings.
package aggregator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/job-aggregator/internal/filtering"
	"github.com/spigell/job-aggregator/internal/jobs"
	"github.com/spigell/job-aggregator/internal/logger"
	"github.com/spigell/job-aggregator/internal/normalize"
	"github.com/spigell/job-aggregator/internal/sources"
)

const (
	DefaultTimeout = 10 * time.Second
	DefaultLimit   = 10
)

var ErrNoSources = errors.New("no sources enabled")

// Searcher is satisfied by the Orchestrator and by decorators around it.
type Searcher interface {
	Search(ctx context.Context, req Request) (*Result, error)
}

type Config struct {
	// Timeout bounds every single source call.
	Timeout time.Duration
	// Limit is the number of raw listings requested from each source.
	Limit           int
	FreshnessWindow time.Duration
	// Minimum is the backfill target per source. Zero disables backfill.
	Minimum int
}

// Request is one search with its view options.
type Request struct {
	Query        jobs.SearchQuery
	IncludeStale bool
	JobType      jobs.JobType
	Experience   string
}

type Orchestrator struct {
	sources []sources.Source
	cfg     Config
	logger  *zap.Logger

	// StateHook, when set, is called on every state transition.
	StateHook func(State)

	now func() time.Time
}

func New(srcs []sources.Source, cfg Config, logger *zap.Logger) *Orchestrator {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultLimit
	}
	if cfg.FreshnessWindow <= 0 {
		cfg.FreshnessWindow = filtering.DefaultFreshnessWindow
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Orchestrator{
		sources: srcs,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
	}
}

func (o *Orchestrator) Sources() []sources.Source {
	return o.sources
}

type fetchResult struct {
	raws     []jobs.RawListing
	err      error
	duration time.Duration
}

// Search always reaches Done once the query is valid: failing sources end up
// in Result.Failures with an empty or partial bucket.
func (o *Orchestrator) Search(ctx context.Context, req Request) (*Result, error) {
	q, err := jobs.NewSearchQuery(req.Query.Keywords, req.Query.Location)
	if err != nil {
		return nil, err
	}
	if len(o.sources) == 0 {
		return nil, ErrNoSources
	}

	fcfg := &filtering.Config{
		FreshnessWindow: o.cfg.FreshnessWindow,
		Minimum:         o.cfg.Minimum,
		IncludeStale:    req.IncludeStale,
		JobType:         req.JobType,
		Experience:      req.Experience,
	}
	steps := filtering.Default(fcfg)
	if err := filtering.Validate(fcfg, steps); err != nil {
		return nil, fmt.Errorf("filters: %w", err)
	}

	log := logger.WithFields(o.logger, logger.QueryFields(q.Keywords, q.Location)...)
	o.enter(log, Idle)

	now := o.now()
	result := &Result{
		Query:        q,
		IncludeStale: req.IncludeStale,
		JobType:      req.JobType,
		Experience:   strings.TrimSpace(req.Experience),
		Buckets:      make(map[string]*jobs.Bucket, len(o.sources)),
		Stats:        make(map[string]*Stats, len(o.sources)),
	}

	o.enter(log, FetchingAll)
	fetched := o.fetchAll(ctx, q)

	o.enter(log, Normalizing)
	for i, src := range o.sources {
		name := src.Name()
		res := fetched[i]
		searchURL := src.SearchURL(q)

		result.Order = append(result.Order, name)
		result.Stats[name] = &Stats{Fetched: len(res.raws), Duration: res.duration}
		result.Buckets[name] = &jobs.Bucket{
			Source:    name,
			SearchURL: searchURL,
			Listings:  normalize.Listings(name, searchURL, res.raws, now),
		}

		if res.err != nil {
			result.Failures = append(result.Failures, newFailure(name, res.err))
			logger.ForSource(log, name).Warn("source failed",
				zap.String("kind", jobs.KindName(res.err)),
				zap.Int("salvaged", len(res.raws)),
				zap.Error(res.err),
			)
		}
	}

	deps := filtering.Deps{Logger: log, Query: q, Now: now}
	for _, step := range steps {
		o.enter(log, stateFor(step.Name()))

		for _, name := range result.Order {
			next, info, err := filtering.RunStep(ctx, deps, step, result.Buckets[name])
			if err != nil {
				return nil, err
			}
			result.Buckets[name] = next
			result.Stats[name].record(step.Name(), info)
		}
	}

	result.FinishedAt = o.now()
	o.enter(log, Done)

	log.Info("search finished",
		zap.Int("total", result.TotalCount()),
		zap.Int("synthetic", result.SyntheticCount()),
		zap.Int("failed_sources", len(result.Failures)),
	)

	return result, nil
}

func (o *Orchestrator) enter(log *zap.Logger, s State) {
	log.Debug("aggregation state", zap.Stringer("state", s))
	if o.StateHook != nil {
		o.StateHook(s)
	}
}

func stateFor(step string) State {
	switch step {
	case filtering.DedupName:
		return Deduplicating
	case filtering.BackfillName:
		return Backfilling
	default:
		return FilteringRecency
	}
}

// fetchAll calls every source concurrently. Results keep source order.
func (o *Orchestrator) fetchAll(ctx context.Context, q jobs.SearchQuery) []fetchResult {
	results := make([]fetchResult, len(o.sources))

	var wg sync.WaitGroup
	for i, src := range o.sources {
		wg.Add(1)
		go func(i int, src sources.Source) {
			defer wg.Done()
			results[i] = o.fetch(ctx, src, q)
		}(i, src)
	}
	wg.Wait()

	return results
}

// fetch runs one source call under its own timeout. A result arriving after
// the deadline is dropped into the buffered channel and discarded.
func (o *Orchestrator) fetch(ctx context.Context, src sources.Source, q jobs.SearchQuery) fetchResult {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.Timeout)
	defer cancel()

	name := src.Name()
	start := time.Now()
	done := make(chan fetchResult, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fetchResult{err: jobs.NewSourceError(name, jobs.ErrSourceUnavailable, fmt.Errorf("panic: %v", r))}
			}
		}()

		raws, err := src.Fetch(ctx, q, o.cfg.Limit)
		done <- fetchResult{raws: raws, err: err}
	}()

	var res fetchResult
	select {
	case res = <-done:
	case <-ctx.Done():
		res = fetchResult{err: ctx.Err()}
	}

	if len(res.raws) > o.cfg.Limit {
		res.raws = res.raws[:o.cfg.Limit]
	}
	if res.err != nil {
		res.err = jobs.Classify(name, res.err)
	}
	res.duration = time.Since(start)

	return res
}
