package alerts

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/job-aggregator/internal/aggregator"
	"github.com/spigell/job-aggregator/internal/jobs"
	"github.com/spigell/job-aggregator/internal/logger"
)

// Checker runs active alerts through the searcher and notifies owners about
// listings posted since the previous check.
type Checker struct {
	store    Store
	searcher aggregator.Searcher
	composer *Composer
	notifier Notifier
	logger   *zap.Logger
	now      func() time.Time
}

func NewChecker(store Store, searcher aggregator.Searcher, composer *Composer, notifier Notifier, logger *zap.Logger) *Checker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if notifier == nil {
		notifier = NewLogNotifier(logger)
	}
	return &Checker{
		store:    store,
		searcher: searcher,
		composer: composer,
		notifier: notifier,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Summary counts the outcome of one CheckAll pass.
type Summary struct {
	Checked  int
	Notified int
	Failed   int
}

// CheckAll checks every active alert. A failing alert is logged and skipped.
func (c *Checker) CheckAll(ctx context.Context) (Summary, error) {
	var summary Summary

	active, err := c.store.ListActive(ctx)
	if err != nil {
		return summary, storeErr("list active alerts", err)
	}

	for i := range active {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}

		a := &active[i]
		found, err := c.Check(ctx, a)
		summary.Checked++
		if err != nil {
			summary.Failed++
			logger.ForAlert(c.logger, a.ID, a.Owner).Warn("alert check failed", zap.Error(err))
			continue
		}
		if found > 0 {
			summary.Notified++
		}
	}

	c.logger.Info("alerts checked",
		zap.Int("checked", summary.Checked),
		zap.Int("notified", summary.Notified),
		zap.Int("failed", summary.Failed),
	)
	return summary, nil
}

// Check runs one alert and returns how many new listings were sent.
func (c *Checker) Check(ctx context.Context, a *JobAlert) (int, error) {
	checkedAt := c.now()

	res, err := c.searcher.Search(ctx, aggregator.Request{Query: a.Query(), JobType: a.JobType})
	if err != nil {
		return 0, fmt.Errorf("search: %w", err)
	}

	matches := Matches(res, a)
	if len(matches) > 0 {
		note := c.composer.Compose(ctx, a, matches)
		if err := c.notifier.Notify(ctx, note); err != nil {
			return 0, fmt.Errorf("notify: %w", err)
		}
	}

	if err := c.store.MarkChecked(ctx, a.ID, checkedAt); err != nil {
		return len(matches), storeErr("mark alert checked", err)
	}
	a.LastCheckedAt = &checkedAt

	return len(matches), nil
}

// Matches selects genuine current listings of the alert's job type posted
// after the last check.
func Matches(res *aggregator.Result, a *JobAlert) []jobs.JobListing {
	var out []jobs.JobListing
	for _, l := range res.Listings() {
		if l.IsSynthetic || !l.IsCurrent {
			continue
		}
		if a.JobType.IsSpecified() && l.JobType != a.JobType {
			continue
		}
		if a.LastCheckedAt != nil && !l.PostedAt.After(*a.LastCheckedAt) {
			continue
		}
		out = append(out, l)
	}
	return out
}
