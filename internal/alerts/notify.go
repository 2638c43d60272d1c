package alerts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spigell/job-aggregator/internal/jobs"
	"github.com/spigell/job-aggregator/internal/logger"
)

const DefaultChannel = "job-alerts"

// Notification is sent once per alert check that found new listings.
type Notification struct {
	AlertID  string            `json:"alert_id"`
	Owner    string            `json:"owner"`
	Keywords string            `json:"keywords"`
	Location string            `json:"location"`
	Subject  string            `json:"subject"`
	Body     string            `json:"body"`
	Listings []jobs.JobListing `json:"listings"`
}

type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// LogNotifier writes notifications to the log.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(_ context.Context, note Notification) error {
	logger.ForAlert(n.logger, note.AlertID, note.Owner).Info(note.Subject,
		zap.Int("listings", len(note.Listings)),
		zap.String("body", note.Body),
	)
	return nil
}

// Publisher is the part of the Redis client RedisNotifier needs.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisNotifier publishes notifications as JSON on a pub/sub channel.
type RedisNotifier struct {
	rdb     Publisher
	channel string
}

func NewRedisNotifier(rdb Publisher, channel string) *RedisNotifier {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisNotifier{rdb: rdb, channel: channel}
}

func (n *RedisNotifier) Notify(ctx context.Context, note Notification) error {
	payload, err := json.Marshal(note)
	if err != nil {
		return fmt.Errorf("encoding notification: %w", err)
	}
	if err := n.rdb.Publish(ctx, n.channel, payload).Err(); err != nil {
		return fmt.Errorf("publishing to %s: %w", n.channel, err)
	}
	return nil
}

// Notifiers fans a notification out to every notifier and joins their errors.
type Notifiers []Notifier

func (ns Notifiers) Notify(ctx context.Context, note Notification) error {
	var errs []error
	for _, n := range ns {
		if err := n.Notify(ctx, note); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
