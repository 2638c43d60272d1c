// Package cache keeps recent search results in Redis. The cache is never
// required for a correct answer: every Redis error falls through to a live
// search.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spigell/job-aggregator/internal/aggregator"
	"github.com/spigell/job-aggregator/internal/jobs"
	"github.com/spigell/job-aggregator/internal/logger"
)

const (
	DefaultTTL = 2 * time.Minute
	keyPrefix  = "job-aggregator:search:"
)

// Commands is the part of the Redis client the cache needs.
type Commands interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// Connect parses redisURL and verifies connectivity.
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return client, nil
}

// Searcher serves repeated searches from Redis and delegates the rest.
type Searcher struct {
	next   aggregator.Searcher
	rdb    Commands
	ttl    time.Duration
	logger *zap.Logger
}

func New(next aggregator.Searcher, rdb Commands, ttl time.Duration, logger *zap.Logger) *Searcher {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Searcher{next: next, rdb: rdb, ttl: ttl, logger: logger}
}

func (s *Searcher) Search(ctx context.Context, req aggregator.Request) (*aggregator.Result, error) {
	q, err := jobs.NewSearchQuery(req.Query.Keywords, req.Query.Location)
	if err != nil {
		return s.next.Search(ctx, req)
	}
	req.Query = q

	key := Key(req)
	log := logger.WithFields(s.logger, logger.QueryFields(q.Keywords, q.Location)...)

	if cached, ok := s.load(ctx, log, key); ok {
		log.Debug("search served from cache")
		return cached, nil
	}

	res, err := s.next.Search(ctx, req)
	if err != nil {
		return nil, err
	}

	s.store(ctx, log, key, res)
	return res, nil
}

func (s *Searcher) load(ctx context.Context, log *zap.Logger, key string) (*aggregator.Result, bool) {
	data, err := s.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Warn("reading search cache", zap.Error(err))
		}
		return nil, false
	}

	var res aggregator.Result
	if err := json.Unmarshal(data, &res); err != nil {
		log.Warn("decoding cached search", zap.Error(err))
		return nil, false
	}
	return &res, true
}

func (s *Searcher) store(ctx context.Context, log *zap.Logger, key string, res *aggregator.Result) {
	data, err := json.Marshal(res)
	if err != nil {
		log.Warn("encoding search for cache", zap.Error(err))
		return
	}
	if err := s.rdb.Set(ctx, key, data, s.ttl).Err(); err != nil {
		log.Warn("writing search cache", zap.Error(err))
	}
}

// Key identifies a search and its view options. Keywords and location keep
// their case: the cached result echoes them back in its query and placeholders.
func Key(req aggregator.Request) string {
	parts := []string{
		strings.Join(strings.Fields(req.Query.Keywords), " "),
		strings.Join(strings.Fields(req.Query.Location), " "),
		strconv.FormatBool(req.IncludeStale),
		string(req.JobType),
		strings.ToLower(strings.TrimSpace(req.Experience)),
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return keyPrefix + hex.EncodeToString(sum[:])
}
