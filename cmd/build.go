package cmd

import (
	"context"
	"fmt"
	stdlog "log"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/job-aggregator/internal/aggregator"
	"github.com/spigell/job-aggregator/internal/ai"
	"github.com/spigell/job-aggregator/internal/ai/gemini"
	"github.com/spigell/job-aggregator/internal/alerts"
	"github.com/spigell/job-aggregator/internal/cache"
	"github.com/spigell/job-aggregator/internal/logger"
	"github.com/spigell/job-aggregator/internal/secrets"
	"github.com/spigell/job-aggregator/internal/sources"
	"github.com/spigell/job-aggregator/internal/webclient"
)

// setup builds the logger and reads the config. Both failures are fatal.
func setup(command string) (*Config, *zap.Logger) {
	log, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"), zap.String("command", command))
	if err != nil {
		stdlog.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		log.Fatal("getting a config", zap.Error(err))
	}

	log.Debug("starting with config",
		zap.String("version", version),
		zap.Strings("sources", config.Search.Sources),
		zap.Duration("timeout", config.Search.Timeout),
		zap.Int("limit", config.Search.Limit),
		zap.Duration("freshness_window", config.Search.FreshnessWindow),
		zap.Int("minimum", config.Search.Minimum),
	)

	return config, log
}

func buildOrchestrator(config *Config, log *zap.Logger) (*aggregator.Orchestrator, error) {
	srcs, err := sources.Default().Build(config.Search.Sources, config.Sources, sources.Env{
		UserAgent: config.UserAgent,
		Web:       webclient.New(config.UserAgent, log),
		Logger:    log,
	})
	if err != nil {
		return nil, err
	}

	return aggregator.New(srcs, aggregator.Config{
		Timeout:         config.Search.Timeout,
		Limit:           config.Search.Limit,
		FreshnessWindow: config.Search.FreshnessWindow,
		Minimum:         config.Search.Minimum,
	}, log), nil
}

// connectRedis returns nil when no redis url is configured.
func connectRedis(ctx context.Context, config *Config, log *zap.Logger) (*redis.Client, error) {
	url := strings.TrimSpace(config.Cache.RedisURL)
	if url == "" {
		log.Debug("redis is not configured, cache and publish notifications are disabled")
		return nil, nil
	}

	rdb, err := cache.Connect(ctx, url)
	if err != nil {
		return nil, err
	}

	log.Info("connected to redis", zap.Duration("cache_ttl", config.Cache.TTL))
	return rdb, nil
}

func buildSearcher(orch *aggregator.Orchestrator, rdb *redis.Client, config *Config, log *zap.Logger) aggregator.Searcher {
	if rdb == nil {
		return orch
	}
	return cache.New(orch, rdb, config.Cache.TTL, log)
}

// buildAlertStore falls back to an in-memory store without a database url.
// The returned func releases the store.
func buildAlertStore(ctx context.Context, config *Config, log *zap.Logger) (alerts.Store, func(), error) {
	dsn, err := secrets.Optional(secrets.Source{
		Name:  "alerts database url",
		Value: config.Alerts.DatabaseURL,
		File:  config.Alerts.DatabaseURLFile,
		Env:   "DATABASE_URL",
	})
	if err != nil {
		return nil, nil, err
	}

	if dsn == "" {
		log.Warn("alerts database is not configured, alerts are kept in memory")
		return alerts.NewMemoryStore(), func() {}, nil
	}

	pool, err := alerts.NewPostgresPool(ctx, dsn)
	if err != nil {
		return nil, nil, err
	}

	store := alerts.NewPostgresStore(pool)
	if err := store.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}

	log.Info("connected to alerts database")
	return store, pool.Close, nil
}

func buildNotifier(config *Config, rdb *redis.Client, log *zap.Logger) alerts.Notifier {
	notifiers := alerts.Notifiers{alerts.NewLogNotifier(log)}
	if rdb != nil {
		notifiers = append(notifiers, alerts.NewRedisNotifier(rdb, config.Alerts.Channel))
	}
	return notifiers
}

// buildComposer never fails: without a working AI writer digests are plain text.
func buildComposer(ctx context.Context, config *Config, log *zap.Logger) *alerts.Composer {
	writer, err := newDigestWriter(ctx, config.AI, log)
	if err != nil {
		log.Warn("skipping AI digests", zap.Error(err))
		return alerts.NewComposer(nil, log)
	}
	return alerts.NewComposer(writer, log)
}

func newDigestWriter(ctx context.Context, cfg *AIConfig, log *zap.Logger) (ai.DigestWriter, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}

	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))
	if provider != "" && provider != "gemini" {
		return nil, fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}

	if cfg.Gemini == nil {
		cfg.Gemini = &GeminiConfig{}
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name:  "gemini api key",
		Value: cfg.Gemini.APIKey,
		File:  cfg.Gemini.APIKeyFile,
		Env:   "GEMINI_API_KEY",
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set ai.gemini.api-key-file or GEMINI_API_KEY)", err)
	}

	genLogger := logger.WithFields(log, append(
		logger.AIFields("gemini", cfg.Gemini.Model),
		zap.Int("ai_retry_attempts", cfg.Gemini.MaxRetries),
	)...)

	generator, err := gemini.NewGenerator(ctx, apiKey, cfg.Gemini.Model, cfg.Gemini.MaxRetries, genLogger)
	if err != nil {
		return nil, err
	}

	writer := gemini.NewDigestWriter(generator, cfg.Gemini.MaxLogLength,
		logger.WithFields(log, logger.AIFields("gemini", generator.Model())...))
	writer.SetPromptOverrides(gemini.PromptOverrides{
		Tone:             cfg.Gemini.Tone,
		UserInstructions: cfg.Gemini.Instructions,
	})

	return writer, nil
}
