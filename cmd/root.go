package cmd

import (
	"errors"
	"log"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/spigell/job-aggregator/internal/aggregator"
	"github.com/spigell/job-aggregator/internal/alerts"
	"github.com/spigell/job-aggregator/internal/cache"
	"github.com/spigell/job-aggregator/internal/filtering"
	"github.com/spigell/job-aggregator/internal/server"
	"github.com/spigell/job-aggregator/internal/sources"
	"github.com/spigell/job-aggregator/internal/webclient"
)

const (
	app       = "job-aggregator"
	envPrefix = "JOB_AGGREGATOR"
)

type Config struct {
	UserAgent string                      `mapstructure:"user-agent"`
	Search    *SearchConfig               `mapstructure:"search"`
	Sources   map[string]sources.Settings `mapstructure:"sources"`
	Server    *server.Config              `mapstructure:"server"`
	Cache     *CacheConfig                `mapstructure:"cache"`
	Alerts    *AlertsConfig               `mapstructure:"alerts"`
	AI        *AIConfig                   `mapstructure:"ai"`
}

type SearchConfig struct {
	Sources         []string      `mapstructure:"sources"`
	Timeout         time.Duration `mapstructure:"timeout"`
	Limit           int           `mapstructure:"limit"`
	FreshnessWindow time.Duration `mapstructure:"freshness-window"`
	Minimum         int           `mapstructure:"minimum"`
}

type CacheConfig struct {
	RedisURL string        `mapstructure:"redis-url"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type AlertsConfig struct {
	DatabaseURL     string `mapstructure:"database-url"`
	DatabaseURLFile string `mapstructure:"database-url-file"`
	Schedule        string `mapstructure:"schedule"`
	Channel         string `mapstructure:"channel"`
}

type AIConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Provider string        `mapstructure:"provider"`
	Gemini   *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKey       string `mapstructure:"api-key"`
	APIKeyFile   string `mapstructure:"api-key-file"`
	Model        string `mapstructure:"model"`
	MaxRetries   int    `mapstructure:"max-retries"`
	MaxLogLength int    `mapstructure:"max-log-length"`
	Tone         string `mapstructure:"tone"`
	Instructions string `mapstructure:"instructions"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "job-aggregator searches several job portals at once and watches saved searches",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is job-aggregator.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))

	setDefaults(viper.GetViper())
}

// setDefaults registers every known key, which also makes them reachable
// through JOB_AGGREGATOR_* environment variables.
func setDefaults(v *viper.Viper) {
	v.SetDefault("user-agent", webclient.DefaultUserAgent)

	v.SetDefault("search.sources", sources.DefaultEnabled)
	v.SetDefault("search.timeout", aggregator.DefaultTimeout)
	v.SetDefault("search.limit", aggregator.DefaultLimit)
	v.SetDefault("search.freshness-window", filtering.DefaultFreshnessWindow)
	v.SetDefault("search.minimum", filtering.DefaultMinimum)

	v.SetDefault("server.addr", server.DefaultAddr)
	v.SetDefault("server.read-timeout", server.DefaultReadTimeout)
	v.SetDefault("server.write-timeout", server.DefaultWriteTimeout)

	v.SetDefault("cache.redis-url", "")
	v.SetDefault("cache.ttl", cache.DefaultTTL)

	v.SetDefault("alerts.database-url", "")
	v.SetDefault("alerts.database-url-file", "")
	v.SetDefault("alerts.schedule", alerts.DefaultSchedule)
	v.SetDefault("alerts.channel", alerts.DefaultChannel)

	v.SetDefault("ai.enabled", false)
	v.SetDefault("ai.provider", "gemini")
	v.SetDefault("ai.gemini.api-key-file", "")
	v.SetDefault("ai.gemini.model", "")
}

func initConfig() {
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	// Every setting has a default, so only an explicitly requested or broken
	// config file is fatal.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return
		}
		log.Fatal(err)
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	if config.Search == nil {
		config.Search = &SearchConfig{}
	}
	if config.Server == nil {
		config.Server = &server.Config{}
	}
	if config.Cache == nil {
		config.Cache = &CacheConfig{}
	}
	if config.Alerts == nil {
		config.Alerts = &AlertsConfig{}
	}
	if config.AI == nil {
		config.AI = &AIConfig{}
	}

	return config, nil
}
