// Package sources wires the individual job source adapters behind one
// interface and builds the enabled set from configuration.
package sources

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/job-aggregator/internal/jobs"
	"github.com/spigell/job-aggregator/internal/logger"
	"github.com/spigell/job-aggregator/internal/secrets"
	"github.com/spigell/job-aggregator/internal/sources/adzuna"
	"github.com/spigell/job-aggregator/internal/sources/hh"
	"github.com/spigell/job-aggregator/internal/sources/htmlboard"
	"github.com/spigell/job-aggregator/internal/sources/remoteok"
	"github.com/spigell/job-aggregator/internal/webclient"
)

var ErrUnknownSource = errors.New("unknown source")

// Source fetches raw listings from one job portal.
type Source interface {
	Name() string
	// SearchURL is the public search page for the query.
	SearchURL(q jobs.SearchQuery) string
	Fetch(ctx context.Context, q jobs.SearchQuery, limit int) ([]jobs.RawListing, error)
}

// DefaultEnabled are the sources searched when none are configured.
var DefaultEnabled = []string{
	htmlboard.Naukri.Name,
	htmlboard.Indeed.Name,
	htmlboard.LinkedIn.Name,
	htmlboard.Monster.Name,
}

// Settings is the per-source configuration block. Not every source reads
// every field.
type Settings struct {
	BaseURL    string        `mapstructure:"base-url"`
	MaxPages   int           `mapstructure:"max-pages"`
	PageDelay  time.Duration `mapstructure:"page-delay"`
	PageJitter time.Duration `mapstructure:"page-jitter"`

	AppID      string `mapstructure:"app-id"`
	AppKey     string `mapstructure:"app-key"`
	AppKeyFile string `mapstructure:"app-key-file"`
	Country    string `mapstructure:"country"`
}

// Env is shared by every constructor.
type Env struct {
	UserAgent string
	Web       *webclient.Client
	Logger    *zap.Logger
}

type Constructor func(s Settings, env Env) (Source, error)

type Registry struct {
	constructors map[string]Constructor
}

func NewRegistry() *Registry {
	return &Registry{constructors: make(map[string]Constructor)}
}

func (r *Registry) Register(name string, constructor Constructor) {
	r.constructors[name] = constructor
}

// Names returns all registered sources sorted by name.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.constructors))
	for name := range r.constructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) Create(name string, s Settings, env Env) (Source, error) {
	constructor, ok := r.constructors[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSource, name)
	}
	return constructor(s, env)
}

// Build creates the named sources in the given order. An empty list means
// DefaultEnabled.
func (r *Registry) Build(names []string, settings map[string]Settings, env Env) ([]Source, error) {
	if len(names) == 0 {
		names = DefaultEnabled
	}
	if env.Logger == nil {
		env.Logger = zap.NewNop()
	}
	if env.Web == nil {
		env.Web = webclient.New(env.UserAgent, env.Logger)
	}

	seen := make(map[string]bool, len(names))
	out := make([]Source, 0, len(names))
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true

		src, err := r.Create(name, settings[name], Env{
			UserAgent: env.UserAgent,
			Web:       env.Web,
			Logger:    logger.ForSource(env.Logger, name),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create source %s: %w", name, err)
		}
		out = append(out, src)
	}

	return out, nil
}

// Default knows every built-in source.
func Default() *Registry {
	r := NewRegistry()

	for _, layout := range htmlboard.Layouts() {
		r.Register(layout.Name, boardConstructor(layout))
	}

	r.Register(hh.Name, func(s Settings, env Env) (Source, error) {
		return hh.New(env.Web, hh.Config{
			BaseURL:    s.BaseURL,
			MaxPages:   s.MaxPages,
			PageDelay:  s.PageDelay,
			PageJitter: s.PageJitter,
		}, env.Logger), nil
	})

	r.Register(adzuna.Name, func(s Settings, env Env) (Source, error) {
		key, err := secrets.Optional(secrets.Source{
			Name:  "adzuna app key",
			Value: s.AppKey,
			File:  s.AppKeyFile,
			Env:   "ADZUNA_APP_KEY",
		})
		if err != nil {
			return nil, err
		}
		return adzuna.New(env.Web, adzuna.Config{
			BaseURL:    s.BaseURL,
			AppID:      s.AppID,
			AppKey:     key,
			Country:    s.Country,
			PageDelay:  s.PageDelay,
			PageJitter: s.PageJitter,
		}, env.Logger)
	})

	r.Register(remoteok.Name, func(s Settings, env Env) (Source, error) {
		return remoteok.New(env.Web, remoteok.Config{BaseURL: s.BaseURL}, env.Logger), nil
	})

	return r
}

func boardConstructor(layout htmlboard.Layout) Constructor {
	return func(s Settings, env Env) (Source, error) {
		return htmlboard.New(layout, htmlboard.Config{
			BaseURL:    s.BaseURL,
			UserAgent:  env.UserAgent,
			MaxPages:   s.MaxPages,
			PageDelay:  s.PageDelay,
			PageJitter: s.PageJitter,
		}, env.Logger), nil
	}
}
