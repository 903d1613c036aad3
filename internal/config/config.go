// Package config reads the TOML configuration file, applies BLOG_*
// environment overrides and sets up logging.
package config

import (
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/kelseyhightower/envconfig"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const envPrefix = "BLOG"

type Log struct {
	Level  string `mapstructure:"level" split_words:"true"`
	Pretty bool   `mapstructure:"pretty" split_words:"true"`
}

type Site struct {
	Title       string        `mapstructure:"title" split_words:"true"`
	BaseURL     string        `mapstructure:"base_url" split_words:"true"`
	Locale      string        `mapstructure:"locale" split_words:"true"`
	Timezone    string        `mapstructure:"timezone" split_words:"true"`
	PageSize    int           `mapstructure:"page_size" split_words:"true"`
	MaxPages    int           `mapstructure:"max_pages" split_words:"true"`
	Revalidate  time.Duration `mapstructure:"revalidate" split_words:"true"`
	Concurrency int           `mapstructure:"concurrency" split_words:"true"`
	Port        uint16        `mapstructure:"port" split_words:"true"`
	OutputDir   string        `mapstructure:"output_dir" split_words:"true"`
}

type CMS struct {
	Endpoint    string        `mapstructure:"endpoint" split_words:"true"`
	AccessToken string        `mapstructure:"access_token" split_words:"true"`
	Timeout     time.Duration `mapstructure:"timeout" split_words:"true"`
}

type Store struct {
	Port        uint16        `mapstructure:"port" split_words:"true"`
	Backend     string        `mapstructure:"backend" split_words:"true"`
	MongoURL    string        `mapstructure:"mongo_url" split_words:"true"`
	MongoDB     string        `mapstructure:"mongo_db" split_words:"true"`
	RedisURL    string        `mapstructure:"redis_url" split_words:"true"`
	CacheTTL    time.Duration `mapstructure:"cache_ttl" split_words:"true"`
	AccessToken string        `mapstructure:"access_token" split_words:"true"`
	Ref         string        `mapstructure:"ref" split_words:"true"`
	ContentDir  string        `mapstructure:"content_dir" split_words:"true"`
	Watch       bool          `mapstructure:"watch" split_words:"true"`
}

type Config struct {
	Log   Log   `envconfig:"LOG"`
	Site  Site  `envconfig:"SITE"`
	CMS   CMS   `envconfig:"CMS"`
	Store Store `envconfig:"STORE"`
}

func Default() Config {
	return Config{
		Log: Log{Level: "info"},
		Site: Site{
			Title:       "spacetraveling",
			Locale:      "pt-BR",
			Timezone:    "UTC",
			PageSize:    1,
			MaxPages:    50,
			Revalidate:  24 * time.Hour,
			Concurrency: 4,
			Port:        8080,
			OutputDir:   "public",
		},
		CMS: CMS{
			Endpoint: "http://localhost:8081/api/v2",
			Timeout:  10 * time.Second,
		},
		Store: Store{
			Port:     8081,
			Backend:  "memory",
			MongoDB:  "cmsblog",
			CacheTTL: time.Hour,
			Ref:      "master",
		},
	}
}

// Load starts from Default, overlays the sections found in the TOML file at
// path (a missing file is fine unless required is set), then applies
// environment variables such as BLOG_CMS_ENDPOINT.
func Load(path string, required bool) (Config, error) {
	cfg := Default()

	m := map[string]interface{}{}
	if _, err := toml.DecodeFile(path, &m); err != nil {
		if !os.IsNotExist(errors.Cause(err)) || required {
			return cfg, errors.Wrapf(err, "failed to decode configuration file %s", path)
		}
	}

	sections := []struct {
		name   string
		target interface{}
	}{
		{"log", &cfg.Log},
		{"site", &cfg.Site},
		{"cms", &cfg.CMS},
		{"store", &cfg.Store},
	}
	for _, s := range sections {
		if err := decode(m[s.name], s.target); err != nil {
			return cfg, errors.Wrapf(err, "failed to decode %s configuration items", s.name)
		}
	}

	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return cfg, errors.Wrap(err, "failed to read environment")
	}
	return cfg, cfg.validate()
}

func decode(input interface{}, target interface{}) error {
	if input == nil {
		return nil
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           target,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(input)
}

func (c Config) validate() error {
	if c.Site.PageSize < 1 || c.Site.PageSize > 100 {
		return errors.Errorf("site.page_size must be between 1 and 100, got %d", c.Site.PageSize)
	}
	if c.Site.MaxPages < 0 {
		return errors.Errorf("site.max_pages must not be negative, got %d", c.Site.MaxPages)
	}
	if c.Site.Concurrency < 1 {
		return errors.Errorf("site.concurrency must be positive, got %d", c.Site.Concurrency)
	}
	if _, err := time.LoadLocation(c.Site.Timezone); err != nil {
		return errors.Wrapf(err, "site.timezone %q", c.Site.Timezone)
	}
	switch c.Store.Backend {
	case "memory", "mongo":
	default:
		return errors.Errorf("store.backend must be memory or mongo, got %q", c.Store.Backend)
	}
	return nil
}

// Location returns the configured display time zone.
func (s Site) Location() *time.Location {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// SetupLogging configures the global zerolog logger.
func SetupLogging(c Log) {
	switch c.Level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	case "fatal":
		zerolog.SetGlobalLevel(zerolog.FatalLevel)
	case "panic":
		zerolog.SetGlobalLevel(zerolog.PanicLevel)
	case "no":
		zerolog.SetGlobalLevel(zerolog.NoLevel)
	case "disabled":
		zerolog.SetGlobalLevel(zerolog.Disabled)
	}

	if c.Pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}
