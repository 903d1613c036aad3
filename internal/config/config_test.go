package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"), false)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	_, err = Load(filepath.Join(t.TempDir(), "absent.toml"), true)
	assert.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
[log]
level = "debug"

[site]
title = "My blog"
page_size = 5
revalidate = "1h30m"
timezone = "America/Sao_Paulo"

[cms]
endpoint = "https://repo.cdn.prismic.io/api/v2"
timeout = "3s"

[store]
backend = "mongo"
mongo_url = "mongodb://localhost:27017"
`)

	cfg, err := Load(path, true)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "My blog", cfg.Site.Title)
	assert.Equal(t, 5, cfg.Site.PageSize)
	assert.Equal(t, 90*time.Minute, cfg.Site.Revalidate)
	assert.Equal(t, "America/Sao_Paulo", cfg.Site.Location().String())
	assert.Equal(t, "pt-BR", cfg.Site.Locale)
	assert.Equal(t, "https://repo.cdn.prismic.io/api/v2", cfg.CMS.Endpoint)
	assert.Equal(t, 3*time.Second, cfg.CMS.Timeout)
	assert.Equal(t, "mongo", cfg.Store.Backend)
	assert.Equal(t, "cmsblog", cfg.Store.MongoDB)
}

func TestLoadEnvironmentOverridesFile(t *testing.T) {
	path := writeConfig(t, `
[cms]
endpoint = "https://from-file/api/v2"
`)
	t.Setenv("BLOG_CMS_ENDPOINT", "https://from-env/api/v2")
	t.Setenv("BLOG_CMS_ACCESS_TOKEN", "token")
	t.Setenv("BLOG_SITE_PAGE_SIZE", "3")
	t.Setenv("BLOG_STORE_CACHE_TTL", "5m")

	cfg, err := Load(path, true)
	require.NoError(t, err)
	assert.Equal(t, "https://from-env/api/v2", cfg.CMS.Endpoint)
	assert.Equal(t, "token", cfg.CMS.AccessToken)
	assert.Equal(t, 3, cfg.Site.PageSize)
	assert.Equal(t, 5*time.Minute, cfg.Store.CacheTTL)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := map[string]string{
		"unknown key":  "[site]\ncolour = \"red\"\n",
		"page size":    "[site]\npage_size = 0\n",
		"timezone":     "[site]\ntimezone = \"Mars/Olympus\"\n",
		"backend":      "[store]\nbackend = \"sqlite\"\n",
		"bad toml":     "[site\n",
		"bad duration": "[cms]\ntimeout = \"soon\"\n",
		"concurrency":  "[site]\nconcurrency = 0\n",
		"max pages":    "[site]\nmax_pages = -1\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body), true)
			assert.Error(t, err)
		})
	}
}
