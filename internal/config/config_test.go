package config

import (
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed(t *testing.T) url.URL {
	t.Helper()
	u, err := url.Parse("https://docs.example.com/guide/")
	require.NoError(t, err)
	return *u
}

func TestWithDefault_Defaults(t *testing.T) {
	cfg, err := WithDefault(seed(t)).Build()
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.MaxWorkers())
	assert.Equal(t, Unbounded, cfg.MaxPages())
	assert.False(t, cfg.MaxPagesBounded())
	assert.Equal(t, 0, cfg.MaxDepth())
	assert.Equal(t, 2.0, cfg.RateLimitRPS())
	assert.Equal(t, 4, cfg.Burst())
	assert.Equal(t, 500*time.Millisecond, cfg.MinInterval())
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout())
	assert.Equal(t, 30*time.Second, cfg.RenderTimeout())
	assert.Equal(t, 3, cfg.MaxRetries())
	assert.Equal(t, int64(100<<20), cfg.MaxResponseBytes())
	assert.True(t, cfg.RespectRobots())
	assert.Equal(t, RenderModeAuto, cfg.RenderMode())
	assert.Equal(t, time.Hour, cfg.RobotsTTL())
	assert.Equal(t, 5*time.Minute, cfg.RobotsNegativeTTL())
	assert.Equal(t, 3, cfg.MaxBrowsers())
	assert.Equal(t, 5, cfg.ContextsPerBrowser())
	assert.Equal(t, 100_000, cfg.FrontierCapacity())
	assert.Equal(t, 5*time.Second, cfg.ShutdownGrace())
	assert.Equal(t, 200, cfg.MinContentChars())
	assert.Equal(t, 0.5, cfg.SpaThreshold())
}

func TestBuilder_Overrides(t *testing.T) {
	cfg, err := WithDefault(seed(t)).
		WithMaxDepth(3).
		WithMaxPages(50).
		WithMaxWorkers(4).
		WithRenderMode(RenderModeStaticOnly).
		WithRateLimitRPS(0.5).
		WithBurst(1).
		WithMinInterval(time.Second).
		WithUserAgent("custom/2.0").
		WithRespectRobots(false).
		Build()
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.MaxDepth())
	assert.Equal(t, 50, cfg.MaxPages())
	assert.True(t, cfg.MaxPagesBounded())
	assert.Equal(t, 4, cfg.MaxWorkers())
	assert.Equal(t, RenderModeStaticOnly, cfg.RenderMode())
	assert.Equal(t, 0.5, cfg.RateLimitRPS())
	assert.Equal(t, "custom/2.0", cfg.UserAgent())
	assert.False(t, cfg.RespectRobots())
}

func TestBuilder_MaxPagesZeroIsBounded(t *testing.T) {
	cfg, err := WithDefault(seed(t)).WithMaxPages(0).Build()
	require.NoError(t, err)
	assert.True(t, cfg.MaxPagesBounded())
	assert.Equal(t, 0, cfg.MaxPages())
}

func TestBuild_Validation(t *testing.T) {
	tests := []struct {
		name  string
		build func() (*Config, error)
	}{
		{
			name: "missing host",
			build: func() (*Config, error) {
				return WithDefault(url.URL{Scheme: "https"}), nil
			},
		},
		{
			name: "zero workers",
			build: func() (*Config, error) {
				return WithDefault(seed(t)).WithMaxWorkers(0), nil
			},
		},
		{
			name: "negative rps",
			build: func() (*Config, error) {
				return WithDefault(seed(t)).WithRateLimitRPS(-1), nil
			},
		},
		{
			name: "zero burst",
			build: func() (*Config, error) {
				return WithDefault(seed(t)).WithBurst(0), nil
			},
		},
		{
			name: "unknown render mode",
			build: func() (*Config, error) {
				return WithDefault(seed(t)).WithRenderMode("turbo"), nil
			},
		},
		{
			name: "spa threshold out of range",
			build: func() (*Config, error) {
				return WithDefault(seed(t)).WithSpaThreshold(1.5), nil
			},
		},
		{
			name: "maxPages below -1",
			build: func() (*Config, error) {
				return WithDefault(seed(t)).WithMaxPages(-2), nil
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			builder, _ := tt.build()
			_, err := builder.Build()
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestWithConfigFile_LoadsValues(t *testing.T) {
	path := writeConfig(t, `{
		"seedUrl": "https://docs.example.com/",
		"maxDepth": 2,
		"maxPages": 25,
		"maxWorkers": 3,
		"rateLimitRps": 1.5,
		"burst": 2,
		"minIntervalMs": 750,
		"respectRobots": false,
		"userAgent": "filecfg/1.0",
		"renderMode": "browser_only",
		"waitSelectors": {"docs.example.com": "#main"}
	}`)

	cfg, err := WithConfigFile(path)
	require.NoError(t, err)

	assert.Equal(t, "docs.example.com", cfg.SeedURL().Host)
	assert.Equal(t, 2, cfg.MaxDepth())
	assert.Equal(t, 25, cfg.MaxPages())
	assert.Equal(t, 3, cfg.MaxWorkers())
	assert.Equal(t, 1.5, cfg.RateLimitRPS())
	assert.Equal(t, 750*time.Millisecond, cfg.MinInterval())
	assert.False(t, cfg.RespectRobots())
	assert.Equal(t, "filecfg/1.0", cfg.UserAgent())
	assert.Equal(t, RenderModeBrowserOnly, cfg.RenderMode())

	selector, ok := cfg.WaitSelector("docs.example.com")
	assert.True(t, ok)
	assert.Equal(t, "#main", selector)
}

func TestWithConfigFile_ExplicitZeroMaxPages(t *testing.T) {
	path := writeConfig(t, `{"seedUrl": "https://docs.example.com/", "maxPages": 0}`)

	cfg, err := WithConfigFile(path)
	require.NoError(t, err)
	assert.True(t, cfg.MaxPagesBounded())
	assert.Equal(t, 0, cfg.MaxPages())
}

func TestWithConfigFile_UnknownKeyRejected(t *testing.T) {
	path := writeConfig(t, `{"seedUrl": "https://docs.example.com/", "maxPagez": 10}`)

	_, err := WithConfigFile(path)
	assert.ErrorIs(t, err, ErrConfigParsingFail)
}

func TestWithConfigFile_MissingFile(t *testing.T) {
	_, err := WithConfigFile(filepath.Join(t.TempDir(), "absent.json"))
	assert.ErrorIs(t, err, ErrFileDoesNotExist)
}

func TestWithConfigFile_MalformedJSON(t *testing.T) {
	path := writeConfig(t, `{"seedUrl": `)
	_, err := WithConfigFile(path)
	assert.ErrorIs(t, err, ErrConfigParsingFail)
}
