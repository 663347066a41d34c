package cli

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thepingdoctor/scrape-api-docs/internal/config"
)

func resetFlags() {
	cfgFile = ""
	seedURL = ""
	outputDir = "corpus"
	maxDepth = 0
	maxPages = config.Unbounded
	maxWorkers = 10
	renderMode = string(config.RenderModeAuto)
	rateLimitRPS = 2.0
	burst = 4
	minIntervalMs = 500
	timeoutMs = 30000
	maxRetries = 3
	respectRobots = true
	userAgent = "scrape-api-docs/1.0"
	randomSeed = 0
}

func TestBuildConfig_RequiresSeedURL(t *testing.T) {
	resetFlags()

	_, err := buildConfig()
	assert.ErrorContains(t, err, "--seed-url is required")
}

func TestBuildConfig_InvalidSeedRejected(t *testing.T) {
	resetFlags()
	seedURL = "http://exa mple.com/"

	_, err := buildConfig()
	assert.Error(t, err)
}

func TestBuildConfig_FlagsFlowIntoConfig(t *testing.T) {
	resetFlags()
	seedURL = "https://docs.example.com/guide/"
	maxDepth = 2
	maxPages = 40
	maxWorkers = 6
	renderMode = string(config.RenderModeStaticOnly)
	rateLimitRPS = 1.0
	burst = 2
	minIntervalMs = 1000
	timeoutMs = 10000
	respectRobots = false
	userAgent = "cli-test/1.0"
	randomSeed = 99

	cfg, err := buildConfig()
	require.NoError(t, err)

	assert.Equal(t, "docs.example.com", cfg.SeedURL().Host)
	assert.Equal(t, 2, cfg.MaxDepth())
	assert.Equal(t, 40, cfg.MaxPages())
	assert.Equal(t, 6, cfg.MaxWorkers())
	assert.Equal(t, config.RenderModeStaticOnly, cfg.RenderMode())
	assert.Equal(t, 1.0, cfg.RateLimitRPS())
	assert.Equal(t, 2, cfg.Burst())
	assert.Equal(t, time.Second, cfg.MinInterval())
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout())
	assert.False(t, cfg.RespectRobots())
	assert.Equal(t, "cli-test/1.0", cfg.UserAgent())
	assert.Equal(t, int64(99), cfg.RandomSeed())
}

func TestBuildConfig_UnknownRenderModeRejected(t *testing.T) {
	resetFlags()
	seedURL = "https://docs.example.com/"
	renderMode = "warp"

	_, err := buildConfig()
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestRootCmd_FlagsRegistered(t *testing.T) {
	for _, name := range []string{
		"seed-url", "out-dir", "max-depth", "max-pages", "workers",
		"render-mode", "rps", "burst", "min-interval-ms", "timeout-ms",
		"max-retries", "respect-robots", "user-agent", "config",
	} {
		assert.NotNil(t, rootCmd.Flags().Lookup(name), "flag --%s must exist", name)
	}
}
