package cli

import (
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/thepingdoctor/scrape-api-docs/internal/config"
	"github.com/thepingdoctor/scrape-api-docs/internal/crawler"
	"github.com/thepingdoctor/scrape-api-docs/internal/export"
	"github.com/thepingdoctor/scrape-api-docs/internal/metadata"
)

var (
	cfgFile       string
	seedURL       string
	outputDir     string
	maxDepth      int
	maxPages      int
	maxWorkers    int
	renderMode    string
	rateLimitRPS  float64
	burst         int
	minIntervalMs int64
	timeoutMs     int64
	maxRetries    int
	respectRobots bool
	userAgent     string
	randomSeed    int64

	version = "dev"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "scrape-api-docs",
	Short: "Crawl a documentation site into a Markdown corpus.",
	Long: `scrape-api-docs crawls a documentation website rooted at a seed URL,
discovers every in-scope page, renders each one (falling back to a
headless browser for client-side rendered pages), extracts the main
content, and writes the result as a Markdown corpus.

The crawl is polite by construction: per-host token-bucket rate
limiting, robots.txt enforcement, and adaptive backoff on server
throttling signals.`,
	Version: version,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := buildConfig()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		recorder := metadata.NewRecorder("cli")
		engine := crawler.NewWithSink(cfg, &recorder, &recorder)
		defer engine.Close()

		start := time.Now()
		result, err := engine.Crawl(ctx, func(p crawler.Progress) {
			if p.Stage != crawler.StagePage {
				return
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\r%d discovered, %d completed, %d failed, %d in flight",
				p.Discovered, p.Completed, p.Failed, p.InFlight)
		})
		fmt.Fprintln(cmd.OutOrStdout())
		if err != nil {
			return err
		}

		exporter := export.NewMarkdownExporter(&recorder)
		exportResult, exportErr := exporter.Write(outputDir, result.Records)
		if exportErr != nil {
			return exportErr
		}

		fmt.Fprintf(cmd.OutOrStdout(),
			"crawl %s: %d records in %s (%s), %d files written, index at %s\n",
			result.CrawlID,
			len(result.Records),
			time.Since(start).Round(time.Millisecond),
			result.Reason,
			len(exportResult.WriteResults),
			exportResult.IndexPath,
		)
		return nil
	},
}

func buildConfig() (config.Config, error) {
	if cfgFile != "" {
		return config.WithConfigFile(cfgFile)
	}

	if seedURL == "" {
		return config.Config{}, fmt.Errorf("--seed-url is required")
	}
	parsed, err := url.Parse(seedURL)
	if err != nil {
		return config.Config{}, fmt.Errorf("invalid seed URL %q: %w", seedURL, err)
	}

	builder := config.WithDefault(*parsed).
		WithMaxDepth(maxDepth).
		WithMaxPages(maxPages).
		WithMaxWorkers(maxWorkers).
		WithRenderMode(config.RenderMode(renderMode)).
		WithRateLimitRPS(rateLimitRPS).
		WithBurst(burst).
		WithMinInterval(time.Duration(minIntervalMs) * time.Millisecond).
		WithRequestTimeout(time.Duration(timeoutMs) * time.Millisecond).
		WithRenderTimeout(time.Duration(timeoutMs) * time.Millisecond).
		WithMaxRetries(maxRetries).
		WithRespectRobots(respectRobots).
		WithUserAgent(userAgent)
	if randomSeed != 0 {
		builder.WithRandomSeed(randomSeed)
	}
	return builder.Build()
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().StringVar(&cfgFile, "config", "", "path to a JSON config file (overrides all other flags)")
	rootCmd.Flags().StringVar(&seedURL, "seed-url", "", "root URL of the documentation site to crawl")
	rootCmd.Flags().StringVarP(&outputDir, "out-dir", "o", "corpus", "directory the Markdown corpus is written to")
	rootCmd.Flags().IntVar(&maxDepth, "max-depth", 0, "BFS depth cap (0 = unbounded within site)")
	rootCmd.Flags().IntVar(&maxPages, "max-pages", config.Unbounded, "hard cap on emitted page records (-1 = unbounded)")
	rootCmd.Flags().IntVar(&maxWorkers, "workers", 10, "concurrent render+extract pipelines")
	rootCmd.Flags().StringVar(&renderMode, "render-mode", string(config.RenderModeAuto), "auto, static_only, or browser_only")
	rootCmd.Flags().Float64Var(&rateLimitRPS, "rps", 2.0, "per-host requests per second")
	rootCmd.Flags().IntVar(&burst, "burst", 4, "per-host token bucket capacity")
	rootCmd.Flags().Int64Var(&minIntervalMs, "min-interval-ms", 500, "politeness floor between requests to one host")
	rootCmd.Flags().Int64Var(&timeoutMs, "timeout-ms", 30000, "request and render timeout")
	rootCmd.Flags().IntVar(&maxRetries, "max-retries", 3, "attempts for retryable fetch errors")
	rootCmd.Flags().BoolVar(&respectRobots, "respect-robots", true, "honor robots.txt")
	rootCmd.Flags().StringVar(&userAgent, "user-agent", "scrape-api-docs/1.0", "User-Agent header and robots.txt identity")
	rootCmd.Flags().Int64Var(&randomSeed, "random-seed", 0, "seed for jitter RNG (0 = time-based)")
}
