package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"cropcrawler/pkg/config"
	"cropcrawler/pkg/crawler"
	"cropcrawler/pkg/logger"
)

var (
	// Crawl command flags
	engineSelector  string
	maxImages       int
	delaySeconds    float64
	query           string
	csvDir          string
	outputDir       string
	downloadTimeout int
	maxRetries      int
	concurrent      int
	resumeCrawl     bool
)

// crawlCmd represents the crawl command
var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Download images from search engines under a shared budget",
	Long: `Query one or more image search engines and download candidate images.

With --csv-dir, CSV risk catalogs drive the queries: each catalog row
becomes a search for that disease or pest, and images land in the
riskType/culture/riskName corpus layout. With --query, a single ad-hoc
search downloads into the output directory directly.

The max-images cap and the inter-request delay are shared across engines.
A failed download never consumes budget, and the run always ends with a
summary of downloaded, skipped and failed candidates.`,
	Example: `  # Crawl all catalogs with both engines, at most 10 images per risk
  cropcrawler crawl --engine both --max-images 10 --delay 2.0

  # Single ad-hoc query against Google only
  cropcrawler crawl --engine google --query "wheat rust symptoms" --max-images 5

  # Resume an interrupted crawl
  cropcrawler crawl --engine both --resume`,
	RunE: runCrawl,
}

func init() {
	rootCmd.AddCommand(crawlCmd)

	crawlCmd.Flags().StringVar(&engineSelector, "engine", "google", "search engine: google, yandex or both")
	crawlCmd.Flags().IntVar(&maxImages, "max-images", 10, "maximum images to download per scope")
	crawlCmd.Flags().Float64Var(&delaySeconds, "delay", 2.0, "delay between requests in seconds")
	crawlCmd.Flags().StringVar(&query, "query", "", "single ad-hoc search query instead of CSV catalogs")
	crawlCmd.Flags().StringVar(&csvDir, "csv-dir", "", "directory holding CSV risk catalogs")
	crawlCmd.Flags().StringVarP(&outputDir, "output", "o", "", "output directory for downloads")
	crawlCmd.Flags().IntVar(&downloadTimeout, "timeout", 10, "download timeout in seconds")
	crawlCmd.Flags().IntVar(&maxRetries, "max-retries", 3, "maximum retry attempts per download")
	crawlCmd.Flags().IntVar(&concurrent, "concurrent", 1, "number of concurrent downloads")
	crawlCmd.Flags().BoolVar(&resumeCrawl, "resume", false, "resume from checkpoints")
}

func runCrawl(cmd *cobra.Command, args []string) error {
	flags := map[string]interface{}{
		"engine": engineSelector,
		"delay":  delaySeconds,
	}
	if maxImages != 10 {
		flags["max-images"] = maxImages
	}
	if outputDir != "" {
		flags["output"] = outputDir
	}
	if csvDir != "" {
		flags["csv-dir"] = csvDir
	}
	if downloadTimeout != 10 {
		flags["timeout"] = downloadTimeout
	}
	if maxRetries != 3 {
		flags["max-retries"] = maxRetries
	}
	if concurrent != 1 {
		flags["concurrent"] = concurrent
	}
	if logLevel != "info" {
		flags["log-level"] = logLevel
	}

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.WithField("version", version).Info("cropcrawler starting")

	c, err := crawler.New(cfg, resumeCrawl)
	if err != nil {
		return fmt.Errorf("failed to initialize crawler: %w", err)
	}

	// Cooperative stop: a signal ends the job between candidates,
	// letting in-flight downloads finish cleanly
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.WithFields(map[string]interface{}{
		"engine":     c.EngineName(),
		"max_images": cfg.Download.MaxImages,
		"delay":      cfg.RateLimit.Delay,
	}).Info("starting crawl")

	var summary *crawler.Summary
	if query != "" {
		summary, err = c.RunQuery(ctx, query)
	} else {
		summary, err = c.RunCatalogs(ctx)
	}
	if err != nil {
		// Setup-level failures are the only fatal ones
		return err
	}

	// Partial completion still exits 0; the summary tells the story
	fmt.Printf("crawl finished: %d downloaded, %d skipped, %d failed (%d risks)\n",
		summary.Downloaded, summary.Skipped, summary.Failed, summary.Risks)
	return nil
}
