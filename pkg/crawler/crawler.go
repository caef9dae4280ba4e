// Package crawler orchestrates a crawl job: engine search, budget-gated
// download and storage into the corpus directory layout.
package crawler

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"cropcrawler/internal/downloader"
	"cropcrawler/pkg/budget"
	"cropcrawler/pkg/checkpoint"
	"cropcrawler/pkg/config"
	"cropcrawler/pkg/engine"
	errs "cropcrawler/pkg/errors"
	"cropcrawler/pkg/fetch"
	"cropcrawler/pkg/logger"
	"cropcrawler/pkg/naming"
	"cropcrawler/pkg/retry"
	"cropcrawler/pkg/storage"
)

// Summary aggregates the outcome of a crawl job. Failed candidates are
// enumerated in the log as they happen; nothing is dropped silently.
type Summary struct {
	Risks      int
	Downloaded int
	Skipped    int
	Failed     int
}

func (s *Summary) add(other Summary) {
	s.Risks += other.Risks
	s.Downloaded += other.Downloaded
	s.Skipped += other.Skipped
	s.Failed += other.Failed
}

// Crawler runs crawl jobs against the configured engines
type Crawler struct {
	cfg     *config.Config
	engine  engine.Engine
	fetcher *fetch.Client
	retrier *retry.Retrier
	resume  bool
	logger  logger.Logger
}

// New creates a crawler from configuration. The engine selector decides
// the closed set of backends; "both" interleaves yandex and google.
func New(cfg *config.Config, resume bool) (*Crawler, error) {
	log := logger.GetLogger()

	eng, err := buildEngine(cfg, log)
	if err != nil {
		return nil, err
	}

	retrier := retry.NewRetrier(&retry.Config{
		MaxAttempts: cfg.Download.RetryAttempts,
		Backoff: &retry.ExponentialBackoff{
			BaseDelay:    cfg.RateLimit.RetryDelay,
			MaxDelay:     30 * cfg.RateLimit.RetryDelay,
			Multiplier:   2.0,
			JitterFactor: 0.1,
		},
		RetryIf: retry.DefaultRetryIf,
		Context: context.Background(),
		Logger:  log,
	})

	return &Crawler{
		cfg:     cfg,
		engine:  eng,
		fetcher: fetch.NewClient(cfg.Download.DownloadTimeout, cfg.Download.MinFileSize, cfg.Download.MaxFileSize, log),
		retrier: retrier,
		resume:  resume,
		logger:  log,
	}, nil
}

// buildEngine maps the selector onto the closed engine set
func buildEngine(cfg *config.Config, log logger.Logger) (engine.Engine, error) {
	timeout := cfg.Engines.SearchTimeout
	switch strings.ToLower(cfg.Engines.Selector) {
	case "google":
		return engine.NewGoogle(timeout, log), nil
	case "yandex":
		return engine.NewYandex(timeout, log), nil
	case "both":
		// Yandex first: interleaving starts from the first engine
		return engine.NewMulti(log, engine.NewYandex(timeout, log), engine.NewGoogle(timeout, log)), nil
	default:
		return nil, errs.New(errs.ErrorTypeUnknown, fmt.Sprintf("unknown engine selector %q", cfg.Engines.Selector))
	}
}

// RunCatalogs processes every CSV catalog in the configured directory
func (c *Crawler) RunCatalogs(ctx context.Context) (*Summary, error) {
	files, err := ListCatalogFiles(c.cfg.Output.CSVDirectory)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, errs.New(errs.ErrorTypeFilesystem,
			fmt.Sprintf("no CSV catalogs found in %s", c.cfg.Output.CSVDirectory))
	}

	total := &Summary{}
	for _, file := range files {
		if ctx.Err() != nil {
			break
		}

		catalog, err := LoadCatalog(file)
		if err != nil {
			c.logger.WithError(err).WithField("file", file).Error("skipping unreadable catalog")
			continue
		}

		c.logger.InfoWithFields("processing catalog", map[string]interface{}{
			"file":      filepath.Base(file),
			"culture":   catalog.CultureEN,
			"risk_type": catalog.RiskType,
			"risks":     len(catalog.Risks),
		})

		for _, risk := range catalog.Risks {
			if ctx.Err() != nil {
				break
			}
			summary := c.runRisk(ctx, catalog, risk)
			total.add(summary)
		}
	}

	return total, nil
}

// RunQuery crawls a single ad-hoc query into the output base directory
func (c *Crawler) RunQuery(ctx context.Context, query string) (*Summary, error) {
	guid := naming.RiskGUID("query", "adhoc", query)
	summary := c.crawlInto(ctx, query, c.cfg.Output.BaseDirectory, guid, "query:"+query)
	return &summary, nil
}

// runRisk crawls images for one catalog risk into its corpus directory
func (c *Crawler) runRisk(ctx context.Context, catalog *Catalog, risk Risk) Summary {
	riskDir := c.cfg.Output.BaseDirectory
	if c.cfg.Output.CreateRiskFolders {
		riskDir = filepath.Join(riskDir, catalog.RiskType, catalog.CultureEN,
			strings.ToLower(strings.ReplaceAll(risk.EnglishName, " ", "_")))
	}

	guid := risk.GUID
	if guid == "" {
		// Deterministic so every image of one risk shares a GUID stem
		guid = naming.RiskGUID(catalog.RiskType, catalog.CultureEN, risk.EnglishName)
	}

	query := SearchQuery(risk.Name, catalog.CultureRU, catalog.RiskType, c.cfg.Engines.Selector)
	riskKey := fmt.Sprintf("%s_%s_%s", catalog.RiskType, catalog.CultureEN, risk.EnglishName)

	summary := c.crawlInto(ctx, query, riskDir, guid, riskKey)
	summary.Risks = 1

	if summary.Downloaded == 0 && summary.Skipped == 0 && summary.Failed == 0 {
		// Retry once with the loose fallback query
		alt := AltQuery(risk.Name, catalog.CultureRU)
		c.logger.WithField("query", alt).Info("no candidates, trying fallback query")
		altSummary := c.crawlInto(ctx, alt, riskDir, guid, riskKey)
		altSummary.Risks = 0
		summary.add(altSummary)
	}
	return summary
}

// crawlInto runs search, pacing, download and storage for one query into
// one directory scope
func (c *Crawler) crawlInto(ctx context.Context, query, dir, guid, riskKey string) Summary {
	summary := Summary{}

	store, err := storage.NewManager(dir)
	if err != nil {
		c.logger.WithError(err).WithField("dir", dir).Error("cannot prepare output directory")
		summary.Failed++
		return summary
	}

	existing := store.ImageCount()
	remaining := c.cfg.Download.MaxImages - existing
	if remaining <= 0 {
		c.logger.InfoWithFields("directory already full, skipping", map[string]interface{}{
			"dir":      dir,
			"existing": existing,
		})
		summary.Skipped++
		return summary
	}

	// Resume support: previously stored URLs do not consume budget again
	var cp *checkpoint.Checkpoint
	var cpMgr *checkpoint.Manager
	if c.resume {
		cpMgr, err = checkpoint.NewManager(c.cfg.Output.BaseDirectory, riskKey)
		if err == nil {
			cp, _ = cpMgr.Load()
			if cp == nil {
				cp, _ = cpMgr.Create(riskKey)
			}
			if cp != nil {
				for url := range cp.DownloadedURLs {
					store.MarkDownloaded(url)
				}
			}
		}
	}

	candidates, err := c.engine.Search(ctx, query, c.cfg.Engines.ResultsPerPage)
	if err != nil {
		c.logger.WithError(err).WithField("query", query).Warn("search failed")
		return summary
	}
	if len(candidates) == 0 {
		c.logger.WithField("query", query).Warn("no candidates found")
		return summary
	}

	ctrl := budget.NewController(remaining, c.cfg.RateLimit.Delay, c.cfg.RateLimit.JitterFactor)

	pool := downloader.NewWorkerPool(ctx, c.cfg.Download.ConcurrentDownloads,
		c.fetcher, store, ctrl, c.retrier, c.logger)
	pool.Start()

	go func() {
		defer pool.Stop()
		for i, candidate := range candidates {
			// Cooperative stop between candidates, never mid-download
			if ctx.Err() != nil || ctrl.Exhausted() {
				return
			}
			job := downloader.DownloadJob{
				Candidate:    candidate,
				FilenameStem: stemFor(dir, guid, existing+i+1),
			}
			if err := pool.Submit(job); err != nil {
				return
			}
		}
	}()

	for result := range pool.Results() {
		switch {
		case result.Success:
			summary.Downloaded++
			if cp != nil && cpMgr != nil {
				_ = cpMgr.RecordDownload(cp, result.Job.Candidate.SourceURL, filepath.Base(result.Path))
			}
		case result.Skipped:
			summary.Skipped++
		default:
			summary.Failed++
		}
	}

	c.logger.InfoWithFields("query finished", map[string]interface{}{
		"query":      query,
		"downloaded": summary.Downloaded,
		"skipped":    summary.Skipped,
		"failed":     summary.Failed,
	})
	return summary
}

// stemFor builds the filename stem riskType_culture_guid_NN from the
// directory layout, falling back to guid_NN outside the corpus layout
func stemFor(dir, guid string, number int) string {
	parts := strings.Split(filepath.ToSlash(dir), "/")
	// Corpus layout is .../riskType/culture/riskName
	if len(parts) >= 3 {
		riskType := strings.ToLower(parts[len(parts)-3])
		switch riskType {
		case "diseases", "pests", "weeds":
			culture := strings.ToLower(parts[len(parts)-2])
			return fmt.Sprintf("%s_%s_%s_%02d", riskType, culture, guid, number)
		}
	}
	return fmt.Sprintf("%s_%02d", guid, number)
}

// EngineName reports the active engine, for run summaries
func (c *Crawler) EngineName() string {
	return c.engine.Name()
}
