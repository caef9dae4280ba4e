package downloader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"cropcrawler/pkg/engine"
	"cropcrawler/pkg/fetch"
	"cropcrawler/pkg/logger"
	"cropcrawler/pkg/retry"
)

// DownloadJob represents a single candidate download task
type DownloadJob struct {
	Candidate engine.Candidate
	// FilenameStem is the target filename without extension; the
	// extension follows the downloaded payload's content type
	FilenameStem string
}

// DownloadResult represents the outcome of a download job
type DownloadResult struct {
	Job      DownloadJob
	Path     string
	Success  bool
	Skipped  bool
	Error    error
	Duration time.Duration
	Size     int
}

// ImageFetcher downloads and validates an image payload
type ImageFetcher interface {
	Download(candidate engine.Candidate) (*fetch.Result, error)
}

// ImageStorage stores image payloads into the directory scope
type ImageStorage interface {
	IsDownloaded(sourceURL string) bool
	SaveImage(r io.Reader, filename, sourceURL string) (string, error)
}

// Budget arbitrates the shared download budget and request pacing
type Budget interface {
	Wait(ctx context.Context) error
	TryReserve() bool
	Commit()
	Release()
}

// WorkerPool manages concurrent download workers. All workers share one
// budget, so the global cap holds no matter how many run.
type WorkerPool struct {
	numWorkers int
	jobQueue   chan DownloadJob
	results    chan DownloadResult
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	fetcher    ImageFetcher
	storage    ImageStorage
	budget     Budget
	retrier    *retry.Retrier
	logger     logger.Logger
}

// NewWorkerPool creates a download worker pool
func NewWorkerPool(
	ctx context.Context,
	numWorkers int,
	fetcher ImageFetcher,
	storage ImageStorage,
	budget Budget,
	retrier *retry.Retrier,
	log logger.Logger,
) *WorkerPool {
	poolCtx, cancel := context.WithCancel(ctx)

	if log == nil {
		log = logger.GetLogger()
	}
	if numWorkers < 1 {
		numWorkers = 1
	}

	return &WorkerPool{
		numWorkers: numWorkers,
		jobQueue:   make(chan DownloadJob, numWorkers*2),
		results:    make(chan DownloadResult, numWorkers),
		ctx:        poolCtx,
		cancel:     cancel,
		fetcher:    fetcher,
		storage:    storage,
		budget:     budget,
		retrier:    retrier,
		logger:     log,
	}
}

// Start launches all workers
func (wp *WorkerPool) Start() {
	wp.logger.DebugWithFields("starting worker pool", map[string]interface{}{
		"num_workers": wp.numWorkers,
	})

	for i := 0; i < wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// Stop signals that no more jobs will arrive and waits for in-flight
// downloads to finish or fail cleanly
func (wp *WorkerPool) Stop() {
	close(wp.jobQueue)
	wp.wg.Wait()
	close(wp.results)
	wp.cancel()
}

// Submit adds a download job to the queue
func (wp *WorkerPool) Submit(job DownloadJob) error {
	select {
	case wp.jobQueue <- job:
		return nil
	case <-wp.ctx.Done():
		return fmt.Errorf("worker pool is shutting down")
	}
}

// Results returns the result channel for consuming download outcomes
func (wp *WorkerPool) Results() <-chan DownloadResult {
	return wp.results
}

// worker is the main worker routine. Cancellation is checked between
// candidates, never mid-download.
func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	for job := range wp.jobQueue {
		select {
		case <-wp.ctx.Done():
			return
		default:
		}

		result := wp.processJob(job, id)

		select {
		case wp.results <- result:
		case <-wp.ctx.Done():
			return
		}
	}
}

// processJob handles a single download job
func (wp *WorkerPool) processJob(job DownloadJob, workerID int) DownloadResult {
	start := time.Now()
	result := DownloadResult{Job: job}

	if wp.storage.IsDownloaded(job.Candidate.SourceURL) {
		result.Skipped = true
		result.Duration = time.Since(start)
		return result
	}

	// Pacing applies before each download start, shared across workers
	if err := wp.budget.Wait(wp.ctx); err != nil {
		result.Error = err
		result.Duration = time.Since(start)
		return result
	}

	// No new downloads once the budget is spoken for; an in-flight
	// reservation either commits or is released below
	if !wp.budget.TryReserve() {
		result.Skipped = true
		result.Duration = time.Since(start)
		return result
	}

	var payload *fetch.Result
	err := wp.retrier.WithContext(wp.ctx).Do(func() error {
		var fetchErr error
		payload, fetchErr = wp.fetcher.Download(job.Candidate)
		return fetchErr
	})
	if err != nil {
		wp.budget.Release()
		result.Error = fmt.Errorf("download failed: %w", err)
		result.Duration = time.Since(start)

		wp.logger.WarnWithFields("candidate failed", map[string]interface{}{
			"worker_id": workerID,
			"url":       job.Candidate.SourceURL,
			"engine":    job.Candidate.SourceEngine,
			"error":     err.Error(),
		})
		return result
	}

	filename := job.FilenameStem + payload.Extension
	path, err := wp.storage.SaveImage(bytes.NewReader(payload.Data), filename, job.Candidate.SourceURL)
	if err != nil {
		wp.budget.Release()
		result.Error = fmt.Errorf("save failed: %w", err)
		result.Duration = time.Since(start)
		return result
	}

	wp.budget.Commit()
	result.Success = true
	result.Path = path
	result.Size = len(payload.Data)
	result.Duration = time.Since(start)

	wp.logger.DebugWithFields("candidate stored", map[string]interface{}{
		"worker_id": workerID,
		"path":      path,
		"size":      result.Size,
		"duration":  result.Duration,
	})
	return result
}
