package pipeline

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/gallerywatch/internal/config"
	"github.com/nao1215/gallerywatch/internal/model"
)

// BatchProcessor browses several URLs concurrently, each through a fresh
// pipeline. It uses errgroup to bound the number of loads in flight.
type BatchProcessor struct {
	// pipelineFactory creates a new pipeline for each URL.
	pipelineFactory func() *Pipeline

	// concurrency is the maximum number of concurrent loads.
	concurrency int

	// runID is shared by every report of the batch.
	runID string

	logger *slog.Logger
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrent loads.
// Default is config.DefaultBatchSize.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// WithRunID sets the run identifier stamped on every report.
// A random one is generated when unset.
func WithRunID(id string) BatchOption {
	return func(b *BatchProcessor) {
		b.runID = id
	}
}

// NewBatchProcessor creates a new BatchProcessor.
// pipelineFactory is called once per URL.
func NewBatchProcessor(pipelineFactory func() *Pipeline, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		pipelineFactory: pipelineFactory,
		concurrency:     config.DefaultBatchSize,
	}

	for _, opt := range opts {
		opt(bp)
	}

	if bp.logger == nil {
		bp.logger = slog.Default()
	}
	if bp.runID == "" {
		bp.runID = model.NewRunID()
	}

	return bp
}

// RunID returns the identifier stamped on the batch's reports.
func (bp *BatchProcessor) RunID() string {
	return bp.runID
}

// ProcessBatch browses urls concurrently and returns one report per URL,
// in input order. A failed load does not stop the others; its error is
// recorded in its report. The error return is non-nil only when ctx was
// cancelled, in which case reports of URLs never started are nil.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, urls []string) ([]*model.BrowseReport, error) {
	results := make([]*model.BrowseReport, len(urls))
	err := bp.ProcessBatchWithCallback(ctx, urls, func(report *model.BrowseReport, index int) {
		results[index] = report
	})
	return results, err
}

// ProcessBatchWithCallback browses urls and calls callback for each
// completed report, from the goroutine that completed it.
func (bp *BatchProcessor) ProcessBatchWithCallback(
	ctx context.Context,
	urls []string,
	callback func(report *model.BrowseReport, index int),
) error {
	bp.logger.Info("starting batch",
		"run_id", bp.runID,
		"total", len(urls),
		"concurrency", bp.concurrency,
	)
	startTime := time.Now()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, target := range urls {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			bp.logger.Debug("browsing", "url", target, "index", i+1, "total", len(urls))

			report := model.NewBrowseReport(bp.runID, target)
			if err := bp.pipelineFactory().Execute(ctx, report); err != nil {
				bp.logger.Warn("browse failed", "url", target, "error", err)
			}

			callback(report, i)
			return nil
		})
	}

	err := g.Wait()
	bp.logger.Info("batch complete",
		"run_id", bp.runID,
		"total", len(urls),
		"elapsed", time.Since(startTime),
	)
	return err
}
