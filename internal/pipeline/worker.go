package pipeline

import (
	"context"
	"time"

	"github.com/andresuchdata/restock/backend-go/internal/domain"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const defaultWorkerCount = 4

// Job is one batch item.
type Job struct {
	Request Request
	// Payload travels with the job untouched, e.g. the inventory row it came from.
	Payload any
}

// JobResult is the outcome of one batch item. Results keep the order of the jobs.
type JobResult struct {
	Job      Job
	Status   JobStatus
	Analysis *domain.RestockAnalysis
	Err      error
	Latency  time.Duration
}

// BatchRunner analyzes many ingredients with a bounded number of workers.
// A failing item never stops the others; only cancellation of ctx does.
type BatchRunner struct {
	analyzer    *Analyzer
	workerCount int
}

// NewBatchRunner creates a new batch runner
func NewBatchRunner(analyzer *Analyzer, workerCount int) *BatchRunner {
	if workerCount < 1 {
		workerCount = defaultWorkerCount
	}
	return &BatchRunner{analyzer: analyzer, workerCount: workerCount}
}

// Run processes jobs concurrently and returns one result per job.
func (r *BatchRunner) Run(ctx context.Context, jobs []Job) ([]JobResult, BatchMetrics, error) {
	start := time.Now()
	results := make([]JobResult, len(jobs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workerCount)

	for i, job := range jobs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			results[i] = r.process(gctx, job)
			return gctx.Err()
		})
	}

	if err := g.Wait(); err != nil {
		return nil, BatchMetrics{}, err
	}
	if err := ctx.Err(); err != nil {
		return nil, BatchMetrics{}, err
	}

	summary := summarize(results)
	summary.Duration = time.Since(start)
	log.Info().
		Int("total", summary.Total).
		Int("completed", summary.Completed).
		Int("no_data", summary.NoData).
		Int("failed", summary.Failed).
		Dur("latency", summary.Duration).
		Msg("restock batch completed")

	return results, summary, nil
}

// process processes a single job
func (r *BatchRunner) process(ctx context.Context, job Job) JobResult {
	startTime := time.Now()
	analysis, err := r.analyzer.Analyze(ctx, job.Request)

	result := JobResult{Job: job, Analysis: analysis, Err: err, Latency: time.Since(startTime)}
	switch {
	case err == nil:
		result.Status = JobCompleted
	case domain.IsInsufficientData(err):
		result.Status = JobNoData
	default:
		result.Status = JobFailed
		log.Warn().Err(err).Int64("ingredient_id", job.Request.IngredientID).Msg("batch item failed")
	}
	return result
}

func summarize(results []JobResult) BatchMetrics {
	m := BatchMetrics{Total: len(results)}
	var latency time.Duration
	for _, res := range results {
		latency += res.Latency
		switch res.Status {
		case JobCompleted:
			m.Completed++
			if res.Analysis.Fallback {
				m.Fallbacks++
			}
			m.SkippedRecords += res.Analysis.SkippedRecords
		case JobNoData:
			m.NoData++
		case JobFailed:
			m.Failed++
		}
	}
	if len(results) > 0 {
		m.AverageLatency = latency / time.Duration(len(results))
	}
	return m
}
