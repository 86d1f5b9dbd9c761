// Package worker drains the analysis queue in the background and records
// each outcome.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/felipepmaragno/ramadan-companion/internal/domain"
	"github.com/felipepmaragno/ramadan-companion/internal/metrics"
	"github.com/felipepmaragno/ramadan-companion/internal/notifications"
	"github.com/felipepmaragno/ramadan-companion/internal/queue"
	"github.com/felipepmaragno/ramadan-companion/internal/repository"
)

const receiveErrorBackoff = time.Second

type Analyzer interface {
	Analyze(ctx context.Context, req domain.RecitationRequest) (*domain.Analysis, error)
}

type Worker struct {
	queue       queue.Queue
	repo        repository.AnalysisRepository
	analyzer    Analyzer
	notifier    notifications.Notifier
	concurrency int
}

// New builds a Worker running concurrency consumers; notifier may be nil.
func New(q queue.Queue, repo repository.AnalysisRepository, analyzer Analyzer, notifier notifications.Notifier, concurrency int) *Worker {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Worker{
		queue:       q,
		repo:        repo,
		analyzer:    analyzer,
		notifier:    notifier,
		concurrency: concurrency,
	}
}

// Run blocks until ctx is cancelled and every consumer has returned.
func (w *Worker) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < w.concurrency; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			w.consume(ctx, id)
		}(i)
	}

	slog.Info("analysis workers started", "count", w.concurrency)
	wg.Wait()
	slog.Info("analysis workers stopped")
}

func (w *Worker) consume(ctx context.Context, id int) {
	for ctx.Err() == nil {
		msgs, err := w.queue.Receive(ctx, 1)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Error("receive analysis jobs", "worker_id", id, "error", err)

			select {
			case <-ctx.Done():
				return
			case <-time.After(receiveErrorBackoff):
			}
			continue
		}

		for _, msg := range msgs {
			w.process(ctx, id, msg)
		}
	}
}

// process runs one job. A job interrupted by shutdown is left on the queue
// so it is redelivered; every other outcome is final.
func (w *Worker) process(ctx context.Context, id int, msg queue.Message) {
	job := msg.Job
	logger := slog.With("worker_id", id, "job_id", job.ID)
	start := time.Now()

	analysis, err := w.analyzer.Analyze(ctx, job.Request)
	if err != nil && ctx.Err() != nil && errors.Is(err, context.Canceled) {
		logger.Info("analysis interrupted by shutdown, leaving job queued")
		return
	}

	if err != nil {
		logger.Warn("analysis failed", "error", err, "duration_ms", time.Since(start).Milliseconds())
		metrics.RecordAnalysisJob("failed")

		if rerr := w.repo.Fail(ctx, job.ID, err.Error()); rerr != nil {
			logger.Error("mark analysis failed", "error", rerr)
		}
		w.notifyFailed(ctx, job, err)
	} else {
		logger.Info("analysis completed", "overall_score", analysis.OverallScore, "duration_ms", time.Since(start).Milliseconds())
		metrics.RecordAnalysisJob("completed")

		if rerr := w.repo.Complete(ctx, job.ID, analysis); rerr != nil {
			logger.Error("store analysis result", "error", rerr)
			return
		}
	}

	if err := w.queue.Delete(ctx, msg.ReceiptHandle); err != nil {
		logger.Error("delete analysis job", "error", err)
	}
}

func (w *Worker) notifyFailed(ctx context.Context, job queue.Job, cause error) {
	if w.notifier == nil {
		return
	}

	err := w.notifier.Send(ctx, notifications.Notification{
		Type:    notifications.TypeAnalysisFailed,
		Message: "background recitation analysis failed",
		Data: map[string]any{
			"job_id": job.ID,
			"error":  cause.Error(),
		},
	})
	if err != nil {
		slog.Error("failed to send analysis failure notification", "job_id", job.ID, "error", err)
	}
}
