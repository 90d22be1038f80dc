// Package worker drives queued generations to completion from their
// durable job rows.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sparklab/sparklab-api/pkg/db"
	"github.com/sparklab/sparklab-api/pkg/engines"
	"github.com/sparklab/sparklab-api/pkg/generation"
	"github.com/sparklab/sparklab-api/pkg/metrics"
	"github.com/sparklab/sparklab-api/pkg/services"
	log "github.com/sirupsen/logrus"
)

// ErrProcessing is the message stored on a generation whose job was given up.
const ErrProcessing = "generation could not be processed"

// JobStore is the job queue.
type JobStore interface {
	ClaimNextJob(ctx context.Context, staleAfter time.Duration) (*db.GenerationJob, error)
	FinishJob(ctx context.Context, id uuid.UUID) error
	RetryJob(ctx context.Context, id uuid.UUID, cause string, runAt time.Time) error
	FailJob(ctx context.Context, id uuid.UUID, cause string) error
}

// Lifecycle is the part of the generation service the worker drives.
type Lifecycle interface {
	Load(ctx context.Context, id uuid.UUID) (*db.Generation, error)
	Start(ctx context.Context, g *db.Generation) error
	Complete(ctx context.Context, id uuid.UUID, out services.Outcome) (*db.Generation, error)
}

// Runner executes an engine request.
type Runner interface {
	Run(ctx context.Context, req engines.Request) (engines.Result, error)
}

type Options struct {
	Concurrency  int
	PollInterval time.Duration
	MaxAttempts  int
	StaleAfter   time.Duration
	// RetryDelay is the base backoff; attempt n waits n*RetryDelay.
	RetryDelay time.Duration
}

func (o Options) withDefaults() Options {
	if o.Concurrency < 1 {
		o.Concurrency = 1
	}
	if o.PollInterval <= 0 {
		o.PollInterval = time.Second
	}
	if o.MaxAttempts < 1 {
		o.MaxAttempts = 1
	}
	if o.StaleAfter <= 0 {
		o.StaleAfter = 5 * time.Minute
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = 5 * time.Second
	}
	return o
}

type Worker struct {
	jobs      JobStore
	lifecycle Lifecycle
	runner    Runner
	opts      Options
	now       func() time.Time
	wg        sync.WaitGroup
}

func New(jobs JobStore, lifecycle Lifecycle, runner Runner, opts Options) *Worker {
	return &Worker{
		jobs:      jobs,
		lifecycle: lifecycle,
		runner:    runner,
		opts:      opts.withDefaults(),
		now:       time.Now,
	}
}

// Start launches the worker loops. They stop when ctx is cancelled; Wait
// blocks until they have.
func (w *Worker) Start(ctx context.Context) {
	log.Infof("Starting generation worker pool (concurrency %d, poll %s)", w.opts.Concurrency, w.opts.PollInterval)
	for i := 0; i < w.opts.Concurrency; i++ {
		w.wg.Add(1)
		go w.runLoop(ctx, i+1)
	}
}

// Wait blocks until every loop started by Start has returned.
func (w *Worker) Wait() {
	w.wg.Wait()
}

func (w *Worker) runLoop(ctx context.Context, workerID int) {
	defer w.wg.Done()
	ticker := time.NewTicker(w.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Infof("Worker %d stopped", workerID)
			return
		case <-ticker.C:
			// Drain everything that is due before waiting for the next tick.
			for {
				processed, err := w.ProcessOnce(ctx)
				if err != nil {
					log.Warnf("Worker %d: claim failed: %v", workerID, err)
					break
				}
				if !processed || ctx.Err() != nil {
					break
				}
			}
		}
	}
}

// ProcessOnce claims and handles at most one due job. It reports whether a
// job was claimed; the error is only non-nil when claiming itself failed.
func (w *Worker) ProcessOnce(ctx context.Context) (bool, error) {
	job, err := w.jobs.ClaimNextJob(ctx, w.opts.StaleAfter)
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}

	func() {
		defer func() {
			if r := recover(); r != nil {
				log.Errorf("Generation job %s panicked: %v", job.ID.String(), r)
				w.retryOrFail(ctx, job, fmt.Errorf("panic: %v", r))
			}
		}()
		if err := w.handle(ctx, job); err != nil {
			w.retryOrFail(ctx, job, err)
		}
	}()
	return true, nil
}

// handle runs one job. Engine failures complete the generation as failed and
// are not retried; any other error is returned for a retry.
func (w *Worker) handle(ctx context.Context, job *db.GenerationJob) error {
	g, err := w.lifecycle.Load(ctx, job.GenerationID)
	if err != nil {
		return fmt.Errorf("load generation: %w", err)
	}

	if err := w.lifecycle.Start(ctx, g); err != nil {
		if errors.Is(err, services.ErrAlreadyCompleted) {
			log.Infof("Generation %s already completed, closing job %s", g.ID.String(), job.ID.String())
			return w.jobs.FinishJob(ctx, job.ID)
		}
		return fmt.Errorf("start generation: %w", err)
	}

	req := engines.Request{
		GenerationID: g.ID.String(),
		EngineKey:    g.Engine,
		Type:         generation.Type(g.Type),
		Prompt:       g.Prompt,
		Params:       []byte(g.Params),
	}
	res, runErr := w.runner.Run(ctx, req)
	if runErr != nil && ctx.Err() != nil {
		// Shutting down; leave the job to be reclaimed once its lock goes stale.
		return nil
	}

	out := services.Outcome{Status: generation.StatusSuccess, URL: res.URL, Meta: res.Meta, Raw: res.Raw}
	if runErr != nil {
		log.Warnf("Engine %s failed generation %s: %v", g.Engine, g.ID.String(), runErr)
		out = services.Outcome{Status: generation.StatusFailed, Error: runErr.Error()}
	}

	if _, err := w.lifecycle.Complete(ctx, g.ID, out); err != nil && !errors.Is(err, services.ErrAlreadyCompleted) {
		return fmt.Errorf("complete generation: %w", err)
	}
	return w.jobs.FinishJob(ctx, job.ID)
}

func (w *Worker) retryOrFail(ctx context.Context, job *db.GenerationJob, cause error) {
	if job.Attempts < w.opts.MaxAttempts {
		runAt := w.now().Add(time.Duration(job.Attempts) * w.opts.RetryDelay)
		log.Warnf("Generation job %s attempt %d failed, retrying at %s: %v",
			job.ID.String(), job.Attempts, runAt.Format(time.RFC3339), cause)
		metrics.RecordJobRetry()
		if err := w.jobs.RetryJob(ctx, job.ID, cause.Error(), runAt); err != nil {
			log.Errorf("Failed to reschedule job %s: %v", job.ID.String(), err)
		}
		return
	}

	log.Errorf("Generation job %s gave up after %d attempts: %v", job.ID.String(), job.Attempts, cause)
	_, err := w.lifecycle.Complete(ctx, job.GenerationID, services.Outcome{
		Status: generation.StatusFailed,
		Error:  ErrProcessing,
	})
	if err != nil && !errors.Is(err, services.ErrAlreadyCompleted) {
		log.Errorf("Failed to mark generation %s failed: %v", job.GenerationID.String(), err)
	}
	if err := w.jobs.FailJob(ctx, job.ID, cause.Error()); err != nil {
		log.Errorf("Failed to mark job %s failed: %v", job.ID.String(), err)
	}
}
