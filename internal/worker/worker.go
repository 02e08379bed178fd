// Package worker claims ingestion jobs and turns their files into stored,
// embedded chunks: acquire -> walk -> chunk -> embed -> persist.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ziadkadry99/auto-migrate/internal/chunker"
	"github.com/ziadkadry99/auto-migrate/internal/embeddings"
	"github.com/ziadkadry99/auto-migrate/internal/progress"
	"github.com/ziadkadry99/auto-migrate/internal/store"
	"github.com/ziadkadry99/auto-migrate/internal/walker"
)

// ErrJobCancelled is returned when a job was cancelled while it was processed.
var ErrJobCancelled = errors.New("job cancelled")

const (
	DefaultPollInterval = 5 * time.Second
	DefaultReclaimAfter = 30 * time.Minute
	DefaultBatchSize    = 64
)

// Jobs is the part of the job store the worker drives.
type Jobs interface {
	NextClaimable(ctx context.Context, reclaimAfter time.Duration, exclude []string) (*store.Job, error)
	Claim(ctx context.Context, id string, reclaimAfter time.Duration) (bool, error)
	Get(ctx context.Context, id string) (*store.Job, error)
	UpdateProgress(ctx context.Context, id string, processedFiles, totalFiles int) error
	UpdateStatus(ctx context.Context, id string, status store.JobStatus, errMsg string, totalChunks int) error
}

// Acquirer materializes a job's files and returns the scratch root with its
// release function.
type Acquirer interface {
	Acquire(ctx context.Context, job *store.Job) (string, func(), error)
}

// Embedder embeds texts and reports which vectors are fallbacks.
type Embedder interface {
	EmbedWithInfo(ctx context.Context, texts []string) embeddings.Result
}

// Worker processes one job at a time per Run loop. Several workers may share
// the same stores; the claim in the job store decides who gets a job.
type Worker struct {
	jobs         Jobs
	chunks       store.ChunkStore
	acquirer     Acquirer
	embedder     Embedder
	chunker      *chunker.Chunker
	pollInterval time.Duration
	reclaimAfter time.Duration
	batchSize    int
	exclude      []string
	reporter     progress.Reporter
	logger       *slog.Logger

	mu     sync.Mutex
	active map[string]struct{}
}

// Option configures a Worker.
type Option func(*Worker)

// WithPollInterval sets how often Run looks for work.
func WithPollInterval(d time.Duration) Option {
	return func(w *Worker) {
		if d > 0 {
			w.pollInterval = d
		}
	}
}

// WithReclaimAfter sets how long a processing job may go without a
// heartbeat before another worker may take it over.
func WithReclaimAfter(d time.Duration) Option {
	return func(w *Worker) {
		if d > 0 {
			w.reclaimAfter = d
		}
	}
}

// WithBatchSize sets how many chunks are embedded per call.
func WithBatchSize(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.batchSize = n
		}
	}
}

// WithExclude skips walked files matching any of the globs.
func WithExclude(patterns []string) Option {
	return func(w *Worker) { w.exclude = patterns }
}

// WithReporter reports per-file progress.
func WithReporter(r progress.Reporter) Option {
	return func(w *Worker) { w.reporter = r }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *Worker) { w.logger = l }
}

// New creates a Worker.
func New(jobs Jobs, chunks store.ChunkStore, acquirer Acquirer, embedder Embedder, opts ...Option) *Worker {
	w := &Worker{
		jobs:         jobs,
		chunks:       chunks,
		acquirer:     acquirer,
		embedder:     embedder,
		pollInterval: DefaultPollInterval,
		reclaimAfter: DefaultReclaimAfter,
		batchSize:    DefaultBatchSize,
		reporter:     progress.Nop{},
		logger:       slog.Default(),
		active:       make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.chunker = chunker.New(w.logger)
	return w
}

// Run polls for jobs until ctx is done. Job failures are recorded on the
// job and logged; they do not stop the loop.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		for {
			processed, err := w.RunOnce(ctx)
			if err != nil && ctx.Err() == nil {
				w.logger.Error("worker pass failed", "error", err)
			}
			if !processed || ctx.Err() != nil {
				break
			}
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// RunOnce claims and processes at most one job. It reports whether a job was
// claimed; the error is that job's processing error.
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	for {
		job, err := w.jobs.NextClaimable(ctx, w.reclaimAfter, w.activeIDs())
		if err != nil {
			return false, err
		}
		if job == nil {
			return false, nil
		}
		ok, err := w.jobs.Claim(ctx, job.ID, w.reclaimAfter)
		if err != nil {
			return false, err
		}
		if !ok {
			// Another worker took it; look again.
			continue
		}
		return true, w.Process(ctx, job)
	}
}

func (w *Worker) activeIDs() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	ids := make([]string, 0, len(w.active))
	for id := range w.active {
		ids = append(ids, id)
	}
	return ids
}

func (w *Worker) begin(id string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, busy := w.active[id]; busy {
		return false
	}
	w.active[id] = struct{}{}
	return true
}

func (w *Worker) end(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.active, id)
}

// Process ingests a claimed job. A cancelled job has its chunks purged and
// yields ErrJobCancelled; any other failure marks the job failed.
func (w *Worker) Process(ctx context.Context, job *store.Job) error {
	if !w.begin(job.ID) {
		return fmt.Errorf("job %s is already being processed", job.ID)
	}
	defer w.end(job.ID)

	logger := w.logger.With("job", job.ID, "session", job.SessionID)
	start := time.Now()

	total, err := w.ingest(ctx, job, logger)
	switch {
	case errors.Is(err, ErrJobCancelled):
		logger.Info("job cancelled, purging chunks")
		if purgeErr := w.chunks.DeleteByJob(context.WithoutCancel(ctx), job.ID); purgeErr != nil {
			logger.Error("purging cancelled job", "error", purgeErr)
		}
		return err
	case err != nil && ctx.Err() != nil:
		// Shutdown; the job stays processing and is reclaimed later.
		logger.Warn("job interrupted", "error", err)
		return err
	case err != nil:
		logger.Error("job failed", "error", err)
		if statusErr := w.jobs.UpdateStatus(context.WithoutCancel(ctx), job.ID, store.JobFailed, err.Error(), 0); statusErr != nil {
			logger.Error("recording job failure", "error", statusErr)
		}
		return err
	}

	logger.Info("job ready", "chunks", total, "duration", time.Since(start).Round(time.Millisecond))
	return nil
}

func (w *Worker) ingest(ctx context.Context, job *store.Job, logger *slog.Logger) (int, error) {
	root, release, err := w.acquirer.Acquire(ctx, job)
	if err != nil {
		if cerr := w.checkCancelled(ctx, job.ID); cerr != nil {
			return 0, cerr
		}
		return 0, fmt.Errorf("acquire: %w", err)
	}
	defer release()

	if err := w.checkCancelled(ctx, job.ID); err != nil {
		return 0, err
	}

	files, err := walker.Walk(walker.WalkerConfig{RootDir: root, Exclude: w.exclude})
	if err != nil {
		return 0, fmt.Errorf("walk: %w", err)
	}
	if err := w.heartbeat(ctx, job.ID, 0, len(files)); err != nil {
		return 0, err
	}
	logger.Debug("walked scratch tree", "files", len(files))

	w.reporter.Start(len(files))
	defer w.reporter.Finish()

	var pending []store.StoredChunk
	for i, f := range files {
		if err := w.checkCancelled(ctx, job.ID); err != nil {
			return 0, err
		}
		chunks, err := w.chunker.Chunk(ctx, f.Path, f.RelPath, f.Extension)
		if err != nil {
			logger.Warn("skipping unreadable file", "file", f.RelPath, "error", err)
		}
		for _, c := range chunks {
			pending = append(pending, store.StoredChunk{
				SessionID: job.SessionID,
				UserID:    job.UserID,
				Chunk:     c,
				Metadata:  chunker.Analyze(c),
			})
		}
		if err := w.heartbeat(ctx, job.ID, i+1, len(files)); err != nil {
			return 0, err
		}
		w.reporter.Update(i+1, f.RelPath)
	}

	fallbacks := 0
	for start := 0; start < len(pending); start += w.batchSize {
		if err := w.checkCancelled(ctx, job.ID); err != nil {
			return 0, err
		}
		end := min(start+w.batchSize, len(pending))
		batch := pending[start:end]
		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Content
		}
		res := w.embedder.EmbedWithInfo(ctx, texts)
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		for i := range batch {
			batch[i].Embedding = res.Vectors[i]
			batch[i].Metadata.EmbeddingProvider = res.Providers[i]
			batch[i].Metadata.Fallback = res.Fallback[i]
			if res.Fallback[i] {
				fallbacks++
			}
		}
		// Embedding can outlast the reclaim window on large jobs.
		if err := w.heartbeat(ctx, job.ID, len(files), len(files)); err != nil {
			return 0, err
		}
	}
	if fallbacks > 0 {
		logger.Warn("some chunks use fallback embeddings", "count", fallbacks, "chunks", len(pending))
	}

	if err := w.checkCancelled(ctx, job.ID); err != nil {
		return 0, err
	}
	if _, err := w.chunks.Put(ctx, job.ID, pending); err != nil {
		return 0, fmt.Errorf("persist chunks: %w", err)
	}
	total, err := w.chunks.CountByJob(ctx, job.ID)
	if err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}

	if err := w.jobs.UpdateStatus(ctx, job.ID, store.JobReady, "", total); err != nil {
		if errors.Is(err, store.ErrJobTerminal) {
			if cerr := w.checkCancelled(ctx, job.ID); cerr != nil {
				return 0, cerr
			}
		}
		return 0, fmt.Errorf("mark ready: %w", err)
	}
	return total, nil
}

// checkCancelled returns ErrJobCancelled when the job was cancelled or
// deleted, and ctx's error when ctx is done.
func (w *Worker) checkCancelled(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	job, err := w.jobs.Get(ctx, id)
	if errors.Is(err, store.ErrJobNotFound) {
		return ErrJobCancelled
	}
	if err != nil {
		return fmt.Errorf("checking job status: %w", err)
	}
	if job.Status == store.JobCancelled {
		return ErrJobCancelled
	}
	return nil
}

// heartbeat records progress. A job that went terminal under us was
// cancelled or deleted.
func (w *Worker) heartbeat(ctx context.Context, id string, processed, total int) error {
	err := w.jobs.UpdateProgress(ctx, id, processed, total)
	if errors.Is(err, store.ErrJobTerminal) || errors.Is(err, store.ErrJobNotFound) {
		return w.cancelledOr(ctx, id, err)
	}
	if err != nil {
		return fmt.Errorf("update progress: %w", err)
	}
	return nil
}

func (w *Worker) cancelledOr(ctx context.Context, id string, err error) error {
	if cerr := w.checkCancelled(ctx, id); cerr != nil {
		return cerr
	}
	return err
}
