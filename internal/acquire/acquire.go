// Package acquire materializes a job's files into a scratch directory.
package acquire

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ziadkadry99/auto-migrate/internal/store"
	"github.com/ziadkadry99/auto-migrate/internal/walker"
)

var (
	// ErrNothingAcquired is returned when no file of the job could be written.
	ErrNothingAcquired = errors.New("no files acquired")
	// ErrUnsafePath is returned for relative paths that leave the scratch root.
	ErrUnsafePath = errors.New("path escapes scratch root")
)

// DefaultPollDelays are the waits between reads of a job's file list while
// it is still empty.
var DefaultPollDelays = []time.Duration{
	1 * time.Second, 2 * time.Second, 3 * time.Second, 4 * time.Second, 5 * time.Second,
}

// FileLister returns the descriptors recorded for a job.
type FileLister interface {
	Files(ctx context.Context, jobID string) ([]store.FileDescriptor, error)
}

// Acquirer fetches job files into scratch trees.
type Acquirer struct {
	files      FileLister
	fetcher    Fetcher
	scratchDir string
	exclude    []string
	pollDelays []time.Duration
	sleep      func(ctx context.Context, d time.Duration) error
	logger     *slog.Logger
}

// Option configures an Acquirer.
type Option func(*Acquirer)

// WithScratchDir sets the parent directory for scratch trees.
func WithScratchDir(dir string) Option {
	return func(a *Acquirer) { a.scratchDir = dir }
}

// WithExclude skips descriptors whose relative path matches a glob.
func WithExclude(patterns []string) Option {
	return func(a *Acquirer) { a.exclude = patterns }
}

// WithPollDelays replaces the waits used while the file list is empty.
func WithPollDelays(delays []time.Duration) Option {
	return func(a *Acquirer) { a.pollDelays = delays }
}

// WithSleep replaces the function used to wait between polls.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(a *Acquirer) { a.sleep = sleep }
}

// WithLogger sets the logger for skipped files.
func WithLogger(l *slog.Logger) Option {
	return func(a *Acquirer) { a.logger = l }
}

// New creates an Acquirer reading descriptors from files and bytes from fetcher.
func New(files FileLister, fetcher Fetcher, opts ...Option) *Acquirer {
	a := &Acquirer{
		files:      files,
		fetcher:    fetcher,
		scratchDir: os.TempDir(),
		pollDelays: DefaultPollDelays,
		sleep:      sleepCtx,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Acquire writes the job's files under a fresh scratch root and returns it
// with a release function. release is safe to call more than once and is
// also called by Acquire itself on failure.
func (a *Acquirer) Acquire(ctx context.Context, job *store.Job) (string, func(), error) {
	descriptors, err := a.pollFiles(ctx, job.ID)
	if err != nil {
		return "", func() {}, err
	}

	if err := os.MkdirAll(a.scratchDir, 0o755); err != nil {
		return "", func() {}, fmt.Errorf("creating scratch parent: %w", err)
	}
	root, err := os.MkdirTemp(a.scratchDir, "automigrate-"+job.ID+"-")
	if err != nil {
		return "", func() {}, fmt.Errorf("creating scratch root: %w", err)
	}
	release := releaser(root, a.logger)

	written := 0
	for _, d := range descriptors {
		if err := ctx.Err(); err != nil {
			release()
			return "", func() {}, err
		}
		if d.IsDirectory || walker.IsBinaryAsset(d.RelativePath) || walker.MatchesExclude(d.RelativePath, a.exclude) {
			continue
		}

		if err := a.materialize(ctx, root, d); err != nil {
			a.logger.Warn("skipping file", "job", job.ID, "path", d.RelativePath, "error", err)
			continue
		}
		written++
	}

	if written == 0 {
		release()
		return "", func() {}, fmt.Errorf("job %s: %w", job.ID, ErrNothingAcquired)
	}
	a.logger.Info("acquired files", "job", job.ID, "files", written, "root", root)
	return root, release, nil
}

// pollFiles reads the descriptor list, waiting while it is still empty.
func (a *Acquirer) pollFiles(ctx context.Context, jobID string) ([]store.FileDescriptor, error) {
	for attempt := 0; ; attempt++ {
		files, err := a.files.Files(ctx, jobID)
		if err != nil {
			return nil, fmt.Errorf("reading job files: %w", err)
		}
		if len(files) > 0 {
			return files, nil
		}
		if attempt >= len(a.pollDelays) {
			return nil, fmt.Errorf("job %s has no file descriptors: %w", jobID, ErrNothingAcquired)
		}
		a.logger.Debug("job file list empty, waiting", "job", jobID, "attempt", attempt+1)
		if err := a.sleep(ctx, a.pollDelays[attempt]); err != nil {
			return nil, err
		}
	}
}

func (a *Acquirer) materialize(ctx context.Context, root string, d store.FileDescriptor) error {
	target, err := SafeJoin(root, d.RelativePath)
	if err != nil {
		return err
	}
	data, err := a.fetcher.Fetch(ctx, d.FetchURL)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("creating parent: %w", err)
	}
	return os.WriteFile(target, data, 0o644)
}

// SafeJoin joins a slash-separated relative path onto root, rejecting
// absolute paths and any path that would resolve outside root.
func SafeJoin(root, rel string) (string, error) {
	rel = strings.ReplaceAll(rel, "\\", "/")
	if rel == "" || path.IsAbs(rel) || filepath.IsAbs(rel) {
		return "", fmt.Errorf("%q: %w", rel, ErrUnsafePath)
	}
	for _, part := range strings.Split(rel, "/") {
		if part == ".." {
			return "", fmt.Errorf("%q: %w", rel, ErrUnsafePath)
		}
	}
	clean := path.Clean(rel)
	if clean == "." {
		return "", fmt.Errorf("%q: %w", rel, ErrUnsafePath)
	}
	return filepath.Join(root, filepath.FromSlash(clean)), nil
}

func releaser(root string, logger *slog.Logger) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			if err := os.RemoveAll(root); err != nil {
				logger.Warn("removing scratch root", "root", root, "error", err)
			}
		})
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
