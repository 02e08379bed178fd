package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/ziadkadry99/auto-migrate/internal/chunker"
)

var (
	// ErrJobNotFound is returned when a job id is unknown.
	ErrJobNotFound = errors.New("job not found")
	// ErrJobTerminal is returned for writes to a job that already finished.
	ErrJobTerminal = errors.New("job is in a terminal state")
	// ErrInvalidTransition is returned for status changes that go backwards.
	ErrInvalidTransition = errors.New("invalid job status transition")
)

// StoredChunk is a chunk as persisted for one job, with its vector.
type StoredChunk struct {
	ID        string
	JobID     string
	SessionID string
	UserID    string
	chunker.Chunk
	Metadata  chunker.Metadata
	Embedding []float32
}

// Key returns the uniqueness key that makes Put idempotent.
func (c StoredChunk) Key() string {
	return fmt.Sprintf("%s|%s|%d|%d|%s|%s", c.JobID, c.FilePath, c.StartLine, c.EndLine, c.Kind, c.Name)
}

// DeterministicID hashes the uniqueness key so repeated puts share an id.
func (c StoredChunk) DeterministicID() string {
	sum := sha256.Sum256([]byte(c.Key()))
	return hex.EncodeToString(sum[:16])
}

// ChunkStore persists chunks with their embeddings.
type ChunkStore interface {
	// Put inserts chunks for jobID. Chunks whose key already exists are
	// skipped. It returns how many rows were newly written.
	Put(ctx context.Context, jobID string, chunks []StoredChunk) (int, error)

	// ListBySession returns the session's chunks ordered by file path, then
	// start line. An empty userID matches every user.
	ListBySession(ctx context.Context, sessionID, userID string) ([]StoredChunk, error)

	// DeleteByJob removes every chunk written for the job.
	DeleteByJob(ctx context.Context, jobID string) error

	// CountByJob returns how many chunks the job owns.
	CountByJob(ctx context.Context, jobID string) (int, error)
}
