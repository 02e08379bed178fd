package store

import (
	"fmt"
	"path/filepath"

	"github.com/ziadkadry99/auto-migrate/internal/config"
	"github.com/ziadkadry99/auto-migrate/internal/db"
	"github.com/ziadkadry99/auto-migrate/internal/embeddings"
)

// Stores bundles the job and chunk stores opened from one configuration.
type Stores struct {
	DB     *db.DB
	Jobs   *JobStore
	Chunks ChunkStore
}

// Close releases the underlying database connection.
func (s *Stores) Close() error {
	return s.DB.Close()
}

// Open opens the stores selected by cfg.Store. Jobs always live in SQL; the
// chromem backend only changes where chunks go.
func Open(cfg *config.Config, embedder embeddings.Embedder) (*Stores, error) {
	var (
		d   *db.DB
		err error
	)
	switch cfg.Store.Backend {
	case config.BackendPostgres:
		d, err = db.OpenPostgres(cfg.Store.DSN)
	default:
		path := cfg.Store.DSN
		if path == "" {
			path = filepath.Join(cfg.DataDir, "automigrate.db")
		}
		d, err = db.Open(path)
	}
	if err != nil {
		return nil, err
	}

	s := &Stores{DB: d, Jobs: NewJobStore(d)}
	if cfg.Store.Backend == config.BackendChromem {
		chunks, err := NewChromemChunkStore(filepath.Join(cfg.DataDir, "chromem"), cfg.EmbeddingDimensions, embedder)
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("opening chromem chunk store: %w", err)
		}
		s.Chunks = chunks
	} else {
		s.Chunks = NewSQLChunkStore(d)
	}
	return s, nil
}
