package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ziadkadry99/auto-migrate/internal/chunker"
	"github.com/ziadkadry99/auto-migrate/internal/db"
)

// SQLChunkStore keeps chunks in the chunks table of a SQLite or PostgreSQL database.
type SQLChunkStore struct {
	db *db.DB
}

// NewSQLChunkStore creates a chunk store backed by the given database.
func NewSQLChunkStore(d *db.DB) *SQLChunkStore {
	return &SQLChunkStore{db: d}
}

const chunkColumns = `id, job_id, session_id, user_id, file_path, file_name, extension, kind, name,
	content, start_line, end_line, node_type, language, complexity, dependencies, exports,
	embedding, embedding_provider, fallback, created_at`

func (s *SQLChunkStore) Put(ctx context.Context, jobID string, chunks []StoredChunk) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning chunk transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, s.db.Rebind(`INSERT INTO chunks (`+chunkColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (job_id, file_path, start_line, end_line, kind, name) DO NOTHING`))
	if err != nil {
		return 0, fmt.Errorf("preparing chunk insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UnixMilli()
	written := 0
	for _, c := range chunks {
		c.JobID = jobID
		if c.ID == "" {
			c.ID = c.DeterministicID()
		}
		deps, err := json.Marshal(nonNil(c.Metadata.Dependencies))
		if err != nil {
			return 0, fmt.Errorf("encoding dependencies: %w", err)
		}
		exports, err := json.Marshal(nonNil(c.Metadata.Exports))
		if err != nil {
			return 0, fmt.Errorf("encoding exports: %w", err)
		}

		res, err := stmt.ExecContext(ctx,
			c.ID, c.JobID, c.SessionID, c.UserID, c.FilePath, c.FileName, c.Extension,
			string(c.Kind), c.Name, c.Content, c.StartLine, c.EndLine, c.NodeType,
			c.Metadata.Language, c.Metadata.Complexity, string(deps), string(exports),
			encodeVector(c.Embedding), c.Metadata.EmbeddingProvider, boolToInt(c.Metadata.Fallback), now,
		)
		if err != nil {
			return 0, fmt.Errorf("inserting chunk %s:%d: %w", c.FilePath, c.StartLine, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			written += int(n)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing chunks: %w", err)
	}
	return written, nil
}

func (s *SQLChunkStore) ListBySession(ctx context.Context, sessionID, userID string) ([]StoredChunk, error) {
	query := `SELECT ` + chunkColumns + ` FROM chunks WHERE session_id = ?`
	args := []any{sessionID}
	if userID != "" {
		query += ` AND user_id = ?`
		args = append(args, userID)
	}
	query += ` ORDER BY file_path, start_line, end_line, kind, name`

	rows, err := s.db.QueryContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("listing chunks: %w", err)
	}
	defer rows.Close()

	var out []StoredChunk
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLChunkStore) DeleteByJob(ctx context.Context, jobID string) error {
	if _, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM chunks WHERE job_id = ?`), jobID); err != nil {
		return fmt.Errorf("deleting chunks for job %s: %w", jobID, err)
	}
	return nil
}

func (s *SQLChunkStore) CountByJob(ctx context.Context, jobID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, s.db.Rebind(`SELECT COUNT(*) FROM chunks WHERE job_id = ?`), jobID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting chunks: %w", err)
	}
	return n, nil
}

func scanChunk(rows *sql.Rows) (StoredChunk, error) {
	var (
		c              StoredChunk
		kind           string
		deps, exports  string
		blob           []byte
		fallback       int
		createdAtMilli int64
	)
	err := rows.Scan(&c.ID, &c.JobID, &c.SessionID, &c.UserID, &c.FilePath, &c.FileName,
		&c.Extension, &kind, &c.Name, &c.Content, &c.StartLine, &c.EndLine, &c.NodeType,
		&c.Metadata.Language, &c.Metadata.Complexity, &deps, &exports,
		&blob, &c.Metadata.EmbeddingProvider, &fallback, &createdAtMilli)
	if err != nil {
		return c, fmt.Errorf("scanning chunk: %w", err)
	}
	c.Kind = chunker.Kind(kind)
	c.Metadata.Fallback = fallback != 0
	if err := json.Unmarshal([]byte(deps), &c.Metadata.Dependencies); err != nil {
		return c, fmt.Errorf("decoding dependencies of %s: %w", c.ID, err)
	}
	if err := json.Unmarshal([]byte(exports), &c.Metadata.Exports); err != nil {
		return c, fmt.Errorf("decoding exports of %s: %w", c.ID, err)
	}
	if c.Embedding, err = decodeVector(blob); err != nil {
		return c, fmt.Errorf("decoding embedding of %s: %w", c.ID, err)
	}
	return c, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
