package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"sync"

	chromem "github.com/philippgille/chromem-go"

	"github.com/ziadkadry99/auto-migrate/internal/chunker"
	"github.com/ziadkadry99/auto-migrate/internal/embeddings"
)

const collectionName = "chunks"

// ChromemChunkStore implements ChunkStore on a chromem-go collection. With a
// directory it persists every document to disk, otherwise it is memory only.
type ChromemChunkStore struct {
	mu         sync.Mutex
	db         *chromem.DB
	collection *chromem.Collection
	dimensions int
}

// NewChromemChunkStore opens the collection under dir (in memory when dir is
// empty). Chunks are expected to carry vectors of the given dimensions; the
// embedder is only used for chunks stored without one.
func NewChromemChunkStore(dir string, dimensions int, embedder embeddings.Embedder) (*ChromemChunkStore, error) {
	var (
		cdb *chromem.DB
		err error
	)
	if dir == "" {
		cdb = chromem.NewDB()
	} else if cdb, err = chromem.NewPersistentDB(dir, true); err != nil {
		return nil, fmt.Errorf("open chromem db: %w", err)
	}

	if embedder == nil {
		embedder = embeddings.NewResilient(nil, dimensions)
	}
	col, err := cdb.GetOrCreateCollection(collectionName, nil, embeddings.ToChromemFunc(embedder))
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}

	return &ChromemChunkStore{db: cdb, collection: col, dimensions: dimensions}, nil
}

func (s *ChromemChunkStore) Put(ctx context.Context, jobID string, chunks []StoredChunk) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	written := 0
	for _, c := range chunks {
		c.JobID = jobID
		id := c.DeterministicID()
		if _, err := s.collection.GetByID(ctx, id); err == nil {
			continue
		}

		doc := chromem.Document{
			ID:       id,
			Content:  c.Content,
			Metadata: chunkToMap(c),
		}
		if len(c.Embedding) > 0 {
			doc.Embedding = embeddings.Fit(c.Embedding, s.dimensions)
		}
		if err := s.collection.AddDocument(ctx, doc); err != nil {
			return written, fmt.Errorf("add chunk %s:%d: %w", c.FilePath, c.StartLine, err)
		}
		written++
	}
	return written, nil
}

func (s *ChromemChunkStore) ListBySession(ctx context.Context, sessionID, userID string) ([]StoredChunk, error) {
	where := map[string]string{"session_id": sessionID}
	if userID != "" {
		where["user_id"] = userID
	}
	chunks, err := s.listWhere(ctx, where)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(chunks, func(i, j int) bool {
		if chunks[i].FilePath != chunks[j].FilePath {
			return chunks[i].FilePath < chunks[j].FilePath
		}
		return chunks[i].StartLine < chunks[j].StartLine
	})
	return chunks, nil
}

func (s *ChromemChunkStore) DeleteByJob(ctx context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.collection.Count() == 0 {
		return nil
	}
	return s.collection.Delete(ctx, map[string]string{"job_id": jobID}, nil)
}

func (s *ChromemChunkStore) CountByJob(ctx context.Context, jobID string) (int, error) {
	chunks, err := s.listWhere(ctx, map[string]string{"job_id": jobID})
	if err != nil {
		return 0, err
	}
	return len(chunks), nil
}

// listWhere reads every document matching where. chromem has no scan API, so
// this queries with the collection size as the limit.
func (s *ChromemChunkStore) listWhere(ctx context.Context, where map[string]string) ([]StoredChunk, error) {
	count := s.collection.Count()
	if count == 0 {
		return nil, nil
	}
	probe := make([]float32, s.dimensions)
	probe[0] = 1

	results, err := s.collection.QueryEmbedding(ctx, probe, count, where, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem list: %w", err)
	}
	out := make([]StoredChunk, len(results))
	for i, r := range results {
		out[i] = resultToChunk(r)
	}
	return out, nil
}

func chunkToMap(c StoredChunk) map[string]string {
	deps, _ := json.Marshal(nonNil(c.Metadata.Dependencies))
	exports, _ := json.Marshal(nonNil(c.Metadata.Exports))
	return map[string]string{
		"job_id":             c.JobID,
		"session_id":         c.SessionID,
		"user_id":            c.UserID,
		"file_path":          c.FilePath,
		"file_name":          c.FileName,
		"extension":          c.Extension,
		"kind":               string(c.Kind),
		"name":               c.Name,
		"start_line":         strconv.Itoa(c.StartLine),
		"end_line":           strconv.Itoa(c.EndLine),
		"node_type":          c.NodeType,
		"language":           c.Metadata.Language,
		"complexity":         strconv.Itoa(c.Metadata.Complexity),
		"dependencies":       string(deps),
		"exports":            string(exports),
		"embedding_provider": c.Metadata.EmbeddingProvider,
		"fallback":           strconv.FormatBool(c.Metadata.Fallback),
	}
}

func resultToChunk(r chromem.Result) StoredChunk {
	m := r.Metadata
	start, _ := strconv.Atoi(m["start_line"])
	end, _ := strconv.Atoi(m["end_line"])
	complexity, _ := strconv.Atoi(m["complexity"])
	fallback, _ := strconv.ParseBool(m["fallback"])

	c := StoredChunk{
		ID:        r.ID,
		JobID:     m["job_id"],
		SessionID: m["session_id"],
		UserID:    m["user_id"],
		Chunk: chunker.Chunk{
			FilePath:  m["file_path"],
			FileName:  m["file_name"],
			Extension: m["extension"],
			Kind:      chunker.Kind(m["kind"]),
			Name:      m["name"],
			Content:   r.Content,
			StartLine: start,
			EndLine:   end,
			NodeType:  m["node_type"],
		},
		Metadata: chunker.Metadata{
			Language:          m["language"],
			Complexity:        complexity,
			EmbeddingProvider: m["embedding_provider"],
			Fallback:          fallback,
		},
		Embedding: r.Embedding,
	}
	_ = json.Unmarshal([]byte(m["dependencies"]), &c.Metadata.Dependencies)
	_ = json.Unmarshal([]byte(m["exports"]), &c.Metadata.Exports)
	return c
}
