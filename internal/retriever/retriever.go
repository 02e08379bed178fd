// Package retriever selects the stored chunks most relevant to a translation
// request.
package retriever

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/ziadkadry99/auto-migrate/internal/embeddings"
	"github.com/ziadkadry99/auto-migrate/internal/store"
)

const (
	// DefaultTopK is the most chunks a retrieval returns.
	DefaultTopK = 20
	// DefaultMinSimilarity is the exclusive lower bound for a similarity hit.
	DefaultMinSimilarity = 0.05
	// degenerateSimilarity is assigned to chunks with a missing or zero vector.
	degenerateSimilarity = 0.1
)

// Scored is a retrieved chunk with its cosine similarity to the query.
type Scored struct {
	store.StoredChunk
	Similarity float64
}

// Retriever ranks a session's chunks against a query.
type Retriever struct {
	embedder      embeddings.Embedder
	chunks        store.ChunkStore
	topK          int
	minSimilarity float64
	logger        *slog.Logger
}

// Option configures a Retriever.
type Option func(*Retriever)

// WithTopK overrides DefaultTopK.
func WithTopK(k int) Option {
	return func(r *Retriever) {
		if k > 0 {
			r.topK = k
		}
	}
}

// WithMinSimilarity overrides DefaultMinSimilarity.
func WithMinSimilarity(min float64) Option {
	return func(r *Retriever) { r.minSimilarity = min }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Retriever) { r.logger = l }
}

// New creates a Retriever reading from chunks and embedding queries with embedder.
func New(embedder embeddings.Embedder, chunks store.ChunkStore, opts ...Option) *Retriever {
	r := &Retriever{
		embedder:      embedder,
		chunks:        chunks,
		topK:          DefaultTopK,
		minSimilarity: DefaultMinSimilarity,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Retrieve returns up to topK chunks of the session ordered by similarity to
// query. It never returns an empty list while the session has chunks.
func (r *Retriever) Retrieve(ctx context.Context, sessionID, userID, query string) ([]Scored, error) {
	all, err := r.load(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, nil
	}

	var q []float32
	vecs, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		r.logger.Warn("query embedding failed, ranking with fallback vector", "error", err)
	}
	if len(vecs) == 1 {
		q = vecs[0]
	}
	if len(q) == 0 {
		q = embeddings.FallbackVector(query, r.embedder.Dimensions())
	}

	scored := make([]Scored, len(all))
	for i, c := range all {
		scored[i] = Scored{StoredChunk: c, Similarity: similarity(q, c.Embedding)}
	}
	sortScored(scored)

	var top []Scored
	for _, s := range scored {
		if len(top) == r.topK {
			break
		}
		if s.Similarity > r.minSimilarity {
			top = append(top, s)
		}
	}

	files := distinctFiles(scored)
	if len(top) > 0 && distinctFiles(top) == 1 && files > 1 {
		top = rebalance(scored, files, r.topK)
	}

	if len(top) == 0 {
		// Store order: file path, then start line.
		n := min(r.topK, len(all))
		top = make([]Scored, n)
		for i := range n {
			top[i] = Scored{StoredChunk: all[i], Similarity: similarity(q, all[i].Embedding)}
		}
	}

	r.logger.Debug("retrieved context", "session", sessionID, "chunks", len(top), "session_files", files)
	return top, nil
}

// load reads the (session, user) chunks, widening to the whole session when
// the user has none.
func (r *Retriever) load(ctx context.Context, sessionID, userID string) ([]store.StoredChunk, error) {
	chunks, err := r.chunks.ListBySession(ctx, sessionID, userID)
	if err != nil {
		return nil, fmt.Errorf("list session chunks: %w", err)
	}
	if len(chunks) == 0 && userID != "" {
		chunks, err = r.chunks.ListBySession(ctx, sessionID, "")
		if err != nil {
			return nil, fmt.Errorf("list session chunks: %w", err)
		}
	}
	return chunks, nil
}

// rebalance takes up to ceil(topK/files) of the best chunks from each file,
// in ranked order, until topK chunks are selected.
func rebalance(ranked []Scored, files, topK int) []Scored {
	perFile := int(math.Ceil(float64(topK) / float64(files)))
	taken := make(map[string]int)
	var out []Scored
	for _, s := range ranked {
		if len(out) == topK {
			break
		}
		if taken[s.FilePath] >= perFile {
			continue
		}
		taken[s.FilePath]++
		out = append(out, s)
	}
	return out
}

func sortScored(s []Scored) {
	sort.SliceStable(s, func(i, j int) bool {
		if s[i].Similarity != s[j].Similarity {
			return s[i].Similarity > s[j].Similarity
		}
		if s[i].FilePath != s[j].FilePath {
			return s[i].FilePath < s[j].FilePath
		}
		return s[i].StartLine < s[j].StartLine
	})
}

func distinctFiles(s []Scored) int {
	seen := make(map[string]struct{})
	for _, c := range s {
		seen[c.FilePath] = struct{}{}
	}
	return len(seen)
}

// similarity is the cosine similarity of a and b, or degenerateSimilarity
// when either vector is empty, zero or of a different length.
func similarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return degenerateSimilarity
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return degenerateSimilarity
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
