package embeddings

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"
)

// FallbackProvider is recorded as the embedding provider of fallback vectors.
const FallbackProvider = "fallback"

// Result carries one vector per input text and tells which of them are
// deterministic fallbacks rather than provider output.
type Result struct {
	Vectors   [][]float32
	Fallback  []bool
	Providers []string
}

// Resilient wraps a provider so that embedding never fails: inputs the
// provider cannot serve get a content-seeded fallback vector. Every vector
// is fitted to the configured dimensions.
type Resilient struct {
	inner      Embedder
	dimensions int
	batchSize  int
	timeout    time.Duration
	attempts   int
	backoff    time.Duration
	logger     *slog.Logger
}

// ResilientOption configures a Resilient embedder.
type ResilientOption func(*Resilient)

// WithBatchSize sets how many texts go to the provider per call.
func WithBatchSize(n int) ResilientOption {
	return func(r *Resilient) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

// WithTimeout bounds each provider call.
func WithTimeout(d time.Duration) ResilientOption {
	return func(r *Resilient) { r.timeout = d }
}

// WithRetry sets the attempts per batch and the base delay between them.
func WithRetry(attempts int, backoff time.Duration) ResilientOption {
	return func(r *Resilient) {
		if attempts > 0 {
			r.attempts = attempts
		}
		r.backoff = backoff
	}
}

// WithLogger sets the logger used for provider failures.
func WithLogger(l *slog.Logger) ResilientOption {
	return func(r *Resilient) { r.logger = l }
}

// NewResilient wraps inner. A nil inner produces fallback vectors only.
func NewResilient(inner Embedder, dimensions int, opts ...ResilientOption) *Resilient {
	if dimensions <= 0 {
		dimensions = DefaultDimensions
	}
	r := &Resilient{
		inner:      inner,
		dimensions: dimensions,
		batchSize:  maxBatchSize,
		timeout:    30 * time.Second,
		attempts:   2,
		backoff:    250 * time.Millisecond,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Resilient) Name() string {
	if r.inner == nil {
		return FallbackProvider
	}
	return r.inner.Name()
}

func (r *Resilient) Dimensions() int {
	return r.dimensions
}

// Embed satisfies Embedder. It only fails when ctx is done.
func (r *Resilient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	res := r.EmbedWithInfo(ctx, texts)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return res.Vectors, nil
}

// EmbedWithInfo embeds texts in batches and reports fallbacks per input.
func (r *Resilient) EmbedWithInfo(ctx context.Context, texts []string) Result {
	res := Result{
		Vectors:   make([][]float32, len(texts)),
		Fallback:  make([]bool, len(texts)),
		Providers: make([]string, len(texts)),
	}

	for start := 0; start < len(texts); start += r.batchSize {
		end := start + r.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[start:end]

		vectors := r.embedBatch(ctx, batch)
		for i, text := range batch {
			idx := start + i
			if vectors != nil && len(vectors[i]) > 0 {
				res.Vectors[idx] = Fit(vectors[i], r.dimensions)
				res.Providers[idx] = r.inner.Name()
				continue
			}
			res.Vectors[idx] = FallbackVector(text, r.dimensions)
			res.Fallback[idx] = true
			res.Providers[idx] = FallbackProvider
		}
	}
	return res
}

// embedBatch returns nil when the provider could not serve the batch.
func (r *Resilient) embedBatch(ctx context.Context, batch []string) [][]float32 {
	if r.inner == nil {
		return nil
	}

	for attempt := 1; attempt <= r.attempts; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, r.timeout)
		vectors, err := r.inner.Embed(callCtx, batch)
		cancel()
		if err == nil && len(vectors) == len(batch) {
			return vectors
		}
		if err == nil {
			r.logger.Warn("embedding provider returned wrong count",
				"provider", r.inner.Name(), "got", len(vectors), "want", len(batch))
			return nil
		}
		r.logger.Warn("embedding provider failed",
			"provider", r.inner.Name(), "attempt", attempt, "batch", len(batch), "error", err)

		if attempt == r.attempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(r.backoff * time.Duration(attempt)):
		}
	}
	return nil
}

// FallbackVector returns a unit-length pseudo-random vector seeded from the
// SHA-256 of text. The same text always yields the same vector.
func FallbackVector(text string, dimensions int) []float32 {
	sum := sha256.Sum256([]byte(text))
	rng := rand.New(rand.NewPCG(binary.LittleEndian.Uint64(sum[0:8]), binary.LittleEndian.Uint64(sum[8:16])))

	v := make([]float32, dimensions)
	for i := range v {
		v[i] = float32(rng.Float64()*2 - 1)
	}
	normalize(v)
	return v
}

// Fit truncates or zero-pads v to dimensions and rescales it to unit length.
func Fit(v []float32, dimensions int) []float32 {
	out := make([]float32, dimensions)
	copy(out, v)
	normalize(out)
	return out
}

func normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	norm := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= norm
	}
}
