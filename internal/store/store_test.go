package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ziadkadry99/auto-migrate/internal/chunker"
	"github.com/ziadkadry99/auto-migrate/internal/db"
	"github.com/ziadkadry99/auto-migrate/internal/embeddings"
)

const testDims = 8

func openTestDB(t *testing.T) *db.DB {
	t.Helper()
	database, err := db.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return database
}

func sampleChunk(session, user, path string, start, end int, name string) StoredChunk {
	return StoredChunk{
		SessionID: session,
		UserID:    user,
		Chunk: chunker.Chunk{
			FilePath:  path,
			FileName:  path,
			Extension: ".ts",
			Kind:      chunker.KindFunction,
			Name:      name,
			Content:   "function " + name + "() {}",
			StartLine: start,
			EndLine:   end,
		},
		Metadata: chunker.Metadata{
			Language:          "typescript",
			Complexity:        1,
			Dependencies:      []string{"./dep"},
			EmbeddingProvider: "stub",
		},
		Embedding: embeddings.FallbackVector(path+name, testDims),
	}
}

// chunkStores runs each test against both backends.
func chunkStores(t *testing.T) map[string]ChunkStore {
	chromemStore, err := NewChromemChunkStore("", testDims, nil)
	require.NoError(t, err)
	return map[string]ChunkStore{
		"sql":     NewSQLChunkStore(openTestDB(t)),
		"chromem": chromemStore,
	}
}

func TestChunkStore_PutIsIdempotent(t *testing.T) {
	for name, cs := range chunkStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			chunks := []StoredChunk{
				sampleChunk("s1", "u1", "b.ts", 1, 4, "b"),
				sampleChunk("s1", "u1", "a.ts", 10, 12, "a2"),
				sampleChunk("s1", "u1", "a.ts", 1, 5, "a1"),
			}

			n, err := cs.Put(ctx, "job-1", chunks)
			require.NoError(t, err)
			assert.Equal(t, 3, n)

			n, err = cs.Put(ctx, "job-1", chunks)
			require.NoError(t, err)
			assert.Zero(t, n)

			count, err := cs.CountByJob(ctx, "job-1")
			require.NoError(t, err)
			assert.Equal(t, 3, count)
		})
	}
}

func TestChunkStore_ListOrderAndFilter(t *testing.T) {
	for name, cs := range chunkStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, err := cs.Put(ctx, "job-1", []StoredChunk{
				sampleChunk("s1", "u1", "b.ts", 1, 4, "b"),
				sampleChunk("s1", "u1", "a.ts", 10, 12, "a2"),
				sampleChunk("s1", "u1", "a.ts", 1, 5, "a1"),
				sampleChunk("s1", "u2", "c.ts", 1, 2, "c"),
				sampleChunk("s2", "u1", "z.ts", 1, 2, "z"),
			})
			require.NoError(t, err)

			got, err := cs.ListBySession(ctx, "s1", "u1")
			require.NoError(t, err)
			require.Len(t, got, 3)
			assert.Equal(t, "a1", got[0].Name)
			assert.Equal(t, "a2", got[1].Name)
			assert.Equal(t, "b", got[2].Name)
			for _, c := range got {
				assert.Len(t, c.Embedding, testDims)
				assert.Equal(t, "job-1", c.JobID)
				assert.Equal(t, []string{"./dep"}, c.Metadata.Dependencies)
			}

			all, err := cs.ListBySession(ctx, "s1", "")
			require.NoError(t, err)
			assert.Len(t, all, 4)
		})
	}
}

func TestChunkStore_DeleteByJob(t *testing.T) {
	for name, cs := range chunkStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, err := cs.Put(ctx, "job-1", []StoredChunk{sampleChunk("s1", "", "a.ts", 1, 2, "a")})
			require.NoError(t, err)
			_, err = cs.Put(ctx, "job-2", []StoredChunk{sampleChunk("s1", "", "a.ts", 1, 2, "a")})
			require.NoError(t, err)

			require.NoError(t, cs.DeleteByJob(ctx, "job-1"))

			n, err := cs.CountByJob(ctx, "job-1")
			require.NoError(t, err)
			assert.Zero(t, n)
			n, err = cs.CountByJob(ctx, "job-2")
			require.NoError(t, err)
			assert.Equal(t, 1, n)
		})
	}
}

func TestVectorCodec(t *testing.T) {
	v := []float32{0.5, -1.25, 3}
	got, err := decodeVector(encodeVector(v))
	require.NoError(t, err)
	assert.Equal(t, v, got)

	_, err = decodeVector([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestJobStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	js := NewJobStore(openTestDB(t))

	job, err := js.Create(ctx, "s1", "u1", []FileDescriptor{
		{RelativePath: "src/a.ts", FetchURL: "file:///tmp/a.ts"},
		{RelativePath: "src", IsDirectory: true},
	})
	require.NoError(t, err)
	assert.Equal(t, JobPending, job.Status)
	assert.Equal(t, 1, job.TotalFiles)

	files, err := js.Files(ctx, job.ID)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "src", files[0].RelativePath)
	assert.True(t, files[0].IsDirectory)

	ok, err := js.Claim(ctx, job.ID, 30*time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = js.Claim(ctx, job.ID, 30*time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "a fresh processing job must not be claimed twice")

	require.NoError(t, js.UpdateProgress(ctx, job.ID, 1, 1))
	require.NoError(t, js.UpdateStatus(ctx, job.ID, JobReady, "", 7))

	got, err := js.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobReady, got.Status)
	assert.Equal(t, 7, got.TotalChunks)
	assert.Equal(t, 1, got.ProcessedFiles)
	assert.False(t, got.FinishedAt.IsZero())

	assert.ErrorIs(t, js.UpdateProgress(ctx, job.ID, 2, 2), ErrJobTerminal)
	assert.ErrorIs(t, js.UpdateStatus(ctx, job.ID, JobFailed, "late", 0), ErrJobTerminal)
	assert.ErrorIs(t, js.Cancel(ctx, job.ID), ErrJobTerminal)
}

func TestJobStore_InvalidTransition(t *testing.T) {
	ctx := context.Background()
	js := NewJobStore(openTestDB(t))

	job, err := js.Create(ctx, "s1", "", nil)
	require.NoError(t, err)
	assert.ErrorIs(t, js.UpdateStatus(ctx, job.ID, JobReady, "", 1), ErrInvalidTransition)
	assert.ErrorIs(t, js.UpdateProgress(ctx, job.ID, 1, 1), ErrInvalidTransition)
}

func TestJobStore_NotFound(t *testing.T) {
	js := NewJobStore(openTestDB(t))
	_, err := js.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)
	assert.ErrorIs(t, js.Delete(context.Background(), "missing"), ErrJobNotFound)
}

func TestJobStore_NextClaimable(t *testing.T) {
	ctx := context.Background()
	js := NewJobStore(openTestDB(t))

	clock := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	js.now = func() time.Time { return clock }

	first, err := js.Create(ctx, "s1", "", nil)
	require.NoError(t, err)
	clock = clock.Add(time.Second)
	second, err := js.Create(ctx, "s1", "", nil)
	require.NoError(t, err)

	next, err := js.NextClaimable(ctx, 30*time.Minute, nil)
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, first.ID, next.ID)

	next, err = js.NextClaimable(ctx, 30*time.Minute, []string{first.ID})
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, second.ID, next.ID)

	ok, err := js.Claim(ctx, first.ID, 30*time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, js.Cancel(ctx, second.ID))

	next, err = js.NextClaimable(ctx, 30*time.Minute, nil)
	require.NoError(t, err)
	assert.Nil(t, next)

	// A processing job without heartbeats becomes claimable again.
	clock = clock.Add(31 * time.Minute)
	next, err = js.NextClaimable(ctx, 30*time.Minute, nil)
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, first.ID, next.ID)

	ok, err = js.Claim(ctx, first.ID, 30*time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestJobStore_CancelIsIdempotent(t *testing.T) {
	ctx := context.Background()
	js := NewJobStore(openTestDB(t))

	job, err := js.Create(ctx, "s1", "", nil)
	require.NoError(t, err)
	require.NoError(t, js.Cancel(ctx, job.ID))
	require.NoError(t, js.Cancel(ctx, job.ID))

	got, err := js.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobCancelled, got.Status)
}

func TestJobStore_AddFilesAndList(t *testing.T) {
	ctx := context.Background()
	js := NewJobStore(openTestDB(t))

	job, err := js.Create(ctx, "s1", "", nil)
	require.NoError(t, err)
	require.NoError(t, js.AddFiles(ctx, job.ID, []FileDescriptor{
		{RelativePath: "a.ts", FetchURL: "file:///a.ts"},
		{RelativePath: "b.ts", FetchURL: "file:///b.ts"},
	}))

	got, err := js.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.TotalFiles)

	jobs, err := js.ListBySession(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, jobs, 1)
}
