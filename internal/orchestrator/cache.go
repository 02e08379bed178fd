package orchestrator

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/ziadkadry99/auto-migrate/internal/lang"
	"github.com/ziadkadry99/auto-migrate/internal/retriever"
)

// resultCache memoizes translations by request fingerprint. Concurrent
// requests for the same fingerprint share one build.
type resultCache struct {
	entries *lru.Cache[string, *Result]
	group   singleflight.Group
}

func newResultCache(size int) (*resultCache, error) {
	entries, err := lru.New[string, *Result](size)
	if err != nil {
		return nil, fmt.Errorf("create result cache: %w", err)
	}
	return &resultCache{entries: entries}, nil
}

// do returns the cached result for key or builds it. Results containing a
// demo file are not kept, so the next request calls the model again. The
// second return value reports whether the result came from another build.
func (c *resultCache) do(key string, build func() (*Result, error)) (*Result, bool, error) {
	if r, ok := c.entries.Get(key); ok {
		return r.clone(), true, nil
	}
	v, err, shared := c.group.Do(key, func() (any, error) {
		if r, ok := c.entries.Get(key); ok {
			return r, nil
		}
		r, err := build()
		if err != nil {
			return nil, err
		}
		if !r.hasDemo() {
			c.entries.Add(key, r)
		}
		return r, nil
	})
	if err != nil {
		return nil, false, err
	}
	return v.(*Result).clone(), shared, nil
}

// fingerprint identifies a request by everything that shapes its output.
func fingerprint(sessionID, userID string, pair lang.Pair, command string, chunks []retriever.Scored) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00%s\x00%s\x00", sessionID, userID, pair, command)
	for _, c := range chunks {
		fmt.Fprintf(h, "%s\x00", c.ID)
	}
	return hex.EncodeToString(h.Sum(nil))
}
