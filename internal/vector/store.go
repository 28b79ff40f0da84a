// Package vector holds the in-memory, per-corpus cache of vector records
// with brute-force cosine-similarity search and write-through persistence.
package vector

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/bull/kbvault/internal/model"
)

// Codec persists and restores a corpus. Implemented by the snapshot codec;
// kept as an interface here so the store never depends on the wire format.
type Codec interface {
	Upload(ctx context.Context, corpusID string, records []model.VectorRecord) (cid string, err error)
	Download(ctx context.Context, cid string) ([]model.VectorRecord, error)
}

// Resolver maps a corpus id to the content identifier of its current
// snapshot. The durable pointer itself (a ledger entry in production)
// lives behind this interface.
type Resolver interface {
	Resolve(corpusID string) (cid string, ok bool)
	Update(corpusID, cid string)
}

// MapResolver is an in-memory Resolver for single-process deployments and
// tests.
type MapResolver struct {
	mu       sync.RWMutex
	pointers map[string]string
}

func NewMapResolver() *MapResolver {
	return &MapResolver{pointers: make(map[string]string)}
}

func (r *MapResolver) Resolve(corpusID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cid, ok := r.pointers[corpusID]
	return cid, ok
}

func (r *MapResolver) Update(corpusID, cid string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pointers[corpusID] = cid
}

// SearchResult is a record matched by a similarity search.
type SearchResult struct {
	Record     model.VectorRecord
	Similarity float64
}

// Store caches vector records per corpus with lazy load-on-first-use,
// write-through persistence on every append, and brute-force search.
// All mutation of a corpus's cached list happens inside the single-writer
// ingestion path; reads may run concurrently.
type Store struct {
	mu       sync.RWMutex
	cache    map[string][]model.VectorRecord
	codec    Codec
	resolver Resolver
	logger   *slog.Logger
}

// NewStore creates a store backed by the given codec and pointer resolver.
func NewStore(codec Codec, resolver Resolver, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	if resolver == nil {
		resolver = NewMapResolver()
	}
	return &Store{
		cache:    make(map[string][]model.VectorRecord),
		codec:    codec,
		resolver: resolver,
		logger:   logger,
	}
}

// EnsureLoaded makes sure the corpus is cached, attempting a snapshot load
// when it is not. A missing pointer or a failed load caches an empty list:
// the corpus starts effectively empty rather than failing the caller.
func (s *Store) EnsureLoaded(ctx context.Context, corpusID string) {
	s.mu.RLock()
	_, cached := s.cache[corpusID]
	s.mu.RUnlock()
	if cached {
		return
	}

	records := s.loadSnapshot(ctx, corpusID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, cached := s.cache[corpusID]; !cached {
		s.cache[corpusID] = records
	}
}

func (s *Store) loadSnapshot(ctx context.Context, corpusID string) []model.VectorRecord {
	cid, ok := s.resolver.Resolve(corpusID)
	if !ok {
		return nil
	}
	records, err := s.codec.Download(ctx, cid)
	if err != nil {
		s.logger.Warn("snapshot load failed, starting with empty corpus",
			"corpus", corpusID, "cid", cid, "error", err)
		return nil
	}
	s.logger.Info("corpus loaded from snapshot",
		"corpus", corpusID, "cid", cid, "records", len(records))
	return records
}

// Append merges new records into the corpus and persists the full merged
// set through the codec. The pointer is updated only after the persist
// succeeds, so a failed write leaves both cache and pointer untouched.
// Returns the new snapshot content identifier.
func (s *Store) Append(ctx context.Context, corpusID string, records []model.VectorRecord) (string, error) {
	if len(records) == 0 {
		return "", ErrEmptyAppend
	}

	s.EnsureLoaded(ctx, corpusID)

	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.cache[corpusID]
	if len(existing) > 0 && len(records[0].Vector) != len(existing[0].Vector) {
		return "", fmt.Errorf("%w: corpus %s has %d dimensions, new records have %d",
			ErrDimensionMismatch, corpusID, len(existing[0].Vector), len(records[0].Vector))
	}
	for i := 1; i < len(records); i++ {
		if len(records[i].Vector) != len(records[0].Vector) {
			return "", fmt.Errorf("%w: record %d has %d dimensions, expected %d",
				ErrDimensionMismatch, i, len(records[i].Vector), len(records[0].Vector))
		}
	}

	merged := make([]model.VectorRecord, 0, len(existing)+len(records))
	merged = append(merged, existing...)
	merged = append(merged, records...)

	cid, err := s.codec.Upload(ctx, corpusID, merged)
	if err != nil {
		return "", fmt.Errorf("persist corpus %s: %w", corpusID, err)
	}

	s.cache[corpusID] = merged
	s.resolver.Update(corpusID, cid)
	s.logger.Info("corpus appended",
		"corpus", corpusID, "added", len(records), "total", len(merged), "cid", cid)
	return cid, nil
}

// Search computes cosine similarity of the query against every cached
// record, filters by minSimilarity, sorts descending (ties broken by
// insertion order) and returns at most topK results. An empty corpus or a
// threshold nothing passes yields an empty result, not an error.
func (s *Store) Search(ctx context.Context, corpusID string, query []float32, topK int, minSimilarity float64) []SearchResult {
	s.EnsureLoaded(ctx, corpusID)

	s.mu.RLock()
	records := s.cache[corpusID]
	s.mu.RUnlock()

	if topK <= 0 {
		topK = 5
	}

	results := make([]SearchResult, 0, len(records))
	for _, rec := range records {
		sim, err := Cosine(query, rec.Vector)
		if err != nil {
			s.logger.Warn("skipping malformed record in search",
				"corpus", corpusID, "record", rec.ID, "error", err)
			continue
		}
		if sim >= minSimilarity {
			results = append(results, SearchResult{Record: rec, Similarity: sim})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results
}

// Records returns a copy of the corpus's cached records, loading the
// corpus first if needed. Used by the relevance guard for sampling.
func (s *Store) Records(ctx context.Context, corpusID string) []model.VectorRecord {
	s.EnsureLoaded(ctx, corpusID)

	s.mu.RLock()
	defer s.mu.RUnlock()
	records := s.cache[corpusID]
	out := make([]model.VectorRecord, len(records))
	copy(out, records)
	return out
}

// Count returns the number of cached records for the corpus without
// triggering a load.
func (s *Store) Count(corpusID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.cache[corpusID])
}
