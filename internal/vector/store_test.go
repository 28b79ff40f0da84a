package vector

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/kbvault/internal/model"
)

// fakeCodec keeps snapshots in a map keyed by a counter-based cid.
type fakeCodec struct {
	snapshots map[string][]model.VectorRecord
	uploads   int
	failPut   bool
	failGet   bool
}

func newFakeCodec() *fakeCodec {
	return &fakeCodec{snapshots: make(map[string][]model.VectorRecord)}
}

func (c *fakeCodec) Upload(_ context.Context, corpusID string, records []model.VectorRecord) (string, error) {
	if c.failPut {
		return "", errors.New("upload refused")
	}
	c.uploads++
	cid := fmt.Sprintf("cid-%d", c.uploads)
	stored := make([]model.VectorRecord, len(records))
	copy(stored, records)
	c.snapshots[cid] = stored
	return cid, nil
}

func (c *fakeCodec) Download(_ context.Context, cid string) ([]model.VectorRecord, error) {
	if c.failGet {
		return nil, errors.New("download refused")
	}
	records, ok := c.snapshots[cid]
	if !ok {
		return nil, errors.New("no such snapshot")
	}
	return records, nil
}

func record(id string, vec ...float32) model.VectorRecord {
	return model.VectorRecord{
		ID:        id,
		Vector:    vec,
		Chunk:     model.Chunk{ID: "chunk-" + id, Content: "content " + id},
		CreatedAt: time.Now(),
	}
}

func TestStore_AppendPersistsAndUpdatesPointer(t *testing.T) {
	codec := newFakeCodec()
	resolver := NewMapResolver()
	store := NewStore(codec, resolver, nil)
	ctx := context.Background()

	cid, err := store.Append(ctx, "corpus", []model.VectorRecord{record("a", 1, 0), record("b", 0, 1)})
	require.NoError(t, err)
	assert.Equal(t, "cid-1", cid)

	got, ok := resolver.Resolve("corpus")
	require.True(t, ok)
	assert.Equal(t, cid, got)
	assert.Equal(t, 2, store.Count("corpus"))

	// Second append persists the full merged set, not a delta.
	cid2, err := store.Append(ctx, "corpus", []model.VectorRecord{record("c", 1, 1)})
	require.NoError(t, err)
	assert.NotEqual(t, cid, cid2)
	assert.Len(t, codec.snapshots[cid2], 3)

	got, _ = resolver.Resolve("corpus")
	assert.Equal(t, cid2, got, "pointer should follow the newest snapshot")
}

func TestStore_AppendValidation(t *testing.T) {
	store := NewStore(newFakeCodec(), nil, nil)
	ctx := context.Background()

	_, err := store.Append(ctx, "corpus", nil)
	assert.ErrorIs(t, err, ErrEmptyAppend)

	_, err = store.Append(ctx, "corpus", []model.VectorRecord{record("a", 1, 0)})
	require.NoError(t, err)

	// New records must match the corpus dimension.
	_, err = store.Append(ctx, "corpus", []model.VectorRecord{record("b", 1, 0, 0)})
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	// Mixed dimensions within one batch are rejected too.
	_, err = store.Append(ctx, "corpus", []model.VectorRecord{record("c", 1, 0), record("d", 1)})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestStore_AppendFailedPersistLeavesStateUntouched(t *testing.T) {
	codec := newFakeCodec()
	resolver := NewMapResolver()
	store := NewStore(codec, resolver, nil)
	ctx := context.Background()

	codec.failPut = true
	_, err := store.Append(ctx, "corpus", []model.VectorRecord{record("a", 1, 0)})
	require.Error(t, err)

	assert.Equal(t, 0, store.Count("corpus"), "cache must not hold unpersisted records")
	_, ok := resolver.Resolve("corpus")
	assert.False(t, ok, "pointer must not move on failed persist")
}

func TestStore_EnsureLoadedFallsBackToEmpty(t *testing.T) {
	codec := newFakeCodec()
	resolver := NewMapResolver()
	resolver.Update("corpus", "cid-missing")
	store := NewStore(codec, resolver, nil)
	ctx := context.Background()

	// Download fails: the corpus starts effectively empty, no error.
	codec.failGet = true
	store.EnsureLoaded(ctx, "corpus")
	assert.Equal(t, 0, store.Count("corpus"))

	results := store.Search(ctx, "corpus", []float32{1, 0}, 5, 0)
	assert.Empty(t, results)
}

func TestStore_LazyLoadFromSnapshot(t *testing.T) {
	codec := newFakeCodec()
	resolver := NewMapResolver()
	seed := NewStore(codec, resolver, nil)
	ctx := context.Background()

	_, err := seed.Append(ctx, "corpus", []model.VectorRecord{record("a", 1, 0), record("b", 0, 1)})
	require.NoError(t, err)

	// Fresh store instance, same codec and resolver: first use loads the
	// snapshot.
	store := NewStore(codec, resolver, nil)
	results := store.Search(ctx, "corpus", []float32{1, 0}, 5, 0)
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].Record.ID)
}

func TestStore_SearchOrderingAndLimits(t *testing.T) {
	store := NewStore(newFakeCodec(), nil, nil)
	ctx := context.Background()

	_, err := store.Append(ctx, "corpus", []model.VectorRecord{
		record("low", 1, 10),
		record("high", 1, 0.1),
		record("exact", 1, 0),
		record("negative", -1, 0),
	})
	require.NoError(t, err)

	results := store.Search(ctx, "corpus", []float32{1, 0}, 10, 0)
	require.Len(t, results, 3, "negative similarity filtered by minSimilarity 0")
	assert.Equal(t, "exact", results[0].Record.ID)
	assert.Equal(t, "high", results[1].Record.ID)
	assert.Equal(t, "low", results[2].Record.ID)
	for i := 1; i < len(results); i++ {
		assert.LessOrEqual(t, results[i].Similarity, results[i-1].Similarity)
	}

	// topK caps the result length.
	results = store.Search(ctx, "corpus", []float32{1, 0}, 2, 0)
	assert.Len(t, results, 2)

	// minSimilarity filters.
	results = store.Search(ctx, "corpus", []float32{1, 0}, 10, 0.999)
	require.Len(t, results, 1)
	assert.Equal(t, "exact", results[0].Record.ID)

	// Nothing passes: empty result, not an error.
	results = store.Search(ctx, "corpus", []float32{1, 0}, 10, 1.1)
	assert.Empty(t, results)
}

func TestStore_SearchTieBreakByInsertionOrder(t *testing.T) {
	store := NewStore(newFakeCodec(), nil, nil)
	ctx := context.Background()

	// Identical vectors: identical similarity, insertion order must hold.
	_, err := store.Append(ctx, "corpus", []model.VectorRecord{
		record("first", 1, 1),
		record("second", 1, 1),
		record("third", 1, 1),
	})
	require.NoError(t, err)

	results := store.Search(ctx, "corpus", []float32{1, 1}, 10, 0)
	require.Len(t, results, 3)
	assert.Equal(t, []string{"first", "second", "third"},
		[]string{results[0].Record.ID, results[1].Record.ID, results[2].Record.ID})
}
