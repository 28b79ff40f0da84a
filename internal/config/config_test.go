package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("KBVAULT_SNAPSHOT_SECRET", "test-secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "text-embedding-3-small", cfg.EmbeddingModel)
	assert.Equal(t, 4, cfg.BatchSize)
	assert.Equal(t, 200*time.Millisecond, cfg.BatchDelay)
	assert.Equal(t, 1000, cfg.ChunkWindow)
	assert.Equal(t, 200, cfg.ChunkOverlap)
	assert.Equal(t, 0.15, cfg.GuardThreshold)
	assert.Equal(t, "accept", cfg.GuardOnError)
	assert.Equal(t, "local", cfg.BlobStoreType)
	assert.Equal(t, 24*time.Hour, cfg.JobRetention)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("KBVAULT_SNAPSHOT_SECRET", "test-secret")
	t.Setenv("KBVAULT_CHUNK_WINDOW", "500")
	t.Setenv("KBVAULT_GUARD_THRESHOLD", "0.3")
	t.Setenv("KBVAULT_JOB_RETENTION", "1h")
	t.Setenv("KBVAULT_BLOB_STORE", "memory")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 500, cfg.ChunkWindow)
	assert.Equal(t, 0.3, cfg.GuardThreshold)
	assert.Equal(t, time.Hour, cfg.JobRetention)
	assert.Equal(t, "memory", cfg.BlobStoreType)
}

func TestLoad_MalformedValuesFallBack(t *testing.T) {
	t.Setenv("KBVAULT_SNAPSHOT_SECRET", "test-secret")
	t.Setenv("KBVAULT_CHUNK_WINDOW", "lots")
	t.Setenv("KBVAULT_JOB_RETENTION", "soon")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 1000, cfg.ChunkWindow)
	assert.Equal(t, 24*time.Hour, cfg.JobRetention)
}

func TestLoad_RequiresSnapshotSecret(t *testing.T) {
	t.Setenv("KBVAULT_SNAPSHOT_SECRET", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "KBVAULT_SNAPSHOT_SECRET")
}

func TestLoad_S3RequiresBucket(t *testing.T) {
	t.Setenv("KBVAULT_SNAPSHOT_SECRET", "test-secret")
	t.Setenv("KBVAULT_BLOB_STORE", "s3")
	t.Setenv("KBVAULT_S3_BUCKET", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "KBVAULT_S3_BUCKET")

	t.Setenv("KBVAULT_S3_BUCKET", "snapshots")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "snapshots", cfg.BlobStoreArgs()["bucket"])
}

func TestBlobStoreArgs(t *testing.T) {
	local := Config{BlobStoreType: "local", BlobDir: "/var/blobs"}
	assert.Equal(t, map[string]string{"dir": "/var/blobs"}, local.BlobStoreArgs())

	mem := Config{BlobStoreType: "memory"}
	assert.Empty(t, mem.BlobStoreArgs())
}
