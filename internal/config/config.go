// Package config gathers environment configuration for the composition
// root. A .env file, when present, is loaded by the CLI before Load runs.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is the process configuration, read once at startup.
type Config struct {
	// Backend
	OpenAIAPIKey    string
	EmbeddingModel  string
	GenerationModel string
	BatchSize       int
	BatchDelay      time.Duration
	EmbedCacheSize  int
	EmbedCacheTTL   time.Duration

	// Ingestion
	MaxUploadBytes int
	ChunkWindow    int
	ChunkOverlap   int

	// Relevance guard
	GuardThreshold float64
	GuardOnError   string

	// Snapshots
	SnapshotSecret string
	BlobStoreType  string // local | s3 | memory
	BlobDir        string
	S3Bucket       string
	S3Region       string
	S3Endpoint     string
	S3Prefix       string

	// Queue
	JobRetention time.Duration
}

// Load reads configuration from the environment, applying defaults.
func Load() (Config, error) {
	cfg := Config{
		OpenAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
		EmbeddingModel:  getEnv("KBVAULT_EMBEDDING_MODEL", "text-embedding-3-small"),
		GenerationModel: getEnv("KBVAULT_GENERATION_MODEL", "gpt-4o"),
		BatchSize:       getEnvInt("KBVAULT_EMBED_BATCH_SIZE", 4),
		BatchDelay:      getEnvDuration("KBVAULT_EMBED_BATCH_DELAY", 200*time.Millisecond),
		EmbedCacheSize:  getEnvInt("KBVAULT_EMBED_CACHE_SIZE", 2048),
		EmbedCacheTTL:   getEnvDuration("KBVAULT_EMBED_CACHE_TTL", time.Hour),
		MaxUploadBytes:  getEnvInt("KBVAULT_MAX_UPLOAD_BYTES", 10<<20),
		ChunkWindow:     getEnvInt("KBVAULT_CHUNK_WINDOW", 1000),
		ChunkOverlap:    getEnvInt("KBVAULT_CHUNK_OVERLAP", 200),
		GuardThreshold:  getEnvFloat("KBVAULT_GUARD_THRESHOLD", 0.15),
		GuardOnError:    getEnv("KBVAULT_GUARD_ON_ERROR", "accept"),
		SnapshotSecret:  os.Getenv("KBVAULT_SNAPSHOT_SECRET"),
		BlobStoreType:   getEnv("KBVAULT_BLOB_STORE", "local"),
		BlobDir:         getEnv("KBVAULT_BLOB_DIR", ".kbvault/blobs"),
		S3Bucket:        os.Getenv("KBVAULT_S3_BUCKET"),
		S3Region:        os.Getenv("KBVAULT_S3_REGION"),
		S3Endpoint:      os.Getenv("KBVAULT_S3_ENDPOINT"),
		S3Prefix:        os.Getenv("KBVAULT_S3_PREFIX"),
		JobRetention:    getEnvDuration("KBVAULT_JOB_RETENTION", 24*time.Hour),
	}

	if cfg.SnapshotSecret == "" {
		return Config{}, fmt.Errorf("KBVAULT_SNAPSHOT_SECRET environment variable not set")
	}
	if cfg.BlobStoreType == "s3" && cfg.S3Bucket == "" {
		return Config{}, fmt.Errorf("KBVAULT_S3_BUCKET is required for the s3 blob store")
	}
	return cfg, nil
}

// BlobStoreArgs returns the factory arguments for the configured blob
// store type.
func (c Config) BlobStoreArgs() map[string]string {
	switch c.BlobStoreType {
	case "s3":
		return map[string]string{
			"bucket":   c.S3Bucket,
			"region":   c.S3Region,
			"endpoint": c.S3Endpoint,
			"prefix":   c.S3Prefix,
		}
	case "local":
		return map[string]string{"dir": c.BlobDir}
	default:
		return map[string]string{}
	}
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}
