package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bull/kbvault/internal/blobstore"
	"github.com/bull/kbvault/internal/model"
)

// ErrCorruptSnapshot marks a downloaded snapshot whose shape or contents
// cannot be restored. Callers treat it as an empty corpus, not a crash.
var ErrCorruptSnapshot = errors.New("corrupt snapshot")

// Wire format. Vector numerics and non-sensitive metadata travel in
// plaintext; chunk content and the original file name are encrypted per
// field.
type snapshotDoc struct {
	UUID        string          `json:"uuid"`
	VectorCount int             `json:"vectorCount"`
	LastUpdated string          `json:"lastUpdated"`
	Vectors     json.RawMessage `json:"vectors"`
}

type snapshotVector struct {
	ID        string        `json:"id"`
	Vector    []float32     `json:"vector"`
	Chunk     snapshotChunk `json:"chunk"`
	Timestamp string        `json:"timestamp"`
}

type snapshotChunk struct {
	ID         string        `json:"id"`
	Content    EncryptedBlob `json:"content"`
	StartIndex int           `json:"startIndex"`
	EndIndex   int           `json:"endIndex"`
	Metadata   chunkMetadata `json:"metadata"`
}

type chunkMetadata struct {
	OriginalFileName EncryptedBlob `json:"originalFileName"`
	ChunkIndex       int           `json:"chunkIndex"`
	TotalChunks      int           `json:"totalChunks"`
	CorpusID         string        `json:"corpusId"`
}

// Codec encrypts, serializes and stores corpus snapshots, and the inverse.
type Codec struct {
	blobs  blobstore.Store
	cipher *FieldCipher
	logger *slog.Logger
}

func NewCodec(blobs blobstore.Store, cipher *FieldCipher, logger *slog.Logger) *Codec {
	if logger == nil {
		logger = slog.Default()
	}
	return &Codec{blobs: blobs, cipher: cipher, logger: logger}
}

// Upload serializes the full record set into a snapshot and stores it.
// The storage network hands back a fresh content identifier whenever the
// content changed; updating whatever durable pointer references "the
// current corpus" is the caller's job.
func (c *Codec) Upload(ctx context.Context, corpusID string, records []model.VectorRecord) (string, error) {
	vectors := make([]snapshotVector, len(records))
	for i, rec := range records {
		content, err := c.cipher.EncryptField(rec.Chunk.Content)
		if err != nil {
			return "", fmt.Errorf("encrypt chunk %s content: %w", rec.Chunk.ID, err)
		}
		fileName, err := c.cipher.EncryptField(rec.Chunk.SourceFileName)
		if err != nil {
			return "", fmt.Errorf("encrypt chunk %s file name: %w", rec.Chunk.ID, err)
		}
		vectors[i] = snapshotVector{
			ID:        rec.ID,
			Vector:    rec.Vector,
			Timestamp: rec.CreatedAt.UTC().Format(time.RFC3339Nano),
			Chunk: snapshotChunk{
				ID:         rec.Chunk.ID,
				Content:    content,
				StartIndex: rec.Chunk.StartIndex,
				EndIndex:   rec.Chunk.EndIndex,
				Metadata: chunkMetadata{
					OriginalFileName: fileName,
					ChunkIndex:       rec.Chunk.ChunkIndex,
					TotalChunks:      rec.Chunk.TotalChunks,
					CorpusID:         rec.Chunk.CorpusID,
				},
			},
		}
	}

	rawVectors, err := json.Marshal(vectors)
	if err != nil {
		return "", fmt.Errorf("encode snapshot vectors: %w", err)
	}
	doc := snapshotDoc{
		UUID:        corpusID,
		VectorCount: len(records),
		LastUpdated: time.Now().UTC().Format(time.RFC3339Nano),
		Vectors:     rawVectors,
	}
	payload, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}

	cid, err := c.blobs.Put(ctx, payload)
	if err != nil {
		return "", fmt.Errorf("upload snapshot for corpus %s: %w", corpusID, err)
	}
	c.logger.Debug("snapshot uploaded",
		"corpus", corpusID, "cid", cid, "records", len(records), "bytes", len(payload))
	return cid, nil
}

// Download fetches a snapshot by content identifier, validates its shape,
// decrypts every sensitive field and reconstructs the records with their
// original timestamps.
func (c *Codec) Download(ctx context.Context, cid string) ([]model.VectorRecord, error) {
	payload, err := c.blobs.Get(ctx, cid)
	if err != nil {
		return nil, fmt.Errorf("download snapshot %s: %w", cid, err)
	}

	var doc snapshotDoc
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}
	if len(doc.Vectors) == 0 || string(doc.Vectors) == "null" {
		return nil, fmt.Errorf("%w: vectors must be a list", ErrCorruptSnapshot)
	}
	var vectors []snapshotVector
	if err := json.Unmarshal(doc.Vectors, &vectors); err != nil {
		return nil, fmt.Errorf("%w: vectors must be a list: %v", ErrCorruptSnapshot, err)
	}

	records := make([]model.VectorRecord, len(vectors))
	for i, v := range vectors {
		content, err := c.cipher.DecryptField(v.Chunk.Content)
		if err != nil {
			return nil, fmt.Errorf("%w: chunk %s content: %v", ErrCorruptSnapshot, v.Chunk.ID, err)
		}
		fileName, err := c.cipher.DecryptField(v.Chunk.Metadata.OriginalFileName)
		if err != nil {
			return nil, fmt.Errorf("%w: chunk %s file name: %v", ErrCorruptSnapshot, v.Chunk.ID, err)
		}
		createdAt, err := time.Parse(time.RFC3339Nano, v.Timestamp)
		if err != nil {
			createdAt = time.Time{}
		}
		records[i] = model.VectorRecord{
			ID:        v.ID,
			Vector:    v.Vector,
			CreatedAt: createdAt,
			Chunk: model.Chunk{
				ID:             v.Chunk.ID,
				Content:        content,
				StartIndex:     v.Chunk.StartIndex,
				EndIndex:       v.Chunk.EndIndex,
				SourceFileName: fileName,
				ChunkIndex:     v.Chunk.Metadata.ChunkIndex,
				TotalChunks:    v.Chunk.Metadata.TotalChunks,
				CorpusID:       v.Chunk.Metadata.CorpusID,
			},
		}
	}
	return records, nil
}
