// Package guard decides whether a batch of new vector records is topically
// related enough to an existing corpus to be admitted.
package guard

import (
	"fmt"
	"log/slog"

	"github.com/bull/kbvault/internal/model"
	"github.com/bull/kbvault/internal/vector"
)

const (
	// DefaultThreshold is the minimum average similarity for acceptance.
	DefaultThreshold = 0.15

	// DefaultSampleSize bounds how many existing records are compared
	// against.
	DefaultSampleSize = 10

	// DefaultMaxComparisons caps total pairwise comparisons per check.
	DefaultMaxComparisons = 100
)

// Policy selects the behavior when the similarity computation itself
// fails. Fail-open (accept) trades strictness for availability.
type Policy string

const (
	PolicyAccept Policy = "accept"
	PolicyReject Policy = "reject"
)

// Config tunes the guard. Zero values fall back to the defaults;
// OnError defaults to PolicyAccept.
type Config struct {
	Threshold      float64
	SampleSize     int
	MaxComparisons int
	OnError        Policy
}

// RejectionError is the business rejection of an off-topic contribution.
// It carries the measured average and the threshold so the submitter gets
// a precise reason.
type RejectionError struct {
	AverageSimilarity float64
	Threshold         float64
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("contribution rejected: average similarity %.4f below threshold %.4f",
		e.AverageSimilarity, e.Threshold)
}

// Result reports the guard's decision and the numbers behind it.
type Result struct {
	Accepted          bool
	AverageSimilarity float64
	Threshold         float64
	Comparisons       int
}

// Guard evaluates new contributions against a sample of the corpus.
type Guard struct {
	cfg    Config
	logger *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Guard {
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.SampleSize <= 0 {
		cfg.SampleSize = DefaultSampleSize
	}
	if cfg.MaxComparisons <= 0 {
		cfg.MaxComparisons = DefaultMaxComparisons
	}
	if cfg.OnError == "" {
		cfg.OnError = PolicyAccept
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{cfg: cfg, logger: logger}
}

// Check compares every new record against an evenly strided sample of the
// existing corpus and averages the cosine similarities, capped at the
// comparison budget. An empty corpus accepts unconditionally with
// similarity 1.0 (cold-start rule). Internal computation errors follow the
// configured OnError policy and are logged either way.
func (g *Guard) Check(corpusID string, incoming, existing []model.VectorRecord) Result {
	if len(existing) == 0 {
		return Result{Accepted: true, AverageSimilarity: 1.0, Threshold: g.cfg.Threshold}
	}

	sample := strideSample(existing, g.cfg.SampleSize)

	var (
		total       float64
		comparisons int
		failures    int
	)
	for _, rec := range incoming {
		for _, ref := range sample {
			if comparisons >= g.cfg.MaxComparisons {
				break
			}
			sim, err := vector.Cosine(rec.Vector, ref.Vector)
			if err != nil {
				failures++
				continue
			}
			total += sim
			comparisons++
		}
	}

	if comparisons == 0 {
		accepted := g.cfg.OnError == PolicyAccept
		g.logger.Warn("relevance check could not compare any vectors",
			"corpus", corpusID, "failures", failures, "policy", g.cfg.OnError, "accepted", accepted)
		return Result{Accepted: accepted, AverageSimilarity: 0, Threshold: g.cfg.Threshold}
	}
	if failures > 0 {
		g.logger.Warn("relevance check skipped malformed vectors",
			"corpus", corpusID, "failures", failures)
	}

	avg := total / float64(comparisons)
	return Result{
		Accepted:          avg >= g.cfg.Threshold,
		AverageSimilarity: avg,
		Threshold:         g.cfg.Threshold,
		Comparisons:       comparisons,
	}
}

// strideSample picks up to n records evenly strided across the corpus, so
// the sample reflects its whole history rather than just the newest
// appends.
func strideSample(records []model.VectorRecord, n int) []model.VectorRecord {
	if len(records) <= n {
		return records
	}
	sample := make([]model.VectorRecord, 0, n)
	stride := float64(len(records)) / float64(n)
	for i := 0; i < n; i++ {
		sample = append(sample, records[int(float64(i)*stride)])
	}
	return sample
}
