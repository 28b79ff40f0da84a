// Package query answers natural-language questions from a corpus:
// embed the question, retrieve the top chunks, synthesize an answer.
package query

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bull/kbvault/internal/embed"
	"github.com/bull/kbvault/internal/vector"
)

const (
	// DefaultTopK is the number of chunks retrieved per question.
	DefaultTopK = 5

	// DefaultMinSimilarity filters out barely-related chunks.
	DefaultMinSimilarity = 0.1

	// charsPerToken is the deterministic token-estimate ratio applied to
	// both questions and answers, whichever backend served the request.
	charsPerToken = 4

	// InsufficientInfoAnswer is returned verbatim when retrieval finds
	// nothing; the service never invents content.
	InsufficientInfoAnswer = "I don't have enough information in this knowledge base to answer that question."

	systemPrompt = `You are a precise assistant answering questions from a curated knowledge base.
Answer strictly from the supplied context. If the context does not contain
the answer, say so explicitly instead of guessing.`
)

// Options override retrieval defaults per request.
type Options struct {
	TopK          int
	MinSimilarity float64
}

// TokenUsage is the deterministic token estimate for one request.
type TokenUsage struct {
	InputTokens  int `json:"inputTokens"`
	OutputTokens int `json:"outputTokens"`
}

// Metadata accompanies every answer.
type Metadata struct {
	CorpusID          string     `json:"corpusId"`
	TotalSourcesFound int        `json:"totalSourcesFound"`
	ProcessingTimeMs  int64      `json:"processingTimeMs"`
	ModelUsed         string     `json:"modelUsed"`
	TokenUsage        TokenUsage `json:"tokenUsage"`
}

// Answer is the synthesized response plus accounting metadata.
type Answer struct {
	Answer   string   `json:"answer"`
	Metadata Metadata `json:"metadata"`
}

// Service is the synchronous query path.
type Service struct {
	backend   embed.Backend
	store     *vector.Store
	modelName string
	logger    *slog.Logger
}

// NewService creates the query service. modelName is reported in answer
// metadata; when empty, the backend's embedding model name is used.
func NewService(backend embed.Backend, store *vector.Store, modelName string, logger *slog.Logger) *Service {
	if modelName == "" {
		modelName = backend.ModelName()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{backend: backend, store: store, modelName: modelName, logger: logger}
}

// Ask answers a question from the corpus. caller identifies the requester
// for usage accounting. Token usage is estimated from text length for
// both direction regardless of backend.
func (s *Service) Ask(ctx context.Context, corpusID, question, caller string, opts Options) (*Answer, error) {
	if strings.TrimSpace(question) == "" {
		return nil, fmt.Errorf("question is required")
	}
	start := time.Now()

	topK := opts.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}
	minSimilarity := opts.MinSimilarity
	if minSimilarity <= 0 {
		minSimilarity = DefaultMinSimilarity
	}

	queryVector, err := s.backend.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}

	results := s.store.Search(ctx, corpusID, queryVector, topK, minSimilarity)

	usage := TokenUsage{InputTokens: estimateTokens(question)}
	if len(results) == 0 {
		usage.OutputTokens = estimateTokens(InsufficientInfoAnswer)
		s.logUsage(corpusID, caller, usage, 0)
		return &Answer{
			Answer: InsufficientInfoAnswer,
			Metadata: Metadata{
				CorpusID:          corpusID,
				TotalSourcesFound: 0,
				ProcessingTimeMs:  time.Since(start).Milliseconds(),
				ModelUsed:         s.modelName,
				TokenUsage:        usage,
			},
		}, nil
	}

	prompt := buildPrompt(question, results)
	answer, err := s.backend.Generate(ctx, prompt, systemPrompt)
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	usage.OutputTokens = estimateTokens(answer)
	s.logUsage(corpusID, caller, usage, len(results))

	return &Answer{
		Answer: answer,
		Metadata: Metadata{
			CorpusID:          corpusID,
			TotalSourcesFound: len(results),
			ProcessingTimeMs:  time.Since(start).Milliseconds(),
			ModelUsed:         s.modelName,
			TokenUsage:        usage,
		},
	}, nil
}

func (s *Service) logUsage(corpusID, caller string, usage TokenUsage, sources int) {
	s.logger.Info("query served",
		"corpus", corpusID, "caller", caller, "sources", sources,
		"input_tokens", usage.InputTokens, "output_tokens", usage.OutputTokens)
}

// buildPrompt concatenates the retrieved chunks into a context block, each
// tagged with its source and similarity score.
func buildPrompt(question string, results []vector.SearchResult) string {
	var b strings.Builder
	b.WriteString("Context:\n\n")
	for i, res := range results {
		fmt.Fprintf(&b, "[Source %d: %s, similarity %.2f]\n%s\n\n",
			i+1, res.Record.Chunk.SourceFileName, res.Similarity, res.Record.Chunk.Content)
	}
	b.WriteString("Question: ")
	b.WriteString(question)
	b.WriteString("\n\nAnswer using only the context above.")
	return b.String()
}

// estimateTokens uses the rough 4-characters-per-token ratio.
func estimateTokens(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + charsPerToken - 1) / charsPerToken
}
