package embed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const (
	// DefaultEmbeddingModel is the OpenAI model used for embeddings.
	DefaultEmbeddingModel = "text-embedding-3-small"

	// DefaultGenerationModel is the chat model used for answer synthesis.
	DefaultGenerationModel = openai.ChatModelGPT4o
)

// OpenAIBackend implements Backend against the OpenAI API.
// Rate-limited calls (HTTP 429) retry with exponential backoff; other
// errors are permanent and fail immediately.
type OpenAIBackend struct {
	client          *openai.Client
	embeddingModel  string
	generationModel string
}

// NewOpenAIBackend creates a backend using the given API key. An empty key
// falls back to the OPENAI_API_KEY environment variable, which openai-go
// reads automatically.
func NewOpenAIBackend(apiKey, embeddingModel, generationModel string) *OpenAIBackend {
	var opts []option.RequestOption
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	client := openai.NewClient(opts...)
	if embeddingModel == "" {
		embeddingModel = DefaultEmbeddingModel
	}
	if generationModel == "" {
		generationModel = DefaultGenerationModel
	}
	return &OpenAIBackend{
		client:          &client,
		embeddingModel:  embeddingModel,
		generationModel: generationModel,
	}
}

func (b *OpenAIBackend) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := b.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (b *OpenAIBackend) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var embeddings [][]float32

	operation := func() error {
		resp, err := b.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
			Input: openai.EmbeddingNewParamsInputUnion{
				OfArrayOfStrings: texts,
			},
			Model: b.embeddingModel,
		})
		if err != nil {
			if isRateLimitError(err) {
				return err // Will retry with backoff
			}
			return backoff.Permanent(err)
		}
		if len(resp.Data) != len(texts) {
			return backoff.Permanent(fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data)))
		}
		embeddings = make([][]float32, len(resp.Data))
		for i, data := range resp.Data {
			embeddings[i] = toFloat32(data.Embedding)
		}
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(newBackoff(), ctx)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return embeddings, nil
}

func (b *OpenAIBackend) Generate(ctx context.Context, prompt, systemPrompt string) (string, error) {
	messages := []openai.ChatCompletionMessageParamUnion{}
	if systemPrompt != "" {
		messages = append(messages, openai.SystemMessage(systemPrompt))
	}
	messages = append(messages, openai.UserMessage(prompt))

	var content string
	operation := func() error {
		resp, err := b.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
			Messages: messages,
			Model:    b.generationModel,
		})
		if err != nil {
			if isRateLimitError(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		if len(resp.Choices) == 0 {
			return backoff.Permanent(errors.New("completion returned no choices"))
		}
		content = resp.Choices[0].Message.Content
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(newBackoff(), ctx)); err != nil {
		return "", fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return content, nil
}

func (b *OpenAIBackend) IsAvailable(ctx context.Context) bool {
	// A model metadata lookup doubles as the health probe; the API has no
	// dedicated ping endpoint.
	_, err := b.client.Models.Get(ctx, b.embeddingModel)
	return err == nil
}

func (b *OpenAIBackend) ModelName() string {
	return b.embeddingModel
}

// GenerationModel returns the chat model used for synthesis, for usage
// reporting.
func (b *OpenAIBackend) GenerationModel() string {
	return b.generationModel
}

// newBackoff returns the retry profile shared by all OpenAI calls:
// initial 500ms, capped at 10s per interval and 30s overall.
func newBackoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second
	return b
}

// isRateLimitError checks if the error is a rate limit error (HTTP 429).
func isRateLimitError(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429
	}
	return false
}

// toFloat32 converts []float64 to []float32. The API returns float64, but
// records store float32 for memory efficiency.
func toFloat32(f64 []float64) []float32 {
	f32 := make([]float32, len(f64))
	for i, v := range f64 {
		f32[i] = float32(v)
	}
	return f32
}
