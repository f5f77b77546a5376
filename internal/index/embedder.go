package index

import (
	"context"
	"strings"

	"github.com/philippgille/chromem-go"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/mltutor/backend/internal/config"
)

// NewEmbedder builds an embedder against an OpenAI-compatible endpoint.
func NewEmbedder(cfg config.EmbeddingConfig) (*embeddings.EmbedderImpl, error) {
	llm, err := openai.New(
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithToken(strings.TrimPrefix(cfg.APIKey, "Bearer ")),
		openai.WithModel(cfg.Model),
		openai.WithEmbeddingModel(cfg.Model),
	)
	if err != nil {
		return nil, err
	}
	return embeddings.NewEmbedder(llm)
}

// EmbeddingFunc adapts a langchaingo embedder to the vector store's
// per-document callback.
func EmbeddingFunc(embedder *embeddings.EmbedderImpl) chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return embedder.EmbedQuery(ctx, text)
	}
}
