package llm

import (
	"context"
	"errors"
)

// Sentinel errors for gateway failures. Callers decide whether a failure is
// fatal (embeddings) or degradable (reranking).
var (
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")
	ErrRerankUnavailable    = errors.New("rerank service unavailable")
)

// LLMClient generates text from a prompt. Consumed for summarization, memory
// extraction and the final turn answer.
type LLMClient interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// EmbedderClient produces one fixed-length vector per input text,
// order-preserving. Empty input yields empty output. Failures must be
// reported, never papered over with zero vectors.
type EmbedderClient interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// RerankerClient scores candidates against a query jointly and returns
// candidate indices, most relevant first, at most topK of them.
type RerankerClient interface {
	Rerank(ctx context.Context, query string, candidates []string, topK int) ([]int, error)
}
