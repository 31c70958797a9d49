// Package retrieval produces the bounded document-context string for a turn:
// embedding-based candidate search, guaranteed-priority freshness chunks, and
// cross-encoder reranking with a similarity-order fallback.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/agenthands/contexture/internal/config"
	"github.com/agenthands/contexture/internal/core/model"
	"github.com/agenthands/contexture/internal/llm"
)

// ErrUnavailable means no document context could be assembled at all. The
// orchestrator still attempts the turn with persona and history only.
var ErrUnavailable = errors.New("retrieval unavailable")

// ChunkStore is the slice of the store the engine needs.
type ChunkStore interface {
	SimilarChunks(ctx context.Context, subjectID string, granted model.Layer, queryVec []float32, limit int) ([]model.ScoredChunk, error)
	RecentPriorityChunks(ctx context.Context, subjectID string, granted model.Layer, limit int) ([]model.Chunk, error)
}

type Engine struct {
	Store    ChunkStore
	Embedder llm.EmbedderClient
	Reranker llm.RerankerClient
	Cfg      config.PipelineConfig
	Timeouts config.TimeoutConfig
}

func NewEngine(store ChunkStore, embedder llm.EmbedderClient, reranker llm.RerankerClient, cfg config.PipelineConfig, timeouts config.TimeoutConfig) *Engine {
	return &Engine{
		Store:    store,
		Embedder: embedder,
		Reranker: reranker,
		Cfg:      cfg,
		Timeouts: timeouts,
	}
}

// Result carries the assembled context plus the chunks that went into it.
type Result struct {
	Context        string
	PriorityChunks []model.Chunk
	RankedChunks   []model.Chunk
}

const sectionSeparator = "\n---\n"

// Retrieve assembles document context for the query: priority chunks first
// (recency order, labelled so the prompt can weight them), then reranked
// candidates filling the remaining max(1, topK-P) slots.
func (e *Engine) Retrieve(ctx context.Context, subjectID, query string, granted model.Layer) (*Result, error) {
	ectx, cancel := context.WithTimeout(ctx, e.Timeouts.Embed)
	vecs, err := e.Embedder.Embed(ectx, []string{query})
	cancel()
	if err != nil || len(vecs) == 0 {
		return nil, fmt.Errorf("%w: query embedding: %v", ErrUnavailable, err)
	}
	queryVec := vecs[0]

	candidates, err := e.Store.SimilarChunks(ctx, subjectID, granted, queryVec, e.Cfg.CandidateLimit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	priority, err := e.Store.RecentPriorityChunks(ctx, subjectID, granted, e.Cfg.PriorityLimit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	// Priority chunks are guaranteed slots; drop them from the candidate pool
	// so they are not ranked twice.
	inPriority := make(map[string]bool, len(priority))
	for _, p := range priority {
		inPriority[p.UUID] = true
	}
	pool := make([]model.Chunk, 0, len(candidates))
	for _, sc := range candidates {
		if !inPriority[sc.Chunk.UUID] {
			pool = append(pool, sc.Chunk)
		}
	}

	slots := e.Cfg.RerankTopK - len(priority)
	if slots < 1 {
		slots = 1
	}

	ranked := e.rank(ctx, query, pool, slots)

	return &Result{
		Context:        assemble(priority, ranked),
		PriorityChunks: priority,
		RankedChunks:   ranked,
	}, nil
}

// rank applies the reranker to the candidate pool. When the pool already fits
// the slot budget the call is skipped outright; when the reranker fails, the
// similarity order the pool arrived in stands.
func (e *Engine) rank(ctx context.Context, query string, pool []model.Chunk, slots int) []model.Chunk {
	if len(pool) <= slots {
		return pool
	}

	texts := make([]string, len(pool))
	for i, c := range pool {
		texts[i] = c.Text
	}

	rctx, cancel := context.WithTimeout(ctx, e.Timeouts.Rerank)
	indices, err := e.Reranker.Rerank(rctx, query, texts, slots)
	cancel()
	if err != nil {
		log.Printf("retrieval: reranker unavailable, falling back to similarity order: %v", err)
		return pool[:slots]
	}

	ranked := make([]model.Chunk, 0, slots)
	for _, i := range indices {
		if i >= 0 && i < len(pool) {
			ranked = append(ranked, pool[i])
		}
		if len(ranked) == slots {
			break
		}
	}
	if len(ranked) == 0 {
		return pool[:slots]
	}
	return ranked
}

func assemble(priority, ranked []model.Chunk) string {
	var sections []string
	if len(priority) > 0 {
		texts := make([]string, len(priority))
		for i, c := range priority {
			texts[i] = c.Text
		}
		sections = append(sections, "[PRIORITY - recent updates]\n"+strings.Join(texts, sectionSeparator))
	}
	if len(ranked) > 0 {
		texts := make([]string, len(ranked))
		for i, c := range ranked {
			texts[i] = c.Text
		}
		sections = append(sections, strings.Join(texts, sectionSeparator))
	}
	return strings.Join(sections, "\n\n")
}
