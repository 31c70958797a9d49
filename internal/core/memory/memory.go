// Package memory extracts structured facts from recent turns, stores them
// with embeddings, and answers semantic recall queries.
package memory

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/agenthands/contexture/internal/config"
	"github.com/agenthands/contexture/internal/core/common"
	"github.com/agenthands/contexture/internal/core/model"
	"github.com/agenthands/contexture/internal/llm"
)

// MemoryStore is the slice of the store the subsystem needs.
type MemoryStore interface {
	SaveMemories(ctx context.Context, items []model.MemoryItem) error
	SimilarMemories(ctx context.Context, subjectID string, granted model.Layer, queryVec []float32, k int) ([]model.ScoredMemory, error)
}

type Subsystem struct {
	Store    MemoryStore
	LLM      llm.LLMClient
	Embedder llm.EmbedderClient
	Cfg      config.PipelineConfig
	Timeouts config.TimeoutConfig
	Prompt   string

	now func() time.Time
}

func NewSubsystem(store MemoryStore, llmClient llm.LLMClient, embedder llm.EmbedderClient, cfg config.PipelineConfig, timeouts config.TimeoutConfig, prompt string) *Subsystem {
	return &Subsystem{
		Store:    store,
		LLM:      llmClient,
		Embedder: embedder,
		Cfg:      cfg,
		Timeouts: timeouts,
		Prompt:   prompt,
		now:      time.Now,
	}
}

const defaultConfidence = 0.7

// Extract asks the model for typed facts in the most recent messages.
// Malformed output yields an empty extraction; items missing a type or
// content, or using a type outside the closed set, are discarded.
func (s *Subsystem) Extract(ctx context.Context, msgs []model.Message) ([]model.ExtractedMemory, error) {
	if len(msgs) > s.Cfg.ExtractionWindow {
		msgs = msgs[len(msgs)-s.Cfg.ExtractionWindow:]
	}
	if len(msgs) == 0 {
		return nil, nil
	}

	var b strings.Builder
	for _, m := range msgs {
		b.WriteString(m.Role)
		b.WriteString(": ")
		b.WriteString(m.Content)
		b.WriteString("\n")
	}

	ectx, cancel := context.WithTimeout(ctx, s.Timeouts.Extract)
	response, err := s.LLM.Generate(ectx, fmt.Sprintf(s.Prompt, b.String()))
	cancel()
	if err != nil {
		return nil, fmt.Errorf("extraction call failed: %w", err)
	}

	parsed, err := common.ParseJSON[model.ExtractedMemories](response)
	if err != nil {
		// Empty-on-malformed is deliberate: a bad extraction never blocks
		// the turn.
		log.Printf("memory: unparseable extraction output: %v", err)
		return nil, nil
	}

	items := make([]model.ExtractedMemory, 0, len(parsed.Memories))
	for _, m := range parsed.Memories {
		if m.Content == "" || !model.MemoryType(m.Type).Valid() {
			continue
		}
		if m.Confidence == nil {
			c := defaultConfidence
			m.Confidence = &c
		}
		items = append(items, m)
	}
	return items, nil
}

// ExtractAndStore runs extraction over the recent turn and persists the
// results, embedded, under the subject at the turn's layer. Every failure is
// absorbed and logged; extraction must never surface to the user.
func (s *Subsystem) ExtractAndStore(ctx context.Context, subjectID string, granted model.Layer, msgs []model.Message) {
	extracted, err := s.Extract(ctx, msgs)
	if err != nil {
		log.Printf("memory: extraction failed for %s: %v", subjectID, err)
		return
	}
	if len(extracted) == 0 {
		return
	}

	texts := make([]string, len(extracted))
	for i, m := range extracted {
		texts[i] = m.Content
	}
	ectx, cancel := context.WithTimeout(ctx, s.Timeouts.Embed)
	vecs, err := s.Embedder.Embed(ectx, texts)
	cancel()
	if err != nil || len(vecs) != len(extracted) {
		log.Printf("memory: embedding failed for %s, skipping storage: %v", subjectID, err)
		return
	}

	sourceID := ""
	if len(msgs) > 0 {
		sourceID = msgs[len(msgs)-1].UUID
	}

	items := make([]model.MemoryItem, len(extracted))
	for i, m := range extracted {
		items[i] = model.MemoryItem{
			UUID:          uuid.New().String(),
			SubjectID:     subjectID,
			Type:          model.MemoryType(m.Type),
			Content:       m.Content,
			Confidence:    *m.Confidence,
			Layer:         granted,
			SourceMessage: sourceID,
			Embedding:     vecs[i],
			CreatedAt:     s.now(),
		}
	}
	if err := s.Store.SaveMemories(ctx, items); err != nil {
		log.Printf("memory: storage failed for %s: %v", subjectID, err)
	}
}

// Recall embeds the query and returns the subject's top-k memories visible
// at the granted layer, most similar first.
func (s *Subsystem) Recall(ctx context.Context, subjectID string, granted model.Layer, query string, k int) ([]model.ScoredMemory, error) {
	if k <= 0 {
		k = s.Cfg.RecallK
	}

	ectx, cancel := context.WithTimeout(ctx, s.Timeouts.Embed)
	vecs, err := s.Embedder.Embed(ectx, []string{query})
	cancel()
	if err != nil || len(vecs) == 0 {
		return nil, fmt.Errorf("recall embedding: %w", llm.ErrEmbeddingUnavailable)
	}

	return s.Store.SimilarMemories(ctx, subjectID, granted, vecs[0], k)
}
