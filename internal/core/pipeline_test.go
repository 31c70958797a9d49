package core

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/agenthands/contexture/internal/config"
	"github.com/agenthands/contexture/internal/core/model"
)

func newPipeline(store *MockStore, gen *MockLLM, emb *MockEmbedder, rr *MockReranker) *Pipeline {
	cfg := config.Default()
	return NewPipeline(store, gen, emb, rr, cfg)
}

func seededStore() *MockStore {
	return &MockStore{
		Persona: &model.Persona{
			UUID: "ada",
			Name: "Ada",
			Instructions: map[model.Layer]string{
				model.LayerPublic:  "You are Ada. Be polite.",
				model.LayerFriends: "You are Ada. Be warm.",
			},
			CreatedAt: time.Now().UTC(),
		},
		PriorityResult: []model.Chunk{
			{UUID: "p1", Text: "Ada moved to Berlin last week.", Priority: true},
		},
		SimilarResult: []model.ScoredChunk{
			{Chunk: model.Chunk{UUID: "c1", Text: "Ada studied mathematics."}, Distance: 0.1},
			{Chunk: model.Chunk{UUID: "c2", Text: "Ada plays the violin."}, Distance: 0.2},
		},
		RecallResult: []model.ScoredMemory{
			{Memory: model.MemoryItem{Type: model.MemoryPreference, Content: "user prefers short answers", Confidence: 0.8}, Similarity: 0.9},
		},
	}
}

func TestRunTurnHappyPath(t *testing.T) {
	store := seededStore()
	gen := &MockLLM{ResponseQueue: []string{
		"Hello! Here is a short answer.",
		`{"memories": [{"type": "fact", "content": "user asked about Berlin", "confidence": 0.85}]}`,
	}}
	p := newPipeline(store, gen, &MockEmbedder{Vector: []float32{1, 0}}, &MockReranker{})

	extracted := make(chan struct{})
	p.afterExtract = func() { close(extracted) }

	res, err := p.RunTurn(context.Background(), TurnRequest{
		ConversationID: "conv",
		PersonaID:      "ada",
		Layer:          model.LayerFriends,
		Query:          "what's new with Ada?",
	})
	assert.NoError(t, err)
	assert.Equal(t, "Hello! Here is a short answer.", res.Answer)
	assert.False(t, res.Degraded)

	joined := renderPrompt(res.Segments)
	assert.Contains(t, joined, "You are Ada. Be warm.")
	assert.Contains(t, joined, "[PRIORITY - recent updates]")
	assert.Contains(t, joined, "Ada moved to Berlin last week.")
	assert.Contains(t, joined, "user prefers short answers")
	assert.True(t, strings.HasSuffix(joined, "user: what's new with Ada?"))

	// Both sides of the turn are persisted.
	assert.Len(t, store.Messages, 2)
	assert.Equal(t, model.RoleUser, store.Messages[0].Role)
	assert.Equal(t, model.RoleAssistant, store.Messages[1].Role)

	select {
	case <-extracted:
	case <-time.After(5 * time.Second):
		t.Fatal("background extraction never finished")
	}
	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Len(t, store.Memories, 1)
	assert.Equal(t, model.MemoryFact, store.Memories[0].Type)
	assert.Equal(t, model.LayerFriends, store.Memories[0].Layer)
}

func TestRunTurnUnknownPersona(t *testing.T) {
	store := seededStore()
	p := newPipeline(store, &MockLLM{Response: "hi"}, &MockEmbedder{Vector: []float32{1, 0}}, &MockReranker{})

	_, err := p.RunTurn(context.Background(), TurnRequest{
		ConversationID: "conv",
		PersonaID:      "nobody",
		Layer:          model.LayerPublic,
		Query:          "hello?",
	})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown persona")
}

func TestRunTurnPersonaStoreOutageDegrades(t *testing.T) {
	store := seededStore()
	store.PersonaErr = errors.New("bolt down")
	gen := &MockLLM{Response: "answer without instructions"}
	p := newPipeline(store, gen, &MockEmbedder{Vector: []float32{1, 0}}, &MockReranker{})
	p.afterExtract = func() {}

	res, err := p.RunTurn(context.Background(), TurnRequest{
		ConversationID: "conv",
		PersonaID:      "ada",
		Layer:          model.LayerPublic,
		Query:          "hello",
	})
	assert.NoError(t, err)
	assert.NotContains(t, renderPrompt(res.Segments), "You are Ada")
}

func TestRunTurnEmbedderOutageDegrades(t *testing.T) {
	// With the embedder down, retrieval and recall both drop out but the turn
	// still answers from persona and history.
	store := seededStore()
	gen := &MockLLM{Response: "degraded but alive"}
	p := newPipeline(store, gen, &MockEmbedder{Err: errors.New("embedder down")}, &MockReranker{})
	p.afterExtract = func() {}

	res, err := p.RunTurn(context.Background(), TurnRequest{
		ConversationID: "conv",
		PersonaID:      "ada",
		Layer:          model.LayerPublic,
		Query:          "hello",
	})
	assert.NoError(t, err)
	assert.True(t, res.Degraded)
	assert.Equal(t, "degraded but alive", res.Answer)
	joined := renderPrompt(res.Segments)
	assert.NotContains(t, joined, "PRIORITY")
	assert.NotContains(t, joined, "Things you remember")
}

func TestRunTurnGenerationFailureIsFatal(t *testing.T) {
	store := seededStore()
	gen := &MockLLM{Err: errors.New("model overloaded")}
	p := newPipeline(store, gen, &MockEmbedder{Vector: []float32{1, 0}}, &MockReranker{})

	_, err := p.RunTurn(context.Background(), TurnRequest{
		ConversationID: "conv",
		PersonaID:      "ada",
		Layer:          model.LayerPublic,
		Query:          "hello",
	})
	assert.Error(t, err)
}

func TestRunTurnRejectsBadInput(t *testing.T) {
	p := newPipeline(seededStore(), &MockLLM{}, &MockEmbedder{}, &MockReranker{})

	_, err := p.RunTurn(context.Background(), TurnRequest{PersonaID: "ada", Layer: "secret", Query: "q"})
	assert.Error(t, err)

	_, err = p.RunTurn(context.Background(), TurnRequest{PersonaID: "ada", Layer: model.LayerPublic, Query: "   "})
	assert.Error(t, err)
}

func TestRunTurnPassesGrantedLayerToRetrieval(t *testing.T) {
	store := seededStore()
	gen := &MockLLM{Response: "ok"}
	p := newPipeline(store, gen, &MockEmbedder{Vector: []float32{1, 0}}, &MockReranker{})
	p.afterExtract = func() {}

	_, err := p.RunTurn(context.Background(), TurnRequest{
		ConversationID: "conv",
		PersonaID:      "ada",
		Layer:          model.LayerIntimate,
		Query:          "hello",
	})
	assert.NoError(t, err)
	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Contains(t, store.GrantedSeen, model.LayerIntimate)
}

func TestIngestDocument(t *testing.T) {
	store := seededStore()
	p := newPipeline(store, &MockLLM{}, &MockEmbedder{Vector: []float32{1, 0}}, &MockReranker{})

	text := strings.Repeat("Ada spent years on the analytical engine. ", 70) // ~2940 chars
	doc := &model.Document{
		SubjectID: "ada",
		Title:     "biography",
		Text:      text,
		Layer:     model.LayerFriends,
		Priority:  true,
	}
	n, err := p.IngestDocument(context.Background(), doc)
	assert.NoError(t, err)
	assert.NotEmpty(t, doc.UUID)
	assert.Equal(t, n, len(store.Chunks))
	assert.Greater(t, n, 1)

	for i, c := range store.Chunks {
		assert.Equal(t, doc.UUID, c.DocumentUUID)
		assert.Equal(t, model.LayerFriends, c.Layer)
		assert.True(t, c.Priority)
		assert.Equal(t, i, c.Ordinal)
		assert.NotEmpty(t, c.Embedding)
	}
}

func TestIngestDocumentRejectsBadLayer(t *testing.T) {
	p := newPipeline(seededStore(), &MockLLM{}, &MockEmbedder{Vector: []float32{1, 0}}, &MockReranker{})
	_, err := p.IngestDocument(context.Background(), &model.Document{Text: "text", Layer: "vip"})
	assert.Error(t, err)
}

func TestIngestDocumentRejectsEmptyText(t *testing.T) {
	p := newPipeline(seededStore(), &MockLLM{}, &MockEmbedder{Vector: []float32{1, 0}}, &MockReranker{})
	_, err := p.IngestDocument(context.Background(), &model.Document{Text: "   \n ", Layer: model.LayerPublic})
	assert.Error(t, err)
}

func TestCreatePersonaInvalidatesCache(t *testing.T) {
	store := seededStore()
	p := newPipeline(store, &MockLLM{}, &MockEmbedder{}, &MockReranker{})

	// Warm the cache with the original.
	got, err := p.GetPersona(context.Background(), "ada")
	assert.NoError(t, err)
	assert.Equal(t, "Ada", got.Name)

	updated := &model.Persona{UUID: "ada", Name: "Ada v2", Instructions: map[model.Layer]string{model.LayerPublic: "hi"}}
	assert.NoError(t, p.CreatePersona(context.Background(), updated))

	got, err = p.GetPersona(context.Background(), "ada")
	assert.NoError(t, err)
	assert.Equal(t, "Ada v2", got.Name)
}

func TestSearchMemories(t *testing.T) {
	store := seededStore()
	p := newPipeline(store, &MockLLM{}, &MockEmbedder{Vector: []float32{1, 0}}, &MockReranker{})

	got, err := p.SearchMemories(context.Background(), "ada", model.LayerPublic, "what do they like", 3)
	assert.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, "user prefers short answers", got[0].Memory.Content)
}
