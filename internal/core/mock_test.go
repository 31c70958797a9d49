package core

import (
	"context"
	"sync"

	"github.com/agenthands/contexture/internal/core/model"
)

// MockStore is an in-memory Store capturing writes and serving canned reads.
type MockStore struct {
	mu sync.Mutex

	Messages  []model.Message
	Summaries []model.ConversationSummary
	Memories  []model.MemoryItem
	Documents []model.Document
	Chunks    []model.Chunk
	Persona   *model.Persona

	SimilarResult  []model.ScoredChunk
	PriorityResult []model.Chunk
	RecallResult   []model.ScoredMemory

	PersonaErr error
	StoreErr   error

	GrantedSeen []model.Layer
}

func (m *MockStore) SimilarChunks(ctx context.Context, subjectID string, granted model.Layer, queryVec []float32, limit int) ([]model.ScoredChunk, error) {
	m.mu.Lock()
	m.GrantedSeen = append(m.GrantedSeen, granted)
	m.mu.Unlock()
	if m.StoreErr != nil {
		return nil, m.StoreErr
	}
	return m.SimilarResult, nil
}

func (m *MockStore) RecentPriorityChunks(ctx context.Context, subjectID string, granted model.Layer, limit int) ([]model.Chunk, error) {
	if m.StoreErr != nil {
		return nil, m.StoreErr
	}
	return m.PriorityResult, nil
}

func (m *MockStore) RecentMessages(ctx context.Context, conversationID string, limit int) ([]model.Message, error) {
	if m.StoreErr != nil {
		return nil, m.StoreErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	msgs := m.Messages
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]model.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (m *MockStore) OldestMessages(ctx context.Context, conversationID string, limit int) ([]model.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msgs := m.Messages
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[:limit]
	}
	out := make([]model.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (m *MockStore) LatestSummary(ctx context.Context, conversationID string) (*model.ConversationSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Summaries) == 0 {
		return nil, nil
	}
	s := m.Summaries[len(m.Summaries)-1]
	return &s, nil
}

func (m *MockStore) SaveSummary(ctx context.Context, sum *model.ConversationSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Summaries = append(m.Summaries, *sum)
	return nil
}

func (m *MockStore) SaveMemories(ctx context.Context, items []model.MemoryItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Memories = append(m.Memories, items...)
	return nil
}

func (m *MockStore) SimilarMemories(ctx context.Context, subjectID string, granted model.Layer, queryVec []float32, k int) ([]model.ScoredMemory, error) {
	if m.StoreErr != nil {
		return nil, m.StoreErr
	}
	return m.RecallResult, nil
}

func (m *MockStore) SaveDocument(ctx context.Context, doc *model.Document, chunks []model.Chunk) error {
	if m.StoreErr != nil {
		return m.StoreErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Documents = append(m.Documents, *doc)
	m.Chunks = append(m.Chunks, chunks...)
	return nil
}

func (m *MockStore) DeleteDocument(ctx context.Context, uuid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.Chunks[:0]
	for _, c := range m.Chunks {
		if c.DocumentUUID != uuid {
			kept = append(kept, c)
		}
	}
	m.Chunks = kept
	return nil
}

func (m *MockStore) SaveMessage(ctx context.Context, msg *model.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Messages = append(m.Messages, *msg)
	return nil
}

func (m *MockStore) GetPersona(ctx context.Context, uuid string) (*model.Persona, error) {
	if m.PersonaErr != nil {
		return nil, m.PersonaErr
	}
	if m.Persona != nil && m.Persona.UUID == uuid {
		return m.Persona, nil
	}
	return nil, nil
}

func (m *MockStore) SavePersona(ctx context.Context, p *model.Persona) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Persona = p
	return nil
}

// MockLLM returns queued responses in order, then the fallback response.
type MockLLM struct {
	mu            sync.Mutex
	Response      string
	ResponseQueue []string
	Err           error
	Prompts       []string
}

func (m *MockLLM) Generate(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Prompts = append(m.Prompts, prompt)
	if m.Err != nil {
		return "", m.Err
	}
	if len(m.ResponseQueue) > 0 {
		resp := m.ResponseQueue[0]
		m.ResponseQueue = m.ResponseQueue[1:]
		return resp, nil
	}
	return m.Response, nil
}

type MockEmbedder struct {
	Vector []float32
	Err    error
}

func (m *MockEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = m.Vector
	}
	return out, nil
}

type MockReranker struct {
	Indices []int
	Err     error
}

func (m *MockReranker) Rerank(ctx context.Context, query string, candidates []string, topK int) ([]int, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	indices := m.Indices
	if len(indices) > topK {
		indices = indices[:topK]
	}
	return indices, nil
}
