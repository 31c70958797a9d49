// Package window maintains the usable slice of conversation history:
// recency window, semantic pruning of the middle region, and TTL'd
// summarization of the oldest messages.
package window

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agenthands/contexture/internal/config"
	"github.com/agenthands/contexture/internal/core/model"
	"github.com/agenthands/contexture/internal/core/vector"
	"github.com/agenthands/contexture/internal/llm"
)

// MessageStore is the slice of the store the manager needs.
type MessageStore interface {
	RecentMessages(ctx context.Context, conversationID string, limit int) ([]model.Message, error)
	OldestMessages(ctx context.Context, conversationID string, limit int) ([]model.Message, error)
	LatestSummary(ctx context.Context, conversationID string) (*model.ConversationSummary, error)
	SaveSummary(ctx context.Context, sum *model.ConversationSummary) error
}

type Manager struct {
	Store    MessageStore
	LLM      llm.LLMClient
	Embedder llm.EmbedderClient
	Cfg      config.PipelineConfig
	Timeouts config.TimeoutConfig
	Prompt   string

	// Two concurrent turns on one conversation must not both synthesize and
	// write summaries; synthesis is serialized per conversation.
	mu      sync.Mutex
	convMus map[string]*sync.Mutex

	now func() time.Time
}

func NewManager(store MessageStore, llmClient llm.LLMClient, embedder llm.EmbedderClient, cfg config.PipelineConfig, timeouts config.TimeoutConfig, prompt string) *Manager {
	return &Manager{
		Store:    store,
		LLM:      llmClient,
		Embedder: embedder,
		Cfg:      cfg,
		Timeouts: timeouts,
		Prompt:   prompt,
		convMus:  make(map[string]*sync.Mutex),
		now:      time.Now,
	}
}

// Window is the trimmed history handed to the orchestrator.
type Window struct {
	Messages []model.Message
	Summary  *model.ConversationSummary
}

// Prepare fetches recent history, reuses or synthesizes a summary, and prunes
// the middle region semantically when the history exceeds the context cap.
// Summary synthesis failures are absorbed; a store failure is returned.
func (m *Manager) Prepare(ctx context.Context, conversationID, query string) (*Window, error) {
	msgs, err := m.Store.RecentMessages(ctx, conversationID, m.Cfg.HistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("fetch history: %w", err)
	}

	summary := m.ensureSummary(ctx, conversationID, len(msgs))

	if len(msgs) > m.Cfg.ContextCap {
		msgs = m.prune(ctx, msgs, query)
	}

	return &Window{Messages: msgs, Summary: summary}, nil
}

// ensureSummary returns the current valid summary, synthesizing a fresh one
// over the oldest messages when the conversation is long enough and no valid
// summary exists. All failures degrade to "no summary".
func (m *Manager) ensureSummary(ctx context.Context, conversationID string, messageCount int) *model.ConversationSummary {
	lock := m.convLock(conversationID)
	lock.Lock()
	defer lock.Unlock()

	latest, err := m.Store.LatestSummary(ctx, conversationID)
	if err != nil {
		log.Printf("window: summary lookup failed for %s: %v", conversationID, err)
		return nil
	}
	if latest != nil && !latest.Stale(m.now(), m.Cfg.SummaryTTL) {
		return latest
	}

	if messageCount < m.Cfg.SummaryThreshold {
		return nil
	}

	oldest, err := m.Store.OldestMessages(ctx, conversationID, m.Cfg.SummaryWindow)
	if err != nil {
		log.Printf("window: summary source fetch failed for %s: %v", conversationID, err)
		return nil
	}
	if len(oldest) == 0 {
		return nil
	}

	sctx, cancel := context.WithTimeout(ctx, m.Timeouts.Summarize)
	text, err := m.LLM.Generate(sctx, fmt.Sprintf(m.Prompt, serializeMessages(oldest)))
	cancel()
	if err != nil || strings.TrimSpace(text) == "" {
		log.Printf("window: summary synthesis failed for %s: %v", conversationID, err)
		return nil
	}

	sum := &model.ConversationSummary{
		UUID:           uuid.New().String(),
		ConversationID: conversationID,
		Summary:        strings.TrimSpace(text),
		MessageCount:   len(oldest),
		CreatedAt:      m.now(),
	}
	if err := m.Store.SaveSummary(ctx, sum); err != nil {
		// Advisory data; the synthesized text is still usable this turn.
		log.Printf("window: summary persist failed for %s: %v", conversationID, err)
	}
	return sum
}

// prune keeps the most recent RecencyKeep messages unconditionally and
// selects from the older pool the SemanticKeep user messages most similar to
// the query, carrying each one's immediately following assistant reply.
// Similarity ties keep the more recent message. The kept set returns in
// timestamp order.
func (m *Manager) prune(ctx context.Context, msgs []model.Message, query string) []model.Message {
	keep := m.Cfg.RecencyKeep
	if keep > len(msgs) {
		keep = len(msgs)
	}
	pool := msgs[:len(msgs)-keep]
	recent := msgs[len(msgs)-keep:]

	var userIdx []int
	for i, msg := range pool {
		if msg.Role == model.RoleUser {
			userIdx = append(userIdx, i)
		}
	}
	if len(userIdx) == 0 {
		return recent
	}

	selected := m.selectBySimilarity(ctx, pool, userIdx, query)

	// Carry the assistant reply that follows each kept user message so turn
	// pairs stay coherent.
	include := make(map[int]bool, len(selected)*2)
	for _, i := range selected {
		include[i] = true
		if i+1 < len(pool) && pool[i+1].Role == model.RoleAssistant {
			include[i+1] = true
		}
	}

	kept := make([]model.Message, 0, len(include)+len(recent))
	for i := range pool {
		if include[i] {
			kept = append(kept, pool[i])
		}
	}
	sort.SliceStable(kept, func(a, b int) bool { return kept[a].CreatedAt.Before(kept[b].CreatedAt) })

	return append(kept, recent...)
}

// selectBySimilarity returns the pool indices of the top SemanticKeep user
// messages by cosine similarity to the query. When embeddings are down the
// most recent user messages win instead; pruning must still happen.
func (m *Manager) selectBySimilarity(ctx context.Context, pool []model.Message, userIdx []int, query string) []int {
	limit := m.Cfg.SemanticKeep
	if limit > len(userIdx) {
		limit = len(userIdx)
	}

	texts := make([]string, 0, len(userIdx)+1)
	texts = append(texts, query)
	for _, i := range userIdx {
		texts = append(texts, pool[i].Content)
	}

	ectx, cancel := context.WithTimeout(ctx, m.Timeouts.Embed)
	vecs, err := m.Embedder.Embed(ectx, texts)
	cancel()
	if err != nil || len(vecs) != len(texts) {
		log.Printf("window: embedding unavailable, pruning by recency: %v", err)
		return userIdx[len(userIdx)-limit:]
	}

	queryVec := vecs[0]
	type scored struct {
		idx int
		sim float64
	}
	scoredIdx := make([]scored, len(userIdx))
	for j, i := range userIdx {
		scoredIdx[j] = scored{idx: i, sim: vector.CosineSimilarity(queryVec, vecs[j+1])}
	}
	// Ties keep the more recent message: pool order is timestamp-ascending,
	// so a higher index wins an equal score.
	sort.SliceStable(scoredIdx, func(a, b int) bool {
		if scoredIdx[a].sim != scoredIdx[b].sim {
			return scoredIdx[a].sim > scoredIdx[b].sim
		}
		return scoredIdx[a].idx > scoredIdx[b].idx
	})

	selected := make([]int, 0, limit)
	for _, s := range scoredIdx[:limit] {
		selected = append(selected, s.idx)
	}
	return selected
}

func (m *Manager) convLock(conversationID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.convMus[conversationID]; ok {
		return l
	}
	l := &sync.Mutex{}
	m.convMus[conversationID] = l
	return l
}

func serializeMessages(msgs []model.Message) string {
	var b strings.Builder
	for _, msg := range msgs {
		b.WriteString(msg.Role)
		b.WriteString(": ")
		b.WriteString(msg.Content)
		b.WriteString("\n")
	}
	return b.String()
}
