// Package store persists documents, chunks, messages, summaries, memories
// and personas in Memgraph and answers the layer-filtered similarity queries
// the pipeline is built on.
package store

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/agenthands/contexture/internal/core/model"
	"github.com/agenthands/contexture/internal/core/vector"
)

// MemgraphStore implements the domain store on top of a GraphDriver.
// Candidate scoring runs in-process over layer-filtered fetches; every read
// re-applies the caller's granted layer at the query boundary.
type MemgraphStore struct {
	Driver GraphDriver
}

func NewMemgraphStore(driver GraphDriver) *MemgraphStore {
	return &MemgraphStore{Driver: driver}
}

func (s *MemgraphStore) BuildIndices(ctx context.Context) error {
	return s.Driver.BuildIndices(ctx)
}

func (s *MemgraphStore) Close(ctx context.Context) error {
	return s.Driver.Close(ctx)
}

// --- documents and chunks ---

func (s *MemgraphStore) SaveDocument(ctx context.Context, doc *model.Document, chunks []model.Chunk) error {
	params := map[string]interface{}{
		"uuid":       doc.UUID,
		"subject_id": doc.SubjectID,
		"owner_id":   doc.OwnerID,
		"title":      doc.Title,
		"text":       doc.Text,
		"source":     doc.Source,
		"layer":      string(doc.Layer),
		"priority":   doc.Priority,
		"created_at": doc.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if _, err := s.Driver.ExecuteQuery(ctx, SaveDocumentQuery, params); err != nil {
		return fmt.Errorf("%w: save document: %v", ErrUnavailable, err)
	}

	for _, c := range chunks {
		cp := map[string]interface{}{
			"uuid":          c.UUID,
			"document_uuid": c.DocumentUUID,
			"subject_id":    c.SubjectID,
			"ordinal":       c.Ordinal,
			"text":          c.Text,
			"layer":         string(c.Layer),
			"priority":      c.Priority,
			"embedding":     c.Embedding,
			"created_at":    c.CreatedAt.UTC().Format(time.RFC3339Nano),
		}
		if _, err := s.Driver.ExecuteQuery(ctx, SaveChunkQuery, cp); err != nil {
			return fmt.Errorf("%w: save chunk %d: %v", ErrUnavailable, c.Ordinal, err)
		}
	}
	return nil
}

// DeleteDocument removes a document and cascades to its chunks.
func (s *MemgraphStore) DeleteDocument(ctx context.Context, uuid string) error {
	_, err := s.Driver.ExecuteQuery(ctx, DeleteDocumentQuery, map[string]interface{}{"uuid": uuid})
	if err != nil {
		return fmt.Errorf("%w: delete document: %v", ErrUnavailable, err)
	}
	return nil
}

// SimilarChunks returns the subject's chunks visible at the granted layer,
// ordered by ascending cosine distance to the query vector.
func (s *MemgraphStore) SimilarChunks(ctx context.Context, subjectID string, granted model.Layer, queryVec []float32, limit int) ([]model.ScoredChunk, error) {
	result, err := s.Driver.ExecuteQuery(ctx, GetSubjectChunksQuery, map[string]interface{}{
		"subject_id": subjectID,
		"layers":     model.Strings(granted.Visible()),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: chunk query: %v", ErrUnavailable, err)
	}

	scored := make([]model.ScoredChunk, 0, len(result.Records))
	for _, rec := range result.Records {
		c := chunkFromRecord(rec)
		scored = append(scored, model.ScoredChunk{
			Chunk:    c,
			Distance: vector.CosineDistance(queryVec, c.Embedding),
		})
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Distance < scored[j].Distance })
	if limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

// RecentPriorityChunks returns the most recent freshness-tagged chunks that
// pass the layer filter, newest first.
func (s *MemgraphStore) RecentPriorityChunks(ctx context.Context, subjectID string, granted model.Layer, limit int) ([]model.Chunk, error) {
	result, err := s.Driver.ExecuteQuery(ctx, GetPriorityChunksQuery, map[string]interface{}{
		"subject_id": subjectID,
		"layers":     model.Strings(granted.Visible()),
		"limit":      int64(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: priority chunk query: %v", ErrUnavailable, err)
	}

	chunks := make([]model.Chunk, 0, len(result.Records))
	for _, rec := range result.Records {
		chunks = append(chunks, chunkFromRecord(rec))
	}
	return chunks, nil
}

// --- messages ---

func (s *MemgraphStore) SaveMessage(ctx context.Context, m *model.Message) error {
	params := map[string]interface{}{
		"uuid":            m.UUID,
		"conversation_id": m.ConversationID,
		"role":            m.Role,
		"content":         m.Content,
		"layer":           string(m.Layer),
		"created_at":      m.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if _, err := s.Driver.ExecuteQuery(ctx, SaveMessageQuery, params); err != nil {
		return fmt.Errorf("%w: save message: %v", ErrUnavailable, err)
	}
	return nil
}

// RecentMessages returns up to limit of the newest messages, oldest-first.
func (s *MemgraphStore) RecentMessages(ctx context.Context, conversationID string, limit int) ([]model.Message, error) {
	result, err := s.Driver.ExecuteQuery(ctx, GetRecentMessagesQuery, map[string]interface{}{
		"conversation_id": conversationID,
		"limit":           int64(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: message query: %v", ErrUnavailable, err)
	}

	msgs := make([]model.Message, 0, len(result.Records))
	for _, rec := range result.Records {
		msgs = append(msgs, messageFromRecord(rec, conversationID))
	}
	// Query orders newest-first for the LIMIT; callers want oldest-first.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// OldestMessages returns up to limit of the oldest messages, oldest-first.
func (s *MemgraphStore) OldestMessages(ctx context.Context, conversationID string, limit int) ([]model.Message, error) {
	result, err := s.Driver.ExecuteQuery(ctx, GetOldestMessagesQuery, map[string]interface{}{
		"conversation_id": conversationID,
		"limit":           int64(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: message query: %v", ErrUnavailable, err)
	}

	msgs := make([]model.Message, 0, len(result.Records))
	for _, rec := range result.Records {
		msgs = append(msgs, messageFromRecord(rec, conversationID))
	}
	return msgs, nil
}

// --- summaries ---

func (s *MemgraphStore) SaveSummary(ctx context.Context, sum *model.ConversationSummary) error {
	params := map[string]interface{}{
		"uuid":            sum.UUID,
		"conversation_id": sum.ConversationID,
		"summary":         sum.Summary,
		"message_count":   sum.MessageCount,
		"created_at":      sum.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if _, err := s.Driver.ExecuteQuery(ctx, SaveSummaryQuery, params); err != nil {
		return fmt.Errorf("%w: save summary: %v", ErrUnavailable, err)
	}
	return nil
}

// LatestSummary returns the newest summary for the conversation, or nil when
// none exists.
func (s *MemgraphStore) LatestSummary(ctx context.Context, conversationID string) (*model.ConversationSummary, error) {
	result, err := s.Driver.ExecuteQuery(ctx, GetLatestSummaryQuery, map[string]interface{}{
		"conversation_id": conversationID,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: summary query: %v", ErrUnavailable, err)
	}
	if len(result.Records) == 0 {
		return nil, nil
	}
	rec := result.Records[0]
	return &model.ConversationSummary{
		UUID:           recString(rec, "uuid"),
		ConversationID: conversationID,
		Summary:        recString(rec, "summary"),
		MessageCount:   recInt(rec, "message_count"),
		CreatedAt:      recTime(rec, "created_at"),
	}, nil
}

// --- memories ---

func (s *MemgraphStore) SaveMemories(ctx context.Context, items []model.MemoryItem) error {
	for _, m := range items {
		params := map[string]interface{}{
			"uuid":                m.UUID,
			"subject_id":          m.SubjectID,
			"type":                string(m.Type),
			"content":             m.Content,
			"confidence":          m.Confidence,
			"layer":               string(m.Layer),
			"source_message_uuid": m.SourceMessage,
			"embedding":           m.Embedding,
			"created_at":          m.CreatedAt.UTC().Format(time.RFC3339Nano),
		}
		if _, err := s.Driver.ExecuteQuery(ctx, SaveMemoryQuery, params); err != nil {
			return fmt.Errorf("%w: save memory: %v", ErrUnavailable, err)
		}
	}
	return nil
}

// SimilarMemories returns the subject's memories visible at the granted
// layer, ordered by descending cosine similarity to the query vector.
func (s *MemgraphStore) SimilarMemories(ctx context.Context, subjectID string, granted model.Layer, queryVec []float32, k int) ([]model.ScoredMemory, error) {
	result, err := s.Driver.ExecuteQuery(ctx, GetSubjectMemoriesQuery, map[string]interface{}{
		"subject_id": subjectID,
		"layers":     model.Strings(granted.Visible()),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: memory query: %v", ErrUnavailable, err)
	}

	scored := make([]model.ScoredMemory, 0, len(result.Records))
	for _, rec := range result.Records {
		m := memoryFromRecord(rec, subjectID)
		scored = append(scored, model.ScoredMemory{
			Memory:     m,
			Similarity: vector.CosineSimilarity(queryVec, m.Embedding),
		})
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Similarity > scored[j].Similarity })
	if k > 0 && len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}

// --- personas ---

func (s *MemgraphStore) SavePersona(ctx context.Context, p *model.Persona) error {
	params := map[string]interface{}{
		"uuid":                  p.UUID,
		"name":                  p.Name,
		"instructions_public":   p.Instructions[model.LayerPublic],
		"instructions_friends":  p.Instructions[model.LayerFriends],
		"instructions_intimate": p.Instructions[model.LayerIntimate],
		"created_at":            p.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if _, err := s.Driver.ExecuteQuery(ctx, SavePersonaQuery, params); err != nil {
		return fmt.Errorf("%w: save persona: %v", ErrUnavailable, err)
	}
	return nil
}

// GetPersona returns nil when the persona does not exist.
func (s *MemgraphStore) GetPersona(ctx context.Context, uuid string) (*model.Persona, error) {
	result, err := s.Driver.ExecuteQuery(ctx, GetPersonaQuery, map[string]interface{}{"uuid": uuid})
	if err != nil {
		return nil, fmt.Errorf("%w: persona query: %v", ErrUnavailable, err)
	}
	if len(result.Records) == 0 {
		return nil, nil
	}
	rec := result.Records[0]
	return &model.Persona{
		UUID: recString(rec, "uuid"),
		Name: recString(rec, "name"),
		Instructions: map[model.Layer]string{
			model.LayerPublic:   recString(rec, "instructions_public"),
			model.LayerFriends:  recString(rec, "instructions_friends"),
			model.LayerIntimate: recString(rec, "instructions_intimate"),
		},
		CreatedAt: recTime(rec, "created_at"),
	}, nil
}

// --- record conversion ---

func chunkFromRecord(rec *neo4j.Record) model.Chunk {
	return model.Chunk{
		UUID:         recString(rec, "uuid"),
		DocumentUUID: recString(rec, "document_uuid"),
		Ordinal:      recInt(rec, "ordinal"),
		Text:         recString(rec, "text"),
		Layer:        model.Layer(recString(rec, "layer")),
		Priority:     recBool(rec, "priority"),
		Embedding:    recVector(rec, "embedding"),
		CreatedAt:    recTime(rec, "created_at"),
	}
}

func messageFromRecord(rec *neo4j.Record, conversationID string) model.Message {
	return model.Message{
		UUID:           recString(rec, "uuid"),
		ConversationID: conversationID,
		Role:           recString(rec, "role"),
		Content:        recString(rec, "content"),
		Layer:          model.Layer(recString(rec, "layer")),
		CreatedAt:      recTime(rec, "created_at"),
	}
}

func memoryFromRecord(rec *neo4j.Record, subjectID string) model.MemoryItem {
	return model.MemoryItem{
		UUID:          recString(rec, "uuid"),
		SubjectID:     subjectID,
		Type:          model.MemoryType(recString(rec, "type")),
		Content:       recString(rec, "content"),
		Confidence:    recFloat(rec, "confidence"),
		Layer:         model.Layer(recString(rec, "layer")),
		SourceMessage: recString(rec, "source_message_uuid"),
		Embedding:     recVector(rec, "embedding"),
		CreatedAt:     recTime(rec, "created_at"),
	}
}

func recString(rec *neo4j.Record, key string) string {
	v, _ := rec.Get(key)
	s, _ := v.(string)
	return s
}

func recInt(rec *neo4j.Record, key string) int {
	v, _ := rec.Get(key)
	switch n := v.(type) {
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}

func recBool(rec *neo4j.Record, key string) bool {
	v, _ := rec.Get(key)
	b, _ := v.(bool)
	return b
}

func recFloat(rec *neo4j.Record, key string) float64 {
	v, _ := rec.Get(key)
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	}
	return 0
}

func recTime(rec *neo4j.Record, key string) time.Time {
	s := recString(rec, key)
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// recVector converts a bolt list back to []float32. The driver hands list
// properties back as []interface{} of float64.
func recVector(rec *neo4j.Record, key string) []float32 {
	v, _ := rec.Get(key)
	switch vec := v.(type) {
	case []float32:
		return vec
	case []interface{}:
		out := make([]float32, 0, len(vec))
		for _, item := range vec {
			switch f := item.(type) {
			case float64:
				out = append(out, float32(f))
			case float32:
				out = append(out, f)
			case int64:
				out = append(out, float32(f))
			}
		}
		return out
	}
	return nil
}
