package model

import "time"

// Document is an immutable knowledge artifact owned by a persona subject.
// Deleting a document cascades to its chunks.
type Document struct {
	UUID      string    `json:"uuid"`
	SubjectID string    `json:"subject_id"`
	OwnerID   string    `json:"owner_id"`
	Title     string    `json:"title"`
	Text      string    `json:"text"`
	Source    string    `json:"source"`
	Layer     Layer     `json:"layer"`
	Priority  bool      `json:"priority"`
	CreatedAt time.Time `json:"created_at"`
}

// Chunk is the unit of similarity search: a bounded, overlapping fragment of
// a document's text. Layer and priority are denormalized from the parent so
// queries never need a join to filter.
type Chunk struct {
	UUID         string    `json:"uuid"`
	DocumentUUID string    `json:"document_uuid"`
	SubjectID    string    `json:"subject_id"`
	Ordinal      int       `json:"ordinal"`
	Text         string    `json:"text"`
	Layer        Layer     `json:"layer"`
	Priority     bool      `json:"priority"`
	Embedding    []float32 `json:"embedding,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Message is one turn in a conversation. Append-only; ordered by CreatedAt.
type Message struct {
	UUID           string    `json:"uuid"`
	ConversationID string    `json:"conversation_id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	Layer          Layer     `json:"layer"`
	CreatedAt      time.Time `json:"created_at"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// ConversationSummary compresses the oldest portion of a conversation.
// Summaries are additive; only the most recent one is ever read, and it goes
// stale once older than the configured TTL.
type ConversationSummary struct {
	UUID           string    `json:"uuid"`
	ConversationID string    `json:"conversation_id"`
	Summary        string    `json:"summary"`
	MessageCount   int       `json:"message_count"`
	CreatedAt      time.Time `json:"created_at"`
}

// Stale reports whether the summary is older than ttl at the given instant.
func (s *ConversationSummary) Stale(now time.Time, ttl time.Duration) bool {
	return now.Sub(s.CreatedAt) > ttl
}

// MemoryType classifies an extracted fact. The set is closed; extraction
// output with any other type is discarded.
type MemoryType string

const (
	MemoryFact         MemoryType = "fact"
	MemoryPreference   MemoryType = "preference"
	MemoryRelationship MemoryType = "relationship"
	MemoryEvent        MemoryType = "event"
)

func (t MemoryType) Valid() bool {
	switch t {
	case MemoryFact, MemoryPreference, MemoryRelationship, MemoryEvent:
		return true
	}
	return false
}

// MemoryItem is a structured fact extracted from conversation turns.
// Append-only; no deduplication or contradiction resolution is attempted.
// Layer is inherited from the turn the fact was extracted from so recall can
// enforce the same containment rule as chunk retrieval.
type MemoryItem struct {
	UUID          string     `json:"uuid"`
	SubjectID     string     `json:"subject_id"`
	Type          MemoryType `json:"type"`
	Content       string     `json:"content"`
	Confidence    float64    `json:"confidence"`
	Layer         Layer      `json:"layer"`
	SourceMessage string     `json:"source_message_uuid"`
	Embedding     []float32  `json:"embedding,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// Persona is the agent identity a conversation is grounded in. Instructions
// hold the system prompt per visibility layer; missing layers fall back to
// the public prompt.
type Persona struct {
	UUID         string           `json:"uuid"`
	Name         string           `json:"name"`
	Instructions map[Layer]string `json:"instructions"`
	CreatedAt    time.Time        `json:"created_at"`
}

// InstructionsFor returns the layer-appropriate system prompt.
func (p *Persona) InstructionsFor(layer Layer) string {
	if s, ok := p.Instructions[layer]; ok && s != "" {
		return s
	}
	return p.Instructions[LayerPublic]
}
