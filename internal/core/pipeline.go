// Package core composes the retrieval-and-context-assembly pipeline: per
// turn it prepares the conversation window, gathers document context and
// recalled memories in parallel, hands the assembled materials to the
// language model, and extracts new memories off the critical path.
package core

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agenthands/contexture/internal/cache"
	"github.com/agenthands/contexture/internal/config"
	"github.com/agenthands/contexture/internal/core/chunker"
	"github.com/agenthands/contexture/internal/core/memory"
	"github.com/agenthands/contexture/internal/core/model"
	"github.com/agenthands/contexture/internal/core/retrieval"
	"github.com/agenthands/contexture/internal/core/window"
	"github.com/agenthands/contexture/internal/llm"
)

// ErrUnknownPersona is returned when a turn names a persona that does not
// exist. Callers should treat it as a not-found condition, not an outage.
var ErrUnknownPersona = errors.New("unknown persona")

// Store is everything the pipeline needs from persistence.
type Store interface {
	retrieval.ChunkStore
	window.MessageStore
	memory.MemoryStore

	SaveDocument(ctx context.Context, doc *model.Document, chunks []model.Chunk) error
	DeleteDocument(ctx context.Context, uuid string) error
	SaveMessage(ctx context.Context, m *model.Message) error
	GetPersona(ctx context.Context, uuid string) (*model.Persona, error)
	SavePersona(ctx context.Context, p *model.Persona) error
}

type Pipeline struct {
	Store     Store
	LLM       llm.LLMClient
	Embedder  llm.EmbedderClient
	Window    *window.Manager
	Retrieval *retrieval.Engine
	Memory    *memory.Subsystem
	Personas  *cache.TTLCache[*model.Persona]
	Cfg       *config.Config

	// afterExtract, when set, runs once background extraction finishes.
	afterExtract func()
}

func NewPipeline(st Store, llmClient llm.LLMClient, embedder llm.EmbedderClient, reranker llm.RerankerClient, cfg *config.Config) *Pipeline {
	return &Pipeline{
		Store:     st,
		LLM:       llmClient,
		Embedder:  embedder,
		Window:    window.NewManager(st, llmClient, embedder, cfg.Pipeline, cfg.Timeouts, cfg.Prompts.Summary),
		Retrieval: retrieval.NewEngine(st, embedder, reranker, cfg.Pipeline, cfg.Timeouts),
		Memory:    memory.NewSubsystem(st, llmClient, embedder, cfg.Pipeline, cfg.Timeouts, cfg.Prompts.Extraction),
		Personas:  cache.New[*model.Persona](cfg.Pipeline.PersonaCacheTTL),
		Cfg:       cfg,
	}
}

// Segment is one role-tagged piece of the assembled prompt.
type Segment struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type TurnRequest struct {
	ConversationID string
	PersonaID      string
	Layer          model.Layer
	Query          string
}

type TurnResult struct {
	Answer   string
	Segments []Segment
	// Degraded is set when retrieval or recall could not contribute and the
	// turn ran on persona and history alone.
	Degraded bool
}

// RunTurn executes the per-turn data flow. Gateway failures that only lose
// an enhancement are absorbed; the turn fails only when the language model
// itself cannot answer.
func (p *Pipeline) RunTurn(ctx context.Context, req TurnRequest) (*TurnResult, error) {
	if !req.Layer.Valid() {
		return nil, fmt.Errorf("invalid visibility layer %q", req.Layer)
	}
	if strings.TrimSpace(req.Query) == "" {
		return nil, fmt.Errorf("empty query")
	}

	persona, err := p.persona(ctx, req.PersonaID)
	if err != nil {
		return nil, err
	}

	degraded := false

	// Fetch the window before persisting the new turn so the query does not
	// appear in its own history.
	win, err := p.Window.Prepare(ctx, req.ConversationID, req.Query)
	if err != nil {
		log.Printf("pipeline: window unavailable for %s: %v", req.ConversationID, err)
		win = &window.Window{}
		degraded = true
	}

	userMsg := &model.Message{
		UUID:           uuid.New().String(),
		ConversationID: req.ConversationID,
		Role:           model.RoleUser,
		Content:        req.Query,
		Layer:          req.Layer,
		CreatedAt:      time.Now().UTC(),
	}
	if err := p.Store.SaveMessage(ctx, userMsg); err != nil {
		log.Printf("pipeline: failed to persist user message: %v", err)
	}

	// Retrieval and recall are independent; run them together and join.
	var (
		wg       sync.WaitGroup
		docRes   *retrieval.Result
		memories []model.ScoredMemory
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		res, err := p.Retrieval.Retrieve(ctx, req.PersonaID, req.Query, req.Layer)
		if err != nil {
			log.Printf("pipeline: retrieval degraded for %s: %v", req.PersonaID, err)
			return
		}
		docRes = res
	}()
	go func() {
		defer wg.Done()
		mems, err := p.Memory.Recall(ctx, req.PersonaID, req.Layer, req.Query, p.Cfg.Pipeline.RecallK)
		if err != nil {
			log.Printf("pipeline: memory recall degraded for %s: %v", req.PersonaID, err)
			return
		}
		memories = mems
	}()
	wg.Wait()
	if docRes == nil {
		degraded = true
	}

	segments := p.assembleSegments(persona, req, win, docRes, memories)

	gctx, cancel := context.WithTimeout(ctx, p.Cfg.Timeouts.Generate)
	answer, err := p.LLM.Generate(gctx, renderPrompt(segments))
	cancel()
	if err != nil {
		return nil, fmt.Errorf("turn generation failed: %w", err)
	}

	assistantMsg := &model.Message{
		UUID:           uuid.New().String(),
		ConversationID: req.ConversationID,
		Role:           model.RoleAssistant,
		Content:        answer,
		Layer:          req.Layer,
		CreatedAt:      time.Now().UTC(),
	}
	if err := p.Store.SaveMessage(ctx, assistantMsg); err != nil {
		log.Printf("pipeline: failed to persist assistant message: %v", err)
	}

	// Memory extraction is fire-and-forget: it runs on a detached context so
	// it survives the request, and its failures never reach the user.
	recent := make([]model.Message, 0, len(win.Messages)+2)
	recent = append(recent, win.Messages...)
	recent = append(recent, *userMsg, *assistantMsg)
	go func() {
		dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Minute)
		defer cancel()
		p.Memory.ExtractAndStore(dctx, req.PersonaID, req.Layer, recent)
		if p.afterExtract != nil {
			p.afterExtract()
		}
	}()

	return &TurnResult{Answer: answer, Segments: segments, Degraded: degraded}, nil
}

func (p *Pipeline) assembleSegments(persona *model.Persona, req TurnRequest, win *window.Window, docRes *retrieval.Result, memories []model.ScoredMemory) []Segment {
	var segments []Segment

	if persona != nil {
		if instr := persona.InstructionsFor(req.Layer); instr != "" {
			segments = append(segments, Segment{Role: model.RoleSystem, Content: instr})
		}
	}
	if win.Summary != nil {
		segments = append(segments, Segment{
			Role:    model.RoleSystem,
			Content: "Earlier in this conversation: " + win.Summary.Summary,
		})
	}
	if len(memories) > 0 {
		var b strings.Builder
		b.WriteString("Things you remember:\n")
		for _, m := range memories {
			fmt.Fprintf(&b, "- [%s] %s (confidence %.2f)\n", m.Memory.Type, m.Memory.Content, m.Memory.Confidence)
		}
		segments = append(segments, Segment{Role: model.RoleSystem, Content: strings.TrimRight(b.String(), "\n")})
	}
	if docRes != nil && docRes.Context != "" {
		segments = append(segments, Segment{
			Role:    model.RoleSystem,
			Content: "Relevant knowledge (weigh the PRIORITY section most heavily):\n" + docRes.Context,
		})
	}
	for _, m := range win.Messages {
		segments = append(segments, Segment{Role: m.Role, Content: m.Content})
	}
	segments = append(segments, Segment{Role: model.RoleUser, Content: req.Query})
	return segments
}

func renderPrompt(segments []Segment) string {
	parts := make([]string, len(segments))
	for i, s := range segments {
		parts[i] = s.Role + ": " + s.Content
	}
	return strings.Join(parts, "\n\n")
}

// persona resolves the persona through the TTL cache. A store outage is
// tolerated (the turn proceeds without instructions); an unknown persona is
// a caller error.
func (p *Pipeline) persona(ctx context.Context, personaID string) (*model.Persona, error) {
	if cached, ok := p.Personas.Get(personaID); ok {
		return cached, nil
	}
	persona, err := p.Store.GetPersona(ctx, personaID)
	if err != nil {
		log.Printf("pipeline: persona lookup degraded for %s: %v", personaID, err)
		return nil, nil
	}
	if persona == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPersona, personaID)
	}
	p.Personas.Set(personaID, persona)
	return persona, nil
}

// IngestDocument chunks, embeds and persists a document under its subject.
// The chunks inherit the document's layer and priority flag. Returns the
// number of chunks written.
func (p *Pipeline) IngestDocument(ctx context.Context, doc *model.Document) (int, error) {
	if doc.UUID == "" {
		doc.UUID = uuid.New().String()
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	if !doc.Layer.Valid() {
		return 0, fmt.Errorf("invalid visibility layer %q", doc.Layer)
	}

	texts := chunker.Chunk(doc.Text, p.Cfg.Pipeline.MaxChars, p.Cfg.Pipeline.Overlap)
	if len(texts) == 0 {
		return 0, fmt.Errorf("document has no content")
	}

	ectx, cancel := context.WithTimeout(ctx, p.Cfg.Timeouts.Embed)
	vecs, err := p.Embedder.Embed(ectx, texts)
	cancel()
	if err != nil {
		return 0, fmt.Errorf("chunk embedding: %w", err)
	}
	if len(vecs) != len(texts) {
		return 0, fmt.Errorf("chunk embedding: got %d vectors for %d chunks", len(vecs), len(texts))
	}

	chunks := make([]model.Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = model.Chunk{
			UUID:         uuid.New().String(),
			DocumentUUID: doc.UUID,
			SubjectID:    doc.SubjectID,
			Ordinal:      i,
			Text:         text,
			Layer:        doc.Layer,
			Priority:     doc.Priority,
			Embedding:    vecs[i],
			CreatedAt:    doc.CreatedAt,
		}
	}

	if err := p.Store.SaveDocument(ctx, doc, chunks); err != nil {
		return 0, err
	}
	return len(chunks), nil
}

// DeleteDocument removes a document and all derived chunks.
func (p *Pipeline) DeleteDocument(ctx context.Context, docUUID string) error {
	return p.Store.DeleteDocument(ctx, docUUID)
}

// CreatePersona persists a persona and invalidates any cached copy.
func (p *Pipeline) CreatePersona(ctx context.Context, persona *model.Persona) error {
	if persona.UUID == "" {
		persona.UUID = uuid.New().String()
	}
	if persona.CreatedAt.IsZero() {
		persona.CreatedAt = time.Now().UTC()
	}
	if err := p.Store.SavePersona(ctx, persona); err != nil {
		return err
	}
	p.Personas.Invalidate(persona.UUID)
	return nil
}

// GetPersona resolves a persona through the cache.
func (p *Pipeline) GetPersona(ctx context.Context, personaID string) (*model.Persona, error) {
	return p.persona(ctx, personaID)
}

// SearchMemories answers a direct semantic recall query.
func (p *Pipeline) SearchMemories(ctx context.Context, subjectID string, granted model.Layer, query string, k int) ([]model.ScoredMemory, error) {
	return p.Memory.Recall(ctx, subjectID, granted, query, k)
}
