package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/agenthands/contexture/internal/config"
	"github.com/agenthands/contexture/internal/core"
	"github.com/agenthands/contexture/internal/core/model"
	"github.com/agenthands/contexture/internal/llm"
	"github.com/agenthands/contexture/internal/store"
)

type Server struct {
	Pipeline *core.Pipeline
	driver   *store.MemgraphDriver
}

func NewServer() *Server {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config/config.toml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Printf("Warning: could not load %s: %v. Using defaults", cfgPath, err)
		cfg = config.Default()
	}

	// Env vars override the file for deploy-time wiring.
	if v := os.Getenv("MEMGRAPH_URI"); v != "" {
		cfg.Memgraph.URI = v
	}
	if v := os.Getenv("MEMGRAPH_USER"); v != "" {
		cfg.Memgraph.User = v
	}
	if v := os.Getenv("MEMGRAPH_PASSWORD"); v != "" {
		cfg.Memgraph.Password = v
	}
	if v := os.Getenv("LLM_PROVIDER"); v != "" {
		cfg.LLM.Provider = v
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("LLM_EMBEDDING_MODEL"); v != "" {
		cfg.LLM.EmbeddingModel = v
	}
	if v := os.Getenv("LLM_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("LLM_BASE_URL"); v != "" {
		cfg.LLM.BaseURL = v
	}
	if cfg.Memgraph.URI == "" {
		cfg.Memgraph.URI = "bolt://localhost:7687"
	}
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "ollama"
		cfg.LLM.Model = "gpt-oss:latest"
		cfg.LLM.BaseURL = "http://localhost:11434"
	}

	driver, err := store.NewMemgraphDriver(cfg.Memgraph.URI, cfg.Memgraph.User, cfg.Memgraph.Password)
	if err != nil {
		log.Fatalf("Failed to connect to Memgraph: %v", err)
	}
	st := store.NewMemgraphStore(driver)
	if err := st.BuildIndices(context.Background()); err != nil {
		log.Printf("Warning: could not build indices: %v", err)
	}

	llmClient, embedderClient, err := llm.NewClient(context.Background(), cfg.LLM)
	if err != nil {
		log.Fatalf("Failed to initialize LLM client: %v", err)
	}
	reranker := llm.NewSimpleLLMReranker(llmClient)

	return &Server{
		Pipeline: core.NewPipeline(st, llmClient, embedderClient, reranker, cfg),
		driver:   driver,
	}
}

func (s *Server) SetupRouter() *gin.Engine {
	r := gin.Default()

	r.GET("/health", s.Health)
	r.POST("/personas", s.CreatePersona)
	r.GET("/personas/:id", s.GetPersona)
	r.POST("/documents", s.IngestDocument)
	r.DELETE("/documents/:id", s.DeleteDocument)
	r.POST("/conversations/:id/turn", s.Turn)
	r.POST("/memories/search", s.SearchMemories)

	return r
}

// Close releases the database connection.
func (s *Server) Close(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}
	return s.driver.Close(ctx)
}

func (s *Server) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type CreatePersonaRequest struct {
	UUID         string            `json:"uuid"`
	Name         string            `json:"name"`
	Instructions map[string]string `json:"instructions"`
}

func (s *Server) CreatePersona(c *gin.Context) {
	var req CreatePersonaRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	instructions := make(map[model.Layer]string, len(req.Instructions))
	for k, v := range req.Instructions {
		layer, err := model.ParseLayer(k)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown visibility layer: " + k})
			return
		}
		instructions[layer] = v
	}

	persona := &model.Persona{
		UUID:         req.UUID,
		Name:         req.Name,
		Instructions: instructions,
	}
	if err := s.Pipeline.CreatePersona(c.Request.Context(), persona); err != nil {
		log.Printf("Failed to create persona: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create persona"})
		return
	}
	c.JSON(http.StatusCreated, persona)
}

func (s *Server) GetPersona(c *gin.Context) {
	persona, err := s.Pipeline.GetPersona(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, core.ErrUnknownPersona) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Persona not found"})
			return
		}
		log.Printf("Failed to fetch persona: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch persona"})
		return
	}
	if persona == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Persona not found"})
		return
	}
	c.JSON(http.StatusOK, persona)
}

type IngestDocumentRequest struct {
	SubjectID string `json:"subject_id"`
	OwnerID   string `json:"owner_id"`
	Title     string `json:"title"`
	Text      string `json:"text"`
	Source    string `json:"source"`
	Layer     string `json:"layer"`
	Priority  bool   `json:"priority"`
}

func (s *Server) IngestDocument(c *gin.Context) {
	var req IngestDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.SubjectID == "" || req.Text == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	layer, err := model.ParseLayer(req.Layer)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown visibility layer: " + req.Layer})
		return
	}

	doc := &model.Document{
		SubjectID: req.SubjectID,
		OwnerID:   req.OwnerID,
		Title:     req.Title,
		Text:      req.Text,
		Source:    req.Source,
		Layer:     layer,
		Priority:  req.Priority,
	}
	chunks, err := s.Pipeline.IngestDocument(c.Request.Context(), doc)
	if err != nil {
		log.Printf("Failed to ingest document: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to ingest document"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"uuid": doc.UUID, "chunks": chunks})
}

func (s *Server) DeleteDocument(c *gin.Context) {
	if err := s.Pipeline.DeleteDocument(c.Request.Context(), c.Param("id")); err != nil {
		log.Printf("Failed to delete document: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete document"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

type TurnRequest struct {
	PersonaID string `json:"persona_id"`
	Layer     string `json:"layer"`
	Query     string `json:"query"`
}

type TurnResponse struct {
	Answer   string         `json:"answer"`
	Degraded bool           `json:"degraded"`
	Segments []core.Segment `json:"segments,omitempty"`
}

func (s *Server) Turn(c *gin.Context) {
	var req TurnRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.PersonaID == "" || req.Query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	layer, err := model.ParseLayer(req.Layer)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown visibility layer: " + req.Layer})
		return
	}

	res, err := s.Pipeline.RunTurn(c.Request.Context(), core.TurnRequest{
		ConversationID: c.Param("id"),
		PersonaID:      req.PersonaID,
		Layer:          layer,
		Query:          req.Query,
	})
	if err != nil {
		if errors.Is(err, core.ErrUnknownPersona) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Persona not found"})
			return
		}
		log.Printf("Turn failed for conversation %s: %v", c.Param("id"), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process turn"})
		return
	}
	c.JSON(http.StatusOK, TurnResponse{Answer: res.Answer, Degraded: res.Degraded, Segments: res.Segments})
}

type SearchMemoriesRequest struct {
	SubjectID string `json:"subject_id"`
	Layer     string `json:"layer"`
	Query     string `json:"query"`
	K         int    `json:"k"`
}

type MemoryResult struct {
	Type       string    `json:"type"`
	Content    string    `json:"content"`
	Confidence float64   `json:"confidence"`
	Similarity float64   `json:"similarity"`
	CreatedAt  time.Time `json:"created_at"`
}

func (s *Server) SearchMemories(c *gin.Context) {
	var req SearchMemoriesRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.SubjectID == "" || req.Query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	layer, err := model.ParseLayer(req.Layer)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown visibility layer: " + req.Layer})
		return
	}

	scored, err := s.Pipeline.SearchMemories(c.Request.Context(), req.SubjectID, layer, req.Query, req.K)
	if err != nil {
		log.Printf("Failed to search memories: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to search memories"})
		return
	}

	results := make([]MemoryResult, len(scored))
	for i, m := range scored {
		results[i] = MemoryResult{
			Type:       string(m.Memory.Type),
			Content:    m.Memory.Content,
			Confidence: m.Memory.Confidence,
			Similarity: m.Similarity,
			CreatedAt:  m.Memory.CreatedAt,
		}
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}
