package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

type LLMConfig struct {
	Provider       string `toml:"provider"`
	Model          string `toml:"model"`
	EmbeddingModel string `toml:"embedding_model"`
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
}

type MemgraphConfig struct {
	URI      string `toml:"uri"`
	User     string `toml:"user"`
	Password string `toml:"password"`
}

// PipelineConfig holds every knob of the retrieval-and-context-assembly
// pipeline. Zero values are replaced with the documented defaults.
type PipelineConfig struct {
	// Chunking.
	MaxChars int `toml:"max_chars"` // default 1200
	Overlap  int `toml:"overlap"`   // default 120

	// Retrieval.
	CandidateLimit int `toml:"candidate_limit"` // similarity candidates, default 20
	RerankTopK     int `toml:"rerank_top_k"`    // assembled context slots, default 5
	PriorityLimit  int `toml:"priority_limit"`  // guaranteed freshness chunks, default 2

	// Conversation window.
	HistoryLimit     int           `toml:"history_limit"`     // fetched messages, default 50
	ContextCap       int           `toml:"context_cap"`       // pruning trigger, default 20
	RecencyKeep      int           `toml:"recency_keep"`      // always-kept tail, default 5
	SemanticKeep     int           `toml:"semantic_keep"`     // pruned pool survivors, default 10
	SummaryThreshold int           `toml:"summary_threshold"` // default 50
	SummaryWindow    int           `toml:"summary_window"`    // oldest messages covered, default 30
	SummaryTTL       time.Duration `toml:"summary_ttl"`       // default 1h

	// Memory.
	RecallK          int `toml:"recall_k"`          // default 5
	ExtractionWindow int `toml:"extraction_window"` // recent messages scanned, default 10

	// Caching.
	PersonaCacheTTL time.Duration `toml:"persona_cache_ttl"` // default 5m
}

// TimeoutConfig bounds each external gateway call.
type TimeoutConfig struct {
	Embed     time.Duration `toml:"embed"`     // default 10s
	Rerank    time.Duration `toml:"rerank"`    // default 5s
	Summarize time.Duration `toml:"summarize"` // default 15s
	Extract   time.Duration `toml:"extract"`   // default 15s
	Generate  time.Duration `toml:"generate"`  // default 30s
}

// PromptConfig holds the LLM prompt templates with fmt %s slots, overridable
// from the config file.
type PromptConfig struct {
	Summary    string `toml:"summary"`
	Extraction string `toml:"extraction"`
}

type Config struct {
	LLM      LLMConfig      `toml:"llm"`
	Memgraph MemgraphConfig `toml:"memgraph"`
	Pipeline PipelineConfig `toml:"pipeline"`
	Timeouts TimeoutConfig  `toml:"timeouts"`
	Prompts  PromptConfig   `toml:"prompts"`
}

const defaultSummaryPrompt = `Summarize the following conversation in 3-4 sentences.
Capture the topics discussed, any decisions made, and the overall tone.
Output only the summary text.

Conversation:
%s`

const defaultExtractionPrompt = `You extract structured facts from conversations.
Read the conversation below and emit a JSON object of the form:
{"memories": [{"type": "fact|preference|relationship|event", "content": "...", "confidence": 0.0-1.0}]}
Only use the four listed types. Output only JSON.

Conversation:
%s`

// Default returns a fully populated configuration.
func Default() *Config {
	return &Config{
		Pipeline: PipelineConfig{
			MaxChars:         1200,
			Overlap:          120,
			CandidateLimit:   20,
			RerankTopK:       5,
			PriorityLimit:    2,
			HistoryLimit:     50,
			ContextCap:       20,
			RecencyKeep:      5,
			SemanticKeep:     10,
			SummaryThreshold: 50,
			SummaryWindow:    30,
			SummaryTTL:       time.Hour,
			RecallK:          5,
			ExtractionWindow: 10,
			PersonaCacheTTL:  5 * time.Minute,
		},
		Timeouts: TimeoutConfig{
			Embed:     10 * time.Second,
			Rerank:    5 * time.Second,
			Summarize: 15 * time.Second,
			Extract:   15 * time.Second,
			Generate:  30 * time.Second,
		},
		Prompts: PromptConfig{
			Summary:    defaultSummaryPrompt,
			Extraction: defaultExtractionPrompt,
		},
	}
}

// Load reads a TOML config file and fills any unset field with its default.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}

	cfg.FillDefaults()
	return &cfg, nil
}

// FillDefaults replaces zero-valued fields with the documented defaults.
func (c *Config) FillDefaults() {
	d := Default()
	p, dp := &c.Pipeline, &d.Pipeline
	if p.MaxChars <= 0 {
		p.MaxChars = dp.MaxChars
	}
	if p.Overlap <= 0 {
		p.Overlap = dp.Overlap
	}
	if p.CandidateLimit <= 0 {
		p.CandidateLimit = dp.CandidateLimit
	}
	if p.RerankTopK <= 0 {
		p.RerankTopK = dp.RerankTopK
	}
	if p.PriorityLimit <= 0 {
		p.PriorityLimit = dp.PriorityLimit
	}
	if p.HistoryLimit <= 0 {
		p.HistoryLimit = dp.HistoryLimit
	}
	if p.ContextCap <= 0 {
		p.ContextCap = dp.ContextCap
	}
	if p.RecencyKeep <= 0 {
		p.RecencyKeep = dp.RecencyKeep
	}
	if p.SemanticKeep <= 0 {
		p.SemanticKeep = dp.SemanticKeep
	}
	if p.SummaryThreshold <= 0 {
		p.SummaryThreshold = dp.SummaryThreshold
	}
	if p.SummaryWindow <= 0 {
		p.SummaryWindow = dp.SummaryWindow
	}
	if p.SummaryTTL <= 0 {
		p.SummaryTTL = dp.SummaryTTL
	}
	if p.RecallK <= 0 {
		p.RecallK = dp.RecallK
	}
	if p.ExtractionWindow <= 0 {
		p.ExtractionWindow = dp.ExtractionWindow
	}
	if p.PersonaCacheTTL <= 0 {
		p.PersonaCacheTTL = dp.PersonaCacheTTL
	}

	t, dt := &c.Timeouts, &d.Timeouts
	if t.Embed <= 0 {
		t.Embed = dt.Embed
	}
	if t.Rerank <= 0 {
		t.Rerank = dt.Rerank
	}
	if t.Summarize <= 0 {
		t.Summarize = dt.Summarize
	}
	if t.Extract <= 0 {
		t.Extract = dt.Extract
	}
	if t.Generate <= 0 {
		t.Generate = dt.Generate
	}

	if c.Prompts.Summary == "" {
		c.Prompts.Summary = d.Prompts.Summary
	}
	if c.Prompts.Extraction == "" {
		c.Prompts.Extraction = d.Prompts.Extraction
	}
}
