package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultValues(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 1200, cfg.Pipeline.MaxChars)
	assert.Equal(t, 120, cfg.Pipeline.Overlap)
	assert.Equal(t, 20, cfg.Pipeline.CandidateLimit)
	assert.Equal(t, 5, cfg.Pipeline.RerankTopK)
	assert.Equal(t, 2, cfg.Pipeline.PriorityLimit)
	assert.Equal(t, 50, cfg.Pipeline.HistoryLimit)
	assert.Equal(t, 20, cfg.Pipeline.ContextCap)
	assert.Equal(t, 5, cfg.Pipeline.RecencyKeep)
	assert.Equal(t, 10, cfg.Pipeline.SemanticKeep)
	assert.Equal(t, 50, cfg.Pipeline.SummaryThreshold)
	assert.Equal(t, 30, cfg.Pipeline.SummaryWindow)
	assert.Equal(t, time.Hour, cfg.Pipeline.SummaryTTL)
	assert.Equal(t, 10*time.Second, cfg.Timeouts.Embed)
	assert.Equal(t, 5*time.Second, cfg.Timeouts.Rerank)
	assert.NotEmpty(t, cfg.Prompts.Summary)
	assert.NotEmpty(t, cfg.Prompts.Extraction)
}

func TestLoadFillsUnsetFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	data := `
[llm]
provider = "openai"
model = "gpt-4o-mini"

[pipeline]
max_chars = 800
`
	assert.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	assert.NoError(t, err)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, 800, cfg.Pipeline.MaxChars)
	// Unset fields pick up defaults.
	assert.Equal(t, 120, cfg.Pipeline.Overlap)
	assert.Equal(t, 5, cfg.Pipeline.RerankTopK)
	assert.Equal(t, 15*time.Second, cfg.Timeouts.Summarize)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestLoadBadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	assert.NoError(t, os.WriteFile(path, []byte("[pipeline\nmax_chars="), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}
