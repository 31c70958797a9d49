package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type mockLLM struct {
	Response string
	Err      error
	Prompt   string
}

func (m *mockLLM) Generate(ctx context.Context, prompt string) (string, error) {
	m.Prompt = prompt
	if m.Err != nil {
		return "", m.Err
	}
	return m.Response, nil
}

func TestRerankOrdersByModelOutput(t *testing.T) {
	r := NewSimpleLLMReranker(&mockLLM{Response: "2, 0, 1"})
	indices, err := r.Rerank(context.Background(), "query", []string{"a", "b", "c"}, 3)
	assert.NoError(t, err)
	assert.Equal(t, []int{2, 0, 1}, indices)
}

func TestRerankTruncatesToTopK(t *testing.T) {
	r := NewSimpleLLMReranker(&mockLLM{Response: "3, 1, 0, 2"})
	indices, err := r.Rerank(context.Background(), "query", []string{"a", "b", "c", "d"}, 2)
	assert.NoError(t, err)
	assert.Equal(t, []int{3, 1}, indices)
}

func TestRerankSingleCandidateSkipsLLM(t *testing.T) {
	llm := &mockLLM{Err: errors.New("should not be called")}
	r := NewSimpleLLMReranker(llm)
	indices, err := r.Rerank(context.Background(), "query", []string{"only"}, 5)
	assert.NoError(t, err)
	assert.Equal(t, []int{0}, indices)
	assert.Empty(t, llm.Prompt)
}

func TestRerankLLMFailure(t *testing.T) {
	r := NewSimpleLLMReranker(&mockLLM{Err: errors.New("boom")})
	_, err := r.Rerank(context.Background(), "query", []string{"a", "b"}, 2)
	assert.ErrorIs(t, err, ErrRerankUnavailable)
}

func TestRerankUnparseableOutput(t *testing.T) {
	r := NewSimpleLLMReranker(&mockLLM{Response: "I cannot rank these documents."})
	_, err := r.Rerank(context.Background(), "query", []string{"a", "b"}, 2)
	assert.ErrorIs(t, err, ErrRerankUnavailable)
}

func TestParseIndicesFiltersAndDedupes(t *testing.T) {
	assert.Equal(t, []int{1, 0, 2}, parseIndices("1, 9, 0, 1, 2", 3))
	assert.Empty(t, parseIndices("no numbers here", 3))
}
