package llm

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
)

// SimpleLLMReranker is a cross-encoder style reranker backed by a plain LLM
// prompt: the query and all candidates are scored jointly in one call.
type SimpleLLMReranker struct {
	LLM LLMClient
}

func NewSimpleLLMReranker(client LLMClient) *SimpleLLMReranker {
	return &SimpleLLMReranker{LLM: client}
}

func (r *SimpleLLMReranker) Rerank(ctx context.Context, query string, candidates []string, topK int) ([]int, error) {
	if len(candidates) == 0 || topK <= 0 {
		return nil, nil
	}
	if len(candidates) == 1 {
		return []int{0}, nil
	}

	docList := ""
	for i, d := range candidates {
		content := d
		if len(content) > 200 {
			content = content[:200] + "..."
		}
		docList += fmt.Sprintf("[%d] %s\n", i, content)
	}

	prompt := fmt.Sprintf(`You are a search relevance optimization system.
Query: %s

Documents:
%s

Rank the documents above based on their relevance to the query.
Output ONLY the indices of the documents in order of relevance, separated by commas.
Example: 0, 2, 1
Do not output any other text.`, query, docList)

	resp, err := r.LLM.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRerankUnavailable, err)
	}

	indices := parseIndices(resp, len(candidates))
	if len(indices) == 0 {
		return nil, fmt.Errorf("%w: unparseable ranking output", ErrRerankUnavailable)
	}
	if len(indices) > topK {
		indices = indices[:topK]
	}
	return indices, nil
}

// parseIndices pulls candidate indices out of the model's reply, dropping
// out-of-range values and duplicates while preserving first-seen order.
func parseIndices(s string, n int) []int {
	re := regexp.MustCompile(`\d+`)
	matches := re.FindAllString(s, -1)
	seen := make(map[int]bool)
	var indices []int
	for _, m := range matches {
		i, err := strconv.Atoi(m)
		if err != nil || i < 0 || i >= n || seen[i] {
			continue
		}
		seen[i] = true
		indices = append(indices, i)
	}
	return indices
}
