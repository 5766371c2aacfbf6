package llm

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// maxRerankDocLength truncates each document shown to the model.
const maxRerankDocLength = 200

var indexPattern = regexp.MustCompile(`\d+`)

// SimpleLLMReranker asks a chat model for a relevance order. The result is
// always a full permutation: indices the model omits keep their original
// relative order after the ranked ones.
type SimpleLLMReranker struct {
	LLM LLMClient
}

func NewSimpleLLMReranker(client LLMClient) *SimpleLLMReranker {
	return &SimpleLLMReranker{LLM: client}
}

func (r *SimpleLLMReranker) Rank(ctx context.Context, query string, docs []string) ([]int, error) {
	switch len(docs) {
	case 0:
		return []int{}, nil
	case 1:
		return []int{0}, nil
	}

	var docList strings.Builder
	for i, d := range docs {
		fmt.Fprintf(&docList, "[%d] %s\n", i, truncate(d, maxRerankDocLength))
	}

	prompt := fmt.Sprintf(`You rank campaign lore by relevance.
Query: %s

Documents:
%s
Output ONLY the document indices, most relevant first, separated by commas.
Example: 0, 2, 1`, query, docList.String())

	resp, err := r.LLM.Generate(ctx, prompt)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return identity(len(docs)), nil
	}
	return completePermutation(parseIndices(resp), len(docs)), nil
}

// truncate cuts s to at most limit bytes without splitting a rune.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

func parseIndices(s string) []int {
	var indices []int
	for _, m := range indexPattern.FindAllString(s, -1) {
		if i, err := strconv.Atoi(m); err == nil {
			indices = append(indices, i)
		}
	}
	return indices
}

// completePermutation drops out-of-range and repeated indices, then appends
// whatever is missing in ascending order.
func completePermutation(ranked []int, n int) []int {
	seen := make([]bool, n)
	out := make([]int, 0, n)
	for _, i := range ranked {
		if i < 0 || i >= n || seen[i] {
			continue
		}
		seen[i] = true
		out = append(out, i)
	}
	for i := 0; i < n; i++ {
		if !seen[i] {
			out = append(out, i)
		}
	}
	return out
}

func identity(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}
