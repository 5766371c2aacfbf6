package summary

import (
	"context"
)

// MockLLMClient replays ResponseQueue in order, then falls back to Response.
type MockLLMClient struct {
	Response      string
	ResponseQueue []string
	Err           error
	Prompts       []string
}

func (m *MockLLMClient) Generate(ctx context.Context, prompt string) (string, error) {
	m.Prompts = append(m.Prompts, prompt)
	if m.Err != nil {
		return "", m.Err
	}
	if len(m.ResponseQueue) > 0 {
		resp := m.ResponseQueue[0]
		m.ResponseQueue = m.ResponseQueue[1:]
		return resp, nil
	}
	return m.Response, nil
}

type MockReranker struct {
	Order []int
	Err   error
}

func (m *MockReranker) Rank(ctx context.Context, query string, documents []string) ([]int, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Order, nil
}
