package llm

import "context"

// MockClient is a canned-response Client used by tests and by the fallback
// rule-based categorization path when no live model is configured.
type MockClient struct {
	Response string
	Err      error
	Calls    []string
}

func (m *MockClient) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	m.Calls = append(m.Calls, prompt)
	if m.Err != nil {
		return "", m.Err
	}
	return m.Response, nil
}
