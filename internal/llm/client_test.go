package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMockClientReturnsCannedResponse(t *testing.T) {
	m := &MockClient{Response: `{"high":[]}`}
	out, err := m.Complete(context.Background(), "analyze this", 8000)

	assert.NoError(t, err)
	assert.Equal(t, `{"high":[]}`, out)
	assert.Equal(t, []string{"analyze this"}, m.Calls)
}

func TestMockClientPropagatesError(t *testing.T) {
	m := &MockClient{Err: assert.AnError}
	_, err := m.Complete(context.Background(), "x", 0)
	assert.Error(t, err)
}
