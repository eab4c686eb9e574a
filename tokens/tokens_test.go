package tokens

import (
	"strings"
	"testing"

	"github.com/Abraxas-365/chatstream/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodingForModel(t *testing.T) {
	tests := []struct {
		model string
		want  string
	}{
		{model: "gpt-4o-mini", want: "o200k_base"},
		{model: "gpt-4-turbo", want: "cl100k_base"},
		{model: "meta-llama/llama-3.3-70b-instruct", want: "cl100k_base"},
		{model: "text-davinci-003", want: "p50k_base"},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			assert.Equal(t, tt.want, encodingForModel(tt.model))
		})
	}
}

// newCounter skips when the BPE ranks cannot be fetched.
func newCounter(t *testing.T) *Counter {
	t.Helper()
	c, err := New("meta-llama/llama-3.3-70b-instruct")
	if err != nil {
		t.Skipf("encoding unavailable: %v", err)
	}
	return c
}

func TestCounter_Truncate(t *testing.T) {
	c := newCounter(t)
	text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 50)

	truncated, err := c.Truncate(text, 20)
	require.NoError(t, err)
	assert.LessOrEqual(t, c.Count(truncated), 20)
	assert.True(t, strings.HasPrefix(text, truncated))

	same, err := c.Truncate("short", 100)
	require.NoError(t, err)
	assert.Equal(t, "short", same)

	_, err = c.Truncate(text, -1)
	assert.Error(t, err)
}

func TestCounter_CountMessages(t *testing.T) {
	c := newCounter(t)
	messages := llm.BuildMessages("q", "c", nil, "system")

	assert.Equal(t, c.Count(messages[0].Content)+c.Count(messages[1].Content), c.CountMessages(messages))
	assert.Equal(t, 0, c.Count(""))
}
