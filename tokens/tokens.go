package tokens

import (
	"fmt"
	"strings"

	"github.com/Abraxas-365/chatstream/llm"
	"github.com/pkoukk/tiktoken-go"
)

// Counter counts and truncates text by model tokens
type Counter struct {
	Model    string
	encoding *tiktoken.Tiktoken
}

// encodingForModel returns the encoding name for a given model. Open models
// served through OpenAI-compatible endpoints fall back to cl100k_base, which
// is close enough for budgeting.
func encodingForModel(model string) string {
	if strings.HasPrefix(model, "gpt-4o") || strings.HasPrefix(model, "o1") {
		return "o200k_base"
	}

	if strings.HasPrefix(model, "code-") ||
		model == "text-davinci-002" ||
		model == "text-davinci-003" {
		return "p50k_base"
	}

	return "cl100k_base"
}

// New loads the encoding used to count tokens for model
func New(model string) (*Counter, error) {
	name := encodingForModel(model)
	encoding, err := tiktoken.GetEncoding(name)
	if err != nil {
		return nil, &Error{
			Op:      "new",
			Message: fmt.Sprintf("failed to get %s encoding for model %s", name, model),
			Err:     err,
		}
	}

	return &Counter{
		Model:    model,
		encoding: encoding,
	}, nil
}

// Count returns the number of tokens in text
func (c *Counter) Count(text string) int {
	if text == "" {
		return 0
	}
	return len(c.encoding.Encode(text, nil, nil))
}

// CountMessages sums the content tokens of messages
func (c *Counter) CountMessages(messages []llm.Message) int {
	total := 0
	for _, msg := range messages {
		total += c.Count(msg.Content)
	}
	return total
}

// Truncate keeps the first limit tokens of text
func (c *Counter) Truncate(text string, limit int) (string, error) {
	if limit < 0 {
		return "", &Error{
			Op:      "truncate",
			Message: "limit must be non-negative",
			Err:     fmt.Errorf("invalid limit: %d", limit),
		}
	}
	if text == "" || limit == 0 {
		return "", nil
	}

	toks := c.encoding.Encode(text, nil, nil)
	if len(toks) <= limit {
		return text, nil
	}
	return c.encoding.Decode(toks[:limit]), nil
}
