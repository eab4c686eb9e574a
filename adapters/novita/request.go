package novita

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/Abraxas-365/chatstream/config"
	"github.com/Abraxas-365/chatstream/llm"
	"github.com/google/uuid"
)

const chatCompletionsPath = "/chat/completions"

type chatRequest struct {
	Messages []llm.Message `json:"messages"`
	Model    string        `json:"model"`
	Stream   bool          `json:"stream"`
}

// settings are the per-call values after resolution
type settings struct {
	model         string
	apiKey        string
	baseURL       string
	systemMessage string
}

type request struct {
	id       string
	settings settings
	messages []llm.Message
	http     *http.Request
}

// resolve applies override, option, environment and default in that order to
// each setting independently.
func (g *Generator) resolve(cfg config.Config, opts *llm.CallOptions) (settings, error) {
	var s settings

	model, from, _ := config.Resolver{
		config.Override(opts.Model),
		config.Option(cfg, OptionModel),
		config.Env(g.lookupEnv, EnvModel),
		config.Default(Models[0]),
	}.Resolve()
	// Models outside the dropdown list are passed through; the provider has
	// the final say on what it serves.
	if from.Kind == config.FromOption && !cfg[OptionModel].Allows(model) {
		g.logger.Warn("model is not among the offered values",
			slog.String("model", model),
			slog.String("source", from.Name()))
	}
	s.model = model

	apiKey, _, ok := config.Resolver{
		config.Override(opts.APIKey),
		config.Option(cfg, OptionAPIKey),
		config.Env(g.lookupEnv, EnvAPIKey),
	}.Resolve()
	if !ok {
		return s, &llm.ConfigurationError{
			Op:     "GenerateStream",
			Option: OptionAPIKey,
			Err:    fmt.Errorf("%w: no Novita API key found", llm.ErrMissingCredential),
		}
	}
	s.apiKey = apiKey

	s.baseURL, _, _ = config.Resolver{
		config.Override(opts.BaseURL),
		config.Option(cfg, OptionURL),
		config.Env(g.lookupEnv, EnvBaseURL),
		config.Default(DefaultBaseURL),
	}.Resolve()

	s.systemMessage, _, _ = config.Resolver{
		config.OverridePtr(opts.SystemMessage),
		config.Option(cfg, OptionSystemMessage),
		config.Default(""),
	}.Resolve()

	return s, nil
}

// compose resolves the settings and builds the outbound request without
// sending it.
func (g *Generator) compose(
	ctx context.Context,
	cfg config.Config,
	query string,
	retrieved string,
	conversation []llm.Turn,
	opts *llm.CallOptions,
) (*request, error) {
	s, err := g.resolve(cfg, opts)
	if err != nil {
		return nil, err
	}

	messages := llm.BuildMessages(query, retrieved, conversation, s.systemMessage)

	body, err := json.Marshal(chatRequest{
		Messages: messages,
		Model:    s.model,
		Stream:   true,
	})
	if err != nil {
		return nil, &llm.LLMError{
			Op:      "GenerateStream",
			Code:    llm.ErrInternal,
			Message: "failed to marshal request",
			Err:     err,
		}
	}

	endpoint := strings.TrimRight(s.baseURL, "/") + chatCompletionsPath
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &llm.ConfigurationError{
			Op:     "GenerateStream",
			Option: OptionURL,
			Err:    err,
		}
	}

	id := uuid.NewString()
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+s.apiKey)
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("X-Request-Id", id)

	return &request{
		id:       id,
		settings: s,
		messages: messages,
		http:     httpReq,
	}, nil
}
