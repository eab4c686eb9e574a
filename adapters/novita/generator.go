package novita

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/Abraxas-365/chatstream/config"
	"github.com/Abraxas-365/chatstream/internal/slogx"
	"github.com/Abraxas-365/chatstream/llm"
)

const (
	OptionModel         = "Model"
	OptionAPIKey        = "API Key"
	OptionURL           = "URL"
	OptionSystemMessage = "System Message"

	EnvAPIKey  = "NOVITA_API_KEY"
	EnvBaseURL = "NOVITA_BASE_URL"
	EnvModel   = "NOVITA_MODEL"

	DefaultBaseURL = "https://api.novita.ai/v3/openai"

	contextWindow = 10000
)

// Models lists the supported model identifiers; the first one is the default
var Models = []string{
	"meta-llama/llama-3.3-70b-instruct",
	"meta-llama/llama-3.1-8b-instruct",
}

// TokenCounter estimates prompt size for request logging
type TokenCounter interface {
	CountMessages(messages []llm.Message) int
}

// Generator streams chat completions from Novita's OpenAI-compatible API
type Generator struct {
	client    *http.Client
	logger    *slog.Logger
	lookupEnv config.LookupFunc
	counter   TokenCounter
}

var _ llm.Generator = (*Generator)(nil)

// Option is a function type to modify a Generator
type Option func(*Generator)

// WithHTTPClient sets the client used for requests. Its timeout governs the
// whole stream.
func WithHTTPClient(client *http.Client) Option {
	return func(g *Generator) {
		g.client = client
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(g *Generator) {
		g.logger = logger
	}
}

// WithLookupEnv replaces os.LookupEnv for credential and URL resolution
func WithLookupEnv(lookup config.LookupFunc) Option {
	return func(g *Generator) {
		g.lookupEnv = lookup
	}
}

func WithTokenCounter(counter TokenCounter) Option {
	return func(g *Generator) {
		g.counter = counter
	}
}

func New(opts ...Option) *Generator {
	g := &Generator{
		client:    http.DefaultClient,
		logger:    slog.Default(),
		lookupEnv: os.LookupEnv,
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = g.logger.With(slogx.Component("novita"))
	return g
}

func (g *Generator) Name() string {
	return "Novita"
}

func (g *Generator) Description() string {
	return "Using Novita LLM models to generate answers to queries"
}

func (g *Generator) ContextWindow() int {
	return contextWindow
}

// Config returns the options this generator consumes. The API key and URL
// options are only offered when the matching environment variable is unset.
func (g *Generator) Config() config.Config {
	cfg := config.Config{
		OptionModel: {
			Type:        config.Dropdown,
			Value:       Models[0],
			Description: "Select a Novita model",
			Values:      append([]string(nil), Models...),
		},
	}

	if v, ok := g.lookupEnv(EnvAPIKey); !ok || v == "" {
		cfg[OptionAPIKey] = config.InputConfig{
			Type:        config.Password,
			Description: "You can set your Novita API Key here or set it as environment variable `" + EnvAPIKey + "`",
			Values:      []string{},
		}
	}

	if _, ok := g.lookupEnv(EnvBaseURL); !ok {
		cfg[OptionURL] = config.InputConfig{
			Type:        config.Text,
			Value:       DefaultBaseURL,
			Description: "You can change the Base URL here if needed",
			Values:      []string{},
		}
	}

	return cfg
}

// GenerateStream issues one streaming request. Configuration problems are
// reported before any network I/O; a non-200 status is delivered as the
// stream's only fragment.
func (g *Generator) GenerateStream(
	ctx context.Context,
	cfg config.Config,
	query string,
	retrieved string,
	conversation []llm.Turn,
	opts ...llm.Option,
) (llm.Stream, error) {
	if err := llm.ValidateTurns(conversation); err != nil {
		return nil, &llm.LLMError{
			Op:      "GenerateStream",
			Code:    llm.ErrInvalidInput,
			Message: "invalid conversation",
			Err:     err,
		}
	}

	req, err := g.compose(ctx, cfg, query, retrieved, conversation, llm.ApplyOptions(opts...))
	if err != nil {
		return nil, err
	}

	attrs := []any{
		slog.String("request_id", req.id),
		slog.String("model", req.settings.model),
		slog.String("url", req.http.URL.String()),
		slog.Int("messages", len(req.messages)),
	}
	if g.counter != nil {
		attrs = append(attrs, slog.Int("prompt_tokens", g.counter.CountMessages(req.messages)))
	}
	g.logger.DebugContext(ctx, "sending chat completion request", attrs...)

	resp, err := g.client.Do(req.http)
	if err != nil {
		g.logger.ErrorContext(ctx, "chat completion request failed",
			slog.String("request_id", req.id), slogx.Error(err))
		return nil, &llm.TransportError{Op: "GenerateStream", Err: err}
	}

	return newStream(resp, g.logger.With(slog.String("request_id", req.id))), nil
}
