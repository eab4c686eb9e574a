package llm

// CallOptions holds per-call overrides. Empty fields fall through to the
// configuration, the environment and finally the defaults.
type CallOptions struct {
	Model         string
	APIKey        string
	BaseURL       string
	SystemMessage *string
}

// Option is a function type to modify CallOptions
type Option func(*CallOptions)

func WithModel(model string) Option {
	return func(o *CallOptions) {
		o.Model = model
	}
}

func WithAPIKey(key string) Option {
	return func(o *CallOptions) {
		o.APIKey = key
	}
}

func WithBaseURL(url string) Option {
	return func(o *CallOptions) {
		o.BaseURL = url
	}
}

// WithSystemMessage overrides the system prompt, including with an empty one
func WithSystemMessage(msg string) Option {
	return func(o *CallOptions) {
		o.SystemMessage = &msg
	}
}

// ApplyOptions folds opts into a fresh CallOptions
func ApplyOptions(opts ...Option) *CallOptions {
	options := &CallOptions{}
	for _, opt := range opts {
		opt(options)
	}
	return options
}
