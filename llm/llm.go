package llm

import (
	"context"

	"github.com/Abraxas-365/chatstream/config"
)

// Generator represents a streaming chat-completion provider
type Generator interface {
	// GenerateStream submits the query, retrieved context and conversation to the provider
	// and returns the incremental answer as a Stream
	GenerateStream(
		ctx context.Context,
		cfg config.Config,
		query string,
		retrieved string,
		conversation []Turn,
		opts ...Option,
	) (Stream, error)

	// Config returns the default configuration the generator consumes
	Config() config.Config

	Name() string
	Description() string
	ContextWindow() int
}

// Stream is a pull-based, single-pass sequence of fragments.
//
// Recv returns io.EOF once the terminal fragment has been delivered or the
// provider stream is exhausted.
type Stream interface {
	Recv() (Fragment, error)
	Close() error
}
