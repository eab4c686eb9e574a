package chathistory

import "github.com/google/uuid"

type IDGenerator func() string

// Options contains configuration for chat history memory
type Options struct {
	MaxTurns    int         // Maximum number of turns kept per conversation, 0 keeps all
	ReturnLimit int         // Default limit for Turns
	GenerateID  IDGenerator // Function to generate conversation IDs
}

// Option is a function type to modify Options
type Option func(*Options)

// WithMaxTurns sets the maximum number of turns to keep
func WithMaxTurns(max int) Option {
	return func(o *Options) {
		o.MaxTurns = max
	}
}

// WithReturnLimit sets the default limit for Turns
func WithReturnLimit(limit int) Option {
	return func(o *Options) {
		o.ReturnLimit = limit
	}
}

// DefaultIDGenerator generates a UUID string
func DefaultIDGenerator() string {
	return uuid.New().String()
}

// WithGenerateID sets the ID generation function
func WithGenerateID(generator IDGenerator) Option {
	return func(o *Options) {
		o.GenerateID = generator
	}
}

// DefaultOptions returns the default options
func DefaultOptions() *Options {
	return &Options{
		MaxTurns:    100,
		ReturnLimit: 20,
		GenerateID:  DefaultIDGenerator,
	}
}
