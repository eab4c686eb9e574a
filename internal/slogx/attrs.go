package slogx

import "log/slog"

// Error returns an "error" attribute carrying err's message
func Error(err error) slog.Attr {
	return slog.String("error", err.Error())
}

// Component tags a logger with the package emitting the records
func Component(name string) slog.Attr {
	return slog.String("component", name)
}
