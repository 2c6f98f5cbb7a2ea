// Package logging defines the structured logger used across the server and
// its slog-backed implementation.
package logging

import "context"

// Logger is a context-aware structured logger. Args are alternating
// key/value pairs as in log/slog.
type Logger interface {
	Debug(ctx context.Context, msg string, args ...any)
	Info(ctx context.Context, msg string, args ...any)
	Warn(ctx context.Context, msg string, args ...any)
	Error(ctx context.Context, msg string, args ...any)
	With(args ...any) Logger
}
