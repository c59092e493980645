// Package logging provides structured logging setup built on log/slog.
//
// It exposes a small Config surface (level, format, output, source
// annotations) and returns plain *slog.Logger values so that every other
// package depends only on the standard structured logging interfaces.
package logging
