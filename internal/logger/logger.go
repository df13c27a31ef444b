// SPDX-FileCopyrightText: The fixtrack authors
//
// SPDX-License-Identifier: MIT

// Package logger provides a thin wrapper around log/slog for leveled,
// structured logging throughout fixtrack.
package logger

import (
	"io"
	"log/slog"
	"os"
)

// Logger wraps a slog.Logger.
type Logger struct {
	*slog.Logger
}

// New returns a Logger at the given level writing to STDERR.
func New(level slog.Level) *Logger {
	return NewLogger(level, os.Stderr)
}

// NewLogger returns a Logger at the given level writing to the given output.
func NewLogger(level slog.Level, output io.Writer) *Logger {
	return &Logger{slog.New(slog.NewTextHandler(output, &slog.HandlerOptions{Level: level}))}
}

// Err wraps an error into a slog.Attr for structured error logging.
func Err(err error) slog.Attr {
	return slog.Any("error", err)
}
