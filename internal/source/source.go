// SPDX-FileCopyrightText: The fixtrack authors
//
// SPDX-License-Identifier: MIT

// Package source defines the location source collaborators that feed raw
// position fixes into the tracker, and a runner that supervises them.
package source

import (
	"context"

	"github.com/citywalk/fixtrack/internal/tracker"
)

// Options are advisory delivery hints passed to a source when streaming
// starts. Sources are free to ignore hints their backend cannot express.
type Options struct {
	MinIntervalMS      int64
	MinDistanceM       float64
	PreferHighAccuracy bool
}

// Source is a single location backend. Stream connects to the backend and
// returns a channel of raw fixes; the channel is closed when the
// connection ends or the context is cancelled. Stream returns an error
// when the connection could not be established in the first place.
type Source interface {
	Name() string
	Stream(ctx context.Context, opts Options) (<-chan tracker.Fix, error)
}

// ConnState describes the connection lifecycle of a supervised source.
type ConnState int32

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
	StateSuspended
	StateFailed
)

func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateSuspended:
		return "suspended"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}
