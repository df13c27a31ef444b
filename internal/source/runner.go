// SPDX-FileCopyrightText: The fixtrack authors
//
// SPDX-License-Identifier: MIT

package source

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/citywalk/fixtrack/internal/logger"
	"github.com/citywalk/fixtrack/internal/tracker"
)

const (
	initialBackoff = time.Second
	maxBackoff     = 30 * time.Second
)

// Runner supervises a set of location sources and forwards every received
// fix to the tracker. A source that fails to connect or loses its
// connection is retried with exponential backoff; stopping the runner
// (context cancel) never clears the tracker state or its observers.
type Runner struct {
	Tracker *tracker.Tracker
	Logger  *logger.Logger
	Options Options

	mu      sync.RWMutex
	sources []Source
	states  map[string]ConnState
}

// NewRunner returns a Runner feeding the given tracker from the given
// sources.
func NewRunner(trk *tracker.Tracker, log *logger.Logger, opts Options, sources ...Source) *Runner {
	return &Runner{
		Tracker: trk,
		Logger:  log,
		Options: opts,
		sources: sources,
		states:  make(map[string]ConnState),
	}
}

// Run starts all sources concurrently and blocks until the context is
// cancelled and every source loop has returned.
func (r *Runner) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, src := range r.sources {
		wg.Add(1)
		go func(src Source) {
			defer wg.Done()
			r.runSource(ctx, src)
		}(src)
	}
	<-ctx.Done()
	wg.Wait()
}

// State returns the connection state of the named source.
func (r *Runner) State(name string) ConnState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.states[name]
}

// runSource keeps a single source connected, forwarding its fixes to the
// tracker and backing off on failures.
func (r *Runner) runSource(ctx context.Context, src Source) {
	backoff := initialBackoff
	defer r.setState(src.Name(), StateDisconnected)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		r.setState(src.Name(), StateConnecting)
		fixes, err := r.safeStream(ctx, src)
		if err != nil || fixes == nil {
			r.setState(src.Name(), StateFailed)
			if err != nil && r.Logger != nil {
				r.Logger.Error("failed to connect location source", slog.String("source", src.Name()),
					logger.Err(err))
			}
			if !sleepOrDone(ctx, backoff) {
				return
			}
			backoff = nextBackoff(backoff)
			continue
		}
		r.setState(src.Name(), StateConnected)

		if !r.forward(ctx, fixes, &backoff) {
			return
		}

		// connection ended, reconnect after a delay
		r.setState(src.Name(), StateSuspended)
		if !sleepOrDone(ctx, backoff) {
			return
		}
		backoff = nextBackoff(backoff)
	}
}

// forward pushes fixes from the stream into the tracker until the stream
// closes (returns true) or the context is cancelled (returns false). Every
// delivered fix resets the reconnect backoff.
func (r *Runner) forward(ctx context.Context, fixes <-chan tracker.Fix, backoff *time.Duration) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		case fix, ok := <-fixes:
			if !ok {
				return true
			}
			r.Tracker.PushFix(fix)
			*backoff = initialBackoff
		}
	}
}

// safeStream invokes Stream on a source and recovers from potential
// panics. Returns a nil channel if the source panicked.
func (r *Runner) safeStream(ctx context.Context, src Source) (ch <-chan tracker.Fix, err error) {
	defer func() { _ = recover() }()
	return src.Stream(ctx, r.Options)
}

func (r *Runner) setState(name string, state ConnState) {
	r.mu.Lock()
	prev := r.states[name]
	r.states[name] = state
	r.mu.Unlock()

	if prev != state && r.Logger != nil {
		r.Logger.Debug("location source state changed", slog.String("source", name),
			slog.String("from", prev.String()), slog.String("to", state.String()))
	}
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func nextBackoff(d time.Duration) time.Duration {
	if d *= 2; d > maxBackoff {
		return maxBackoff
	}
	return d
}
