// SPDX-FileCopyrightText: The fixtrack authors
//
// SPDX-License-Identifier: MIT

package tracker

import (
	"log/slog"
	"sync"
	"time"

	"github.com/citywalk/fixtrack/internal/logger"
)

// Observer receives the new current fix after every accepted mutation.
// Observers are invoked synchronously on the pushing goroutine and must
// return quickly; they must not call back into the Tracker from the
// handler.
type Observer interface {
	FixUpdated(fix Fix)
}

// Tracker owns the current accepted fix, the fixed-location override and
// the observer registry. All mutations are serialized; a mutation that
// changes the current fix notifies every registered observer exactly once.
type Tracker struct {
	mu     sync.RWMutex
	logger *logger.Logger
	filter Filter

	current       Fix
	haveFix       bool
	currentTimeMS int64
	overridden    bool

	observers map[Observer]struct{}
	subs      map[chan Fix]struct{}

	nowFn func() int64
}

// New returns a Tracker using the given filter for fix acceptance.
func New(filter Filter, log *logger.Logger) *Tracker {
	return &Tracker{
		logger:    log,
		filter:    filter,
		observers: make(map[Observer]struct{}),
		subs:      make(map[chan Fix]struct{}),
		nowFn:     func() int64 { return time.Now().UnixMilli() },
	}
}

// PushFix offers a candidate fix from a location source. While the
// override is active the candidate is dropped without notification.
// Otherwise the candidate runs through the acceptance filter; on accept
// the current fix is replaced and observers are notified, on reject the
// candidate is silently dropped. Rejection is an expected, frequent
// outcome and never surfaces as an error.
func (t *Tracker) PushFix(cand Fix) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.overridden {
		return
	}

	var prev *Fix
	if t.haveFix {
		prev = &t.current
	}
	now := t.nowFn()
	decision := t.filter.ShouldAccept(prev, t.currentTimeMS, cand, now)
	if !decision.Accept {
		t.logRejection(cand, decision)
		return
	}

	t.current = cand
	t.haveFix = true
	t.currentTimeMS = now
	t.notifyAll()
}

// SetOverride pins the tracker to the given position. The filter is
// bypassed, observers are notified and all subsequently pushed fixes are
// ignored until ReleaseOverride is called.
func (t *Tracker) SetOverride(fix Fix) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.current = fix
	t.haveFix = true
	t.currentTimeMS = t.nowFn()
	t.overridden = true
	t.notifyAll()
}

// ReleaseOverride resumes normal filtering on the next pushed fix. The
// current fix is left untouched and no notification fires.
func (t *Tracker) ReleaseOverride() {
	t.mu.Lock()
	t.overridden = false
	t.mu.Unlock()
}

// Overridden reports whether a fixed-location override is active.
func (t *Tracker) Overridden() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.overridden
}

// CurrentFix returns the latest accepted (or overridden) fix. The second
// return value is false if no fix has been set yet.
func (t *Tracker) CurrentFix() (Fix, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.current, t.haveFix
}

// LastUpdateMS returns the Unix millisecond time at which the current fix
// was last set. The second return value is false if no fix has been set
// yet. Staleness policy is left to the caller.
func (t *Tracker) LastUpdateMS() (int64, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.currentTimeMS, t.haveFix
}

// Register adds an observer to the registry. Registering an already
// registered observer is a no-op: one accepted mutation notifies each
// observer exactly once.
func (t *Tracker) Register(o Observer) {
	t.mu.Lock()
	t.observers[o] = struct{}{}
	t.mu.Unlock()
}

// Unregister removes an observer from the registry. Unregistering an
// unknown observer is a no-op.
func (t *Tracker) Unregister(o Observer) {
	t.mu.Lock()
	delete(t.observers, o)
	t.mu.Unlock()
}

// Subscribe adds a buffered channel subscriber for accepted fixes,
// returning the channel and an unsubscribe function. Sends are
// non-blocking: a subscriber that does not keep up misses updates instead
// of stalling the tracker.
func (t *Tracker) Subscribe(buffer int) (<-chan Fix, func()) {
	ch := make(chan Fix, buffer)
	t.mu.Lock()
	t.subs[ch] = struct{}{}
	if t.haveFix {
		select {
		case ch <- t.current:
		default:
		}
	}
	t.mu.Unlock()

	unsub := func() {
		t.mu.Lock()
		delete(t.subs, ch)
		t.mu.Unlock()
		close(ch)
	}

	return ch, unsub
}

// notifyAll delivers the current fix to every registered observer and
// subscriber. Delivery order is unspecified. Callers must hold t.mu.
func (t *Tracker) notifyAll() {
	for o := range t.observers {
		o.FixUpdated(t.current)
	}
	for ch := range t.subs {
		select {
		case ch <- t.current:
		default:
		}
	}
}

func (t *Tracker) logRejection(cand Fix, decision Decision) {
	if t.logger == nil {
		return
	}
	switch decision.Reason {
	case RejectedTooFast:
		t.logger.Warn("location speed is fast", slog.Float64("speed_mps", cand.SpeedMPS),
			slog.String("provider", cand.Provider))
	case RejectedImpliedSpeed:
		t.logger.Warn("calculated speed is fast",
			slog.Float64("implied_speed_mps", decision.ImpliedSpeedMPS),
			slog.String("provider", cand.Provider))
	default:
		t.logger.Debug("dropping location update", slog.String("reason", decision.Reason.String()),
			slog.String("provider", cand.Provider))
	}
}
