// SPDX-FileCopyrightText: The fixtrack authors
//
// SPDX-License-Identifier: MIT

// Package gpsd provides a location source backed by a local gpsd daemon.
package gpsd

import (
	"context"
	"math"
	"time"

	gpsd "github.com/stratoberry/go-gpsd"

	"github.com/citywalk/fixtrack/internal/source"
	"github.com/citywalk/fixtrack/internal/tracker"
)

const (
	DefaultAddress = "localhost:2947"

	// estimated position errors when gpsd does not report epx/epy
	fallbackAccuracy3DFix = 10 // ~10 m typical consumer GPS in open sky
	fallbackAccuracy2DFix = 25 // worse than 3D, but still accurate enough
)

// Source streams TPV reports from a gpsd daemon.
type Source struct {
	name string
	addr string
}

// New returns a gpsd Source for the given address. An empty address falls
// back to the default gpsd port on localhost.
func New(addr string) *Source {
	if addr == "" {
		addr = DefaultAddress
	}
	return &Source{
		name: "gpsd",
		addr: addr,
	}
}

func (s *Source) Name() string {
	return s.name
}

// Stream connects to gpsd and emits a fix for every TPV report with at
// least a 2D fix. The returned channel closes when the gpsd connection
// ends or the context is cancelled.
func (s *Source) Stream(ctx context.Context, _ source.Options) (<-chan tracker.Fix, error) {
	session, err := gpsd.Dial(s.addr)
	if err != nil {
		return nil, err
	}

	out := make(chan tracker.Fix)
	session.AddFilter("TPV", func(r interface{}) {
		tpv, ok := r.(*gpsd.TPVReport)
		if !ok {
			return
		}
		if tpv.Mode < gpsd.Mode2D {
			return
		}

		select {
		case <-ctx.Done():
		case out <- s.fixFromTPV(tpv):
		}
	})

	// Watch returns a channel that closes when the watch ends, e.g. on a
	// lost connection; go-gpsd itself has no Close().
	done := session.Watch()
	go func() {
		defer close(out)
		select {
		case <-ctx.Done():
		case <-done:
		}
	}()

	return out, nil
}

func (s *Source) fixFromTPV(tpv *gpsd.TPVReport) tracker.Fix {
	acc := math.Max(tpv.Epx, tpv.Epy)
	if acc <= 0 {
		acc = fallbackAccuracy2DFix
		if tpv.Mode >= gpsd.Mode3D {
			acc = fallbackAccuracy3DFix
		}
	}

	ts := tpv.Time.UnixMilli()
	if tpv.Time.IsZero() {
		ts = time.Now().UnixMilli()
	}

	return tracker.Fix{
		Latitude:       tpv.Lat,
		Longitude:      tpv.Lon,
		AccuracyMeters: acc,
		SpeedMPS:       tpv.Speed,
		TimestampMS:    ts,
		Provider:       s.name,
	}
}
