// SPDX-FileCopyrightText: The fixtrack authors
//
// SPDX-License-Identifier: MIT

// Package file provides a location source reading coordinates from a
// local file. It is mainly useful for manual positioning and testing.
package file

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/citywalk/fixtrack/internal/source"
	"github.com/citywalk/fixtrack/internal/tracker"
)

const (
	// NominalAccuracyM is reported for file-based coordinates; the file
	// carries no accuracy information of its own.
	NominalAccuracyM = 10.0

	defaultPeriod = 30 * time.Second
)

var ErrNoCoordinates = fmt.Errorf("no valid coordinates found in geolocation file")

// Source periodically reads a coordinates file and emits a fix whenever
// the coordinates change. The file holds a latitude and a longitude in
// decimal degrees, separated by a comma or whitespace.
type Source struct {
	name   string
	path   string
	period time.Duration

	// locateFn is a test seam; it defaults to reading the file.
	locateFn func() (lat, lon float64, err error)
}

// New returns a file Source for the given path.
func New(path string) *Source {
	s := &Source{
		name:   "file",
		path:   path,
		period: defaultPeriod,
	}
	s.locateFn = s.readFile
	return s
}

func (s *Source) Name() string {
	return s.name
}

// Stream polls the coordinates file and emits a fix when the coordinates
// change. The returned channel closes when the context is cancelled.
func (s *Source) Stream(ctx context.Context, _ source.Options) (<-chan tracker.Fix, error) {
	if _, err := os.Stat(s.path); err != nil {
		return nil, fmt.Errorf("failed to read geolocation file: %w", err)
	}

	out := make(chan tracker.Fix)
	go func() {
		defer close(out)
		var lastLat, lastLon float64
		haveLast := false
		firstRun := true

		for {
			if !firstRun {
				select {
				case <-ctx.Done():
					return
				case <-time.After(s.period):
				}
			}
			firstRun = false

			lat, lon, err := s.locateFn()
			if err != nil {
				continue
			}
			if haveLast && lat == lastLat && lon == lastLon {
				continue
			}
			lastLat, lastLon = lat, lon
			haveLast = true

			select {
			case <-ctx.Done():
				return
			case out <- s.createFix(lat, lon):
			}
		}
	}()

	return out, nil
}

func (s *Source) createFix(lat, lon float64) tracker.Fix {
	return tracker.Fix{
		Latitude:       lat,
		Longitude:      lon,
		AccuracyMeters: NominalAccuracyM,
		TimestampMS:    time.Now().UnixMilli(),
		Provider:       s.name,
	}
}

func (s *Source) readFile() (float64, float64, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read geolocation file: %w", err)
	}

	fields := strings.FieldsFunc(strings.TrimSpace(string(data)), func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})
	if len(fields) < 2 {
		return 0, 0, ErrNoCoordinates
	}

	lat, err := strconv.ParseFloat(strings.TrimSpace(fields[0]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to parse latitude: %w", err)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to parse longitude: %w", err)
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return 0, 0, ErrNoCoordinates
	}

	return lat, lon, nil
}
