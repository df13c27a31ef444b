// SPDX-FileCopyrightText: The fixtrack authors
//
// SPDX-License-Identifier: MIT

package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/citywalk/fixtrack/internal/source"
)

func writeCoordinates(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "geolocation")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write coordinates file: %s", err)
	}
	return path
}

func TestSource_readFile(t *testing.T) {
	t.Run("parsing coordinate file contents", func(t *testing.T) {
		tests := []struct {
			name     string
			content  string
			wantLat  float64
			wantLon  float64
			wantFail bool
		}{
			{"comma separated", "53.5511,9.9937", 53.5511, 9.9937, false},
			{"whitespace separated", "53.5511 9.9937", 53.5511, 9.9937, false},
			{"newline separated", "53.5511\n9.9937\n", 53.5511, 9.9937, false},
			{"with surrounding whitespace", "  53.5511, 9.9937\n", 53.5511, 9.9937, false},
			{"empty file", "", 0, 0, true},
			{"single value", "53.5511", 0, 0, true},
			{"non-numeric values", "north,west", 0, 0, true},
			{"out of range latitude", "91,0", 0, 0, true},
			{"out of range longitude", "0,181", 0, 0, true},
		}

		for _, tc := range tests {
			t.Run(tc.name, func(t *testing.T) {
				s := New(writeCoordinates(t, tc.content))
				lat, lon, err := s.readFile()
				if tc.wantFail {
					if err == nil {
						t.Error("expected file parsing to fail, but didn't")
					}
					return
				}
				if err != nil {
					t.Fatalf("failed to parse coordinates file: %s", err)
				}
				if lat != tc.wantLat || lon != tc.wantLon {
					t.Errorf("expected coordinates %f, %f, got %f, %f", tc.wantLat, tc.wantLon,
						lat, lon)
				}
			})
		}
	})
}

func TestSource_Stream(t *testing.T) {
	t.Run("missing file fails immediately", func(t *testing.T) {
		s := New(filepath.Join(t.TempDir(), "does-not-exist"))
		if _, err := s.Stream(context.Background(), source.Options{}); err == nil {
			t.Error("expected stream to fail, but didn't")
		}
	})
	t.Run("coordinates are emitted once until they change", func(t *testing.T) {
		s := New(writeCoordinates(t, "53.5511,9.9937"))
		s.period = 10 * time.Millisecond

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		fixes, err := s.Stream(ctx, source.Options{})
		if err != nil {
			t.Fatalf("failed to open stream: %s", err)
		}

		select {
		case fix := <-fixes:
			if fix.Latitude != 53.5511 || fix.Longitude != 9.9937 {
				t.Errorf("expected first coordinates, got %f, %f", fix.Latitude, fix.Longitude)
			}
			if fix.AccuracyMeters != NominalAccuracyM {
				t.Errorf("expected nominal accuracy %f, got %f", NominalAccuracyM,
					fix.AccuracyMeters)
			}
			if fix.Provider != "file" {
				t.Errorf("expected provider tag file, got %q", fix.Provider)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for the first fix")
		}

		// unchanged coordinates must not emit again
		select {
		case fix := <-fixes:
			t.Errorf("expected no further fixes, got %+v", fix)
		case <-time.After(100 * time.Millisecond):
		}
	})
	t.Run("changed coordinates are emitted", func(t *testing.T) {
		s := New(writeCoordinates(t, "1,1"))
		s.period = 10 * time.Millisecond

		positions := [][2]float64{{1, 1}, {2, 2}}
		idx := 0
		s.locateFn = func() (float64, float64, error) {
			p := positions[idx]
			if idx < len(positions)-1 {
				idx++
			}
			return p[0], p[1], nil
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		fixes, err := s.Stream(ctx, source.Options{})
		if err != nil {
			t.Fatalf("failed to open stream: %s", err)
		}

		for _, want := range positions {
			select {
			case fix := <-fixes:
				if fix.Latitude != want[0] || fix.Longitude != want[1] {
					t.Errorf("expected coordinates %f, %f, got %f, %f", want[0], want[1],
						fix.Latitude, fix.Longitude)
				}
			case <-time.After(2 * time.Second):
				t.Fatal("timed out waiting for a fix")
			}
		}
	})
}
