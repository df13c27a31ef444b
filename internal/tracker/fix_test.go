// SPDX-FileCopyrightText: The fixtrack authors
//
// SPDX-License-Identifier: MIT

package tracker

import (
	"math"
	"testing"
)

func TestFix_Valid(t *testing.T) {
	t.Run("coordinate validity", func(t *testing.T) {
		tests := []struct {
			name string
			fix  Fix
			want bool
		}{
			{"origin", Fix{}, true},
			{"regular position", Fix{Latitude: 53.55, Longitude: 9.99}, true},
			{"latitude too large", Fix{Latitude: 90.01}, false},
			{"latitude too small", Fix{Latitude: -90.01}, false},
			{"longitude too large", Fix{Longitude: 180.01}, false},
			{"longitude too small", Fix{Longitude: -180.01}, false},
			{"NaN latitude", Fix{Latitude: math.NaN()}, false},
			{"NaN longitude", Fix{Longitude: math.NaN()}, false},
			{"NaN accuracy", Fix{AccuracyMeters: math.NaN()}, false},
			{"NaN speed", Fix{SpeedMPS: math.NaN()}, false},
		}

		for _, tc := range tests {
			t.Run(tc.name, func(t *testing.T) {
				if tc.fix.Valid() != tc.want {
					t.Errorf("expected validity of %+v to be %t", tc.fix, tc.want)
				}
			})
		}
	})
}

func TestFix_DistanceTo(t *testing.T) {
	t.Run("distance between known positions", func(t *testing.T) {
		tests := []struct {
			name      string
			from      Fix
			to        Fix
			want      float64
			tolerance float64
		}{
			{"same position", Fix{Latitude: 1, Longitude: 1}, Fix{Latitude: 1, Longitude: 1}, 0, 0.01},
			{
				"one degree of latitude",
				Fix{Latitude: 0, Longitude: 0},
				Fix{Latitude: 1, Longitude: 0},
				111195, 100,
			},
			{
				"Hamburg to Berlin",
				Fix{Latitude: 53.5511, Longitude: 9.9937},
				Fix{Latitude: 52.5200, Longitude: 13.4050},
				255000, 2000,
			},
		}

		for _, tc := range tests {
			t.Run(tc.name, func(t *testing.T) {
				got := tc.from.DistanceTo(tc.to)
				if math.Abs(got-tc.want) > tc.tolerance {
					t.Errorf("expected distance of about %.0fm, got %.0fm", tc.want, got)
				}
				back := tc.to.DistanceTo(tc.from)
				if math.Abs(got-back) > 0.01 {
					t.Errorf("expected distance to be symmetric, got %.2fm and %.2fm", got, back)
				}
			})
		}
	})
}
