// SPDX-FileCopyrightText: The fixtrack authors
//
// SPDX-License-Identifier: MIT

// Package tracker implements the core of fixtrack: a position fix model,
// a pure acceptance filter for incoming fixes and a tracker that owns the
// current accepted fix and fans out change notifications to observers.
package tracker

import (
	"math"
)

const earthRadius = 6371000.0 // meters

// Fix represents a single position sample reported by a location source.
// A Fix is immutable once created.
type Fix struct {
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
	AccuracyMeters float64 `json:"accuracy_meters"`
	SpeedMPS       float64 `json:"speed_mps"`
	TimestampMS    int64   `json:"timestamp_ms"`
	Provider       string  `json:"provider"`
}

// Valid checks if the fix carries usable coordinates according to the
// EPSG logic and contains no NaN values.
func (f Fix) Valid() bool {
	if math.IsNaN(f.Latitude) || math.IsNaN(f.Longitude) ||
		math.IsNaN(f.AccuracyMeters) || math.IsNaN(f.SpeedMPS) {
		return false
	}
	return f.Latitude >= -90 && f.Latitude <= 90 && f.Longitude >= -180 && f.Longitude <= 180
}

// DistanceTo returns the great-circle distance in meters between the fix
// and other. We are using the Haversine formula to calculate the distance
// between two points on a sphere (in our case: Earth).
func (f Fix) DistanceTo(other Fix) float64 {
	dLat := (other.Latitude - f.Latitude) * math.Pi / 180
	dLon := (other.Longitude - f.Longitude) * math.Pi / 180
	lat1 := f.Latitude * math.Pi / 180
	lat2 := other.Latitude * math.Pi / 180
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadius * math.Asin(math.Sqrt(h))
}
