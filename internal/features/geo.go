// Veridex Risk Worker - Anti-Counterfeit Risk Scoring and Anomaly Detection
// Copyright 2026 Veridex Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/veridex/riskworker

package features

import "math"

// CoordinateEpsilon is the threshold for considering coordinates effectively
// zero. A validation event scanned without GPS permission carries the
// sentinel (0, 0); epsilon comparison avoids IEEE 754 equality pitfalls.
// 1e-7 degrees is roughly 1.1cm at the equator, well below GPS accuracy.
const CoordinateEpsilon = 1e-7

// IsUnknownLocation returns true if the coordinates represent an unknown
// location (the (0,0) sentinel, compared with epsilon tolerance).
func IsUnknownLocation(lat, lon float64) bool {
	return math.Abs(lat) < CoordinateEpsilon && math.Abs(lon) < CoordinateEpsilon
}

// HasValidCoordinates is the inverse of IsUnknownLocation for readability.
func HasValidCoordinates(lat, lon float64) bool {
	return !IsUnknownLocation(lat, lon)
}

// HaversineKm returns the great-circle distance between two points in km.
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	const earthRadiusKm = 6371.0

	lat1Rad := lat1 * math.Pi / 180.0
	lon1Rad := lon1 * math.Pi / 180.0
	lat2Rad := lat2 * math.Pi / 180.0
	lon2Rad := lon2 * math.Pi / 180.0

	dLat := lat2Rad - lat1Rad
	dLon := lon2Rad - lon1Rad

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKm * c
}
