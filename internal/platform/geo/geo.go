// Package geo holds the coordinate type and the great-circle distance
// primitive shared by market resolution and referral drill-down.
package geo

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	orbgeo "github.com/paulmach/orb/geo"
)

// EarthRadiusMiles is the mean Earth radius used for Haversine distances.
const EarthRadiusMiles = 3958.8

// Coordinate is a WGS84 latitude/longitude pair in degrees.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Valid reports whether the coordinate lies within the WGS84 ranges.
func (c Coordinate) Valid() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lon >= -180 && c.Lon <= 180 &&
		!math.IsNaN(c.Lat) && !math.IsNaN(c.Lon)
}

// Rounded returns the coordinate rounded to six decimal places.
func (c Coordinate) Rounded() Coordinate {
	return Coordinate{Lat: Round6(c.Lat), Lon: Round6(c.Lon)}
}

func (c Coordinate) String() string {
	return fmt.Sprintf("%.6f,%.6f", c.Lat, c.Lon)
}

// Round6 rounds v to six decimal places.
func Round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}

// Point converts c to an orb point (lon, lat).
func (c Coordinate) Point() orb.Point {
	return orb.Point{c.Lon, c.Lat}
}

// HaversineMiles returns the great-circle distance between a and b on a
// sphere of radius EarthRadiusMiles.
func HaversineMiles(a, b Coordinate) float64 {
	if a == b {
		return 0
	}
	angle := orbgeo.DistanceHaversine(a.Point(), b.Point()) / orb.EarthRadius
	return angle * EarthRadiusMiles
}

// DistanceMiles is HaversineMiles over optional points. The second result
// is false when either point is missing.
func DistanceMiles(a, b *Coordinate) (float64, bool) {
	if a == nil || b == nil {
		return 0, false
	}
	return HaversineMiles(*a, *b), true
}
