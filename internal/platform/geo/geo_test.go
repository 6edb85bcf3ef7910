package geo

import (
	"math"
	"testing"
)

var (
	chicago   = Coordinate{Lat: 41.8781, Lon: -87.6298}
	milwaukee = Coordinate{Lat: 43.0389, Lon: -87.9065}
)

func TestHaversineMiles_SamePointIsZero(t *testing.T) {
	if d := HaversineMiles(chicago, chicago); d != 0 {
		t.Errorf("expected 0, got %f", d)
	}
}

func TestHaversineMiles_Symmetric(t *testing.T) {
	ab := HaversineMiles(chicago, milwaukee)
	ba := HaversineMiles(milwaukee, chicago)
	if math.Abs(ab-ba) > 1e-9 {
		t.Errorf("expected symmetric distance, got %f and %f", ab, ba)
	}
}

func TestHaversineMiles_KnownDistance(t *testing.T) {
	// Chicago to Milwaukee is roughly 81 miles as the crow flies.
	d := HaversineMiles(chicago, milwaukee)
	if d < 79 || d > 83 {
		t.Errorf("expected ~81 miles, got %f", d)
	}
}

func TestDistanceMiles_UndefinedWithoutCoordinates(t *testing.T) {
	if _, ok := DistanceMiles(nil, &chicago); ok {
		t.Error("expected undefined distance when origin is missing")
	}
	if _, ok := DistanceMiles(&chicago, nil); ok {
		t.Error("expected undefined distance when target is missing")
	}
	d, ok := DistanceMiles(&chicago, &milwaukee)
	if !ok || d <= 0 {
		t.Errorf("expected defined positive distance, got %f %v", d, ok)
	}
}

func TestCoordinate_Valid(t *testing.T) {
	if !chicago.Valid() {
		t.Error("expected chicago to be valid")
	}
	if (Coordinate{Lat: 91}).Valid() {
		t.Error("expected latitude 91 to be invalid")
	}
	if (Coordinate{Lon: -181}).Valid() {
		t.Error("expected longitude -181 to be invalid")
	}
}

func TestCoordinate_Rounded(t *testing.T) {
	c := Coordinate{Lat: 41.87810049, Lon: -87.62979951}.Rounded()
	if c.Lat != 41.8781 || c.Lon != -87.6298 {
		t.Errorf("unexpected rounding: %+v", c)
	}
	if c.String() != "41.878100,-87.629800" {
		t.Errorf("unexpected string: %s", c.String())
	}
}

func TestCoordinate_PointIsLonLat(t *testing.T) {
	p := chicago.Point()
	if p.Lon() != chicago.Lon || p.Lat() != chicago.Lat {
		t.Errorf("unexpected point %v", p)
	}
}
