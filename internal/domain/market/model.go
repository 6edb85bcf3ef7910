package market

import (
	"fmt"
	"sort"

	"github.com/kolbymanginohealthcraft/market-mover-sub006/internal/platform/geo"
)

// MaxRadiusMiles bounds the radius of a market area.
const MaxRadiusMiles = 500

// Area is a circular market around a center point.
type Area struct {
	Center      geo.Coordinate `json:"center"`
	RadiusMiles float64        `json:"radius_miles"`
}

// Key identifies the area for caching: center and radius rounded to six
// decimal places.
func (a Area) Key() string {
	c := a.Center.Rounded()
	return fmt.Sprintf("%.6f,%.6f,%.6f", c.Lat, c.Lon, geo.Round6(a.RadiusMiles))
}

// Validate checks coordinate ranges and the radius bounds.
func (a Area) Validate() error {
	if !a.Center.Valid() {
		return fmt.Errorf("center %s is out of range", a.Center)
	}
	if !(a.RadiusMiles > 0) || a.RadiusMiles > MaxRadiusMiles {
		return fmt.Errorf("radius must be greater than 0 and at most %d miles", MaxRadiusMiles)
	}
	return nil
}

// CountySet is a sorted, de-duplicated set of 5-digit county FIPS codes.
// The zero value is an empty set. A CountySet is never mutated after
// construction.
type CountySet struct {
	codes []string
}

// NewCountySet builds a set from codes, sorting and removing duplicates.
func NewCountySet(codes ...string) CountySet {
	if len(codes) == 0 {
		return CountySet{}
	}
	sorted := append([]string(nil), codes...)
	sort.Strings(sorted)
	out := sorted[:0]
	for i, c := range sorted {
		if i > 0 && c == sorted[i-1] {
			continue
		}
		out = append(out, c)
	}
	return CountySet{codes: out}
}

func (s CountySet) Len() int { return len(s.codes) }

// Contains reports whether fips is in the set.
func (s CountySet) Contains(fips string) bool {
	i := sort.SearchStrings(s.codes, fips)
	return i < len(s.codes) && s.codes[i] == fips
}

// Slice returns a copy of the codes in ascending order.
func (s CountySet) Slice() []string {
	return append([]string(nil), s.codes...)
}

func (s CountySet) MarshalJSON() ([]byte, error) {
	return marshalCodes(s.codes)
}
