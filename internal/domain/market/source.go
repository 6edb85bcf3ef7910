package market

import (
	"context"
	"net/url"
	"strconv"

	"github.com/paulmach/orb/geojson"

	"github.com/kolbymanginohealthcraft/market-mover-sub006/internal/platform/dataservice"
)

// BoundarySource returns the county boundary features intersecting an area.
type BoundarySource interface {
	CountyBoundaries(ctx context.Context, area Area) (*geojson.FeatureCollection, error)
}

// Getter is the subset of the data-service client used here.
type Getter interface {
	Get(ctx context.Context, path string, query url.Values, out interface{}) error
}

var _ Getter = (*dataservice.Client)(nil)

// HTTPBoundarySource reads boundaries from the data service.
type HTTPBoundarySource struct {
	client Getter
}

func NewHTTPBoundarySource(client Getter) *HTTPBoundarySource {
	return &HTTPBoundarySource{client: client}
}

func (s *HTTPBoundarySource) CountyBoundaries(ctx context.Context, area Area) (*geojson.FeatureCollection, error) {
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(area.Center.Lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(area.Center.Lon, 'f', -1, 64))
	q.Set("radius", strconv.FormatFloat(area.RadiusMiles, 'f', -1, 64))
	q.Set("type", "counties")

	fc := geojson.NewFeatureCollection()
	if err := s.client.Get(ctx, "boundaries", q, fc); err != nil {
		return nil, err
	}
	return fc, nil
}

// countiesFromFeatures extracts the valid FIPS codes from a collection.
func countiesFromFeatures(fc *geojson.FeatureCollection) CountySet {
	if fc == nil {
		return CountySet{}
	}
	codes := make([]string, 0, len(fc.Features))
	for _, f := range fc.Features {
		if f == nil || f.Properties == nil {
			continue
		}
		if code, ok := NormalizeFIPS(f.Properties["county_fips_code"]); ok {
			codes = append(codes, code)
		}
	}
	return NewCountySet(codes...)
}
