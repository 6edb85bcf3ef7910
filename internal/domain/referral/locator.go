package referral

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/kolbymanginohealthcraft/market-mover-sub006/internal/platform/apperr"
	"github.com/kolbymanginohealthcraft/market-mover-sub006/internal/platform/dataservice"
	"github.com/kolbymanginohealthcraft/market-mover-sub006/internal/platform/geo"
	"github.com/kolbymanginohealthcraft/market-mover-sub006/internal/platform/telemetry"
)

const opLocate = "referral.locate"

// Locator finds a facility's coordinates by NPI. An unknown facility is an
// apperr.EmptyResult.
type Locator interface {
	Locate(ctx context.Context, npi string) (*geo.Coordinate, error)
}

// ---- data service ----

// HTTPLocator reads referral-pathways/facility-location/:npi.
type HTTPLocator struct {
	client *dataservice.Client
}

func NewHTTPLocator(client *dataservice.Client) *HTTPLocator {
	return &HTTPLocator{client: client}
}

type wireLocation struct {
	Lat       *dataservice.Float `json:"lat"`
	Lon       *dataservice.Float `json:"lon"`
	Latitude  *dataservice.Float `json:"latitude"`
	Longitude *dataservice.Float `json:"longitude"`
}

func (w wireLocation) coordinate() (*geo.Coordinate, bool) {
	lat, lon := w.Lat, w.Lon
	if lat == nil || lon == nil {
		lat, lon = w.Latitude, w.Longitude
	}
	if lat == nil || lon == nil {
		return nil, false
	}
	c := geo.Coordinate{Lat: float64(*lat), Lon: float64(*lon)}
	if !c.Valid() || (c.Lat == 0 && c.Lon == 0) {
		return nil, false
	}
	return &c, true
}

func (l *HTTPLocator) Locate(ctx context.Context, npi string) (*geo.Coordinate, error) {
	var w *wireLocation
	if err := l.client.Get(ctx, "referral-pathways/facility-location/"+npi, nil, &w); err != nil {
		var ae *apperr.Error
		if errors.As(err, &ae) && ae.Kind == apperr.UpstreamServiceError && ae.Status == http.StatusNotFound {
			return nil, apperr.Empty(opLocate, "no location for "+npi)
		}
		return nil, err
	}
	if w == nil {
		return nil, apperr.Empty(opLocate, "no location for "+npi)
	}
	c, ok := w.coordinate()
	if !ok {
		return nil, apperr.Empty(opLocate, "no location for "+npi)
	}
	return c, nil
}

// ---- search index ----

// IndexLocator reads facility documents keyed by NPI from Elasticsearch.
// Documents carry {"npi": "...", "location": {"lat": .., "lon": ..}}.
type IndexLocator struct {
	client *elasticsearch.Client
	index  string
}

// NewIndexLocator connects to the cluster at addr.
func NewIndexLocator(addr, index string) (*IndexLocator, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{addr},
		Transport: &http.Transport{ResponseHeaderTimeout: 10 * time.Second},
	})
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}
	return &IndexLocator{client: client, index: index}, nil
}

type facilityDocument struct {
	NPI      string        `json:"npi"`
	Location *wireLocation `json:"location"`
}

func (l *IndexLocator) Locate(ctx context.Context, npi string) (*geo.Coordinate, error) {
	req := esapi.GetRequest{Index: l.index, DocumentID: npi}
	res, err := req.Do(ctx, l.client)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, apperr.Network(opLocate, err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return nil, apperr.Empty(opLocate, "facility "+npi+" is not indexed")
	}
	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return nil, apperr.Upstream(opLocate, res.StatusCode, string(body))
	}

	var doc struct {
		Found  bool             `json:"found"`
		Source facilityDocument `json:"_source"`
	}
	if err := json.NewDecoder(res.Body).Decode(&doc); err != nil {
		return nil, apperr.Upstream(opLocate, res.StatusCode, "malformed document: "+err.Error())
	}
	if !doc.Found || doc.Source.Location == nil {
		return nil, apperr.Empty(opLocate, "no location for "+npi)
	}
	c, ok := doc.Source.Location.coordinate()
	if !ok {
		return nil, apperr.Empty(opLocate, "no location for "+npi)
	}
	return c, nil
}

// ---- caching ----

const locationCacheName = "facility_location"

type cachedLocation struct {
	coord *geo.Coordinate
}

// CachedLocator remembers lookups, including misses, for a bounded time.
// Transport failures are not cached.
type CachedLocator struct {
	next Locator
	lru  *expirable.LRU[string, cachedLocation]
}

func NewCachedLocator(next Locator, size int, ttl time.Duration) *CachedLocator {
	if size <= 0 {
		size = 4096
	}
	return &CachedLocator{next: next, lru: expirable.NewLRU[string, cachedLocation](size, nil, ttl)}
}

func (l *CachedLocator) Locate(ctx context.Context, npi string) (*geo.Coordinate, error) {
	if v, ok := l.lru.Get(npi); ok {
		telemetry.CacheHit(locationCacheName)
		if v.coord == nil {
			return nil, apperr.Empty(opLocate, "no location for "+npi)
		}
		return v.coord, nil
	}
	telemetry.CacheMiss(locationCacheName)

	c, err := l.next.Locate(ctx, npi)
	switch {
	case err == nil:
		l.lru.Add(npi, cachedLocation{coord: c})
	case isEmpty(err):
		l.lru.Add(npi, cachedLocation{})
	}
	return c, err
}
