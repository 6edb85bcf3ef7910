package referral

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/kolbymanginohealthcraft/market-mover-sub006/internal/platform/geo"
)

// eventSourcePG reads the referral_pathway_events table. The table is
// populated by the warehouse load, never by this service.
type eventSourcePG struct {
	pool *pgxpool.Pool
}

// NewEventSource returns a Postgres-backed EventSource.
func NewEventSource(pool *pgxpool.Pool) EventSource {
	return &eventSourcePG{pool: pool}
}

func (s *eventSourcePG) MaxAdmissionDate(ctx context.Context) (time.Time, error) {
	var t *time.Time
	if err := s.pool.QueryRow(ctx, `SELECT max(admission_date) FROM referral_pathway_events`).Scan(&t); err != nil {
		return time.Time{}, fmt.Errorf("query max admission date: %w", err)
	}
	if t == nil {
		return time.Time{}, fmt.Errorf("referral_pathway_events is empty")
	}
	return *t, nil
}

func (s *eventSourcePG) Events(ctx context.Context, inboundNPI string, from, to time.Time) ([]PathwayEvent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT inbound_npi, admission_date, outbound_npi, facility_id, facility_name,
		       referral_date, charges::text, attributes, lat, lon
		FROM referral_pathway_events
		WHERE inbound_npi = $1 AND admission_date BETWEEN $2 AND $3
		ORDER BY admission_date, outbound_npi`,
		inboundNPI, from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("query pathway events: %w", err)
	}
	defer rows.Close()

	var events []PathwayEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pathway events: %w", err)
	}
	return events, nil
}

func scanEvent(rows pgx.Rows) (PathwayEvent, error) {
	var (
		e          PathwayEvent
		facilityID *string
		name       *string
		charges    *string
		attrs      []byte
		lat, lon   *float64
	)
	if err := rows.Scan(&e.InboundNPI, &e.AdmissionDate, &e.OutboundNPI, &facilityID, &name,
		&e.ReferralDate, &charges, &attrs, &lat, &lon); err != nil {
		return e, fmt.Errorf("scan pathway event: %w", err)
	}
	if facilityID != nil {
		e.FacilityID = *facilityID
	}
	if name != nil {
		e.FacilityName = *name
	}
	e.Charges = decimal.Zero
	if charges != nil {
		d, err := decimal.NewFromString(*charges)
		if err != nil {
			return e, fmt.Errorf("parse charges %q: %w", *charges, err)
		}
		e.Charges = d
	}
	if len(attrs) > 0 {
		if err := json.Unmarshal(attrs, &e.Attributes); err != nil {
			return e, fmt.Errorf("decode event attributes: %w", err)
		}
	}
	if lat != nil && lon != nil {
		c := geo.Coordinate{Lat: *lat, Lon: *lon}
		if c.Valid() {
			e.Location = &c
		}
	}
	return e, nil
}
