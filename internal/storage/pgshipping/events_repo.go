package pgshipping

import (
	"context"
	"time"

	"github.com/BearBump/ShipStream/internal/models"
	"github.com/BearBump/ShipStream/internal/transitions"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

// StatusUpdate is one validated tracking event to apply to a shipment.
type StatusUpdate struct {
	ShipmentID uint64

	Status string

	Location      *string
	City          *string
	Country       *string
	Latitude      *float64
	Longitude     *float64
	Facility      *string
	Description   *string
	TransportMode *string
	Notes         *string

	RecordedBy *string

	EstimatedDeliveryDate *time.Time
	ActualDeliveryDate    *time.Time
}

// ApplyStatusUpdate appends the event and updates the projection as one
// transaction. The shipment row is locked first, which serializes writers
// per shipment across all service instances; the transition is re-checked
// under that lock so concurrent updates cannot interleave. On any failure
// both writes roll back.
func (s *Storage) ApplyStatusUpdate(ctx context.Context, upd StatusUpdate) (*models.Shipment, *models.ShipmentEvent, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, nil, errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var lockedID uint64
	err = tx.QueryRow(ctx, `SELECT id FROM shipments WHERE id = $1 FOR UPDATE`, upd.ShipmentID).Scan(&lockedID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, ErrShipmentNotFound
	}
	if err != nil {
		return nil, nil, errors.Wrap(err, "lock shipment")
	}

	// Current status comes from the log, not the projection: an empty log
	// means "no status yet" even though the booking row carries PENDING.
	var fromStatus string
	var lastCreatedAt time.Time
	err = tx.QueryRow(ctx, `
SELECT status, created_at
FROM shipment_events
WHERE shipment_id = $1
ORDER BY created_at DESC, id DESC
LIMIT 1
`, upd.ShipmentID).Scan(&fromStatus, &lastCreatedAt)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, errors.Wrap(err, "select last event")
	}

	if err := transitions.Validate(fromStatus, upd.Status); err != nil {
		return nil, nil, err
	}

	// Writer-assigned timestamp, clamped so it never runs backwards within
	// one shipment even when transaction start order differs from commit
	// order.
	createdAt := time.Now().UTC()
	if createdAt.Before(lastCreatedAt) {
		createdAt = lastCreatedAt
	}

	ev := models.ShipmentEvent{
		ShipmentID:    upd.ShipmentID,
		Status:        upd.Status,
		Location:      upd.Location,
		City:          upd.City,
		Country:       upd.Country,
		Latitude:      upd.Latitude,
		Longitude:     upd.Longitude,
		Facility:      upd.Facility,
		Description:   upd.Description,
		TransportMode: upd.TransportMode,
		Notes:         upd.Notes,
		RecordedBy:    upd.RecordedBy,
		CreatedAt:     createdAt,
	}
	err = tx.QueryRow(ctx, `
INSERT INTO shipment_events (
  shipment_id, status, location, city, country, latitude, longitude,
  facility, description, transport_mode, notes, recorded_by, created_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
RETURNING id
`, ev.ShipmentID, ev.Status, ev.Location, ev.City, ev.Country, ev.Latitude, ev.Longitude,
		ev.Facility, ev.Description, ev.TransportMode, ev.Notes, ev.RecordedBy, ev.CreatedAt).Scan(&ev.ID)
	if err != nil {
		return nil, nil, errors.Wrap(err, "insert shipment event")
	}

	deliveredAt := createdAt
	if upd.ActualDeliveryDate != nil {
		deliveredAt = upd.ActualDeliveryDate.UTC()
	}

	sh, err := scanShipment(tx.QueryRow(ctx, `
UPDATE shipments
SET
  status = $2,
  current_location = $3,
  latitude = $4,
  longitude = $5,
  last_location_update = $6,
  estimated_delivery_date = COALESCE($7, estimated_delivery_date),
  actual_delivery_date = CASE
    WHEN $2 = $8 THEN COALESCE(actual_delivery_date, $9)
    ELSE actual_delivery_date
  END,
  updated_at = now()
WHERE id = $1
RETURNING`+shipmentColumns+`
`, upd.ShipmentID, upd.Status, upd.Location, upd.Latitude, upd.Longitude,
		createdAt, upd.EstimatedDeliveryDate, models.ShipmentStatusDelivered, deliveredAt))
	if err != nil {
		return nil, nil, errors.Wrap(err, "update shipment projection")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, errors.Wrap(err, "commit tx")
	}
	return sh, &ev, nil
}

// ListShipmentEvents returns the shipment's history oldest first.
func (s *Storage) ListShipmentEvents(ctx context.Context, shipmentID uint64, limit, offset int) ([]*models.ShipmentEvent, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.db.Query(ctx, `
SELECT
  id, shipment_id, status, location, city, country, latitude, longitude,
  facility, description, transport_mode, notes, recorded_by, created_at
FROM shipment_events
WHERE shipment_id = $1
ORDER BY created_at ASC, id ASC
LIMIT $2 OFFSET $3
`, shipmentID, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "select events")
	}
	defer rows.Close()

	var out []*models.ShipmentEvent
	for rows.Next() {
		var e models.ShipmentEvent
		if err := rows.Scan(
			&e.ID, &e.ShipmentID, &e.Status, &e.Location, &e.City, &e.Country,
			&e.Latitude, &e.Longitude, &e.Facility, &e.Description,
			&e.TransportMode, &e.Notes, &e.RecordedBy, &e.CreatedAt,
		); err != nil {
			return nil, errors.Wrap(err, "scan event")
		}
		out = append(out, &e)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}
