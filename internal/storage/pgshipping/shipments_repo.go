package pgshipping

import (
	"context"
	"time"

	"github.com/BearBump/ShipStream/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

const shipmentColumns = `
  id, tracking_number, user_id, status,
  sender_name, recipient_name, recipient_address,
  package_description, weight_kg, shipping_cost,
  current_location, latitude, longitude,
  estimated_delivery_date, actual_delivery_date, last_location_update,
  created_at, updated_at`

func scanShipment(row pgx.Row) (*models.Shipment, error) {
	var sh models.Shipment
	err := row.Scan(
		&sh.ID, &sh.TrackingNumber, &sh.UserID, &sh.Status,
		&sh.SenderName, &sh.RecipientName, &sh.RecipientAddress,
		&sh.PackageDescription, &sh.WeightKG, &sh.ShippingCost,
		&sh.CurrentLocation, &sh.Latitude, &sh.Longitude,
		&sh.EstimatedDeliveryDate, &sh.ActualDeliveryDate, &sh.LastLocationUpdate,
		&sh.CreatedAt, &sh.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &sh, nil
}

// CreateShipments books shipments, idempotently on tracking number: an
// existing row is returned untouched.
func (s *Storage) CreateShipments(ctx context.Context, items []models.ShipmentCreateInput) ([]*models.Shipment, error) {
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ids := make([]uint64, 0, len(items))
	for _, it := range items {
		var id uint64
		err := tx.QueryRow(ctx, `
INSERT INTO shipments (
  tracking_number, user_id, status,
  sender_name, recipient_name, recipient_address,
  package_description, weight_kg, shipping_cost,
  estimated_delivery_date, created_at, updated_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$11)
ON CONFLICT (tracking_number)
DO UPDATE SET updated_at = shipments.updated_at
RETURNING id
`, it.TrackingNumber, it.UserID, models.ShipmentStatusPending,
			it.SenderName, it.RecipientName, it.RecipientAddress,
			it.PackageDescription, it.WeightKG, it.ShippingCost,
			it.EstimatedDeliveryDate, now).Scan(&id)
		if err != nil {
			return nil, errors.Wrap(err, "insert shipment")
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "commit tx")
	}

	return s.GetShipmentsByIDs(ctx, ids)
}

func (s *Storage) GetShipmentsByIDs(ctx context.Context, ids []uint64) ([]*models.Shipment, error) {
	if len(ids) == 0 {
		return []*models.Shipment{}, nil
	}

	rows, err := s.db.Query(ctx, `
SELECT`+shipmentColumns+`
FROM shipments
WHERE id = ANY($1)
`, ids)
	if err != nil {
		return nil, errors.Wrap(err, "select shipments")
	}
	defer rows.Close()

	out := make([]*models.Shipment, 0, len(ids))
	for rows.Next() {
		sh, err := scanShipment(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan shipment")
		}
		out = append(out, sh)
	}

	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

func (s *Storage) GetShipmentByID(ctx context.Context, id uint64) (*models.Shipment, error) {
	sh, err := scanShipment(s.db.QueryRow(ctx, `
SELECT`+shipmentColumns+`
FROM shipments
WHERE id = $1
`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrShipmentNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "select shipment by id")
	}
	return sh, nil
}

func (s *Storage) GetShipmentByTrackingNumber(ctx context.Context, trackingNumber string) (*models.Shipment, error) {
	sh, err := scanShipment(s.db.QueryRow(ctx, `
SELECT`+shipmentColumns+`
FROM shipments
WHERE tracking_number = $1
`, trackingNumber))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrShipmentNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "select shipment by tracking number")
	}
	return sh, nil
}
