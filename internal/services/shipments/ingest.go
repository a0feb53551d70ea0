package shipments

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/BearBump/ShipStream/internal/broker/messages"
	"github.com/BearBump/ShipStream/internal/models"
	"github.com/BearBump/ShipStream/internal/services/sidefx"
	"github.com/BearBump/ShipStream/internal/storage/pgshipping"
	"github.com/BearBump/ShipStream/internal/transitions"
	"github.com/pkg/errors"
)

type IngestInput struct {
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

// IngestEvent runs one operator event through the pipeline:
// validated -> persisted -> cache-invalidated -> notified -> fanned-out.
// Persistence is strict: any failure there fails the whole request with no
// partial write. Everything after the commit is best effort; failures are
// logged by the side-effect runner and the caller still gets success,
// because durable state is already correct.
func (s *Service) IngestEvent(ctx context.Context, in IngestInput) (*models.Shipment, *models.ShipmentEvent, error) {
	if in.ShipmentID == 0 {
		return nil, nil, validationErrorf("shipmentId is required")
	}
	if in.Status == "" {
		return nil, nil, validationErrorf("status is required")
	}
	if !transitions.Known(in.Status) {
		return nil, nil, validationErrorf("unknown status %q", in.Status)
	}
	if in.Location == nil || *in.Location == "" {
		return nil, nil, validationErrorf("location is required")
	}

	sctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	sh, ev, err := s.repo.ApplyStatusUpdate(sctx, pgshipping.StatusUpdate{
		ShipmentID:            in.ShipmentID,
		Status:                in.Status,
		Location:              in.Location,
		City:                  in.City,
		Country:               in.Country,
		Latitude:              in.Latitude,
		Longitude:             in.Longitude,
		Facility:              in.Facility,
		Description:           in.Description,
		TransportMode:         in.TransportMode,
		Notes:                 in.Notes,
		RecordedBy:            in.RecordedBy,
		EstimatedDeliveryDate: in.EstimatedDeliveryDate,
		ActualDeliveryDate:    in.ActualDeliveryDate,
	})
	if err != nil {
		return nil, nil, err
	}

	s.fx.Dispatch(ctx, s.postCommitTasks(sh, ev)...)

	return sh, ev, nil
}

// postCommitTasks builds the best-effort tail of the pipeline. Cache
// invalidation goes first so a subscriber who re-fetches after the fan-out
// observes fresh data with high probability.
func (s *Service) postCommitTasks(sh *models.Shipment, ev *models.ShipmentEvent) []sidefx.Task {
	payload, err := json.Marshal(messages.ShipmentUpdated{
		ShipmentID:     sh.ID,
		TrackingNumber: sh.TrackingNumber,
		UserID:         sh.UserID,
		Status:         ev.Status,
		Location:       ev.Location,
		City:           ev.City,
		Country:        ev.Country,
		EventID:        ev.ID,
		EventTime:      ev.CreatedAt,
	})
	if err != nil {
		slog.Error("marshal shipment update", "shipment_id", sh.ID, "error", err.Error())
	}

	location := ""
	if ev.Location != nil {
		location = *ev.Location
	}

	tasks := []sidefx.Task{
		{
			Name: "cache-invalidate",
			Run: func(ctx context.Context) error {
				if s.cache == nil {
					return nil
				}
				return s.cache.Del(ctx,
					snapshotKey(sh.TrackingNumber, ViewerPublic),
					snapshotKey(sh.TrackingNumber, ViewerAuthenticated),
				)
			},
		},
		{
			Name: "notify",
			Run: func(ctx context.Context) error {
				return s.repo.InsertNotification(ctx, &models.Notification{
					UserID:  sh.UserID,
					Type:    notificationTypeShipmentUpdate,
					Title:   notificationTitle(ev.Status),
					Message: notificationMessage(ev.Status, sh.TrackingNumber, location),
				})
			},
		},
		{
			Name: "fanout-tracking",
			Run: func(ctx context.Context) error {
				if s.fanout == nil {
					return nil
				}
				return s.fanout.PublishTracking(ctx, sh.TrackingNumber, payload)
			},
		},
		{
			Name: "fanout-user",
			Run: func(ctx context.Context) error {
				if s.fanout == nil {
					return nil
				}
				return s.fanout.PublishUserShipments(ctx, sh.UserID, payload)
			},
		},
	}

	if s.feed != nil && s.feedTopic != "" {
		tasks = append(tasks, sidefx.Task{
			Name: "update-feed",
			Run: func(ctx context.Context) error {
				key := []byte(fmt.Sprintf("%d", sh.ID))
				return s.feed.Publish(ctx, s.feedTopic, key, payload)
			},
		})
	}

	return tasks
}

// ApplyBrokerEvent applies one message from the operator-surface kafka
// topic. Bad messages (unknown shipment, schema or transition violations)
// are dropped with a warning so they do not wedge the consumer; only
// infrastructure errors propagate and halt consumption.
func (s *Service) ApplyBrokerEvent(ctx context.Context, msg messages.ShipmentEventReceived) error {
	_, _, err := s.IngestEvent(ctx, IngestInput{
		ShipmentID:            msg.ShipmentID,
		Status:                msg.Status,
		Location:              msg.Location,
		City:                  msg.City,
		Country:               msg.Country,
		Latitude:              msg.Latitude,
		Longitude:             msg.Longitude,
		Facility:              msg.Facility,
		Description:           msg.Description,
		TransportMode:         msg.TransportMode,
		Notes:                 msg.Notes,
		RecordedBy:            msg.RecordedBy,
		EstimatedDeliveryDate: msg.EstimatedDeliveryDate,
		ActualDeliveryDate:    msg.ActualDeliveryDate,
	})
	if err == nil {
		return nil
	}

	var ve *ValidationError
	var te *transitions.TransitionError
	if errors.As(err, &ve) || errors.As(err, &te) || errors.Is(err, pgshipping.ErrShipmentNotFound) {
		slog.Warn("dropping shipment event", "shipment_id", msg.ShipmentID, "status", msg.Status, "error", err.Error())
		return nil
	}
	return err
}
