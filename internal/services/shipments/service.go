package shipments

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/BearBump/ShipStream/internal/models"
	"github.com/BearBump/ShipStream/internal/services/sidefx"
	"github.com/BearBump/ShipStream/internal/storage/pgshipping"
	"github.com/pkg/errors"
)

// ViewerClass partitions the snapshot cache between public and
// authenticated readers. Both currently see the same field set; the
// partition exists so field redaction can be added later without a
// cache-key migration.
type ViewerClass string

const (
	ViewerPublic        ViewerClass = "public"
	ViewerAuthenticated ViewerClass = "authenticated"
)

type Repository interface {
	CreateShipments(ctx context.Context, items []models.ShipmentCreateInput) ([]*models.Shipment, error)
	GetShipmentByID(ctx context.Context, id uint64) (*models.Shipment, error)
	GetShipmentByTrackingNumber(ctx context.Context, trackingNumber string) (*models.Shipment, error)
	ListShipmentEvents(ctx context.Context, shipmentID uint64, limit, offset int) ([]*models.ShipmentEvent, error)
	ApplyStatusUpdate(ctx context.Context, upd pgshipping.StatusUpdate) (*models.Shipment, *models.ShipmentEvent, error)
	InsertNotification(ctx context.Context, n *models.Notification) error
	ListNotifications(ctx context.Context, userID uint64, limit, offset int) ([]*models.Notification, error)
	MarkNotificationsRead(ctx context.Context, userID uint64) error
}

type BytesCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

type FanOut interface {
	PublishTracking(ctx context.Context, trackingNumber string, payload []byte) error
	PublishUserShipments(ctx context.Context, userID uint64, payload []byte) error
}

type FeedProducer interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

type Service struct {
	repo   Repository
	cache  BytesCache
	fanout FanOut
	fx     *sidefx.Runner

	feed      FeedProducer
	feedTopic string

	snapshotTTL  time.Duration
	cacheTimeout time.Duration
	storeTimeout time.Duration
}

func New(repo Repository, cache BytesCache, fanout FanOut, fx *sidefx.Runner, snapshotTTL time.Duration) *Service {
	return &Service{
		repo:         repo,
		cache:        cache,
		fanout:       fanout,
		fx:           fx,
		snapshotTTL:  snapshotTTL,
		cacheTimeout: 500 * time.Millisecond,
		storeTimeout: 5 * time.Second,
	}
}

func (s *Service) WithCacheTimeout(d time.Duration) *Service {
	if d > 0 {
		s.cacheTimeout = d
	}
	return s
}

// WithStoreTimeout bounds the projection-update transaction. A hung
// database fails the ingest cleanly instead of wedging it; this matters
// most on the kafka path, where no HTTP client timeout would save us.
func (s *Service) WithStoreTimeout(d time.Duration) *Service {
	if d > 0 {
		s.storeTimeout = d
	}
	return s
}

// WithUpdateFeed enables the durable downstream feed: every successful
// ingest is also published, best effort, to the given kafka topic.
func (s *Service) WithUpdateFeed(p FeedProducer, topic string) *Service {
	s.feed = p
	s.feedTopic = topic
	return s
}

// Snapshot is the Read API response payload: current projection fields
// plus the full history, oldest first. It is also what gets cached.
type Snapshot struct {
	Shipment SnapshotShipment `json:"shipment"`
	Events   []SnapshotEvent  `json:"events"`
}

type SnapshotShipment struct {
	TrackingNumber string `json:"trackingNumber"`
	Status         string `json:"status"`

	SenderName       string `json:"senderName"`
	RecipientName    string `json:"recipientName"`
	RecipientAddress string `json:"recipientAddress"`

	PackageDescription *string  `json:"packageDescription,omitempty"`
	WeightKG           *float64 `json:"weightKg,omitempty"`
	ShippingCost       *float64 `json:"shippingCost,omitempty"`

	CurrentLocation *string  `json:"currentLocation,omitempty"`
	Latitude        *float64 `json:"latitude,omitempty"`
	Longitude       *float64 `json:"longitude,omitempty"`

	EstimatedDeliveryDate *time.Time `json:"estimatedDeliveryDate,omitempty"`
	ActualDeliveryDate    *time.Time `json:"actualDeliveryDate,omitempty"`
	LastLocationUpdate    *time.Time `json:"lastLocationUpdate,omitempty"`
}

type SnapshotEvent struct {
	Status        string    `json:"status"`
	Location      *string   `json:"location,omitempty"`
	City          *string   `json:"city,omitempty"`
	Country       *string   `json:"country,omitempty"`
	Facility      *string   `json:"facility,omitempty"`
	Description   *string   `json:"description,omitempty"`
	TransportMode *string   `json:"transportMode,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

func snapshotKey(trackingNumber string, vc ViewerClass) string {
	return fmt.Sprintf("shipment:%s:%s:snapshot", trackingNumber, vc)
}

// TrackByNumber serves the read path: cache first, then store + event log,
// then a best-effort cache fill. A broken cache degrades latency, never
// correctness. Unknown tracking numbers write nothing to the cache.
func (s *Service) TrackByNumber(ctx context.Context, trackingNumber string, vc ViewerClass) (*Snapshot, error) {
	if trackingNumber == "" {
		return nil, validationErrorf("trackingNumber is required")
	}
	if vc != ViewerAuthenticated {
		vc = ViewerPublic
	}

	if s.cacheEnabled() {
		cctx, cancel := context.WithTimeout(ctx, s.cacheTimeout)
		b, ok, err := s.cache.Get(cctx, snapshotKey(trackingNumber, vc))
		cancel()
		if err == nil && ok {
			var snap Snapshot
			if json.Unmarshal(b, &snap) == nil {
				return &snap, nil
			}
		}
	}

	sh, err := s.repo.GetShipmentByTrackingNumber(ctx, trackingNumber)
	if err != nil {
		return nil, err
	}
	evs, err := s.repo.ListShipmentEvents(ctx, sh.ID, 500, 0)
	if err != nil {
		return nil, err
	}

	snap := buildSnapshot(sh, evs)

	if s.cacheEnabled() {
		if b, err := json.Marshal(snap); err == nil {
			cctx, cancel := context.WithTimeout(ctx, s.cacheTimeout)
			_ = s.cache.Set(cctx, snapshotKey(trackingNumber, vc), b, s.snapshotTTL)
			cancel()
		}
	}

	return snap, nil
}

func (s *Service) cacheEnabled() bool {
	return s.cache != nil && s.snapshotTTL > 0
}

func buildSnapshot(sh *models.Shipment, evs []*models.ShipmentEvent) *Snapshot {
	snap := &Snapshot{
		Shipment: SnapshotShipment{
			TrackingNumber:        sh.TrackingNumber,
			Status:                sh.Status,
			SenderName:            sh.SenderName,
			RecipientName:         sh.RecipientName,
			RecipientAddress:      sh.RecipientAddress,
			PackageDescription:    sh.PackageDescription,
			WeightKG:              sh.WeightKG,
			ShippingCost:          sh.ShippingCost,
			CurrentLocation:       sh.CurrentLocation,
			Latitude:              sh.Latitude,
			Longitude:             sh.Longitude,
			EstimatedDeliveryDate: sh.EstimatedDeliveryDate,
			ActualDeliveryDate:    sh.ActualDeliveryDate,
			LastLocationUpdate:    sh.LastLocationUpdate,
		},
		Events: make([]SnapshotEvent, 0, len(evs)),
	}
	for _, e := range evs {
		snap.Events = append(snap.Events, SnapshotEvent{
			Status:        e.Status,
			Location:      e.Location,
			City:          e.City,
			Country:       e.Country,
			Facility:      e.Facility,
			Description:   e.Description,
			TransportMode: e.TransportMode,
			Timestamp:     e.CreatedAt,
		})
	}
	return snap
}

func (s *Service) CreateShipments(ctx context.Context, items []models.ShipmentCreateInput) ([]*models.Shipment, error) {
	if len(items) == 0 {
		return nil, validationErrorf("items is empty")
	}
	if len(items) > 1_000 {
		return nil, validationErrorf("too many items (max 1000)")
	}

	clean := make([]models.ShipmentCreateInput, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, it := range items {
		if it.TrackingNumber == "" {
			return nil, validationErrorf("trackingNumber is required")
		}
		if it.UserID == 0 {
			return nil, validationErrorf("userId is required")
		}
		if _, ok := seen[it.TrackingNumber]; ok {
			continue
		}
		seen[it.TrackingNumber] = struct{}{}
		clean = append(clean, it)
	}

	created, err := s.repo.CreateShipments(ctx, clean)
	return created, errors.Wrap(err, "create shipments")
}

func (s *Service) ListNotifications(ctx context.Context, userID uint64, limit, offset int) ([]*models.Notification, error) {
	if userID == 0 {
		return nil, validationErrorf("userId is required")
	}
	return s.repo.ListNotifications(ctx, userID, limit, offset)
}

func (s *Service) MarkNotificationsRead(ctx context.Context, userID uint64) error {
	if userID == 0 {
		return validationErrorf("userId is required")
	}
	return s.repo.MarkNotificationsRead(ctx, userID)
}
