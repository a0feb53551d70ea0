package messages

import "time"

// ShipmentEventReceived is what the internal operator surface publishes to
// the shipment.events topic; ship-worker applies it through the same
// ingest path as the HTTP API.
type ShipmentEventReceived struct {
	ShipmentID uint64 `json:"shipment_id"`

	Status string `json:"status"`

	Location      *string  `json:"location,omitempty"`
	City          *string  `json:"city,omitempty"`
	Country       *string  `json:"country,omitempty"`
	Latitude      *float64 `json:"latitude,omitempty"`
	Longitude     *float64 `json:"longitude,omitempty"`
	Facility      *string  `json:"facility,omitempty"`
	Description   *string  `json:"description,omitempty"`
	TransportMode *string  `json:"transport_mode,omitempty"`
	Notes         *string  `json:"notes,omitempty"`

	RecordedBy *string `json:"recorded_by,omitempty"`

	EstimatedDeliveryDate *time.Time `json:"estimated_delivery_date,omitempty"`
	ActualDeliveryDate    *time.Time `json:"actual_delivery_date,omitempty"`
}

// ShipmentUpdated is the payload pushed to the real-time channels and, best
// effort, to the shipment.updated topic after a successful ingest.
type ShipmentUpdated struct {
	ShipmentID     uint64 `json:"shipment_id"`
	TrackingNumber string `json:"tracking_number"`
	UserID         uint64 `json:"user_id"`

	Status   string  `json:"status"`
	Location *string `json:"location,omitempty"`
	City     *string `json:"city,omitempty"`
	Country  *string `json:"country,omitempty"`

	EventID   uint64    `json:"event_id"`
	EventTime time.Time `json:"event_time"`
}
