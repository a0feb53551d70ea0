package models

import "time"

// Shipment statuses. Terminal: DELIVERED, RETURNED, CANCELLED.
const (
	ShipmentStatusPending           = "PENDING"
	ShipmentStatusProcessing        = "PROCESSING"
	ShipmentStatusOnHold            = "ON_HOLD"
	ShipmentStatusPickedUp          = "PICKED_UP"
	ShipmentStatusInTransit         = "IN_TRANSIT"
	ShipmentStatusInCustoms         = "IN_CUSTOMS"
	ShipmentStatusCustomsCleared    = "CUSTOMS_CLEARED"
	ShipmentStatusArrivedAtFacility = "ARRIVED_AT_FACILITY"
	ShipmentStatusOutForDelivery    = "OUT_FOR_DELIVERY"
	ShipmentStatusDeliveryAttempted = "DELIVERY_ATTEMPTED"
	ShipmentStatusDelivered         = "DELIVERED"
	ShipmentStatusReturned          = "RETURNED"
	ShipmentStatusCancelled         = "CANCELLED"
)

// Shipment is the mutable "current state" projection. Status always mirrors
// the most recent ShipmentEvent; it is mutated only inside the same
// transaction that appends the event.
type Shipment struct {
	ID             uint64
	TrackingNumber string
	UserID         uint64

	Status string

	SenderName       string
	RecipientName    string
	RecipientAddress string

	PackageDescription *string
	WeightKG           *float64
	ShippingCost       *float64

	CurrentLocation *string
	Latitude        *float64
	Longitude       *float64

	EstimatedDeliveryDate *time.Time
	ActualDeliveryDate    *time.Time
	LastLocationUpdate    *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ShipmentEvent is append-only: never mutated or deleted once written.
// CreatedAt is assigned by the writer and is non-decreasing per shipment.
type ShipmentEvent struct {
	ID         uint64
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

	CreatedAt time.Time
}

// Notification is one per-user inbox entry.
type Notification struct {
	ID        uint64
	UserID    uint64
	Type      string
	Title     string
	Message   string
	IsRead    bool
	CreatedAt time.Time
}

type ShipmentCreateInput struct {
	TrackingNumber   string
	UserID           uint64
	SenderName       string
	RecipientName    string
	RecipientAddress string

	PackageDescription *string
	WeightKG           *float64
	ShippingCost       *float64

	EstimatedDeliveryDate *time.Time
}
