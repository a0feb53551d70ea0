package shipments

import (
	"fmt"

	"github.com/BearBump/ShipStream/internal/models"
)

const notificationTypeShipmentUpdate = "shipment_update"

var statusTitles = map[string]string{
	models.ShipmentStatusPending:           "Shipment registered",
	models.ShipmentStatusProcessing:        "Shipment processing",
	models.ShipmentStatusOnHold:            "Shipment on hold",
	models.ShipmentStatusPickedUp:          "Shipment picked up",
	models.ShipmentStatusInTransit:         "Shipment in transit",
	models.ShipmentStatusInCustoms:         "Shipment in customs",
	models.ShipmentStatusCustomsCleared:    "Customs cleared",
	models.ShipmentStatusArrivedAtFacility: "Arrived at facility",
	models.ShipmentStatusOutForDelivery:    "Out for delivery",
	models.ShipmentStatusDeliveryAttempted: "Delivery attempted",
	models.ShipmentStatusDelivered:         "Shipment delivered",
	models.ShipmentStatusReturned:          "Shipment returned",
	models.ShipmentStatusCancelled:         "Shipment cancelled",
}

var statusMessages = map[string]string{
	models.ShipmentStatusPending:           "Shipment %s has been registered and is awaiting processing%s.",
	models.ShipmentStatusProcessing:        "Shipment %s is being prepared for pickup%s.",
	models.ShipmentStatusOnHold:            "Shipment %s has been placed on hold%s.",
	models.ShipmentStatusPickedUp:          "Shipment %s was picked up%s.",
	models.ShipmentStatusInTransit:         "Shipment %s is in transit%s.",
	models.ShipmentStatusInCustoms:         "Shipment %s is undergoing customs clearance%s.",
	models.ShipmentStatusCustomsCleared:    "Shipment %s has cleared customs%s.",
	models.ShipmentStatusArrivedAtFacility: "Shipment %s arrived at a sorting facility%s.",
	models.ShipmentStatusOutForDelivery:    "Shipment %s is out for delivery%s.",
	models.ShipmentStatusDeliveryAttempted: "A delivery attempt was made for shipment %s%s.",
	models.ShipmentStatusDelivered:         "Shipment %s has been delivered%s.",
	models.ShipmentStatusReturned:          "Shipment %s is being returned to the sender%s.",
	models.ShipmentStatusCancelled:         "Shipment %s was cancelled%s.",
}

func notificationTitle(status string) string {
	if t, ok := statusTitles[status]; ok {
		return t
	}
	return "Shipment update"
}

// notificationMessage renders the per-status template; statuses without one
// fall back to a generic "updated to X" line.
func notificationMessage(status, trackingNumber, location string) string {
	at := ""
	if location != "" {
		at = " at " + location
	}
	if tpl, ok := statusMessages[status]; ok {
		return fmt.Sprintf(tpl, trackingNumber, at)
	}
	return fmt.Sprintf("Shipment %s status updated to %s%s.", trackingNumber, status, at)
}
