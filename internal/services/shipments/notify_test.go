package shipments

import (
	"testing"

	"github.com/BearBump/ShipStream/internal/models"
	"github.com/stretchr/testify/require"
)

func TestNotificationTitle(t *testing.T) {
	require.Equal(t, "Shipment delivered", notificationTitle(models.ShipmentStatusDelivered))
	require.Equal(t, "Out for delivery", notificationTitle(models.ShipmentStatusOutForDelivery))
	require.Equal(t, "Shipment update", notificationTitle("SOMETHING_NEW"))
}

func TestNotificationMessage(t *testing.T) {
	require.Equal(t,
		"Shipment SS-1 has been delivered at Oslo.",
		notificationMessage(models.ShipmentStatusDelivered, "SS-1", "Oslo"))

	require.Equal(t,
		"Shipment SS-1 has been delivered.",
		notificationMessage(models.ShipmentStatusDelivered, "SS-1", ""))

	require.Equal(t,
		"A delivery attempt was made for shipment SS-1 at Oslo.",
		notificationMessage(models.ShipmentStatusDeliveryAttempted, "SS-1", "Oslo"))

	// Statuses without a template fall back to the generic line.
	require.Equal(t,
		"Shipment SS-1 status updated to SOMETHING_NEW at Oslo.",
		notificationMessage("SOMETHING_NEW", "SS-1", "Oslo"))
}

func TestEveryStatusHasTemplates(t *testing.T) {
	for _, st := range []string{
		models.ShipmentStatusPending,
		models.ShipmentStatusProcessing,
		models.ShipmentStatusOnHold,
		models.ShipmentStatusPickedUp,
		models.ShipmentStatusInTransit,
		models.ShipmentStatusInCustoms,
		models.ShipmentStatusCustomsCleared,
		models.ShipmentStatusArrivedAtFacility,
		models.ShipmentStatusOutForDelivery,
		models.ShipmentStatusDeliveryAttempted,
		models.ShipmentStatusDelivered,
		models.ShipmentStatusReturned,
		models.ShipmentStatusCancelled,
	} {
		require.Contains(t, statusTitles, st)
		require.Contains(t, statusMessages, st)
	}
}
