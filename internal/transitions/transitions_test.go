package transitions

import (
	"testing"

	"github.com/BearBump/ShipStream/internal/models"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestValidate_ForwardPipeline(t *testing.T) {
	legal := [][2]string{
		{models.ShipmentStatusPending, models.ShipmentStatusProcessing},
		{models.ShipmentStatusProcessing, models.ShipmentStatusPickedUp},
		{models.ShipmentStatusPickedUp, models.ShipmentStatusInTransit},
		{models.ShipmentStatusInTransit, models.ShipmentStatusInCustoms},
		{models.ShipmentStatusInCustoms, models.ShipmentStatusCustomsCleared},
		{models.ShipmentStatusCustomsCleared, models.ShipmentStatusArrivedAtFacility},
		{models.ShipmentStatusArrivedAtFacility, models.ShipmentStatusOutForDelivery},
		{models.ShipmentStatusOutForDelivery, models.ShipmentStatusDelivered},
	}
	for _, p := range legal {
		require.NoError(t, Validate(p[0], p[1]), "%s -> %s", p[0], p[1])
	}
}

func TestValidate_TerminalStatusesAbsorb(t *testing.T) {
	terminals := []string{
		models.ShipmentStatusDelivered,
		models.ShipmentStatusReturned,
		models.ShipmentStatusCancelled,
	}
	for _, from := range terminals {
		for to := range successors {
			err := Validate(from, to)
			require.Error(t, err, "%s -> %s must be rejected", from, to)

			var te *TransitionError
			require.True(t, errors.As(err, &te))
			require.Equal(t, from, te.From)
			require.Equal(t, to, te.To)
		}
	}
}

func TestValidate_SideStatesRecover(t *testing.T) {
	require.NoError(t, Validate(models.ShipmentStatusOnHold, models.ShipmentStatusInTransit))
	require.NoError(t, Validate(models.ShipmentStatusDeliveryAttempted, models.ShipmentStatusOutForDelivery))
	require.NoError(t, Validate(models.ShipmentStatusInTransit, models.ShipmentStatusOnHold))
	require.NoError(t, Validate(models.ShipmentStatusOutForDelivery, models.ShipmentStatusDeliveryAttempted))
}

func TestValidate_BackwardRejected(t *testing.T) {
	err := Validate(models.ShipmentStatusOutForDelivery, models.ShipmentStatusPickedUp)
	require.Error(t, err)

	err = Validate(models.ShipmentStatusInCustoms, models.ShipmentStatusPending)
	require.Error(t, err)
}

func TestValidate_FirstEvent(t *testing.T) {
	require.NoError(t, Validate("", models.ShipmentStatusPending))
	require.NoError(t, Validate("", models.ShipmentStatusPickedUp))
	require.NoError(t, Validate("", models.ShipmentStatusCancelled))

	require.Error(t, Validate("", models.ShipmentStatusDelivered))
	require.Error(t, Validate("", models.ShipmentStatusReturned))
}

func TestValidate_SameStatusIsMovementUpdate(t *testing.T) {
	require.NoError(t, Validate(models.ShipmentStatusInTransit, models.ShipmentStatusInTransit))
	require.Error(t, Validate(models.ShipmentStatusDelivered, models.ShipmentStatusDelivered))
}

func TestValidate_UnknownStatus(t *testing.T) {
	err := Validate(models.ShipmentStatusPending, "TELEPORTED")
	require.Error(t, err)

	var te *TransitionError
	require.True(t, errors.As(err, &te))
	require.Equal(t, "TELEPORTED", te.To)
}

func TestTransitionError_Message(t *testing.T) {
	e := &TransitionError{From: "", To: models.ShipmentStatusDelivered}
	require.Contains(t, e.Error(), "(none)")
	require.Contains(t, e.Error(), "DELIVERED")
}
