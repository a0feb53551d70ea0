package transitions

import (
	"fmt"

	"github.com/BearBump/ShipStream/internal/models"
)

// TransitionError reports the exact rejected from/to pair so the ingest
// surface can tell the operator which transition was illegal.
type TransitionError struct {
	From string
	To   string
}

func (e *TransitionError) Error() string {
	from := e.From
	if from == "" {
		from = "(none)"
	}
	return fmt.Sprintf("illegal status transition %s -> %s", from, e.To)
}

// successors is the forward-progressing pipeline
// (pickup -> transit -> customs -> facility -> delivery) with ON_HOLD and
// DELIVERY_ATTEMPTED as recoverable side-states. Terminal statuses have no
// successors.
var successors = map[string][]string{
	models.ShipmentStatusPending: {
		models.ShipmentStatusProcessing,
		models.ShipmentStatusOnHold,
		models.ShipmentStatusPickedUp,
		models.ShipmentStatusCancelled,
	},
	models.ShipmentStatusProcessing: {
		models.ShipmentStatusOnHold,
		models.ShipmentStatusPickedUp,
		models.ShipmentStatusCancelled,
	},
	models.ShipmentStatusOnHold: {
		models.ShipmentStatusProcessing,
		models.ShipmentStatusPickedUp,
		models.ShipmentStatusInTransit,
		models.ShipmentStatusReturned,
		models.ShipmentStatusCancelled,
	},
	models.ShipmentStatusPickedUp: {
		models.ShipmentStatusInTransit,
		models.ShipmentStatusArrivedAtFacility,
		models.ShipmentStatusOnHold,
		models.ShipmentStatusCancelled,
	},
	models.ShipmentStatusInTransit: {
		models.ShipmentStatusInCustoms,
		models.ShipmentStatusArrivedAtFacility,
		models.ShipmentStatusOutForDelivery,
		models.ShipmentStatusOnHold,
		models.ShipmentStatusReturned,
		models.ShipmentStatusCancelled,
	},
	models.ShipmentStatusInCustoms: {
		models.ShipmentStatusCustomsCleared,
		models.ShipmentStatusOnHold,
		models.ShipmentStatusReturned,
	},
	models.ShipmentStatusCustomsCleared: {
		models.ShipmentStatusInTransit,
		models.ShipmentStatusArrivedAtFacility,
	},
	models.ShipmentStatusArrivedAtFacility: {
		models.ShipmentStatusInTransit,
		models.ShipmentStatusOutForDelivery,
		models.ShipmentStatusOnHold,
	},
	models.ShipmentStatusOutForDelivery: {
		models.ShipmentStatusDelivered,
		models.ShipmentStatusDeliveryAttempted,
		models.ShipmentStatusReturned,
	},
	models.ShipmentStatusDeliveryAttempted: {
		models.ShipmentStatusOutForDelivery,
		models.ShipmentStatusArrivedAtFacility,
		models.ShipmentStatusOnHold,
		models.ShipmentStatusReturned,
	},
	models.ShipmentStatusDelivered: {},
	models.ShipmentStatusReturned:  {},
	models.ShipmentStatusCancelled: {},
}

func Known(status string) bool {
	_, ok := successors[status]
	return ok
}

func IsTerminal(status string) bool {
	switch status {
	case models.ShipmentStatusDelivered, models.ShipmentStatusReturned, models.ShipmentStatusCancelled:
		return true
	}
	return false
}

// Validate is pure: it gates which statuses may follow the current one.
// An empty from means the shipment has no events yet; any non-terminal
// status (plus CANCELLED, for bookings cancelled before pickup) may open
// the history. A repeated non-terminal status is legal and is treated by
// callers as a movement update that re-affirms the status.
func Validate(from, to string) error {
	if !Known(to) {
		return &TransitionError{From: from, To: to}
	}

	if from == "" {
		if IsTerminal(to) && to != models.ShipmentStatusCancelled {
			return &TransitionError{From: from, To: to}
		}
		return nil
	}

	if IsTerminal(from) {
		return &TransitionError{From: from, To: to}
	}

	if from == to {
		return nil
	}

	for _, s := range successors[from] {
		if s == to {
			return nil
		}
	}
	return &TransitionError{From: from, To: to}
}
