package pgshipping

import (
	"context"
	"testing"
	"time"

	"github.com/BearBump/ShipStream/internal/models"
	"github.com/BearBump/ShipStream/internal/transitions"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:15-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "admin",
			"POSTGRES_PASSWORD": "admin",
			"POSTGRES_DB":       "shipstream_test",
		},
		WaitingFor: wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	pgC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgC.Terminate(ctx) })

	host, err := pgC.Host(ctx)
	require.NoError(t, err)
	port, err := pgC.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	dsn := "postgres://admin:admin@" + host + ":" + port.Port() + "/shipstream_test?sslmode=disable"
	st, err := New(dsn)
	require.NoError(t, err)
	t.Cleanup(st.Close)
	return st
}

func strPtr(s string) *string { return &s }

func TestPGShipping_RepoFlow(t *testing.T) {
	st := newTestStorage(t)
	ctx := context.Background()

	created, err := st.CreateShipments(ctx, []models.ShipmentCreateInput{
		{TrackingNumber: "SS-1001", UserID: 7, SenderName: "Acme", RecipientName: "Bob", RecipientAddress: "1 Main St"},
		{TrackingNumber: "SS-1002", UserID: 7, SenderName: "Acme", RecipientName: "Eve", RecipientAddress: "2 Main St"},
	})
	require.NoError(t, err)
	require.Len(t, created, 2)
	require.NotZero(t, created[0].ID)
	require.Equal(t, models.ShipmentStatusPending, created[0].Status)

	// Booking is idempotent on tracking number.
	again, err := st.CreateShipments(ctx, []models.ShipmentCreateInput{
		{TrackingNumber: "SS-1001", UserID: 7, SenderName: "Acme", RecipientName: "Bob", RecipientAddress: "1 Main St"},
	})
	require.NoError(t, err)
	require.Len(t, again, 1)
	require.Equal(t, created[0].ID, again[0].ID)

	byTN, err := st.GetShipmentByTrackingNumber(ctx, "SS-1001")
	require.NoError(t, err)
	require.Equal(t, created[0].ID, byTN.ID)

	_, err = st.GetShipmentByTrackingNumber(ctx, "SS-DOES-NOT-EXIST")
	require.ErrorIs(t, err, ErrShipmentNotFound)
}

func TestPGShipping_ApplyStatusUpdate_FirstEvent(t *testing.T) {
	st := newTestStorage(t)
	ctx := context.Background()

	created, err := st.CreateShipments(ctx, []models.ShipmentCreateInput{
		{TrackingNumber: "SS-2001", UserID: 1, SenderName: "A", RecipientName: "B", RecipientAddress: "C"},
	})
	require.NoError(t, err)
	id := created[0].ID

	sh, ev, err := st.ApplyStatusUpdate(ctx, StatusUpdate{
		ShipmentID: id,
		Status:     models.ShipmentStatusPickedUp,
		Location:   strPtr("NYC"),
		City:       strPtr("New York"),
		Country:    strPtr("US"),
		RecordedBy: strPtr("op-1"),
	})
	require.NoError(t, err)
	require.Equal(t, models.ShipmentStatusPickedUp, sh.Status)
	require.NotNil(t, sh.CurrentLocation)
	require.Equal(t, "NYC", *sh.CurrentLocation)
	require.NotNil(t, sh.LastLocationUpdate)
	require.NotZero(t, ev.ID)
	require.Equal(t, models.ShipmentStatusPickedUp, ev.Status)

	evs, err := st.ListShipmentEvents(ctx, id, 10, 0)
	require.NoError(t, err)
	require.Len(t, evs, 1)
	require.Equal(t, sh.Status, evs[0].Status)
}

func TestPGShipping_ApplyStatusUpdate_DeliveredSetsActualDate(t *testing.T) {
	st := newTestStorage(t)
	ctx := context.Background()

	created, err := st.CreateShipments(ctx, []models.ShipmentCreateInput{
		{TrackingNumber: "SS-2002", UserID: 1, SenderName: "A", RecipientName: "B", RecipientAddress: "C"},
	})
	require.NoError(t, err)
	id := created[0].ID

	steps := []string{
		models.ShipmentStatusPickedUp,
		models.ShipmentStatusInTransit,
		models.ShipmentStatusOutForDelivery,
	}
	for _, status := range steps {
		_, _, err := st.ApplyStatusUpdate(ctx, StatusUpdate{ShipmentID: id, Status: status, Location: strPtr("NYC")})
		require.NoError(t, err)
	}

	before := time.Now().UTC()
	sh, _, err := st.ApplyStatusUpdate(ctx, StatusUpdate{
		ShipmentID: id,
		Status:     models.ShipmentStatusDelivered,
		Location:   strPtr("Front door"),
	})
	require.NoError(t, err)
	require.Equal(t, models.ShipmentStatusDelivered, sh.Status)
	require.NotNil(t, sh.ActualDeliveryDate)
	require.WithinDuration(t, before, *sh.ActualDeliveryDate, 5*time.Second)

	// Projection matches the last committed event; timestamps never regress.
	evs, err := st.ListShipmentEvents(ctx, id, 10, 0)
	require.NoError(t, err)
	require.Len(t, evs, 4)
	require.Equal(t, sh.Status, evs[len(evs)-1].Status)
	for i := 1; i < len(evs); i++ {
		require.False(t, evs[i].CreatedAt.Before(evs[i-1].CreatedAt))
	}
}

func TestPGShipping_ApplyStatusUpdate_TerminalRejected(t *testing.T) {
	st := newTestStorage(t)
	ctx := context.Background()

	created, err := st.CreateShipments(ctx, []models.ShipmentCreateInput{
		{TrackingNumber: "SS-2003", UserID: 1, SenderName: "A", RecipientName: "B", RecipientAddress: "C"},
	})
	require.NoError(t, err)
	id := created[0].ID

	for _, status := range []string{
		models.ShipmentStatusPickedUp,
		models.ShipmentStatusInTransit,
		models.ShipmentStatusOutForDelivery,
		models.ShipmentStatusDelivered,
	} {
		_, _, err := st.ApplyStatusUpdate(ctx, StatusUpdate{ShipmentID: id, Status: status, Location: strPtr("X")})
		require.NoError(t, err)
	}

	_, _, err = st.ApplyStatusUpdate(ctx, StatusUpdate{
		ShipmentID: id,
		Status:     models.ShipmentStatusInTransit,
		Location:   strPtr("back on a truck"),
	})
	require.Error(t, err)
	var te *transitions.TransitionError
	require.True(t, errors.As(err, &te))
	require.Equal(t, models.ShipmentStatusDelivered, te.From)
	require.Equal(t, models.ShipmentStatusInTransit, te.To)

	// Nothing was written.
	sh, err := st.GetShipmentByID(ctx, id)
	require.NoError(t, err)
	require.Equal(t, models.ShipmentStatusDelivered, sh.Status)
	evs, err := st.ListShipmentEvents(ctx, id, 10, 0)
	require.NoError(t, err)
	require.Len(t, evs, 4)
}

func TestPGShipping_ApplyStatusUpdate_UnknownShipment(t *testing.T) {
	st := newTestStorage(t)

	_, _, err := st.ApplyStatusUpdate(context.Background(), StatusUpdate{
		ShipmentID: 999999,
		Status:     models.ShipmentStatusPickedUp,
	})
	require.ErrorIs(t, err, ErrShipmentNotFound)
}

func TestPGShipping_EstimatedDateOverride_AndNotifications(t *testing.T) {
	st := newTestStorage(t)
	ctx := context.Background()

	created, err := st.CreateShipments(ctx, []models.ShipmentCreateInput{
		{TrackingNumber: "SS-2004", UserID: 42, SenderName: "A", RecipientName: "B", RecipientAddress: "C"},
	})
	require.NoError(t, err)
	id := created[0].ID

	eta := time.Now().UTC().Add(72 * time.Hour).Truncate(time.Second)
	sh, _, err := st.ApplyStatusUpdate(ctx, StatusUpdate{
		ShipmentID:            id,
		Status:                models.ShipmentStatusPickedUp,
		Location:              strPtr("NYC"),
		EstimatedDeliveryDate: &eta,
	})
	require.NoError(t, err)
	require.NotNil(t, sh.EstimatedDeliveryDate)
	require.WithinDuration(t, eta, *sh.EstimatedDeliveryDate, time.Second)

	n := &models.Notification{UserID: 42, Type: "shipment_update", Title: "Picked up", Message: "SS-2004 picked up"}
	require.NoError(t, st.InsertNotification(ctx, n))
	require.NotZero(t, n.ID)

	list, err := st.ListNotifications(ctx, 42, 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.False(t, list[0].IsRead)

	require.NoError(t, st.MarkNotificationsRead(ctx, 42))
	list, err = st.ListNotifications(ctx, 42, 10, 0)
	require.NoError(t, err)
	require.True(t, list[0].IsRead)
}
