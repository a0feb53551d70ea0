package shipments_api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/BearBump/ShipStream/internal/models"
	"github.com/BearBump/ShipStream/internal/services/shipments"
	"github.com/BearBump/ShipStream/internal/storage/pgshipping"
	"github.com/BearBump/ShipStream/internal/transitions"
	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
)

type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error)
}

type ShipmentsAPI struct {
	svc      *shipments.Service
	verifier TokenVerifier

	limiter      RateLimiter
	ingestPerMin int64
}

func New(svc *shipments.Service, verifier TokenVerifier) *ShipmentsAPI {
	return &ShipmentsAPI{svc: svc, verifier: verifier}
}

// WithRateLimiter caps operator ingest calls per minute. A broken limiter
// backend fails open: ingest availability wins over the cap.
func (a *ShipmentsAPI) WithRateLimiter(rl RateLimiter, perMinute int64) *ShipmentsAPI {
	a.limiter = rl
	a.ingestPerMin = perMinute
	return a
}

func (a *ShipmentsAPI) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/tracking/{trackingNumber}", a.handleTrack)
	r.Post("/shipments", a.handleCreateShipments)
	r.Post("/shipments/{shipmentID}/events", a.handleIngestEvent)
	r.Get("/users/{userID}/notifications", a.handleListNotifications)
	r.Post("/users/{userID}/notifications/read", a.handleMarkNotificationsRead)
	return r
}

type errorResponse struct {
	Error string `json:"error"`
	From  string `json:"from,omitempty"`
	To    string `json:"to,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorResponse{Error: msg})
}

// writeServiceError maps service errors onto status codes. Validation and
// transition violations are the caller's fault (400), unknown shipments are
// 404, everything else is a 500 with no internals leaked.
func writeServiceError(w http.ResponseWriter, err error) {
	var ve *shipments.ValidationError
	if errors.As(err, &ve) {
		writeError(w, http.StatusBadRequest, ve.Msg)
		return
	}
	var te *transitions.TransitionError
	if errors.As(err, &te) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: te.Error(), From: te.From, To: te.To})
		return
	}
	if errors.Is(err, pgshipping.ErrShipmentNotFound) {
		writeError(w, http.StatusNotFound, "shipment not found")
		return
	}
	writeError(w, http.StatusInternalServerError, "internal error")
}

type shipmentPayload struct {
	ID             uint64 `json:"id"`
	TrackingNumber string `json:"trackingNumber"`
	UserID         uint64 `json:"userId"`
	Status         string `json:"status"`

	CurrentLocation *string `json:"currentLocation,omitempty"`

	EstimatedDeliveryDate *time.Time `json:"estimatedDeliveryDate,omitempty"`
	ActualDeliveryDate    *time.Time `json:"actualDeliveryDate,omitempty"`
	LastLocationUpdate    *time.Time `json:"lastLocationUpdate,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type eventPayload struct {
	ID         uint64 `json:"id"`
	ShipmentID uint64 `json:"shipmentId"`
	Status     string `json:"status"`

	Location      *string  `json:"location,omitempty"`
	City          *string  `json:"city,omitempty"`
	Country       *string  `json:"country,omitempty"`
	Latitude      *float64 `json:"latitude,omitempty"`
	Longitude     *float64 `json:"longitude,omitempty"`
	Facility      *string  `json:"facility,omitempty"`
	Description   *string  `json:"description,omitempty"`
	TransportMode *string  `json:"transportMode,omitempty"`
	Notes         *string  `json:"notes,omitempty"`

	RecordedBy *string `json:"recordedBy,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}

func toShipmentPayload(sh *models.Shipment) shipmentPayload {
	return shipmentPayload{
		ID:                    sh.ID,
		TrackingNumber:        sh.TrackingNumber,
		UserID:                sh.UserID,
		Status:                sh.Status,
		CurrentLocation:       sh.CurrentLocation,
		EstimatedDeliveryDate: sh.EstimatedDeliveryDate,
		ActualDeliveryDate:    sh.ActualDeliveryDate,
		LastLocationUpdate:    sh.LastLocationUpdate,
		CreatedAt:             sh.CreatedAt,
		UpdatedAt:             sh.UpdatedAt,
	}
}

func toEventPayload(ev *models.ShipmentEvent) eventPayload {
	return eventPayload{
		ID:            ev.ID,
		ShipmentID:    ev.ShipmentID,
		Status:        ev.Status,
		Location:      ev.Location,
		City:          ev.City,
		Country:       ev.Country,
		Latitude:      ev.Latitude,
		Longitude:     ev.Longitude,
		Facility:      ev.Facility,
		Description:   ev.Description,
		TransportMode: ev.TransportMode,
		Notes:         ev.Notes,
		RecordedBy:    ev.RecordedBy,
		Timestamp:     ev.CreatedAt,
	}
}

// GET /tracking/{trackingNumber}
//
// Public endpoint. A valid bearer token upgrades the viewer class, which
// partitions the snapshot cache; the response body is the same either way.
func (a *ShipmentsAPI) handleTrack(w http.ResponseWriter, r *http.Request) {
	vc := shipments.ViewerPublic
	if _, ok := a.verifier.Verify(bearerToken(r)); ok {
		vc = shipments.ViewerAuthenticated
	}

	snap, err := a.svc.TrackByNumber(r.Context(), chi.URLParam(r, "trackingNumber"), vc)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

type ingestEventRequest struct {
	Status string `json:"status"`

	Location      *string  `json:"location"`
	City          *string  `json:"city,omitempty"`
	Country       *string  `json:"country,omitempty"`
	Latitude      *float64 `json:"latitude,omitempty"`
	Longitude     *float64 `json:"longitude,omitempty"`
	Facility      *string  `json:"facility,omitempty"`
	Description   *string  `json:"description,omitempty"`
	TransportMode *string  `json:"transportMode,omitempty"`
	Notes         *string  `json:"notes,omitempty"`

	RecordedBy *string `json:"recordedBy,omitempty"`

	EstimatedDeliveryDate *time.Time `json:"estimatedDeliveryDate,omitempty"`
	ActualDeliveryDate    *time.Time `json:"actualDeliveryDate,omitempty"`
}

type ingestEventResponse struct {
	Shipment shipmentPayload `json:"shipment"`
	Event    eventPayload    `json:"event"`
}

// POST /shipments/{shipmentID}/events
func (a *ShipmentsAPI) handleIngestEvent(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	p, ok := a.verifier.Verify(token)
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	if !p.Operator {
		writeError(w, http.StatusForbidden, "operator access required")
		return
	}

	if a.limiter != nil && a.ingestPerMin > 0 {
		// Window per presented token, so operators do not share a bucket.
		allowed, _, err := a.limiter.Allow(r.Context(), "ratelimit:ingest:"+token, a.ingestPerMin, time.Minute)
		if err == nil && !allowed {
			writeError(w, http.StatusTooManyRequests, "ingest rate limit exceeded")
			return
		}
	}

	shipmentID, err := strconv.ParseUint(chi.URLParam(r, "shipmentID"), 10, 64)
	if err != nil || shipmentID == 0 {
		writeError(w, http.StatusBadRequest, "shipmentID must be a positive integer")
		return
	}

	var req ingestEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed JSON body")
		return
	}

	sh, ev, err := a.svc.IngestEvent(r.Context(), shipments.IngestInput{
		ShipmentID:            shipmentID,
		Status:                req.Status,
		Location:              req.Location,
		City:                  req.City,
		Country:               req.Country,
		Latitude:              req.Latitude,
		Longitude:             req.Longitude,
		Facility:              req.Facility,
		Description:           req.Description,
		TransportMode:         req.TransportMode,
		Notes:                 req.Notes,
		RecordedBy:            req.RecordedBy,
		EstimatedDeliveryDate: req.EstimatedDeliveryDate,
		ActualDeliveryDate:    req.ActualDeliveryDate,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, ingestEventResponse{
		Shipment: toShipmentPayload(sh),
		Event:    toEventPayload(ev),
	})
}

type createShipmentItem struct {
	TrackingNumber   string `json:"trackingNumber"`
	UserID           uint64 `json:"userId"`
	SenderName       string `json:"senderName"`
	RecipientName    string `json:"recipientName"`
	RecipientAddress string `json:"recipientAddress"`

	PackageDescription *string  `json:"packageDescription,omitempty"`
	WeightKG           *float64 `json:"weightKg,omitempty"`
	ShippingCost       *float64 `json:"shippingCost,omitempty"`

	EstimatedDeliveryDate *time.Time `json:"estimatedDeliveryDate,omitempty"`
}

type createShipmentsRequest struct {
	Items []createShipmentItem `json:"items"`
}

type createShipmentsResponse struct {
	Shipments []shipmentPayload `json:"shipments"`
}

// POST /shipments
func (a *ShipmentsAPI) handleCreateShipments(w http.ResponseWriter, r *http.Request) {
	p, ok := a.verifier.Verify(bearerToken(r))
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	if !p.Operator {
		writeError(w, http.StatusForbidden, "operator access required")
		return
	}

	var req createShipmentsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed JSON body")
		return
	}

	in := make([]models.ShipmentCreateInput, 0, len(req.Items))
	for _, it := range req.Items {
		in = append(in, models.ShipmentCreateInput{
			TrackingNumber:        it.TrackingNumber,
			UserID:                it.UserID,
			SenderName:            it.SenderName,
			RecipientName:         it.RecipientName,
			RecipientAddress:      it.RecipientAddress,
			PackageDescription:    it.PackageDescription,
			WeightKG:              it.WeightKG,
			ShippingCost:          it.ShippingCost,
			EstimatedDeliveryDate: it.EstimatedDeliveryDate,
		})
	}

	created, err := a.svc.CreateShipments(r.Context(), in)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	out := createShipmentsResponse{Shipments: make([]shipmentPayload, 0, len(created))}
	for _, sh := range created {
		out.Shipments = append(out.Shipments, toShipmentPayload(sh))
	}
	writeJSON(w, http.StatusCreated, out)
}

type notificationPayload struct {
	ID        uint64    `json:"id"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	IsRead    bool      `json:"isRead"`
	CreatedAt time.Time `json:"createdAt"`
}

type listNotificationsResponse struct {
	Notifications []notificationPayload `json:"notifications"`
}

// notificationsAccess resolves the caller and checks they may touch the
// inbox of the user in the URL. Operators may touch any inbox.
func (a *ShipmentsAPI) notificationsAccess(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	p, ok := a.verifier.Verify(bearerToken(r))
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return 0, false
	}
	userID, err := strconv.ParseUint(chi.URLParam(r, "userID"), 10, 64)
	if err != nil || userID == 0 {
		writeError(w, http.StatusBadRequest, "userID must be a positive integer")
		return 0, false
	}
	if !p.Operator && p.UserID != userID {
		writeError(w, http.StatusForbidden, "cannot access another user's notifications")
		return 0, false
	}
	return userID, true
}

// GET /users/{userID}/notifications
func (a *ShipmentsAPI) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	userID, ok := a.notificationsAccess(w, r)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	ns, err := a.svc.ListNotifications(r.Context(), userID, limit, offset)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	out := listNotificationsResponse{Notifications: make([]notificationPayload, 0, len(ns))}
	for _, n := range ns {
		out.Notifications = append(out.Notifications, notificationPayload{
			ID:        n.ID,
			Type:      n.Type,
			Title:     n.Title,
			Message:   n.Message,
			IsRead:    n.IsRead,
			CreatedAt: n.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// POST /users/{userID}/notifications/read
func (a *ShipmentsAPI) handleMarkNotificationsRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := a.notificationsAccess(w, r)
	if !ok {
		return
	}
	if err := a.svc.MarkNotificationsRead(r.Context(), userID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"updated": true})
}
