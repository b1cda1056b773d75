package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/liveshow/go/internal/models"
	"github.com/mcdev12/liveshow/go/internal/show/bidding"
	"github.com/mcdev12/liveshow/go/internal/show/catalog"
	"github.com/mcdev12/liveshow/go/internal/show/reconciler"
)

// ErrRoomNotFound is returned by a RoomProvider for rooms without a session.
var ErrRoomNotFound = errors.New("room not found")

// RoomProvider interface defines the session operations exposed over HTTP
type RoomProvider interface {
	RoomState(ctx context.Context, roomID string) (*RoomStateResponse, error)
	PlaceBid(ctx context.Context, roomID string, req BidRequest) (*BidResponse, error)
}

// RoomStateResponse represents the complete reconciled state of a room
type RoomStateResponse struct {
	RoomID           string              `json:"room_id"`
	TimeLeftSec      int                 `json:"time_left_sec"`
	NotStarted       bool                `json:"not_started"`
	Snapshot         reconciler.Snapshot `json:"snapshot"`
	Lists            catalog.Lists       `json:"lists"`
	ShippingEstimate *models.Estimate    `json:"shipping_estimate,omitempty"`
}

// BidRequest is the body of POST /api/rooms/{id}/bids
type BidRequest struct {
	// AuctionID targets a scheduled auction; empty means the auction on
	// screen.
	AuctionID      string  `json:"auction_id,omitempty"`
	Amount         float64 `json:"amount"`
	AutobidCeiling float64 `json:"autobid_amount,omitempty"`
	Prebid         bool    `json:"prebid,omitempty"`
	DetailPage     bool    `json:"detail_page,omitempty"`
}

// BidResponse acknowledges an emitted bid. Acceptance is only known once a
// bid update arrives.
type BidResponse struct {
	ClientBidID string  `json:"client_bid_id"`
	AuctionID   string  `json:"auction_id"`
	Amount      float64 `json:"amount"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// StateHandler handles HTTP requests for room state and bids
type StateHandler struct {
	provider RoomProvider
}

// NewStateHandler creates a new state handler
func NewStateHandler(provider RoomProvider) *StateHandler {
	return &StateHandler{provider: provider}
}

// HandleGetRoomState handles GET /api/rooms/{id}/state
func (h *StateHandler) HandleGetRoomState(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("id")
	if roomID == "" {
		writeError(w, http.StatusBadRequest, "Room ID is required")
		return
	}

	state, err := h.provider.RoomState(r.Context(), roomID)
	if err != nil {
		log.Error().Err(err).Str("room_id", roomID).Msg("failed to get room state")
		writeError(w, statusFor(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, state)
}

// HandlePlaceBid handles POST /api/rooms/{id}/bids
func (h *StateHandler) HandlePlaceBid(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("id")
	if roomID == "" {
		writeError(w, http.StatusBadRequest, "Room ID is required")
		return
	}

	var req BidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid bid body")
		return
	}

	resp, err := h.provider.PlaceBid(r.Context(), roomID, req)
	if err != nil {
		log.Warn().Err(err).Str("room_id", roomID).Float64("amount", req.Amount).Msg("bid rejected")
		writeError(w, statusFor(err), err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, resp)
}

// RegisterRoutes registers the room routes, the subscriber socket with its
// stats and the health check on mux.
func (h *StateHandler) RegisterRoutes(mux *http.ServeMux, cm *ConnectionManager) {
	mux.HandleFunc("GET /api/rooms/{id}/state", h.HandleGetRoomState)
	mux.HandleFunc("POST /api/rooms/{id}/bids", h.HandlePlaceBid)
	if cm != nil {
		mux.HandleFunc("GET /ws/rooms/{id}", cm.HandleSubscribe)
		mux.HandleFunc("GET /ws/stats", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, cm.Stats())
		})
	}
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			log.Error().Err(err).Msg("failed to write health check response")
		}
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrRoomNotFound):
		return http.StatusNotFound
	case errors.Is(err, bidding.ErrNotAuthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, bidding.ErrSelfBid):
		return http.StatusForbidden
	case errors.Is(err, bidding.ErrBidTooLow):
		return http.StatusUnprocessableEntity
	case errors.Is(err, bidding.ErrNoAuction),
		errors.Is(err, bidding.ErrAuctionNotStarted),
		errors.Is(err, bidding.ErrAuctionEnded):
		return http.StatusConflict
	case errors.Is(err, ErrNotConnected):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
