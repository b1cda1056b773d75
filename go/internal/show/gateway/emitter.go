package gateway

import (
	"context"
	"errors"

	"github.com/mcdev12/liveshow/go/internal/show/events"
)

// ErrNotConnected is returned when emitting without a live connection.
var ErrNotConnected = errors.New("transport not connected")

// Transport is a realtime connection that delivers inbound events to its
// Listeners and sends named outbound messages.
type Transport interface {
	// Run connects and keeps the connection alive until ctx is done.
	Run(ctx context.Context) error
	Emit(name string, payload any) error
	Listeners() *Listeners
	// OnConnect registers fn to run each time the connection is
	// (re-)established.
	OnConnect(fn func())
	Close() error
}

// Emitter turns room, bid and scheduled-auction requests into outbound
// messages on a Transport.
type Emitter struct {
	transport Transport
	userID    string
}

// NewEmitter creates an emitter sending on behalf of userID.
func NewEmitter(t Transport, userID string) *Emitter {
	return &Emitter{transport: t, userID: userID}
}

func (e *Emitter) JoinRoom(roomID string) error {
	return e.transport.Emit(events.NameJoinRoom, events.RoomPayload{RoomID: roomID, UserID: e.userID})
}

func (e *Emitter) LeaveRoom(roomID string) error {
	return e.transport.Emit(events.NameLeaveRoom, events.RoomPayload{RoomID: roomID, UserID: e.userID})
}

func (e *Emitter) PlaceBid(p events.PlaceBidPayload) error {
	return e.transport.Emit(events.NamePlaceBid, p)
}

func (e *Emitter) JoinScheduleAuction(auctionID string) error {
	return e.transport.Emit(events.NameJoinScheduleAuction, events.ScheduleAuctionPayload{AuctionID: auctionID, UserID: e.userID})
}

func (e *Emitter) LeaveScheduleAuction(auctionID string) error {
	return e.transport.Emit(events.NameLeaveScheduleAuction, events.ScheduleAuctionPayload{AuctionID: auctionID, UserID: e.userID})
}
