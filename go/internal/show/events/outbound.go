package events

import (
	"github.com/mcdev12/liveshow/go/internal/models"
)

// Outbound socket event names.
const (
	NamePlaceBid             = "place-bid"
	NameJoinRoom             = "join-room"
	NameLeaveRoom            = "leave-room"
	NameJoinScheduleAuction  = "join-schedule-auction"
	NameLeaveScheduleAuction = "leave-schedule-auction"
)

// PlaceBidPayload is the fire-and-forget bid placement request.
type PlaceBidPayload struct {
	ClientBidID   string             `json:"clientBidId"`
	UserID        string             `json:"user"`
	Amount        float64            `json:"amount"`
	Increment     float64            `json:"increaseBidBy"`
	AuctionID     string             `json:"auction"`
	Prebid        bool               `json:"prebid"`
	Autobid       bool               `json:"autobid"`
	AutobidAmount float64            `json:"autobidamount,omitempty"`
	RoomID        string             `json:"tokshow,omitempty"`
	Type          models.AuctionKind `json:"type"`
}

// RoomPayload is sent with join-room and leave-room.
type RoomPayload struct {
	RoomID string `json:"roomId"`
	UserID string `json:"userId,omitempty"`
}

// ScheduleAuctionPayload is sent with join-schedule-auction and
// leave-schedule-auction.
type ScheduleAuctionPayload struct {
	AuctionID string `json:"auctionId"`
	UserID    string `json:"userId,omitempty"`
}
