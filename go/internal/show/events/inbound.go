package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mcdev12/liveshow/go/internal/models"
	"github.com/mcdev12/liveshow/go/internal/show/auction"
)

// Inbound socket event names.
const (
	NameUserConnected           = "user-connected"
	NameLeftRoom                = "left-room"
	NameCurrentUserJoined       = "current-user-joined"
	NameRoomStarted             = "room-started"
	NameRoomEnded               = "room-ended"
	NameProductPinned           = "product-pinned"
	NameUpdatedPinnedProduct    = "updated-pinned-product"
	NameAuctionStarted          = "auction-started"
	NameAuctionPinned           = "auction-pinned"
	NameBidUpdated              = "bid-updated"
	NameUserBidUpdated          = "user-bid-updated"
	NameAuctionTimeExtended     = "auction-time-extended"
	NameAuctionEnded            = "auction-ended"
	NameAuctionUpdate           = "auction-update"
	NameStartedGiveaway         = "started-giveaway"
	NameJoinedGiveaway          = "joined-giveaway"
	NameEndedGiveaway           = "ended-giveaway"
	NameMarketplaceOrder        = "marketplace_order"
	NameFetchOffers             = "fetch_offers"
	NameRallyIn                 = "rally-in"
	NameScheduledAuctionCreated = "scheduled-auction-created"
)

// ErrUnknownEvent is returned by Decode for names the client does not handle.
var ErrUnknownEvent = errors.New("unknown event")

// Event is one normalized inbound socket event. The concrete types below form
// a closed set; the reconciler switches over them.
type Event interface {
	Name() string
}

// Presence covers user-connected, left-room and current-user-joined.
type Presence struct {
	Kind    string
	RoomID  string
	UserID  string
	Viewers *int
	Room    *RoomState
}

// RoomState is a normalized room snapshot.
type RoomState struct {
	Room     models.Room
	Pinned   *models.PinnedProduct
	Auction  *models.Auction
	Giveaway *models.Giveaway
}

// RoomLifecycle covers room-started and room-ended.
type RoomLifecycle struct {
	Kind   string
	RoomID string
}

// ProductPinned covers product-pinned and updated-pinned-product. A nil
// Product unpins.
type ProductPinned struct {
	Kind    string
	RoomID  string
	Product *models.PinnedProduct
}

// AuctionStarted announces a new running auction.
type AuctionStarted struct {
	Auction    *models.Auction
	ServerTime time.Time
}

// AuctionPinned carries the room snapshot holding the pinned auction.
type AuctionPinned struct {
	Snapshot   RoomState
	ServerTime time.Time
}

// BidUpdated is a partial auction payload following a bid.
type BidUpdated struct {
	Patch      auction.Patch
	RoomID     string
	ProductID  string
	ServerTime time.Time
}

// UserBidUpdated replaces a single bidder's entry.
type UserBidUpdated struct {
	AuctionID string
	Bid       models.Bid
}

// AuctionTimeExtended moves the end of the running auction.
type AuctionTimeExtended struct {
	AuctionID  string
	EndTime    time.Time
	ServerTime time.Time
}

// AuctionEnded is the final snapshot of an auction.
type AuctionEnded struct {
	Patch      auction.Patch
	RoomID     string
	ServerTime time.Time
}

// AuctionUpdate only signals that derived data changed server-side.
type AuctionUpdate struct {
	RoomID string
}

// GiveawayEvent covers started-giveaway, joined-giveaway and ended-giveaway.
type GiveawayEvent struct {
	Kind     string
	Giveaway *models.Giveaway
}

// MarketplaceOrder is a buy-now purchase made in the room.
type MarketplaceOrder struct {
	RoomID    string
	OwnerID   string
	OrderID   string
	ProductID string
	BuyerID   string
	BuyerName string
	Total     float64
	Quantity  int
}

// FetchOffers asks clients to reload offers.
type FetchOffers struct {
	RoomID string
}

// RallyIn redirects viewers to another room.
type RallyIn struct {
	TargetRoomID string
	FromRoomID   string
	HostID       string
}

// ScheduledAuctionCreated announces a new scheduled auction.
type ScheduledAuctionCreated struct {
	RoomID    string
	AuctionID string
}

func (e Presence) Name() string                { return e.Kind }
func (e RoomLifecycle) Name() string           { return e.Kind }
func (e ProductPinned) Name() string           { return e.Kind }
func (e AuctionStarted) Name() string          { return NameAuctionStarted }
func (e AuctionPinned) Name() string           { return NameAuctionPinned }
func (e BidUpdated) Name() string              { return NameBidUpdated }
func (e UserBidUpdated) Name() string          { return NameUserBidUpdated }
func (e AuctionTimeExtended) Name() string     { return NameAuctionTimeExtended }
func (e AuctionEnded) Name() string            { return NameAuctionEnded }
func (e AuctionUpdate) Name() string           { return NameAuctionUpdate }
func (e GiveawayEvent) Name() string           { return e.Kind }
func (e MarketplaceOrder) Name() string        { return NameMarketplaceOrder }
func (e FetchOffers) Name() string             { return NameFetchOffers }
func (e RallyIn) Name() string                 { return NameRallyIn }
func (e ScheduledAuctionCreated) Name() string { return NameScheduledAuctionCreated }

// Decode parses a named socket payload into its normalized event.
func Decode(name string, data []byte) (Event, error) {
	switch name {
	case NameUserConnected, NameLeftRoom, NameCurrentUserJoined:
		var msg PresenceMessage
		if err := unmarshal(name, data, &msg); err != nil {
			return nil, err
		}
		ev := Presence{Kind: name, RoomID: msg.RoomID, Viewers: msg.Viewers}
		if msg.User != nil {
			ev.UserID = msg.User.ID
		}
		if msg.Room != nil {
			state := msg.Room.ToRoomState()
			ev.Room = &state
			if ev.RoomID == "" {
				ev.RoomID = state.Room.ID
			}
		}
		return ev, nil

	case NameRoomStarted, NameRoomEnded:
		var msg RoomMessage
		if err := unmarshal(name, data, &msg); err != nil {
			return nil, err
		}
		return RoomLifecycle{Kind: name, RoomID: msg.RoomID}, nil

	case NameProductPinned, NameUpdatedPinnedProduct:
		var msg PinMessage
		if err := unmarshal(name, data, &msg); err != nil {
			return nil, err
		}
		return ProductPinned{Kind: name, RoomID: msg.RoomID, Product: msg.Pin.ToProduct()}, nil

	case NameAuctionStarted:
		var msg AuctionMessage
		if err := unmarshal(name, data, &msg); err != nil {
			return nil, err
		}
		a := msg.ToAuction()
		if a.ID == "" {
			return nil, fmt.Errorf("decode %s: missing auction id", name)
		}
		return AuctionStarted{Auction: a, ServerTime: msg.ServerTime.value()}, nil

	case NameAuctionPinned:
		var msg RoomSnapshot
		if err := unmarshal(name, data, &msg); err != nil {
			return nil, err
		}
		return AuctionPinned{Snapshot: msg.ToRoomState(), ServerTime: msg.ServerTime.value()}, nil

	case NameBidUpdated:
		var msg AuctionMessage
		if err := unmarshal(name, data, &msg); err != nil {
			return nil, err
		}
		ev := BidUpdated{Patch: msg.ToPatch(), RoomID: msg.RoomID, ServerTime: msg.ServerTime.value()}
		if msg.Product != nil {
			ev.ProductID = msg.Product.ID
		}
		return ev, nil

	case NameUserBidUpdated:
		var msg UserBidMessage
		if err := unmarshal(name, data, &msg); err != nil {
			return nil, err
		}
		bid := NormalizeBid(msg.BidPayload)
		if bid.BidderID == "" {
			return nil, fmt.Errorf("decode %s: missing bidder", name)
		}
		return UserBidUpdated{AuctionID: msg.Auction, Bid: bid}, nil

	case NameAuctionTimeExtended:
		var msg AuctionMessage
		if err := unmarshal(name, data, &msg); err != nil {
			return nil, err
		}
		if msg.EndTime == nil || msg.EndTime.IsZero() {
			return nil, fmt.Errorf("decode %s: missing endTime", name)
		}
		return AuctionTimeExtended{
			AuctionID:  msg.ID(),
			EndTime:    msg.EndTime.Time,
			ServerTime: msg.ServerTime.value(),
		}, nil

	case NameAuctionEnded:
		var msg AuctionMessage
		if err := unmarshal(name, data, &msg); err != nil {
			return nil, err
		}
		return AuctionEnded{Patch: msg.ToPatch(), RoomID: msg.RoomID, ServerTime: msg.ServerTime.value()}, nil

	case NameAuctionUpdate:
		var msg RoomMessage
		if err := unmarshal(name, data, &msg); err != nil {
			return nil, err
		}
		return AuctionUpdate{RoomID: msg.RoomID}, nil

	case NameStartedGiveaway, NameJoinedGiveaway, NameEndedGiveaway:
		var msg GiveawayPayload
		if err := unmarshal(name, data, &msg); err != nil {
			return nil, err
		}
		g := msg.ToGiveaway()
		if name == NameEndedGiveaway {
			g.Ended = true
		}
		return GiveawayEvent{Kind: name, Giveaway: g}, nil

	case NameMarketplaceOrder:
		var msg OrderMessage
		if err := unmarshal(name, data, &msg); err != nil {
			return nil, err
		}
		ev := MarketplaceOrder{
			RoomID:   msg.RoomID,
			OrderID:  msg.Order.MongoID,
			Total:    msg.Order.Total,
			Quantity: msg.Order.Quantity,
		}
		if msg.Owner != nil {
			ev.OwnerID = msg.Owner.ID
		}
		if msg.Order.Product != nil {
			ev.ProductID = msg.Order.Product.ID
		}
		if msg.Order.Buyer != nil {
			ev.BuyerID, ev.BuyerName = msg.Order.Buyer.ID, msg.Order.Buyer.Name
		}
		return ev, nil

	case NameFetchOffers:
		var msg RoomMessage
		if err := unmarshal(name, data, &msg); err != nil {
			return nil, err
		}
		return FetchOffers{RoomID: msg.RoomID}, nil

	case NameRallyIn:
		var msg RallyMessage
		if err := unmarshal(name, data, &msg); err != nil {
			return nil, err
		}
		if msg.RoomID == "" {
			return nil, fmt.Errorf("decode %s: missing target room", name)
		}
		ev := RallyIn{TargetRoomID: msg.RoomID, FromRoomID: msg.FromRoom}
		if msg.Host != nil {
			ev.HostID = msg.Host.ID
		}
		return ev, nil

	case NameScheduledAuctionCreated:
		var msg RoomMessage
		if err := unmarshal(name, data, &msg); err != nil {
			return nil, err
		}
		return ScheduledAuctionCreated{RoomID: msg.RoomID, AuctionID: msg.AuctionID}, nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownEvent, name)
	}
}

// ToRoomState normalizes a room snapshot.
func (s *RoomSnapshot) ToRoomState() RoomState {
	state := RoomState{
		Room: models.Room{
			ID:     s.MongoID,
			Status: models.RoomStatus(s.Status),
		},
		Pinned:   s.Pin.ToProduct(),
		Auction:  s.ActiveAuction.ToAuction(),
		Giveaway: s.ActiveGiveaway.ToGiveaway(),
	}
	if s.Owner != nil {
		state.Room.OwnerID = s.Owner.ID
	}
	if s.Viewers != nil {
		state.Room.Viewers = *s.Viewers
	}
	if state.Auction != nil && state.Auction.RoomID == "" {
		state.Auction.RoomID = s.MongoID
	}
	return state
}

func unmarshal(name string, data []byte, v any) error {
	if len(data) == 0 {
		data = []byte("{}")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}
