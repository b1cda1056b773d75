package events

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Wire payload shapes as the show backend sends them. Field names are kept
// exactly as they appear on the socket so older and newer servers both decode.

// Ref is a reference to another document that the backend sends either as a
// bare id string or as an embedded object.
type Ref struct {
	ID   string
	Name string
}

// UnmarshalJSON accepts "id", {"_id": "id"}, {"id": "id"} and null.
func (r *Ref) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*r = Ref{}
		return nil
	}
	if data[0] == '"' {
		var id string
		if err := json.Unmarshal(data, &id); err != nil {
			return err
		}
		*r = Ref{ID: id}
		return nil
	}

	var obj struct {
		MongoID   string `json:"_id"`
		ID        string `json:"id"`
		UserName  string `json:"userName"`
		FirstName string `json:"firstName"`
		Name      string `json:"name"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("decode ref: %w", err)
	}
	r.ID = firstNonEmpty(obj.MongoID, obj.ID)
	r.Name = firstNonEmpty(obj.UserName, obj.FirstName, obj.Name)
	return nil
}

// MarshalJSON writes the id only.
func (r Ref) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.ID)
}

// Timestamp decodes epoch milliseconds, numeric strings and RFC 3339 strings.
type Timestamp struct {
	time.Time
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			t.Time = time.Time{}
			return nil
		}
		if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
			t.Time = time.UnixMilli(ms)
			return nil
		}
		parsed, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return fmt.Errorf("decode timestamp %q: %w", s, err)
		}
		t.Time = parsed
		return nil
	}

	var ms float64
	if err := json.Unmarshal(data, &ms); err != nil {
		return fmt.Errorf("decode timestamp: %w", err)
	}
	t.Time = time.UnixMilli(int64(ms))
	return nil
}

// MarshalJSON writes epoch milliseconds.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UnixMilli())
}

// value returns the wrapped time or the zero time for a nil pointer.
func (t *Timestamp) value() time.Time {
	if t == nil {
		return time.Time{}
	}
	return t.Time
}

// BidPayload is one entry of an auction's bid list. Historic servers put the
// bidder under user, bidder or userId.
type BidPayload struct {
	User          *Ref     `json:"user,omitempty"`
	Bidder        *Ref     `json:"bidder,omitempty"`
	UserID        string   `json:"userId,omitempty"`
	Amount        float64  `json:"amount"`
	AutobidAmount *float64 `json:"autobidamount,omitempty"`
	Autobid       bool     `json:"autobid,omitempty"`
}

// AuctionPayload is a full or partial auction document. Pointer fields are
// nil when the server omitted them.
type AuctionPayload struct {
	MongoID   string `json:"_id,omitempty"`
	AuctionID string `json:"auctionId,omitempty"`
	Product   *Ref   `json:"product,omitempty"`
	RoomID    string `json:"roomId,omitempty"`
	Owner     *Ref   `json:"owner,omitempty"`
	Type      string `json:"type,omitempty"`

	Bids          []BidPayload `json:"bids,omitempty"`
	HighestBid    *float64     `json:"highestBid,omitempty"`
	BasePrice     *float64     `json:"basePrice,omitempty"`
	IncreaseBidBy *float64     `json:"increaseBidBy,omitempty"`

	Started *bool `json:"started,omitempty"`
	Ended   *bool `json:"ended,omitempty"`

	Duration      *float64   `json:"duration,omitempty"` // minutes
	StartedTime   *Timestamp `json:"startedTime,omitempty"`
	EndTime       *Timestamp `json:"endTime,omitempty"`
	StartTimeDate *Timestamp `json:"start_time_date,omitempty"`
	EndTimeDate   *Timestamp `json:"end_time_date,omitempty"`
}

// AuctionMessage carries an auction document plus the server clock.
type AuctionMessage struct {
	AuctionPayload
	ServerTime *Timestamp `json:"serverTime,omitempty"`
}

// UserBidMessage replaces a single bidder's entry.
type UserBidMessage struct {
	Auction string `json:"auction"`
	BidPayload
}

// ProductPayload is a buy-now product document.
type ProductPayload struct {
	MongoID  string  `json:"_id"`
	Name     string  `json:"name,omitempty"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
	OwnerID  *Ref    `json:"ownerId,omitempty"`
}

// GiveawayPayload is a giveaway document.
type GiveawayPayload struct {
	MongoID      string     `json:"_id"`
	Product      *Ref       `json:"product,omitempty"`
	RoomID       string     `json:"roomId,omitempty"`
	Participants []Ref      `json:"participants,omitempty"`
	Duration     *float64   `json:"duration,omitempty"` // minutes
	StartedTime  *Timestamp `json:"startedtime,omitempty"`
	Ended        bool       `json:"ended,omitempty"`
	Winner       *Ref       `json:"winner,omitempty"`
}

// RoomSnapshot is the room document pushed on join and on auction pinning.
type RoomSnapshot struct {
	MongoID        string           `json:"_id"`
	Owner          *Ref             `json:"owner,omitempty"`
	Status         string           `json:"status,omitempty"`
	Viewers        *int             `json:"viewers,omitempty"`
	Pin            *ProductPayload  `json:"pin,omitempty"`
	ActiveAuction  *AuctionPayload  `json:"activeauction,omitempty"`
	ActiveGiveaway *GiveawayPayload `json:"activeGiveaway,omitempty"`
	ServerTime     *Timestamp       `json:"serverTime,omitempty"`
}

// PresenceMessage accompanies user-connected, left-room and current-user-joined.
type PresenceMessage struct {
	User    *Ref          `json:"user,omitempty"`
	RoomID  string        `json:"roomId,omitempty"`
	Viewers *int          `json:"viewers,omitempty"`
	Room    *RoomSnapshot `json:"room,omitempty"`
}

// PinMessage accompanies product-pinned and updated-pinned-product.
type PinMessage struct {
	RoomID string          `json:"roomId,omitempty"`
	Pin    *ProductPayload `json:"pin"`
}

// OrderMessage accompanies marketplace_order.
type OrderMessage struct {
	RoomID string `json:"roomId,omitempty"`
	Owner  *Ref   `json:"owner,omitempty"`
	Order  struct {
		MongoID  string  `json:"_id"`
		Product  *Ref    `json:"product,omitempty"`
		Buyer    *Ref    `json:"buyer,omitempty"`
		Total    float64 `json:"total"`
		Quantity int     `json:"quantity"`
	} `json:"order"`
}

// RallyMessage accompanies rally-in.
type RallyMessage struct {
	RoomID   string `json:"roomId"`
	FromRoom string `json:"fromRoom,omitempty"`
	Host     *Ref   `json:"host,omitempty"`
}

// RoomMessage is the generic {roomId} payload.
type RoomMessage struct {
	RoomID    string `json:"roomId,omitempty"`
	AuctionID string `json:"auctionId,omitempty"`
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
