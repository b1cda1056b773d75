package models

import (
	"time"
)

// AuctionKind distinguishes auctions run inside a live show from standalone
// scheduled auctions.
type AuctionKind string

const (
	AuctionKindShow      AuctionKind = "show"
	AuctionKindScheduled AuctionKind = "scheduled"
)

// Bid is one bid placed by one user within an auction.
type Bid struct {
	BidderID       string  `json:"bidder_id"`
	BidderName     string  `json:"bidder_name,omitempty"`
	Amount         float64 `json:"amount"`
	AutobidCeiling float64 `json:"autobid_ceiling,omitempty"` // 0 when no autobid
	Autobid        bool    `json:"autobid"`                   // standing/auto bid
}

// HasCeiling reports whether the bid carries an autobid ceiling.
func (b Bid) HasCeiling() bool {
	return b.AutobidCeiling > 0
}

// Auction represents one live or scheduled bidding round for a single product.
type Auction struct {
	ID        string      `json:"id"`
	ProductID string      `json:"product_id,omitempty"`
	RoomID    string      `json:"room_id,omitempty"`
	SellerID  string      `json:"seller_id,omitempty"`
	Kind      AuctionKind `json:"kind,omitempty"`

	BasePrice  float64 `json:"base_price"`
	HighestBid float64 `json:"highest_bid"`
	Increment  float64 `json:"increment"`
	Bids       []Bid   `json:"bids"`

	Started bool `json:"started"`
	Ended   bool `json:"ended"`

	// Duration-based timing.
	Duration    time.Duration `json:"duration,omitempty"`
	StartedTime time.Time     `json:"started_time,omitempty"`
	EndTime     time.Time     `json:"end_time,omitempty"`

	// Scheduled (fixed-window) timing.
	StartTimeDate time.Time `json:"start_time_date,omitempty"`
	EndTimeDate   time.Time `json:"end_time_date,omitempty"`
}

// Scheduled reports whether the auction runs on an absolute window.
func (a *Auction) Scheduled() bool {
	return !a.StartTimeDate.IsZero() && !a.EndTimeDate.IsZero()
}

// Active reports whether the auction is started and not ended.
func (a *Auction) Active() bool {
	return a.Started && !a.Ended
}

// Clone returns a deep copy so callers can hand snapshots to readers.
func (a *Auction) Clone() *Auction {
	if a == nil {
		return nil
	}
	dup := *a
	if a.Bids != nil {
		dup.Bids = make([]Bid, len(a.Bids))
		copy(dup.Bids, a.Bids)
	}
	return &dup
}
