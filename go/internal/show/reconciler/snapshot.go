package reconciler

import (
	"time"

	"github.com/mcdev12/liveshow/go/internal/models"
	"github.com/mcdev12/liveshow/go/internal/show/auction"
)

// Snapshot is a consistent, render-ready copy of a room's state.
type Snapshot struct {
	Room             models.Room           `json:"room"`
	Auction          *models.Auction       `json:"auction,omitempty"`
	RunningAuctionID string                `json:"running_auction_id,omitempty"`
	CurrentBid       float64               `json:"current_bid"`
	MinimumBid       float64               `json:"minimum_bid"`
	Leader           *models.Bid           `json:"leader,omitempty"`
	TimeLeft         auction.TimeLeft      `json:"time_left"`
	TimeAdded        bool                  `json:"time_added"`
	Pinned           *models.PinnedProduct `json:"pinned,omitempty"`
	Giveaway         *models.Giveaway      `json:"giveaway,omitempty"`
	Winner           *WinnerAlert          `json:"winner,omitempty"`
	GiveawayWinner   *GiveawayWinnerAlert  `json:"giveaway_winner,omitempty"`
	Notifications    []Notification        `json:"notifications"`
	ServerOffset     time.Duration         `json:"server_offset"`
}

// Snapshot returns the current state with the countdown computed against the
// server-synced clock.
func (r *Reconciler) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	a := r.auction.Auction
	s := Snapshot{
		Room:             r.room,
		Auction:          a.Clone(),
		RunningAuctionID: r.auction.RunningID,
		CurrentBid:       auction.CurrentBid(a),
		MinimumBid:       auction.MinimumNextBid(a),
		TimeLeft:         auction.ComputeTimeLeft(a, r.sync.Now),
		TimeAdded:        r.timeAdded,
		Giveaway:         r.giveaway.Clone(),
		Notifications:    append([]Notification{}, r.feed...),
		ServerOffset:     r.sync.Offset(),
	}
	if r.leader != nil {
		leader := *r.leader
		s.Leader = &leader
	}
	if r.pinned != nil {
		pinned := *r.pinned
		s.Pinned = &pinned
	}
	if r.winner != nil {
		w := *r.winner
		s.Winner = &w
	}
	if r.giveawayWinner != nil {
		w := *r.giveawayWinner
		s.GiveawayWinner = &w
	}
	return s
}

// Auction returns a copy of the displayed auction, or nil.
func (r *Reconciler) Auction() *models.Auction {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.auction.Auction.Clone()
}
