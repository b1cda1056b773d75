package auction

import (
	"time"

	"github.com/mcdev12/liveshow/go/internal/models"
)

// Patch is a partial auction update. Nil fields (and a nil Bids slice) were
// absent from the payload and must leave the stored value untouched.
type Patch struct {
	AuctionID   string
	Bids        []models.Bid
	HighestBid  *float64
	BasePrice   *float64
	Increment   *float64
	Started     *bool
	Ended       *bool
	StartedTime *time.Time
	EndTime     *time.Time
}

// MergeResult describes what ApplyBidUpdate did with a patch.
type MergeResult int

const (
	// Merged means the patch was applied to the displayed auction.
	Merged MergeResult = iota
	// NoAuction means nothing is displayed, so there was nothing to merge into.
	NoAuction
	// Foreign means the patch names a different auction than the displayed one.
	Foreign
)

func (r MergeResult) String() string {
	switch r {
	case Merged:
		return "merged"
	case NoAuction:
		return "no_auction"
	case Foreign:
		return "foreign"
	default:
		return "unknown"
	}
}

// State is the canonical current auction of one room. Transitions are pure:
// every method returns a new State and never mutates the receiver's auction.
type State struct {
	// Auction is the displayed auction, nil when none is shown.
	Auction *models.Auction
	// RunningID is the id of the auction last seen starting and not yet ended.
	// Flags on payloads for other ids are not trusted.
	RunningID string
}

// SetAuction replaces the displayed auction wholesale. A nil auction clears it.
func (s State) SetAuction(a *models.Auction) State {
	s.Auction = a.Clone()
	return s
}

// StartAuction displays a freshly started auction. Whatever flags the payload
// carried, the auction is started and not ended, and it becomes the running one.
func (s State) StartAuction(a *models.Auction) State {
	if a == nil {
		return s.Clear()
	}
	next := a.Clone()
	next.Started = true
	next.Ended = false
	next.HighestBid = CurrentBid(next)
	s.Auction = next
	s.RunningID = next.ID
	return s
}

// PinAuction displays an auction taken from a room snapshot. When the snapshot
// is for the running auction its ended flag is stale by definition and is
// forced false.
func (s State) PinAuction(a *models.Auction) State {
	if a == nil {
		s.Auction = nil
		return s
	}
	next := a.Clone()
	if s.RunningID != "" && next.ID == s.RunningID {
		next.Ended = false
	}
	s.Auction = next
	return s
}

// MergeFetched reconciles an auction document loaded over HTTP. A document
// for another auction is pinned like a snapshot. For the displayed auction
// the document may be older than what the socket already delivered, so the
// bid list with the higher current bid wins, the later end time is kept and
// an ended auction stays ended.
func (s State) MergeFetched(a *models.Auction) State {
	if a == nil {
		return s
	}
	prev := s.Auction
	if prev == nil || prev.ID != a.ID {
		return s.PinAuction(a)
	}

	s = s.PinAuction(a)
	next := s.Auction
	if bidsAhead(prev, next) {
		next.Bids = cloneBids(prev.Bids)
	}
	next.HighestBid = CurrentBid(next)
	if prev.EndTime.After(next.EndTime) {
		next.EndTime = prev.EndTime
	}
	if prev.Ended {
		next.Ended = true
	}
	return s
}

// bidsAhead reports whether the displayed bids are newer than the fetched ones.
func bidsAhead(displayed, fetched *models.Auction) bool {
	have, got := CurrentBid(displayed), CurrentBid(fetched)
	if have != got {
		return have > got
	}
	return len(displayed.Bids) > len(fetched.Bids)
}

// Clear drops the displayed auction. The running id survives so that a late
// snapshot of the running auction can still be sanitized.
func (s State) Clear() State {
	s.Auction = nil
	return s
}

// ApplyBidUpdate merges a partial payload into the displayed auction. Each
// field is replaced only when present in the patch.
func (s State) ApplyBidUpdate(p Patch) (State, MergeResult) {
	if s.Auction == nil {
		return s, NoAuction
	}
	if p.AuctionID != "" && p.AuctionID != s.Auction.ID {
		return s, Foreign
	}

	next := s.Auction.Clone()
	if p.Bids != nil {
		next.Bids = cloneBids(p.Bids)
	}
	if p.HighestBid != nil {
		next.HighestBid = *p.HighestBid
	}
	if p.BasePrice != nil {
		next.BasePrice = *p.BasePrice
	}
	if p.Increment != nil {
		next.Increment = *p.Increment
	}
	if p.Started != nil {
		next.Started = *p.Started
	}
	if p.Ended != nil && s.trustsFlagsOf(next.ID) {
		next.Ended = *p.Ended
	}
	if p.StartedTime != nil {
		next.StartedTime = *p.StartedTime
	}
	if p.EndTime != nil {
		next.EndTime = *p.EndTime
	}
	if p.Bids != nil {
		next.HighestBid = CurrentBid(next)
	}

	s.Auction = next
	return s, Merged
}

// ReplaceBid swaps the bidder's latest entry in place, leaving every other bid
// untouched. A bidder with no entry yet is appended.
func (s State) ReplaceBid(auctionID string, bid models.Bid) (State, bool) {
	if s.Auction == nil || bid.BidderID == "" {
		return s, false
	}
	if auctionID != "" && auctionID != s.Auction.ID {
		return s, false
	}

	next := s.Auction.Clone()
	replaced := false
	for i := len(next.Bids) - 1; i >= 0; i-- {
		if next.Bids[i].BidderID == bid.BidderID {
			next.Bids[i] = bid
			replaced = true
			break
		}
	}
	if !replaced {
		next.Bids = append(next.Bids, bid)
	}
	next.HighestBid = CurrentBid(next)

	s.Auction = next
	return s, true
}

// ExtendTime moves the end timestamp of the displayed auction and nothing else.
func (s State) ExtendTime(auctionID string, end time.Time) (State, bool) {
	if s.Auction == nil || end.IsZero() {
		return s, false
	}
	if auctionID != "" && auctionID != s.Auction.ID {
		return s, false
	}

	next := s.Auction.Clone()
	next.EndTime = end
	s.Auction = next
	return s, true
}

// MarkEnded freezes the auction named by the final snapshot. Bid history is
// kept when the snapshot carries none so the winner can still be computed.
// It returns the frozen auction, or nil when another auction is displayed.
// With nothing displayed the frozen auction is built from the snapshot alone
// and the display stays empty.
func (s State) MarkEnded(p Patch) (State, *models.Auction) {
	id := p.AuctionID
	if id == "" && s.Auction != nil {
		id = s.Auction.ID
	}
	if id != "" && id == s.RunningID {
		s.RunningID = ""
	}

	var next *models.Auction
	displayed := s.Auction != nil
	switch {
	case !displayed:
		if id == "" {
			return s, nil
		}
		next = &models.Auction{ID: id, Started: true}
	case s.Auction.ID != id:
		return s, nil
	default:
		next = s.Auction.Clone()
	}

	if len(p.Bids) > 0 {
		next.Bids = cloneBids(p.Bids)
	}
	if p.BasePrice != nil {
		next.BasePrice = *p.BasePrice
	}
	if p.EndTime != nil {
		next.EndTime = *p.EndTime
	}
	next.Ended = true
	next.HighestBid = CurrentBid(next)
	if p.HighestBid != nil && len(next.Bids) == 0 {
		next.HighestBid = *p.HighestBid
	}

	if displayed {
		s.Auction = next
	}
	return s, next.Clone()
}

// trustsFlagsOf reports whether lifecycle flags on a payload for id may be
// applied: always when nothing is running, otherwise only for the running id.
func (s State) trustsFlagsOf(id string) bool {
	return s.RunningID == "" || s.RunningID == id
}

func cloneBids(bids []models.Bid) []models.Bid {
	dup := make([]models.Bid, len(bids))
	copy(dup, bids)
	return dup
}
