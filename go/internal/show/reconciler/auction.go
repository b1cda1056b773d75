package reconciler

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/liveshow/go/internal/models"
	"github.com/mcdev12/liveshow/go/internal/show/auction"
	"github.com/mcdev12/liveshow/go/internal/show/events"
)

const projectionTimeout = 2 * time.Second

func (r *Reconciler) onAuctionStarted(e events.AuctionStarted) {
	r.syncClock(e.ServerTime, events.NameAuctionStarted)
	if e.Auction == nil {
		return
	}

	a := e.Auction.Clone()
	if a.StartedTime.IsZero() && !a.Scheduled() {
		a.StartedTime = e.ServerTime
		if a.StartedTime.IsZero() {
			a.StartedTime = r.sync.Now()
		}
	}

	r.auction = r.auction.StartAuction(a)
	r.pinned = nil
	r.clearGiveawayLocked()
	r.clearWinnerLocked()
	r.timeAdded = false
	r.timeAddedReset.Cancel()

	current := r.auction.Auction
	r.leader = auction.FindWinner(current.Bids)
	r.autobid.reset(auction.CurrentBid(current))
	r.armCountdownLocked()
	r.requestShippingLocked(current.ProductID, current.SellerID)

	log.Info().
		Str("room_id", r.room.ID).
		Str("auction_id", current.ID).
		Float64("base_price", current.BasePrice).
		Msg("Auction started")
}

func (r *Reconciler) onAuctionPinned(e events.AuctionPinned) {
	r.syncClock(e.ServerTime, events.NameAuctionPinned)
	r.applyRoomStateLocked(e.Snapshot)
}

// applyRoomStateLocked reconciles a full room snapshot. The pinned item kinds
// are mutually exclusive, an auction taking precedence over the rest.
func (r *Reconciler) applyRoomStateLocked(s events.RoomState) {
	if s.Room.OwnerID != "" {
		r.room.OwnerID = s.Room.OwnerID
	}
	if s.Room.Status != "" {
		r.room.Status = s.Room.Status
	}

	switch {
	case s.Auction != nil:
		r.pinAuctionLocked(s.Auction)
	case s.Giveaway != nil:
		r.clearAuctionLocked()
		r.pinned = nil
		r.giveaway = s.Giveaway.Clone()
	case s.Pinned != nil:
		r.clearAuctionLocked()
		r.clearGiveawayLocked()
		r.pinned = s.Pinned
	default:
		r.clearAuctionLocked()
	}
}

func (r *Reconciler) pinAuctionLocked(a *models.Auction) {
	prevID := ""
	if r.auction.Auction != nil {
		prevID = r.auction.Auction.ID
	}

	r.auction = r.auction.PinAuction(a)
	r.pinned = nil
	r.clearGiveawayLocked()

	current := r.auction.Auction
	r.leader = auction.FindWinner(current.Bids)
	if current.ID != prevID {
		r.autobid.reset(auction.CurrentBid(current))
	}
	if current.Ended {
		r.countdown.Cancel()
		return
	}
	r.armCountdownLocked()
}

func (r *Reconciler) mergeFetchedLocked(a *models.Auction) {
	r.auction = r.auction.MergeFetched(a)

	current := r.auction.Auction
	r.leader = auction.FindWinner(current.Bids)
	if current.Ended {
		r.countdown.Cancel()
		return
	}
	r.armCountdownLocked()
}

func (r *Reconciler) clearAuctionLocked() {
	r.auction = r.auction.Clear()
	r.leader = nil
	r.countdown.Cancel()
}

func (r *Reconciler) onBidUpdated(e events.BidUpdated) {
	r.syncClock(e.ServerTime, events.NameBidUpdated)

	wasEnded := r.auction.Auction != nil && r.auction.Auction.Ended
	next, result := r.auction.ApplyBidUpdate(e.Patch)

	switch result {
	case auction.Merged:
		r.auction = next
		current := r.auction.Auction
		r.leader = auction.FindWinner(current.Bids)
		r.evaluateAutobidLocked(current)

		if current.Ended && !wasEnded {
			r.finishAuctionLocked(current.Clone())
		} else if !current.Ended {
			r.armCountdownLocked()
		}
	default:
		log.Debug().
			Str("room_id", r.room.ID).
			Str("auction_id", e.Patch.AuctionID).
			Stringer("result", result).
			Msg("Bid update not merged into displayed auction")
		r.refetchLocked(TargetAuctionProducts)
	}

	r.updateProjectionLocked(e.Patch)
}

// updateProjectionLocked mirrors new bids into the cached product list. A
// miss or failure falls back to a full refetch.
func (r *Reconciler) updateProjectionLocked(p auction.Patch) {
	if r.projection == nil || p.AuctionID == "" || p.Bids == nil {
		return
	}

	roomID := r.room.ID
	bids := append([]models.Bid(nil), p.Bids...)
	highest := auction.CurrentBid(&models.Auction{Bids: bids})
	if p.HighestBid != nil && *p.HighestBid > highest {
		highest = *p.HighestBid
	}

	r.queue(func() {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), projectionTimeout)
			defer cancel()

			ok, err := r.projection.UpdateBids(ctx, roomID, p.AuctionID, bids, highest)
			if err != nil {
				log.Warn().Err(err).Str("room_id", roomID).Str("auction_id", p.AuctionID).Msg("Projection update failed")
			}
			if ok && err == nil {
				return
			}
			r.locked(func() { r.refetchLocked(TargetAuctionProducts) })
		}()
	})
}

func (r *Reconciler) onUserBidUpdated(e events.UserBidUpdated) {
	next, ok := r.auction.ReplaceBid(e.AuctionID, e.Bid)
	if !ok {
		log.Debug().Str("auction_id", e.AuctionID).Str("bidder_id", e.Bid.BidderID).Msg("User bid update ignored")
		return
	}
	r.auction = next
	r.leader = auction.FindWinner(next.Auction.Bids)
}

func (r *Reconciler) onAuctionTimeExtended(e events.AuctionTimeExtended) {
	r.syncClock(e.ServerTime, events.NameAuctionTimeExtended)

	next, ok := r.auction.ExtendTime(e.AuctionID, e.EndTime)
	if !ok {
		log.Debug().Str("auction_id", e.AuctionID).Msg("Time extension for auction not displayed")
		return
	}
	r.auction = next
	r.armCountdownLocked()

	r.timeAdded = true
	r.timeAddedReset.Arm(r.cfg.TimeAddedTTL, func() {
		r.locked(func() { r.timeAdded = false })
	})
}

func (r *Reconciler) onAuctionEnded(e events.AuctionEnded) {
	r.syncClock(e.ServerTime, events.NameAuctionEnded)

	next, frozen := r.auction.MarkEnded(e.Patch)
	r.auction = next
	switch {
	case frozen == nil:
		log.Debug().Str("auction_id", e.Patch.AuctionID).Msg("Ended auction is not displayed")
	case next.Auction == nil:
		// Ended while a product or giveaway is pinned: announce the winner
		// without displaying the auction again.
		r.finishAuctionLocked(frozen)
	default:
		r.leader = auction.FindWinner(frozen.Bids)
		r.finishAuctionLocked(frozen)
	}

	r.invalidateSalesLocked()
	r.refetchLocked(TargetAuctionProducts)
}

// finishAuctionLocked runs the end-of-auction presentation. The winner alert
// is shown at most once per auction id regardless of how many end signals
// arrive.
func (r *Reconciler) finishAuctionLocked(a *models.Auction) {
	r.countdown.Cancel()

	if _, seen := r.alerted[a.ID]; seen {
		return
	}
	r.alerted[a.ID] = struct{}{}

	winner := auction.FindWinner(a.Bids)
	if winner == nil {
		log.Info().Str("auction_id", a.ID).Msg("Auction ended without bids")
		return
	}

	alert := &WinnerAlert{
		AuctionID: a.ID,
		Bid:       *winner,
		Self:      winner.BidderID != "" && winner.BidderID == r.viewer.UserID,
		ExpiresAt: r.clock.Now().Add(r.cfg.WinnerAlertTTL),
	}
	r.winner = alert
	r.winnerDismiss.Arm(r.cfg.WinnerAlertTTL, func() {
		r.locked(func() {
			if r.winner == alert {
				r.winner = nil
			}
		})
	})

	title := "Auction won"
	if alert.Self {
		title = "You won!"
	}
	r.notifyLocked(Notification{
		Kind:      NotifyWinner,
		Title:     title,
		Message:   winner.BidderName,
		AuctionID: a.ID,
		Amount:    winner.Amount,
	})

	log.Info().
		Str("auction_id", a.ID).
		Str("winner_id", winner.BidderID).
		Float64("amount", winner.Amount).
		Msg("Auction winner announced")
}

func (r *Reconciler) clearWinnerLocked() {
	r.winner = nil
	r.winnerDismiss.Cancel()
}

// armCountdownLocked schedules the local end of the displayed auction. When
// the timer fires the deadline is re-read, so an extension that arrived in
// the meantime simply re-arms it.
func (r *Reconciler) armCountdownLocked() {
	a := r.auction.Auction
	if a == nil || !a.Active() {
		r.countdown.Cancel()
		return
	}
	deadline, ok := auction.Deadline(a)
	if !ok {
		r.countdown.Cancel()
		return
	}

	id := a.ID
	wait := deadline.Sub(r.sync.Now())
	if wait < 0 {
		wait = 0
	}
	r.countdown.Arm(wait, func() {
		r.locked(func() { r.onCountdownExpired(id) })
	})
}

func (r *Reconciler) onCountdownExpired(id string) {
	a := r.auction.Auction
	if a == nil || a.ID != id || a.Ended {
		return
	}
	if deadline, ok := auction.Deadline(a); ok && deadline.After(r.sync.Now()) {
		r.armCountdownLocked()
		return
	}

	next, frozen := r.auction.MarkEnded(auction.Patch{AuctionID: id})
	r.auction = next
	if frozen == nil {
		return
	}
	log.Info().Str("auction_id", id).Msg("Auction countdown reached zero")
	r.leader = auction.FindWinner(frozen.Bids)
	r.finishAuctionLocked(frozen)
}
