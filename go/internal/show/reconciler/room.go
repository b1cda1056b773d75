package reconciler

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/liveshow/go/internal/models"
	"github.com/mcdev12/liveshow/go/internal/show/events"
)

func (r *Reconciler) onPresence(e events.Presence) {
	switch e.Kind {
	case events.NameCurrentUserJoined:
		if e.Room != nil {
			r.applyRoomStateLocked(*e.Room)
			if e.Room.Room.Viewers > 0 {
				r.room.Viewers = e.Room.Room.Viewers
			}
		}
		if e.Viewers != nil {
			r.room.Viewers = *e.Viewers
		}
	case events.NameUserConnected:
		if e.Viewers != nil {
			r.room.Viewers = *e.Viewers
		} else {
			r.room.Viewers++
		}
	case events.NameLeftRoom:
		switch {
		case e.Viewers != nil:
			r.room.Viewers = *e.Viewers
		case r.room.Viewers > 0:
			r.room.Viewers--
		}
	}
}

func (r *Reconciler) onRoomLifecycle(e events.RoomLifecycle) {
	switch e.Kind {
	case events.NameRoomStarted:
		r.room.Status = models.RoomStatusLive
		log.Info().Str("room_id", r.room.ID).Msg("Show started")
	case events.NameRoomEnded:
		r.room.Status = models.RoomStatusEnded
		r.clearAuctionLocked()
		r.clearGiveawayLocked()
		r.pinned = nil
		r.rally.Cancel()
		r.invalidateSalesLocked()
		log.Info().Str("room_id", r.room.ID).Msg("Show ended")
	}
}

func (r *Reconciler) onProductPinned(e events.ProductPinned) {
	if e.Product == nil {
		r.pinned = nil
		return
	}

	prevID := ""
	if r.pinned != nil {
		prevID = r.pinned.ID
	}
	product := *e.Product
	r.pinned = &product
	r.clearAuctionLocked()
	r.clearGiveawayLocked()

	if product.ID != prevID || e.Kind == events.NameProductPinned {
		r.requestShippingLocked(product.ID, product.OwnerID)
	}
}

func (r *Reconciler) onGiveaway(e events.GiveawayEvent) {
	g := e.Giveaway
	if g == nil {
		return
	}

	switch e.Kind {
	case events.NameStartedGiveaway:
		r.giveaway = g.Clone()
		r.clearAuctionLocked()
		r.pinned = nil
	case events.NameJoinedGiveaway:
		if r.giveaway == nil || r.giveaway.ID == g.ID {
			r.giveaway = g.Clone()
		}
	case events.NameEndedGiveaway:
		if g.Winner == nil {
			r.clearGiveawayLocked()
			break
		}
		r.giveaway = g.Clone()
		r.giveaway.Ended = true
		r.showGiveawayWinnerLocked(g)
	}

	r.refetchLocked(TargetGiveaways)
}

func (r *Reconciler) showGiveawayWinnerLocked(g *models.Giveaway) {
	alert := &GiveawayWinnerAlert{
		GiveawayID: g.ID,
		Winner:     *g.Winner,
		Self:       g.Winner.UserID != "" && g.Winner.UserID == r.viewer.UserID,
		ExpiresAt:  r.clock.Now().Add(r.cfg.GiveawayWinnerTTL),
	}
	r.giveawayWinner = alert
	r.giveawayDismiss.Arm(r.cfg.GiveawayWinnerTTL, func() {
		r.locked(func() {
			if r.giveawayWinner != alert {
				return
			}
			r.giveawayWinner = nil
			if r.giveaway != nil && r.giveaway.ID == alert.GiveawayID {
				r.giveaway = nil
			}
		})
	})

	r.notifyLocked(Notification{
		Kind:    NotifyGiveawayWinner,
		Title:   "Giveaway winner",
		Message: g.Winner.UserName,
	})
}

func (r *Reconciler) clearGiveawayLocked() {
	r.giveaway = nil
	r.giveawayWinner = nil
	r.giveawayDismiss.Cancel()
}

func (r *Reconciler) onMarketplaceOrder(e events.MarketplaceOrder) {
	if e.OwnerID != "" && r.room.OwnerID == "" {
		r.room.OwnerID = e.OwnerID
	}

	r.invalidateLocked(CacheSalesMetrics, CacheSoldOrders, CacheBuyNowProducts)
	r.refetchLocked(TargetBuyNowProducts)

	if !r.isOwner() {
		return
	}
	buyer := e.BuyerName
	if buyer == "" {
		buyer = "A viewer"
	}
	r.notifyLocked(Notification{
		Kind:    NotifyOrder,
		Title:   "New order",
		Message: fmt.Sprintf("%s bought %d item(s)", buyer, max(e.Quantity, 1)),
		Amount:  e.Total,
	})
}

// onRallyIn moves non-host viewers to the rally target after a short delay.
// The host stays in place.
func (r *Reconciler) onRallyIn(e events.RallyIn) {
	if r.isOwner() || (e.HostID != "" && e.HostID == r.viewer.UserID) {
		return
	}
	if e.TargetRoomID == r.room.ID {
		return
	}

	from, to := r.room.ID, e.TargetRoomID
	r.notifyLocked(Notification{
		Kind:    NotifyRally,
		Title:   "Rally incoming",
		Message: "Taking you to the next show",
	})
	r.rally.Arm(r.cfg.RallyDelay, func() {
		log.Info().Str("from_room_id", from).Str("to_room_id", to).Msg("Following rally")
		r.effects.Redirect(from, to)
	})
}
