package reconciler

import (
	"github.com/mcdev12/liveshow/go/internal/models"
	"github.com/mcdev12/liveshow/go/internal/show/auction"
)

// autobidTracker remembers enough about the previous bid update to tell the
// viewer, once per ceiling, that their automatic bidding has been beaten.
type autobidTracker struct {
	prevHighest    float64
	alertedCeiling float64
}

func (t *autobidTracker) reset(highest float64) {
	t.prevHighest = highest
	t.alertedCeiling = 0
}

// observe records the new highest bid and reports the viewer's ceiling when an
// exceeded notice is due. The notice fires only when the new highest amount
// beats both the ceiling and the previous highest, somebody else leads, and
// this ceiling has not been reported before.
func (t *autobidTracker) observe(viewerID string, bids []models.Bid, highest float64, leader *models.Bid) (float64, bool) {
	prev := t.prevHighest
	t.prevHighest = highest

	if viewerID == "" {
		return 0, false
	}
	mine := viewerAutobid(viewerID, bids)
	if mine == nil {
		return 0, false
	}
	ceiling := mine.AutobidCeiling
	if highest <= ceiling || highest <= prev {
		return 0, false
	}
	if leader != nil && leader.BidderID == viewerID {
		return 0, false
	}
	if ceiling == t.alertedCeiling {
		return 0, false
	}
	t.alertedCeiling = ceiling
	return ceiling, true
}

// viewerAutobid returns the viewer's latest bid carrying a ceiling. The feed
// keeps earlier entries, so a raised ceiling only shows up at the tail.
func viewerAutobid(viewerID string, bids []models.Bid) *models.Bid {
	for i := len(bids) - 1; i >= 0; i-- {
		if bids[i].BidderID == viewerID && bids[i].HasCeiling() {
			b := bids[i]
			return &b
		}
	}
	return nil
}

func (r *Reconciler) evaluateAutobidLocked(a *models.Auction) {
	highest := auction.CurrentBid(a)
	ceiling, due := r.autobid.observe(r.viewer.UserID, a.Bids, highest, r.leader)
	if !due {
		return
	}
	r.notifyLocked(Notification{
		Kind:      NotifyOutbid,
		Title:     "Auto-bid exceeded",
		Message:   "Someone bid above your maximum",
		AuctionID: a.ID,
		Amount:    ceiling,
	})
}
