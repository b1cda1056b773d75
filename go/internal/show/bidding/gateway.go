package bidding

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/liveshow/go/internal/models"
	"github.com/mcdev12/liveshow/go/internal/show/auction"
	"github.com/mcdev12/liveshow/go/internal/show/events"
	"github.com/mcdev12/liveshow/go/internal/show/schedule"
)

// DefaultFallbackDelay is how long a submitted bid waits for its confirming
// bid-updated before the auction is refetched.
const DefaultFallbackDelay = 500 * time.Millisecond

// Emitter sends a bid placement over the realtime channel. There is no
// acknowledgement.
type Emitter interface {
	PlaceBid(p events.PlaceBidPayload) error
}

// Refresher reloads an auction from the data-fetch layer.
type Refresher interface {
	RefreshAuction(roomID, auctionID string)
}

// Request is a bid the viewer wants to place.
type Request struct {
	Amount         float64
	AutobidCeiling float64
	Prebid         bool
	// DetailPage marks bids from a product detail page, where the seller
	// also sees the bid button.
	DetailPage bool
}

// Gateway validates and emits bids for one viewer.
type Gateway struct {
	viewer    models.Viewer
	now       func() time.Time
	emitter   Emitter
	refresher Refresher
	delay     time.Duration

	mu       sync.Mutex
	pending  string
	fallback *schedule.Timer
}

// NewGateway creates a gateway. now must return server-synced time.
func NewGateway(viewer models.Viewer, clock clockwork.Clock, now func() time.Time, emitter Emitter, refresher Refresher, delay time.Duration) *Gateway {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if now == nil {
		now = clock.Now
	}
	if delay <= 0 {
		delay = DefaultFallbackDelay
	}
	return &Gateway{
		viewer:    viewer,
		now:       now,
		emitter:   emitter,
		refresher: refresher,
		delay:     delay,
		fallback:  schedule.NewTimer(clock),
	}
}

// Validate checks every precondition for bidding on a without emitting.
func (g *Gateway) Validate(a *models.Auction, req Request) error {
	if !g.viewer.Authenticated() {
		return ErrNotAuthenticated
	}
	if a == nil || a.ID == "" {
		return ErrNoAuction
	}

	left := auction.ComputeTimeLeft(a, g.now)
	if left.NotStarted && !(req.Prebid && a.Scheduled()) {
		return ErrAuctionNotStarted
	}
	if !left.NotStarted && g.closed(a) {
		return ErrAuctionEnded
	}
	if req.DetailPage && a.SellerID != "" && a.SellerID == g.viewer.UserID {
		return ErrSelfBid
	}

	if minimum := auction.MinimumNextBid(a); req.Amount < minimum {
		return fmt.Errorf("%w: minimum is %.2f", ErrBidTooLow, minimum)
	}
	if req.AutobidCeiling > 0 && req.AutobidCeiling < req.Amount {
		return fmt.Errorf("%w: auto-bid maximum %.2f is under the bid", ErrBidTooLow, req.AutobidCeiling)
	}
	return nil
}

// Submit validates the bid, emits it and arms the fallback refetch. The
// returned payload carries the client bid id used for deduplication.
func (g *Gateway) Submit(a *models.Auction, req Request) (events.PlaceBidPayload, error) {
	if err := g.Validate(a, req); err != nil {
		return events.PlaceBidPayload{}, err
	}

	kind := a.Kind
	if kind == "" {
		kind = models.AuctionKindShow
	}
	payload := events.PlaceBidPayload{
		ClientBidID:   uuid.NewString(),
		UserID:        g.viewer.UserID,
		Amount:        req.Amount,
		Increment:     a.Increment,
		AuctionID:     a.ID,
		Prebid:        req.Prebid,
		Autobid:       req.AutobidCeiling > 0,
		AutobidAmount: req.AutobidCeiling,
		RoomID:        a.RoomID,
		Type:          kind,
	}

	if err := g.emitter.PlaceBid(payload); err != nil {
		return events.PlaceBidPayload{}, fmt.Errorf("emit place-bid: %w", err)
	}

	log.Info().
		Str("auction_id", a.ID).
		Str("client_bid_id", payload.ClientBidID).
		Float64("amount", req.Amount).
		Bool("autobid", payload.Autobid).
		Msg("Bid submitted")

	g.armFallback(a.RoomID, a.ID)
	return payload, nil
}

// Confirm cancels the fallback refetch once an update for auctionID arrived.
func (g *Gateway) Confirm(auctionID string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.pending == "" || g.pending != auctionID {
		return
	}
	g.pending = ""
	g.fallback.Cancel()
}

// Close drops any pending fallback.
func (g *Gateway) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.pending = ""
	g.fallback.Cancel()
}

func (g *Gateway) armFallback(roomID, auctionID string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.pending = auctionID
	g.fallback.Arm(g.delay, func() {
		g.mu.Lock()
		if g.pending != auctionID {
			g.mu.Unlock()
			return
		}
		g.pending = ""
		g.mu.Unlock()

		log.Debug().Str("auction_id", auctionID).Msg("No bid confirmation, refetching auction")
		if g.refresher != nil {
			g.refresher.RefreshAuction(roomID, auctionID)
		}
	})
}

// closed reports whether a started auction can no longer take bids.
func (g *Gateway) closed(a *models.Auction) bool {
	if a.Scheduled() {
		return !g.now().Before(a.EndTimeDate)
	}
	if a.Ended {
		return true
	}
	deadline, ok := auction.Deadline(a)
	return ok && !g.now().Before(deadline)
}
