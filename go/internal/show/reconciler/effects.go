package reconciler

import (
	"context"
	"time"

	"github.com/mcdev12/liveshow/go/internal/models"
)

// RefetchTarget names a list the data-fetch layer can reload.
type RefetchTarget string

const (
	TargetAuctionProducts   RefetchTarget = "auction-products"
	TargetGiveaways         RefetchTarget = "giveaways"
	TargetOffers            RefetchTarget = "offers"
	TargetScheduledAuctions RefetchTarget = "scheduled-auctions"
	TargetBuyNowProducts    RefetchTarget = "buy-now-products"
)

// CacheKey names a cached resource owned by the data-fetch layer.
type CacheKey string

const (
	CacheSalesMetrics     CacheKey = "sales-metrics"
	CacheSoldOrders       CacheKey = "sold-orders"
	CacheShippingEstimate CacheKey = "shipping-estimate"
	CacheBuyNowProducts   CacheKey = "buy-now-products"
)

// Effects receives the side effects the reconciler decides on. Calls are made
// outside the reconciler lock and must not block on I/O; implementations hand
// network work off to their own goroutines.
type Effects interface {
	Notify(n Notification)
	Invalidate(roomID string, keys ...CacheKey)
	Refetch(roomID string, target RefetchTarget)
	RequestShippingEstimate(roomID, productID, ownerID string)
	Redirect(fromRoomID, toRoomID string)
}

// Projection is the externally cached product-list view of a room's auctions.
// It is a best-effort secondary index: UpdateBids reports false on a miss.
type Projection interface {
	UpdateBids(ctx context.Context, roomID, auctionID string, bids []models.Bid, highest float64) (bool, error)
}

// NopEffects discards every effect.
type NopEffects struct{}

func (NopEffects) Notify(Notification) {}
func (NopEffects) Invalidate(string, ...CacheKey) {}
func (NopEffects) Refetch(string, RefetchTarget) {}
func (NopEffects) RequestShippingEstimate(string, string, string) {}
func (NopEffects) Redirect(string, string) {}

// NotificationKind classifies a user-visible notification.
type NotificationKind string

const (
	NotifyOutbid         NotificationKind = "outbid"
	NotifyWinner         NotificationKind = "winner"
	NotifyGiveawayWinner NotificationKind = "giveaway-winner"
	NotifyOrder          NotificationKind = "order"
	NotifyRally          NotificationKind = "rally"
	NotifyError          NotificationKind = "error"
	NotifyInfo           NotificationKind = "info"
)

// Notification is a toast shown to the viewer. Blocking notifications must be
// acknowledged, the rest are transient.
type Notification struct {
	Kind      NotificationKind `json:"kind"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	AuctionID string           `json:"auction_id,omitempty"`
	Amount    float64          `json:"amount,omitempty"`
	Blocking  bool             `json:"blocking,omitempty"`
	At        time.Time        `json:"at"`
}

// WinnerAlert is the auto-dismissing overlay shown when an auction ends.
type WinnerAlert struct {
	AuctionID string     `json:"auction_id"`
	Bid       models.Bid `json:"bid"`
	Self      bool       `json:"self"`
	ExpiresAt time.Time  `json:"expires_at"`
}

// GiveawayWinnerAlert is the overlay shown when a giveaway ends with a winner.
type GiveawayWinnerAlert struct {
	GiveawayID string                `json:"giveaway_id"`
	Winner     models.GiveawayWinner `json:"winner"`
	Self       bool                  `json:"self"`
	ExpiresAt  time.Time             `json:"expires_at"`
}
