package reconciler

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/liveshow/go/internal/models"
	"github.com/mcdev12/liveshow/go/internal/show/auction"
	"github.com/mcdev12/liveshow/go/internal/show/events"
	"github.com/mcdev12/liveshow/go/internal/show/schedule"
	"github.com/mcdev12/liveshow/go/internal/show/timesync"
)

// Config holds the presentation timings of a room's reconciler.
type Config struct {
	WinnerAlertTTL    time.Duration
	GiveawayWinnerTTL time.Duration
	TimeAddedTTL      time.Duration
	RefetchWindow     time.Duration
	RallyDelay        time.Duration
	NotificationLimit int
}

// DefaultConfig returns the production timings.
func DefaultConfig() Config {
	return Config{
		WinnerAlertTTL:    5 * time.Second,
		GiveawayWinnerTTL: 10 * time.Second,
		TimeAddedTTL:      3 * time.Second,
		RefetchWindow:     500 * time.Millisecond,
		RallyDelay:        2 * time.Second,
		NotificationLimit: 20,
	}
}

// Reconciler owns the state of one room as seen by one viewer and applies
// every inbound socket event to it. Dispatch is serialized with the timer
// callbacks it arms, so handlers always see a consistent store.
type Reconciler struct {
	cfg        Config
	viewer     models.Viewer
	clock      clockwork.Clock
	sync       *timesync.Service
	effects    Effects
	projection Projection

	mu             sync.Mutex
	room           models.Room
	auction        auction.State
	leader         *models.Bid
	pinned         *models.PinnedProduct
	giveaway       *models.Giveaway
	winner         *WinnerAlert
	giveawayWinner *GiveawayWinnerAlert
	timeAdded      bool
	alerted        map[string]struct{}
	autobid        autobidTracker
	feed           []Notification
	queued         []func()

	countdown       *schedule.Timer
	winnerDismiss   *schedule.Timer
	giveawayDismiss *schedule.Timer
	timeAddedReset  *schedule.Timer
	rally           *schedule.Timer
	refetch         *schedule.Throttle
}

// New creates a reconciler for roomID. A nil projection disables projection
// updates; nil effects discards them.
func New(cfg Config, viewer models.Viewer, roomID string, clock clockwork.Clock, ts *timesync.Service, effects Effects, projection Projection) *Reconciler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if ts == nil {
		ts = timesync.New(clock)
	}
	if effects == nil {
		effects = NopEffects{}
	}
	if cfg.NotificationLimit <= 0 {
		cfg.NotificationLimit = DefaultConfig().NotificationLimit
	}

	return &Reconciler{
		cfg:             cfg,
		viewer:          viewer,
		clock:           clock,
		sync:            ts,
		effects:         effects,
		projection:      projection,
		room:            models.Room{ID: roomID},
		alerted:         make(map[string]struct{}),
		countdown:       schedule.NewTimer(clock),
		winnerDismiss:   schedule.NewTimer(clock),
		giveawayDismiss: schedule.NewTimer(clock),
		timeAddedReset:  schedule.NewTimer(clock),
		rally:           schedule.NewTimer(clock),
		refetch:         schedule.NewThrottle(clock, cfg.RefetchWindow),
	}
}

// RoomID returns the room this reconciler tracks.
func (r *Reconciler) RoomID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.room.ID
}

// Dispatch applies one decoded event. Side effects run after the store is
// updated and the lock is released.
func (r *Reconciler) Dispatch(ev events.Event) {
	r.mu.Lock()
	r.dispatchLocked(ev)
	queued := r.takeQueuedLocked()
	r.mu.Unlock()

	runQueued(queued)
}

func (r *Reconciler) dispatchLocked(ev events.Event) {
	if id := roomOf(ev); id != "" && r.room.ID != "" && id != r.room.ID {
		log.Debug().
			Str("event", ev.Name()).
			Str("event_room_id", id).
			Str("room_id", r.room.ID).
			Msg("Dropping event for another room")
		return
	}

	switch e := ev.(type) {
	case events.Presence:
		r.onPresence(e)
	case events.RoomLifecycle:
		r.onRoomLifecycle(e)
	case events.ProductPinned:
		r.onProductPinned(e)
	case events.AuctionStarted:
		r.onAuctionStarted(e)
	case events.AuctionPinned:
		r.onAuctionPinned(e)
	case events.BidUpdated:
		r.onBidUpdated(e)
	case events.UserBidUpdated:
		r.onUserBidUpdated(e)
	case events.AuctionTimeExtended:
		r.onAuctionTimeExtended(e)
	case events.AuctionEnded:
		r.onAuctionEnded(e)
	case events.AuctionUpdate:
		r.invalidateSalesLocked()
		r.refetchLocked(TargetAuctionProducts)
	case events.GiveawayEvent:
		r.onGiveaway(e)
	case events.MarketplaceOrder:
		r.onMarketplaceOrder(e)
	case events.FetchOffers:
		r.refetchLocked(TargetOffers)
	case events.RallyIn:
		r.onRallyIn(e)
	case events.ScheduledAuctionCreated:
		r.refetchLocked(TargetScheduledAuctions)
	default:
		log.Warn().Str("event", ev.Name()).Msg("No handler for event")
	}
}

// Notify appends a notification to the feed and forwards it.
func (r *Reconciler) Notify(n Notification) {
	r.mu.Lock()
	r.notifyLocked(n)
	queued := r.takeQueuedLocked()
	r.mu.Unlock()

	runQueued(queued)
}

// ApplyFetchedAuction reconciles an auction document loaded over HTTP. For
// the displayed auction it is merged without undoing newer socket state; when
// nothing is displayed a live document is pinned like a snapshot. Anything
// else is ignored.
func (r *Reconciler) ApplyFetchedAuction(a *models.Auction) {
	if a == nil {
		return
	}

	r.mu.Lock()
	current := r.auction.Auction
	switch {
	case current != nil && current.ID == a.ID:
		r.mergeFetchedLocked(a)
	case current == nil && r.pinned == nil && r.giveaway == nil && a.Active():
		r.pinAuctionLocked(a)
	}
	queued := r.takeQueuedLocked()
	r.mu.Unlock()

	runQueued(queued)
}

// Close cancels every pending timer.
func (r *Reconciler) Close() {
	r.countdown.Cancel()
	r.winnerDismiss.Cancel()
	r.giveawayDismiss.Cancel()
	r.timeAddedReset.Cancel()
	r.rally.Cancel()
}

func (r *Reconciler) syncClock(serverTime time.Time, source string) {
	r.sync.UpdateFromServerTime(serverTime, source)
}

func (r *Reconciler) isOwner() bool {
	return r.viewer.UserID != "" && r.viewer.UserID == r.room.OwnerID
}

// queue defers fn until the lock is released.
func (r *Reconciler) queue(fn func()) {
	r.queued = append(r.queued, fn)
}

func (r *Reconciler) takeQueuedLocked() []func() {
	queued := r.queued
	r.queued = nil
	return queued
}

func runQueued(queued []func()) {
	for _, fn := range queued {
		fn()
	}
}

// locked runs fn under the lock and then flushes queued effects. Timer
// callbacks enter through here.
func (r *Reconciler) locked(fn func()) {
	r.mu.Lock()
	fn()
	queued := r.takeQueuedLocked()
	r.mu.Unlock()

	runQueued(queued)
}

func (r *Reconciler) notifyLocked(n Notification) {
	if n.At.IsZero() {
		n.At = r.sync.Now()
	}
	r.feed = append(r.feed, n)
	if over := len(r.feed) - r.cfg.NotificationLimit; over > 0 {
		r.feed = append([]Notification(nil), r.feed[over:]...)
	}
	r.queue(func() { r.effects.Notify(n) })
}

func (r *Reconciler) refetchLocked(target RefetchTarget) {
	roomID := r.room.ID
	if !r.refetch.Allow(roomID + "/" + string(target)) {
		log.Debug().Str("room_id", roomID).Str("target", string(target)).Msg("Refetch throttled")
		return
	}
	r.queue(func() { r.effects.Refetch(roomID, target) })
}

func (r *Reconciler) invalidateLocked(keys ...CacheKey) {
	roomID := r.room.ID
	r.queue(func() { r.effects.Invalidate(roomID, keys...) })
}

func (r *Reconciler) invalidateSalesLocked() {
	r.invalidateLocked(CacheSalesMetrics, CacheSoldOrders)
}

func (r *Reconciler) requestShippingLocked(productID, ownerID string) {
	if productID == "" || r.isOwner() {
		return
	}
	if ownerID == "" {
		ownerID = r.room.OwnerID
	}
	roomID := r.room.ID
	r.queue(func() { r.effects.RequestShippingEstimate(roomID, productID, ownerID) })
}

func roomOf(ev events.Event) string {
	switch e := ev.(type) {
	case events.Presence:
		return e.RoomID
	case events.RoomLifecycle:
		return e.RoomID
	case events.ProductPinned:
		return e.RoomID
	case events.AuctionStarted:
		if e.Auction != nil {
			return e.Auction.RoomID
		}
	case events.BidUpdated:
		return e.RoomID
	case events.AuctionEnded:
		return e.RoomID
	case events.AuctionUpdate:
		return e.RoomID
	case events.GiveawayEvent:
		if e.Giveaway != nil {
			return e.Giveaway.RoomID
		}
	case events.MarketplaceOrder:
		return e.RoomID
	case events.FetchOffers:
		return e.RoomID
	case events.ScheduledAuctionCreated:
		return e.RoomID
	}
	return ""
}
