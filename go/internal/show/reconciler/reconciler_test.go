package reconciler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/liveshow/go/internal/models"
	"github.com/mcdev12/liveshow/go/internal/show/auction"
	"github.com/mcdev12/liveshow/go/internal/show/events"
	"github.com/mcdev12/liveshow/go/internal/show/timesync"
)

const (
	roomID   = "room-1"
	ownerID  = "seller-1"
	viewerID = "viewer-1"
)

type recorder struct {
	mu          sync.Mutex
	notes       []Notification
	invalidated []CacheKey
	refetches   []RefetchTarget
	shipping    []string
	redirects   []string
}

func (r *recorder) Notify(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, n)
}

func (r *recorder) Invalidate(_ string, keys ...CacheKey) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.invalidated = append(r.invalidated, keys...)
}

func (r *recorder) Refetch(_ string, target RefetchTarget) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refetches = append(r.refetches, target)
}

func (r *recorder) RequestShippingEstimate(_, productID, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shipping = append(r.shipping, productID)
}

func (r *recorder) Redirect(_, to string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.redirects = append(r.redirects, to)
}

func (r *recorder) count(kind NotificationKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, note := range r.notes {
		if note.Kind == kind {
			n++
		}
	}
	return n
}

func (r *recorder) refetchCount(target RefetchTarget) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, got := range r.refetches {
		if got == target {
			n++
		}
	}
	return n
}

func (r *recorder) shippingRequests() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.shipping...)
}

func (r *recorder) redirectTargets() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.redirects...)
}

type fakeProjection struct {
	mu    sync.Mutex
	hit   bool
	calls int
}

func (p *fakeProjection) UpdateBids(context.Context, string, string, []models.Bid, float64) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return p.hit, nil
}

type fixture struct {
	clock *clockwork.FakeClock
	rec   *recorder
	r     *Reconciler
}

func newFixture(t *testing.T, viewer models.Viewer, projection Projection) *fixture {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2024, 5, 1, 18, 0, 0, 0, time.UTC))
	rec := &recorder{}
	r := New(DefaultConfig(), viewer, roomID, clock, timesync.New(clock), rec, projection)
	t.Cleanup(r.Close)
	return &fixture{clock: clock, rec: rec, r: r}
}

func (f *fixture) startAuction(id string, startedAgo time.Duration, bids ...models.Bid) {
	now := f.clock.Now()
	f.r.Dispatch(events.AuctionStarted{
		Auction: &models.Auction{
			ID:          id,
			ProductID:   "product-" + id,
			RoomID:      roomID,
			SellerID:    ownerID,
			BasePrice:   20,
			Increment:   1,
			Bids:        bids,
			Duration:    5 * time.Minute,
			StartedTime: now.Add(-startedAgo),
		},
		ServerTime: now,
	})
}

func bidPatch(id string, bids ...models.Bid) auction.Patch {
	return auction.Patch{AuctionID: id, Bids: bids}
}

func ptr[T any](v T) *T { return &v }

func TestDispatch_BidsAndCountdown(t *testing.T) {
	f := newFixture(t, models.Viewer{UserID: viewerID}, nil)
	f.startAuction("a1", time.Minute)

	f.r.Dispatch(events.BidUpdated{RoomID: roomID, Patch: bidPatch("a1", models.Bid{BidderID: "u1", Amount: 25})})
	f.r.Dispatch(events.BidUpdated{RoomID: roomID, Patch: bidPatch("a1",
		models.Bid{BidderID: "u1", Amount: 25},
		models.Bid{BidderID: "u2", Amount: 30},
	)})

	snap := f.r.Snapshot()
	require.NotNil(t, snap.Auction)
	require.Equal(t, 30.0, snap.CurrentBid)
	require.Equal(t, 31.0, snap.MinimumBid)
	require.Equal(t, "u2", snap.Leader.BidderID)
	require.Equal(t, 240, snap.TimeLeft.Seconds)
	require.False(t, snap.TimeLeft.NotStarted)
	require.Equal(t, "a1", snap.RunningAuctionID)
}

func TestDispatch_AuctionStartedRequestsShippingForViewersOnly(t *testing.T) {
	f := newFixture(t, models.Viewer{UserID: viewerID}, nil)
	f.startAuction("a1", 0)
	require.Equal(t, []string{"product-a1"}, f.rec.shippingRequests())

	owner := newFixture(t, models.Viewer{UserID: ownerID}, nil)
	owner.r.Dispatch(events.Presence{
		Kind:   events.NameCurrentUserJoined,
		RoomID: roomID,
		Room:   &events.RoomState{Room: models.Room{ID: roomID, OwnerID: ownerID}},
	})
	owner.startAuction("a1", 0)
	require.Empty(t, owner.rec.shippingRequests())
}

func TestDispatch_WinnerAlertShownOnce(t *testing.T) {
	f := newFixture(t, models.Viewer{UserID: viewerID}, nil)
	f.startAuction("a1", time.Minute)

	ended := events.AuctionEnded{RoomID: roomID, Patch: bidPatch("a1",
		models.Bid{BidderID: "u1", Amount: 25},
		models.Bid{BidderID: viewerID, Amount: 40},
	)}
	f.r.Dispatch(ended)
	f.r.Dispatch(ended)

	snap := f.r.Snapshot()
	require.True(t, snap.Auction.Ended)
	require.NotNil(t, snap.Winner)
	require.True(t, snap.Winner.Self)
	require.Equal(t, 40.0, snap.Winner.Bid.Amount)
	require.Empty(t, snap.RunningAuctionID)
	require.Equal(t, 1, f.rec.count(NotifyWinner))

	f.clock.Advance(5 * time.Second)
	require.Eventually(t, func() bool { return f.r.Snapshot().Winner == nil }, time.Second, 5*time.Millisecond)
}

func TestDispatch_CountdownExpiryAndServerEndAlertOnce(t *testing.T) {
	f := newFixture(t, models.Viewer{UserID: viewerID}, nil)
	f.startAuction("a1", 4*time.Minute+50*time.Second, models.Bid{BidderID: "u1", Amount: 25})

	f.clock.Advance(10 * time.Second)
	require.Eventually(t, func() bool {
		snap := f.r.Snapshot()
		return snap.Auction != nil && snap.Auction.Ended && snap.Winner != nil
	}, time.Second, 5*time.Millisecond)
	require.Equal(t, 0, f.r.Snapshot().TimeLeft.Seconds)

	f.r.Dispatch(events.AuctionEnded{RoomID: roomID, Patch: auction.Patch{AuctionID: "a1"}})
	require.Equal(t, 1, f.rec.count(NotifyWinner))
	require.Equal(t, "u1", f.r.Snapshot().Winner.Bid.BidderID)
}

func TestDispatch_TimeExtensionDelaysLocalEnd(t *testing.T) {
	f := newFixture(t, models.Viewer{UserID: viewerID}, nil)
	f.startAuction("a1", 4*time.Minute+50*time.Second)

	f.r.Dispatch(events.AuctionTimeExtended{
		AuctionID:  "a1",
		EndTime:    f.clock.Now().Add(30 * time.Second),
		ServerTime: f.clock.Now(),
	})
	snap := f.r.Snapshot()
	require.True(t, snap.TimeAdded)
	require.Equal(t, 30, snap.TimeLeft.Seconds)

	f.clock.Advance(10 * time.Second)
	require.Never(t, func() bool { return f.r.Snapshot().Auction.Ended }, 50*time.Millisecond, 5*time.Millisecond)

	require.Eventually(t, func() bool { return !f.r.Snapshot().TimeAdded }, time.Second, 5*time.Millisecond)
}

func TestDispatch_StaleEndedFlagOnRunningAuction(t *testing.T) {
	f := newFixture(t, models.Viewer{UserID: viewerID}, nil)
	f.startAuction("a1", time.Minute)

	f.r.Dispatch(events.AuctionPinned{
		Snapshot: events.RoomState{
			Room:    models.Room{ID: roomID},
			Auction: &models.Auction{ID: "a1", BasePrice: 20, Started: true, Ended: true, Duration: 5 * time.Minute, StartedTime: f.clock.Now().Add(-time.Minute)},
		},
		ServerTime: f.clock.Now(),
	})
	require.False(t, f.r.Snapshot().Auction.Ended)

	f.r.Dispatch(events.BidUpdated{RoomID: roomID, Patch: auction.Patch{
		AuctionID: "old",
		Bids:      []models.Bid{{BidderID: "u9", Amount: 99}},
		Ended:     ptr(true),
	}})

	snap := f.r.Snapshot()
	require.Equal(t, "a1", snap.Auction.ID)
	require.False(t, snap.Auction.Ended)
	require.Equal(t, 20.0, snap.CurrentBid)
	require.Equal(t, 1, f.rec.refetchCount(TargetAuctionProducts))
}

func TestDispatch_AutobidExceededOncePerCeiling(t *testing.T) {
	f := newFixture(t, models.Viewer{UserID: viewerID}, nil)
	f.startAuction("a1", time.Minute)

	mine := models.Bid{BidderID: viewerID, Amount: 50, AutobidCeiling: 50, Autobid: true}
	f.r.Dispatch(events.BidUpdated{RoomID: roomID, Patch: bidPatch("a1", mine)})
	require.Equal(t, 0, f.rec.count(NotifyOutbid))

	f.r.Dispatch(events.BidUpdated{RoomID: roomID, Patch: bidPatch("a1", mine, models.Bid{BidderID: "u2", Amount: 55})})
	f.r.Dispatch(events.BidUpdated{RoomID: roomID, Patch: bidPatch("a1", mine, models.Bid{BidderID: "u2", Amount: 60})})

	require.Equal(t, 1, f.rec.count(NotifyOutbid))
}

func TestDispatch_AutobidNotifiesAgainAfterRaisedCeiling(t *testing.T) {
	f := newFixture(t, models.Viewer{UserID: viewerID}, nil)
	f.startAuction("a1", time.Minute)

	first := models.Bid{BidderID: viewerID, Amount: 50, AutobidCeiling: 50, Autobid: true}
	rival := models.Bid{BidderID: "u2", Amount: 55}
	raised := models.Bid{BidderID: viewerID, Amount: 60, AutobidCeiling: 80, Autobid: true}

	f.r.Dispatch(events.BidUpdated{RoomID: roomID, Patch: bidPatch("a1", first)})
	f.r.Dispatch(events.BidUpdated{RoomID: roomID, Patch: bidPatch("a1", first, rival)})
	require.Equal(t, 1, f.rec.count(NotifyOutbid))

	f.r.Dispatch(events.BidUpdated{RoomID: roomID, Patch: bidPatch("a1", first, rival, raised)})
	require.Equal(t, 1, f.rec.count(NotifyOutbid))

	f.r.Dispatch(events.BidUpdated{RoomID: roomID, Patch: bidPatch("a1", first, rival, raised, models.Bid{BidderID: "u2", Amount: 85})})
	require.Equal(t, 2, f.rec.count(NotifyOutbid))
}

func TestDispatch_AuctionEndedWhileProductPinned(t *testing.T) {
	f := newFixture(t, models.Viewer{UserID: viewerID}, nil)
	f.startAuction("a1", time.Minute, models.Bid{BidderID: "u1", Amount: 25})

	f.r.Dispatch(events.ProductPinned{
		Kind:    events.NameProductPinned,
		RoomID:  roomID,
		Product: &models.PinnedProduct{ID: "p9", Price: 12, Quantity: 3, OwnerID: ownerID},
	})
	ended := events.AuctionEnded{RoomID: roomID, Patch: bidPatch("a1", models.Bid{BidderID: "u1", Amount: 25})}
	f.r.Dispatch(ended)
	f.r.Dispatch(ended)

	snap := f.r.Snapshot()
	require.Nil(t, snap.Auction)
	require.Nil(t, snap.Leader)
	require.Equal(t, "p9", snap.Pinned.ID)
	require.NotNil(t, snap.Winner)
	require.Equal(t, "u1", snap.Winner.Bid.BidderID)
	require.Empty(t, snap.RunningAuctionID)
	require.Equal(t, 1, f.rec.count(NotifyWinner))
}

func TestDispatch_PinnedItemsAreExclusive(t *testing.T) {
	f := newFixture(t, models.Viewer{UserID: viewerID}, nil)
	f.startAuction("a1", time.Minute)

	f.r.Dispatch(events.ProductPinned{
		Kind:    events.NameProductPinned,
		RoomID:  roomID,
		Product: &models.PinnedProduct{ID: "p9", Price: 12, Quantity: 3, OwnerID: ownerID},
	})
	snap := f.r.Snapshot()
	require.Nil(t, snap.Auction)
	require.Equal(t, "p9", snap.Pinned.ID)
	require.Contains(t, f.rec.shippingRequests(), "p9")

	f.r.Dispatch(events.GiveawayEvent{Kind: events.NameStartedGiveaway, Giveaway: &models.Giveaway{ID: "g1", RoomID: roomID}})
	snap = f.r.Snapshot()
	require.Nil(t, snap.Pinned)
	require.Equal(t, "g1", snap.Giveaway.ID)

	f.startAuction("a2", 0)
	snap = f.r.Snapshot()
	require.Nil(t, snap.Giveaway)
	require.Equal(t, "a2", snap.Auction.ID)
}

func TestDispatch_GiveawayWinnerOverlay(t *testing.T) {
	f := newFixture(t, models.Viewer{UserID: viewerID}, nil)
	f.r.Dispatch(events.GiveawayEvent{Kind: events.NameStartedGiveaway, Giveaway: &models.Giveaway{ID: "g1", RoomID: roomID}})
	f.r.Dispatch(events.GiveawayEvent{Kind: events.NameEndedGiveaway, Giveaway: &models.Giveaway{
		ID:     "g1",
		RoomID: roomID,
		Winner: &models.GiveawayWinner{UserID: viewerID, UserName: "me"},
	}})

	snap := f.r.Snapshot()
	require.NotNil(t, snap.GiveawayWinner)
	require.True(t, snap.GiveawayWinner.Self)
	require.Equal(t, 1, f.rec.count(NotifyGiveawayWinner))

	f.clock.Advance(10 * time.Second)
	require.Eventually(t, func() bool {
		snap := f.r.Snapshot()
		return snap.GiveawayWinner == nil && snap.Giveaway == nil
	}, time.Second, 5*time.Millisecond)
}

func TestDispatch_GiveawayEndedWithoutWinnerClears(t *testing.T) {
	f := newFixture(t, models.Viewer{UserID: viewerID}, nil)
	f.r.Dispatch(events.GiveawayEvent{Kind: events.NameStartedGiveaway, Giveaway: &models.Giveaway{ID: "g1", RoomID: roomID}})
	f.r.Dispatch(events.GiveawayEvent{Kind: events.NameEndedGiveaway, Giveaway: &models.Giveaway{ID: "g1", RoomID: roomID}})

	snap := f.r.Snapshot()
	require.Nil(t, snap.Giveaway)
	require.Nil(t, snap.GiveawayWinner)
}

func TestDispatch_RefetchThrottledPerTarget(t *testing.T) {
	f := newFixture(t, models.Viewer{UserID: viewerID}, nil)

	f.r.Dispatch(events.AuctionUpdate{RoomID: roomID})
	f.r.Dispatch(events.AuctionUpdate{RoomID: roomID})
	f.r.Dispatch(events.FetchOffers{RoomID: roomID})
	require.Equal(t, 1, f.rec.refetchCount(TargetAuctionProducts))
	require.Equal(t, 1, f.rec.refetchCount(TargetOffers))

	f.clock.Advance(500 * time.Millisecond)
	f.r.Dispatch(events.AuctionUpdate{RoomID: roomID})
	require.Equal(t, 2, f.rec.refetchCount(TargetAuctionProducts))
}

func TestDispatch_MarketplaceOrderNotifiesOwnerOnly(t *testing.T) {
	order := events.MarketplaceOrder{RoomID: roomID, OwnerID: ownerID, BuyerName: "sam", Total: 42, Quantity: 2}

	viewer := newFixture(t, models.Viewer{UserID: viewerID}, nil)
	viewer.r.Dispatch(order)
	require.Equal(t, 0, viewer.rec.count(NotifyOrder))
	require.Equal(t, 1, viewer.rec.refetchCount(TargetBuyNowProducts))

	owner := newFixture(t, models.Viewer{UserID: ownerID}, nil)
	owner.r.Dispatch(order)
	require.Equal(t, 1, owner.rec.count(NotifyOrder))
}

func TestDispatch_RallyRedirectsViewersAfterDelay(t *testing.T) {
	f := newFixture(t, models.Viewer{UserID: viewerID}, nil)
	f.r.Dispatch(events.RallyIn{TargetRoomID: "room-2", FromRoomID: roomID, HostID: ownerID})
	require.Equal(t, 1, f.rec.count(NotifyRally))

	f.clock.Advance(time.Second)
	require.Never(t, func() bool { return len(f.rec.redirectTargets()) > 0 }, 50*time.Millisecond, 5*time.Millisecond)

	f.clock.Advance(time.Second)
	require.Eventually(t, func() bool {
		got := f.rec.redirectTargets()
		return len(got) == 1 && got[0] == "room-2"
	}, time.Second, 5*time.Millisecond)

	host := newFixture(t, models.Viewer{UserID: ownerID}, nil)
	host.r.Dispatch(events.RallyIn{TargetRoomID: "room-2", FromRoomID: roomID, HostID: ownerID})
	host.clock.Advance(3 * time.Second)
	require.Never(t, func() bool { return len(host.rec.redirectTargets()) > 0 }, 50*time.Millisecond, 5*time.Millisecond)
}

func TestDispatch_DropsEventsForOtherRooms(t *testing.T) {
	f := newFixture(t, models.Viewer{UserID: viewerID}, nil)
	f.r.Dispatch(events.ProductPinned{
		Kind:    events.NameProductPinned,
		RoomID:  "elsewhere",
		Product: &models.PinnedProduct{ID: "p1"},
	})
	require.Nil(t, f.r.Snapshot().Pinned)
}

func TestDispatch_PresenceTracksViewerCount(t *testing.T) {
	f := newFixture(t, models.Viewer{UserID: viewerID}, nil)
	f.r.Dispatch(events.Presence{Kind: events.NameCurrentUserJoined, RoomID: roomID, Viewers: ptr(10)})
	f.r.Dispatch(events.Presence{Kind: events.NameUserConnected, RoomID: roomID, UserID: "u2"})
	f.r.Dispatch(events.Presence{Kind: events.NameLeftRoom, RoomID: roomID, UserID: "u3"})
	f.r.Dispatch(events.Presence{Kind: events.NameLeftRoom, RoomID: roomID, UserID: "u4"})
	require.Equal(t, 9, f.r.Snapshot().Room.Viewers)

	f.r.Dispatch(events.RoomLifecycle{Kind: events.NameRoomEnded, RoomID: roomID})
	require.Equal(t, models.RoomStatusEnded, f.r.Snapshot().Room.Status)
}

func TestDispatch_ProjectionMissTriggersRefetch(t *testing.T) {
	projection := &fakeProjection{}
	f := newFixture(t, models.Viewer{UserID: viewerID}, projection)
	f.startAuction("a1", time.Minute)

	f.r.Dispatch(events.BidUpdated{RoomID: roomID, Patch: bidPatch("a1", models.Bid{BidderID: "u1", Amount: 25})})
	require.Equal(t, 25.0, f.r.Snapshot().CurrentBid)
	require.Eventually(t, func() bool { return f.rec.refetchCount(TargetAuctionProducts) == 1 }, time.Second, 5*time.Millisecond)

	projection.mu.Lock()
	projection.hit = true
	projection.mu.Unlock()
	f.clock.Advance(time.Second)

	f.r.Dispatch(events.BidUpdated{RoomID: roomID, Patch: bidPatch("a1", models.Bid{BidderID: "u1", Amount: 26})})
	require.Eventually(t, func() bool {
		projection.mu.Lock()
		defer projection.mu.Unlock()
		return projection.calls == 2
	}, time.Second, 5*time.Millisecond)
	require.Never(t, func() bool { return f.rec.refetchCount(TargetAuctionProducts) > 1 }, 50*time.Millisecond, 5*time.Millisecond)
}

func TestApplyFetchedAuction_SanitizesRunningAuction(t *testing.T) {
	f := newFixture(t, models.Viewer{UserID: viewerID}, nil)
	f.startAuction("a1", time.Minute)

	f.r.ApplyFetchedAuction(&models.Auction{
		ID:          "a1",
		BasePrice:   20,
		Started:     true,
		Ended:       true,
		Bids:        []models.Bid{{BidderID: "u1", Amount: 27}},
		Duration:    5 * time.Minute,
		StartedTime: f.clock.Now().Add(-time.Minute),
	})

	snap := f.r.Snapshot()
	require.False(t, snap.Auction.Ended)
	require.Equal(t, 27.0, snap.CurrentBid)
}

func TestApplyFetchedAuction_StaleDocumentKeepsSocketBids(t *testing.T) {
	f := newFixture(t, models.Viewer{UserID: viewerID}, nil)
	f.startAuction("a1", time.Minute)
	f.r.Dispatch(events.BidUpdated{RoomID: roomID, Patch: bidPatch("a1",
		models.Bid{BidderID: "u1", Amount: 25},
		models.Bid{BidderID: "u2", Amount: 30},
	)})

	doc := func(bids ...models.Bid) *models.Auction {
		return &models.Auction{
			ID:          "a1",
			BasePrice:   20,
			Increment:   1,
			Started:     true,
			Bids:        bids,
			Duration:    5 * time.Minute,
			StartedTime: f.clock.Now().Add(-time.Minute),
		}
	}

	f.r.ApplyFetchedAuction(doc(models.Bid{BidderID: "u1", Amount: 25}))
	snap := f.r.Snapshot()
	require.Equal(t, 30.0, snap.CurrentBid)
	require.Equal(t, 31.0, snap.MinimumBid)
	require.Equal(t, "u2", snap.Leader.BidderID)

	f.r.Dispatch(events.AuctionEnded{RoomID: roomID, Patch: auction.Patch{AuctionID: "a1"}})
	f.r.ApplyFetchedAuction(doc(models.Bid{BidderID: "u1", Amount: 25}))
	snap = f.r.Snapshot()
	require.True(t, snap.Auction.Ended)
	require.Equal(t, 30.0, snap.CurrentBid)
	require.Equal(t, 1, f.rec.count(NotifyWinner))
}
