package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/liveshow/go/internal/models"
	"github.com/mcdev12/liveshow/go/internal/show/bidding"
	"github.com/mcdev12/liveshow/go/internal/show/catalog"
	"github.com/mcdev12/liveshow/go/internal/show/events"
	"github.com/mcdev12/liveshow/go/internal/show/gateway"
	"github.com/mcdev12/liveshow/go/internal/show/reconciler"
	"github.com/mcdev12/liveshow/go/internal/show/room"
	"github.com/mcdev12/liveshow/go/internal/show/timesync"
)

// Config holds the timings of a viewer session.
type Config struct {
	Reconciler  reconciler.Config
	LeaveDelay  time.Duration
	BidFallback time.Duration
}

// DefaultConfig returns the production timings.
func DefaultConfig() Config {
	return Config{
		Reconciler:  reconciler.DefaultConfig(),
		LeaveDelay:  room.DefaultLeaveDelay,
		BidFallback: bidding.DefaultFallbackDelay,
	}
}

// Publisher pushes reconciled state to rendering clients.
type Publisher interface {
	BroadcastToRoom(roomID, kind string, data any)
	BroadcastToUser(roomID, userID, kind string, data any)
}

// Session is one viewer's view of live shows over one transport. It is in at
// most one room at a time and owns that room's reconciler. Independent
// sessions share nothing, so several can run side by side.
type Session struct {
	id        string
	cfg       Config
	viewer    models.Viewer
	clock     clockwork.Clock
	sync      *timesync.Service
	transport gateway.Transport
	emitter   *gateway.Emitter
	rooms     *room.Manager
	bids      *bidding.Gateway
	catalog   *catalog.Service
	publisher Publisher

	mu       sync.Mutex
	rec      *reconciler.Reconciler
	watching map[string]struct{}
	closed   bool
}

// New wires a session for viewer. publisher may be nil.
func New(cfg Config, viewer models.Viewer, clock clockwork.Clock, transport gateway.Transport, source catalog.Source, store catalog.Store, publisher Publisher) *Session {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	s := &Session{
		id:        uuid.NewString(),
		cfg:       cfg,
		viewer:    viewer,
		clock:     clock,
		sync:      timesync.New(clock),
		transport: transport,
		emitter:   gateway.NewEmitter(transport, viewer.UserID),
		publisher: publisher,
		watching:  make(map[string]struct{}),
	}
	s.catalog = catalog.NewService(source, store, s, viewer.UserID)
	s.rooms = room.NewManager(s.emitter, clock, cfg.LeaveDelay)
	s.bids = bidding.NewGateway(viewer, clock, s.sync.Now, s.emitter, s.catalog, cfg.BidFallback)

	transport.OnConnect(s.onConnect)
	return s
}

// ID identifies the session's listener registration.
func (s *Session) ID() string {
	return s.id
}

// Enter shows roomID. Re-entering the current room only cancels a pending
// leave; entering another room replaces the reconciler.
func (s *Session) Enter(roomID string) {
	if roomID == "" {
		s.Exit()
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if s.rec != nil && s.rec.RoomID() == roomID {
		s.mu.Unlock()
		s.rooms.Enter(roomID)
		return
	}
	previous := s.rec
	s.rec = reconciler.New(s.cfg.Reconciler, s.viewer, roomID, s.clock, s.sync, &roomEffects{session: s, roomID: roomID}, s.catalog)
	s.mu.Unlock()

	if previous != nil {
		previous.Close()
		s.bids.Close()
	}
	s.transport.Listeners().Register(s.id, s)
	s.rooms.Enter(roomID)

	log.Info().Str("session_id", s.id).Str("room_id", roomID).Msg("Entered room")

	s.catalog.Refetch(roomID, reconciler.TargetAuctionProducts)
	s.catalog.Refetch(roomID, reconciler.TargetBuyNowProducts)
	s.catalog.Refetch(roomID, reconciler.TargetGiveaways)
	s.catalog.Refetch(roomID, reconciler.TargetOffers)
}

// Exit leaves the current room after the debounce delay.
func (s *Session) Exit() {
	s.rooms.Teardown()
}

// Room returns the room the session shows, or "".
func (s *Session) Room() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rec == nil {
		return ""
	}
	return s.rec.RoomID()
}

// HandleEvent applies one inbound event to the current room.
func (s *Session) HandleEvent(ev events.Event) {
	rec := s.current()
	if rec == nil {
		return
	}

	rec.Dispatch(ev)

	switch e := ev.(type) {
	case events.BidUpdated:
		s.bids.Confirm(e.Patch.AuctionID)
	case events.UserBidUpdated:
		s.bids.Confirm(e.AuctionID)
	}
	s.publish(rec)
}

// AuctionFetched reconciles an auction loaded by the catalog.
func (s *Session) AuctionFetched(roomID string, a *models.Auction) {
	rec := s.currentFor(roomID)
	if rec == nil {
		return
	}
	rec.ApplyFetchedAuction(a)
	s.publish(rec)
}

// FetchFailed surfaces a failed background fetch as a transient error.
func (s *Session) FetchFailed(roomID, what string, err error) {
	rec := s.currentFor(roomID)
	if rec == nil {
		return
	}
	rec.Notify(reconciler.Notification{
		Kind:    reconciler.NotifyError,
		Title:   "Couldn't refresh",
		Message: fmt.Sprintf("Loading %s failed", what),
	})
}

// RoomState returns the reconciled state of roomID.
func (s *Session) RoomState(_ context.Context, roomID string) (*gateway.RoomStateResponse, error) {
	rec := s.currentFor(roomID)
	if rec == nil {
		return nil, fmt.Errorf("room %s: %w", roomID, gateway.ErrRoomNotFound)
	}

	snap := rec.Snapshot()
	resp := &gateway.RoomStateResponse{
		RoomID:      roomID,
		TimeLeftSec: snap.TimeLeft.Seconds,
		NotStarted:  snap.TimeLeft.NotStarted,
		Snapshot:    snap,
		Lists:       s.catalog.Lists(roomID),
	}

	productID := ""
	switch {
	case snap.Pinned != nil:
		productID = snap.Pinned.ID
	case snap.Auction != nil:
		productID = snap.Auction.ProductID
	}
	if est, ok := s.catalog.Estimate(productID); ok {
		resp.ShippingEstimate = &est
	}
	return resp, nil
}

// PlaceBid submits a bid on the displayed auction, or on a scheduled
// auction of the room when req names one. Validation failures are also
// shown to the viewer as a blocking notification.
func (s *Session) PlaceBid(_ context.Context, roomID string, req gateway.BidRequest) (*gateway.BidResponse, error) {
	rec := s.currentFor(roomID)
	if rec == nil {
		return nil, fmt.Errorf("room %s: %w", roomID, gateway.ErrRoomNotFound)
	}

	a := rec.Auction()
	detail := req.DetailPage
	if req.AuctionID != "" && (a == nil || a.ID != req.AuctionID) {
		a = s.scheduledAuction(roomID, req.AuctionID)
		detail = true
	}

	payload, err := s.bids.Submit(a, bidding.Request{
		Amount:         req.Amount,
		AutobidCeiling: req.AutobidCeiling,
		Prebid:         req.Prebid,
		DetailPage:     detail,
	})
	if err != nil {
		if !errors.Is(err, gateway.ErrNotConnected) {
			rec.Notify(reconciler.Notification{
				Kind:     reconciler.NotifyError,
				Title:    "Bid not placed",
				Message:  err.Error(),
				Blocking: true,
			})
		}
		s.publish(rec)
		return nil, err
	}

	return &gateway.BidResponse{
		ClientBidID: payload.ClientBidID,
		AuctionID:   payload.AuctionID,
		Amount:      payload.Amount,
	}, nil
}

// WatchScheduledAuction subscribes to updates of a scheduled auction's
// detail view. The returned func unsubscribes.
func (s *Session) WatchScheduledAuction(auctionID string) (func(), error) {
	if err := s.emitter.JoinScheduleAuction(auctionID); err != nil {
		return nil, fmt.Errorf("join scheduled auction %s: %w", auctionID, err)
	}

	s.mu.Lock()
	s.watching[auctionID] = struct{}{}
	s.mu.Unlock()

	if roomID := s.Room(); roomID != "" {
		s.catalog.Refetch(roomID, reconciler.TargetScheduledAuctions)
	}

	var once sync.Once
	return func() {
		once.Do(func() { s.unwatch(auctionID) })
	}, nil
}

func (s *Session) unwatch(auctionID string) {
	s.mu.Lock()
	_, ok := s.watching[auctionID]
	delete(s.watching, auctionID)
	s.mu.Unlock()

	if !ok {
		return
	}
	if err := s.emitter.LeaveScheduleAuction(auctionID); err != nil {
		log.Warn().Err(err).Str("auction_id", auctionID).Msg("Failed to leave scheduled auction")
	}
}

// Close leaves the room immediately and releases timers and listeners.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	rec := s.rec
	watching := make([]string, 0, len(s.watching))
	for id := range s.watching {
		watching = append(watching, id)
	}
	s.mu.Unlock()

	for _, id := range watching {
		s.unwatch(id)
	}
	s.rooms.LeaveNow()
	s.transport.Listeners().Unregister(s.id)
	s.bids.Close()
	if rec != nil {
		rec.Close()
	}
	s.catalog.Wait()

	log.Info().Str("session_id", s.id).Msg("Session closed")
}

func (s *Session) current() *reconciler.Reconciler {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	return s.rec
}

func (s *Session) currentFor(roomID string) *reconciler.Reconciler {
	rec := s.current()
	if rec == nil || rec.RoomID() != roomID {
		return nil
	}
	return rec
}

func (s *Session) scheduledAuction(roomID, auctionID string) *models.Auction {
	for _, a := range s.catalog.Lists(roomID).ScheduledAuctions {
		if a != nil && a.ID == auctionID {
			return a.Clone()
		}
	}
	return nil
}

func (s *Session) onConnect() {
	s.rooms.OnReconnect()
	if roomID := s.rooms.Current(); roomID != "" && !s.rooms.Leaving() {
		s.catalog.Refetch(roomID, reconciler.TargetAuctionProducts)
	}
}

func (s *Session) publish(rec *reconciler.Reconciler) {
	if s.publisher == nil {
		return
	}
	s.publisher.BroadcastToRoom(rec.RoomID(), "snapshot", rec.Snapshot())
}
