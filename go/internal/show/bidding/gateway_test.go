package bidding

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/liveshow/go/internal/models"
	"github.com/mcdev12/liveshow/go/internal/show/events"
)

type fakeEmitter struct {
	mu   sync.Mutex
	sent []events.PlaceBidPayload
	err  error
}

func (e *fakeEmitter) PlaceBid(p events.PlaceBidPayload) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return e.err
	}
	e.sent = append(e.sent, p)
	return nil
}

type fakeRefresher struct {
	mu    sync.Mutex
	calls []string
}

func (r *fakeRefresher) RefreshAuction(_, auctionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, auctionID)
}

func (r *fakeRefresher) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func liveAuction(now time.Time) *models.Auction {
	return &models.Auction{
		ID:          "a1",
		RoomID:      "r1",
		SellerID:    "seller",
		Kind:        models.AuctionKindShow,
		BasePrice:   20,
		Increment:   5,
		Bids:        []models.Bid{{BidderID: "u2", Amount: 25}},
		Started:     true,
		Duration:    5 * time.Minute,
		StartedTime: now.Add(-time.Minute),
	}
}

func newGateway(viewer models.Viewer) (*Gateway, *fakeEmitter, *fakeRefresher, *clockwork.FakeClock) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, 5, 1, 18, 0, 0, 0, time.UTC))
	emitter := &fakeEmitter{}
	refresher := &fakeRefresher{}
	return NewGateway(viewer, clock, clock.Now, emitter, refresher, DefaultFallbackDelay), emitter, refresher, clock
}

func TestGateway_Guards(t *testing.T) {
	now := time.Date(2024, 5, 1, 18, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		viewer  models.Viewer
		auction func() *models.Auction
		req     Request
		wantErr error
	}{
		{
			name:    "anonymous viewer",
			viewer:  models.Viewer{},
			auction: func() *models.Auction { return liveAuction(now) },
			req:     Request{Amount: 30},
			wantErr: ErrNotAuthenticated,
		},
		{
			name:    "no auction",
			viewer:  models.Viewer{UserID: "u1"},
			auction: func() *models.Auction { return nil },
			req:     Request{Amount: 30},
			wantErr: ErrNoAuction,
		},
		{
			name:   "not started",
			viewer: models.Viewer{UserID: "u1"},
			auction: func() *models.Auction {
				a := liveAuction(now)
				a.Started = false
				return a
			},
			req:     Request{Amount: 30},
			wantErr: ErrAuctionNotStarted,
		},
		{
			name:   "ended flag",
			viewer: models.Viewer{UserID: "u1"},
			auction: func() *models.Auction {
				a := liveAuction(now)
				a.Ended = true
				return a
			},
			req:     Request{Amount: 30},
			wantErr: ErrAuctionEnded,
		},
		{
			name:   "deadline passed",
			viewer: models.Viewer{UserID: "u1"},
			auction: func() *models.Auction {
				a := liveAuction(now)
				a.StartedTime = now.Add(-time.Hour)
				return a
			},
			req:     Request{Amount: 30},
			wantErr: ErrAuctionEnded,
		},
		{
			name:    "seller on detail page",
			viewer:  models.Viewer{UserID: "seller"},
			auction: func() *models.Auction { return liveAuction(now) },
			req:     Request{Amount: 30, DetailPage: true},
			wantErr: ErrSelfBid,
		},
		{
			name:    "below minimum",
			viewer:  models.Viewer{UserID: "u1"},
			auction: func() *models.Auction { return liveAuction(now) },
			req:     Request{Amount: 29},
			wantErr: ErrBidTooLow,
		},
		{
			name:    "ceiling under amount",
			viewer:  models.Viewer{UserID: "u1"},
			auction: func() *models.Auction { return liveAuction(now) },
			req:     Request{Amount: 30, AutobidCeiling: 28},
			wantErr: ErrBidTooLow,
		},
		{
			name:   "prebid on scheduled auction",
			viewer: models.Viewer{UserID: "u1"},
			auction: func() *models.Auction {
				return &models.Auction{
					ID:            "s1",
					Kind:          models.AuctionKindScheduled,
					BasePrice:     10,
					StartTimeDate: now.Add(time.Hour),
					EndTimeDate:   now.Add(2 * time.Hour),
				}
			},
			req: Request{Amount: 10, Prebid: true},
		},
		{
			name:    "valid bid",
			viewer:  models.Viewer{UserID: "u1"},
			auction: func() *models.Auction { return liveAuction(now) },
			req:     Request{Amount: 30},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, _, _, _ := newGateway(tt.viewer)
			err := g.Validate(tt.auction(), tt.req)
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestGateway_SubmitEmitsPlaceBid(t *testing.T) {
	g, emitter, _, clock := newGateway(models.Viewer{UserID: "u1"})

	payload, err := g.Submit(liveAuction(clock.Now()), Request{Amount: 30, AutobidCeiling: 50})
	require.NoError(t, err)
	require.Len(t, emitter.sent, 1)

	sent := emitter.sent[0]
	assert.Equal(t, payload, sent)
	assert.NotEmpty(t, sent.ClientBidID)
	assert.Equal(t, "u1", sent.UserID)
	assert.Equal(t, "a1", sent.AuctionID)
	assert.Equal(t, "r1", sent.RoomID)
	assert.Equal(t, 5.0, sent.Increment)
	assert.True(t, sent.Autobid)
	assert.Equal(t, 50.0, sent.AutobidAmount)
	assert.Equal(t, models.AuctionKindShow, sent.Type)
}

func TestGateway_RejectedBidIsNotEmitted(t *testing.T) {
	g, emitter, refresher, clock := newGateway(models.Viewer{})

	_, err := g.Submit(liveAuction(clock.Now()), Request{Amount: 30})
	require.ErrorIs(t, err, ErrNotAuthenticated)
	assert.Empty(t, emitter.sent)

	clock.Advance(time.Second)
	require.Never(t, func() bool { return refresher.count() > 0 }, 50*time.Millisecond, 5*time.Millisecond)
}

func TestGateway_FallbackRefetchWithoutConfirmation(t *testing.T) {
	g, _, refresher, clock := newGateway(models.Viewer{UserID: "u1"})

	_, err := g.Submit(liveAuction(clock.Now()), Request{Amount: 30})
	require.NoError(t, err)

	clock.Advance(DefaultFallbackDelay)
	require.Eventually(t, func() bool { return refresher.count() == 1 }, time.Second, 5*time.Millisecond)
}

func TestGateway_ConfirmCancelsFallback(t *testing.T) {
	g, _, refresher, clock := newGateway(models.Viewer{UserID: "u1"})

	_, err := g.Submit(liveAuction(clock.Now()), Request{Amount: 30})
	require.NoError(t, err)

	g.Confirm("other")
	g.Confirm("a1")

	clock.Advance(time.Second)
	require.Never(t, func() bool { return refresher.count() > 0 }, 50*time.Millisecond, 5*time.Millisecond)
}

func TestGateway_EmitFailure(t *testing.T) {
	g, emitter, _, clock := newGateway(models.Viewer{UserID: "u1"})
	emitter.err = errors.New("socket closed")

	_, err := g.Submit(liveAuction(clock.Now()), Request{Amount: 30})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "socket closed")
}
