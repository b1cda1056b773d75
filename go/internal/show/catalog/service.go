package catalog

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/liveshow/go/clients/marketplace_client"
	"github.com/mcdev12/liveshow/go/internal/models"
	"github.com/mcdev12/liveshow/go/internal/show/reconciler"
)

const defaultFetchTimeout = 10 * time.Second

// Source is the subset of the marketplace API the catalog reads.
type Source interface {
	GetProduct(ctx context.Context, productID string) (*models.Product, error)
	GetRoomProducts(ctx context.Context, roomID string, saleType models.SaleType) ([]*models.Product, error)
	GetGiveaways(ctx context.Context, roomID string) ([]*models.Giveaway, error)
	GetOffers(ctx context.Context, roomID string) ([]models.Offer, error)
	GetScheduledAuctions(ctx context.Context, roomID string) ([]*models.Auction, error)
	GetShippingEstimate(ctx context.Context, req marketplace_client.EstimateRequest) (models.Estimate, error)
}

// Listener is told about fetch results that affect live state.
type Listener interface {
	AuctionFetched(roomID string, a *models.Auction)
	FetchFailed(roomID, what string, err error)
}

// Service is the data-fetch side of a viewer: it runs refetches in the
// background, keeps the auction-product projection in the Store and holds the
// other room lists and estimates for rendering.
type Service struct {
	source     Source
	store      Store
	listener   Listener
	customerID string
	timeout    time.Duration

	mu        sync.RWMutex
	buyNow    map[string][]*models.Product
	giveaways map[string][]*models.Giveaway
	offers    map[string][]models.Offer
	scheduled map[string][]*models.Auction
	estimates map[string]models.Estimate

	wg sync.WaitGroup
}

// NewService creates a service fetching on behalf of customerID.
func NewService(source Source, store Store, listener Listener, customerID string) *Service {
	return &Service{
		source:     source,
		store:      store,
		listener:   listener,
		customerID: customerID,
		timeout:    defaultFetchTimeout,
		buyNow:     make(map[string][]*models.Product),
		giveaways:  make(map[string][]*models.Giveaway),
		offers:     make(map[string][]models.Offer),
		scheduled:  make(map[string][]*models.Auction),
		estimates:  make(map[string]models.Estimate),
	}
}

// UpdateBids forwards to the store so the service can serve as the
// reconciler's projection.
func (s *Service) UpdateBids(ctx context.Context, roomID, auctionID string, bids []models.Bid, highest float64) (bool, error) {
	return s.store.UpdateBids(ctx, roomID, auctionID, bids, highest)
}

// Invalidate drops the cached resources named by keys.
func (s *Service) Invalidate(roomID string, keys ...reconciler.CacheKey) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range keys {
		switch key {
		case reconciler.CacheBuyNowProducts:
			delete(s.buyNow, roomID)
		case reconciler.CacheShippingEstimate:
			s.estimates = make(map[string]models.Estimate)
		case reconciler.CacheSalesMetrics, reconciler.CacheSoldOrders:
			// Owned by the seller dashboard; nothing is held here.
		}
		log.Debug().Str("room_id", roomID).Str("key", string(key)).Msg("Cache invalidated")
	}
}

// Refetch reloads target in the background.
func (s *Service) Refetch(roomID string, target reconciler.RefetchTarget) {
	s.goFetch(roomID, string(target), func(ctx context.Context) error {
		switch target {
		case reconciler.TargetAuctionProducts:
			return s.refreshAuctionProducts(ctx, roomID, "")
		case reconciler.TargetBuyNowProducts:
			products, err := s.source.GetRoomProducts(ctx, roomID, models.SaleTypeBuyNow)
			if err != nil {
				return err
			}
			s.mu.Lock()
			s.buyNow[roomID] = products
			s.mu.Unlock()
		case reconciler.TargetGiveaways:
			giveaways, err := s.source.GetGiveaways(ctx, roomID)
			if err != nil {
				return err
			}
			s.mu.Lock()
			s.giveaways[roomID] = giveaways
			s.mu.Unlock()
		case reconciler.TargetOffers:
			offers, err := s.source.GetOffers(ctx, roomID)
			if err != nil {
				return err
			}
			s.mu.Lock()
			s.offers[roomID] = offers
			s.mu.Unlock()
		case reconciler.TargetScheduledAuctions:
			auctions, err := s.source.GetScheduledAuctions(ctx, roomID)
			if err != nil {
				return err
			}
			s.mu.Lock()
			s.scheduled[roomID] = auctions
			s.mu.Unlock()
		default:
			log.Warn().Str("target", string(target)).Msg("Unknown refetch target")
		}
		return nil
	})
}

// RefreshAuction reloads one auction, through its product document when the
// projection knows the product and through the room list otherwise.
func (s *Service) RefreshAuction(roomID, auctionID string) {
	s.goFetch(roomID, "auction", func(ctx context.Context) error {
		products, err := s.store.Load(ctx, roomID)
		if err != nil && !errors.Is(err, ErrCacheMiss) {
			log.Warn().Err(err).Str("room_id", roomID).Msg("Projection load failed")
		}
		if p := findAuction(products, auctionID); p != nil {
			fresh, err := s.source.GetProduct(ctx, p.ID)
			if err != nil {
				return err
			}
			if fresh.Auction != nil {
				if _, err := s.store.UpdateBids(ctx, roomID, fresh.Auction.ID, fresh.Auction.Bids, fresh.Auction.HighestBid); err != nil {
					log.Warn().Err(err).Str("room_id", roomID).Msg("Projection update failed")
				}
				s.notifyAuction(roomID, fresh.Auction)
			}
			return nil
		}
		return s.refreshAuctionProducts(ctx, roomID, auctionID)
	})
}

// RequestShippingEstimate quotes shipping for productID in the background.
func (s *Service) RequestShippingEstimate(roomID, productID, ownerID string) {
	s.goFetch(roomID, "shipping estimate", func(ctx context.Context) error {
		est, err := s.source.GetShippingEstimate(ctx, marketplace_client.EstimateRequest{
			ProductID:  productID,
			CustomerID: s.customerID,
			OwnerID:    ownerID,
		})
		if err != nil {
			return err
		}
		s.mu.Lock()
		s.estimates[productID] = est
		s.mu.Unlock()
		return nil
	})
}

// Products returns the cached auction products of a room.
func (s *Service) Products(ctx context.Context, roomID string) ([]*models.Product, error) {
	return s.store.Load(ctx, roomID)
}

// Lists is what the catalog currently holds for one room.
type Lists struct {
	BuyNow            []*models.Product  `json:"buy_now"`
	Giveaways         []*models.Giveaway `json:"giveaways"`
	Offers            []models.Offer     `json:"offers"`
	ScheduledAuctions []*models.Auction  `json:"scheduled_auctions"`
}

// Lists returns the room lists fetched so far.
func (s *Service) Lists(roomID string) Lists {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Lists{
		BuyNow:            s.buyNow[roomID],
		Giveaways:         s.giveaways[roomID],
		Offers:            s.offers[roomID],
		ScheduledAuctions: s.scheduled[roomID],
	}
}

// Estimate returns the shipping estimate for productID, if fetched.
func (s *Service) Estimate(productID string) (models.Estimate, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	est, ok := s.estimates[productID]
	return est, ok
}

// Wait blocks until every background fetch returned.
func (s *Service) Wait() {
	s.wg.Wait()
}

func (s *Service) refreshAuctionProducts(ctx context.Context, roomID, onlyAuctionID string) error {
	products, err := s.source.GetRoomProducts(ctx, roomID, models.SaleTypeAuction)
	if err != nil {
		return err
	}
	if err := s.store.Save(ctx, roomID, products); err != nil {
		log.Warn().Err(err).Str("room_id", roomID).Msg("Projection save failed")
	}

	for _, p := range products {
		if p.Auction == nil {
			continue
		}
		if onlyAuctionID != "" && p.Auction.ID != onlyAuctionID {
			continue
		}
		s.notifyAuction(roomID, p.Auction)
	}
	return nil
}

func (s *Service) notifyAuction(roomID string, a *models.Auction) {
	if s.listener != nil {
		s.listener.AuctionFetched(roomID, a)
	}
}

func (s *Service) goFetch(roomID, what string, fn func(ctx context.Context) error) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()

		if err := fn(ctx); err != nil {
			log.Warn().Err(err).Str("room_id", roomID).Str("what", what).Msg("Fetch failed")
			if s.listener != nil {
				s.listener.FetchFailed(roomID, what, err)
			}
		}
	}()
}
