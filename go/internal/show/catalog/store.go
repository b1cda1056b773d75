package catalog

import (
	"context"
	"time"

	"github.com/mcdev12/liveshow/go/internal/models"
)

// CacheError is a sentinel error of the projection store.
type CacheError string

func (e CacheError) Error() string { return string(e) }

const (
	// ErrCacheMiss means the room has no cached product list.
	ErrCacheMiss CacheError = "cache miss"
)

// DefaultTTL bounds how long a room's product list is trusted.
const DefaultTTL = 10 * time.Minute

// Store holds the auction-product list of each room. It is a projection of
// the marketplace API, kept warm by socket events and rebuilt by refetches.
type Store interface {
	// Load returns the cached products of a room or ErrCacheMiss.
	Load(ctx context.Context, roomID string) ([]*models.Product, error)

	// Save replaces the cached products of a room.
	Save(ctx context.Context, roomID string, products []*models.Product) error

	// UpdateBids writes new bids into the product carrying auctionID. It
	// reports false when the room or the auction is not cached.
	UpdateBids(ctx context.Context, roomID, auctionID string, bids []models.Bid, highest float64) (bool, error)

	// Invalidate drops the cached products of a room.
	Invalidate(ctx context.Context, roomID string) error
}

// applyBids updates the product's auction in place.
func applyBids(p *models.Product, bids []models.Bid, highest float64) {
	p.Auction.Bids = append([]models.Bid(nil), bids...)
	p.Auction.HighestBid = highest
}

func findAuction(products []*models.Product, auctionID string) *models.Product {
	for _, p := range products {
		if p.Auction != nil && p.Auction.ID == auctionID {
			return p
		}
	}
	return nil
}
