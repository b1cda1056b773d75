package catalog

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/mcdev12/liveshow/go/internal/models"
)

type memoryEntry struct {
	products  []*models.Product
	expiresAt time.Time
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	clock clockwork.Clock
	ttl   time.Duration

	mu    sync.RWMutex
	rooms map[string]*memoryEntry
}

// NewMemoryStore creates an empty store.
func NewMemoryStore(clock clockwork.Clock, ttl time.Duration) *MemoryStore {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{
		clock: clock,
		ttl:   ttl,
		rooms: make(map[string]*memoryEntry),
	}
}

func (s *MemoryStore) Load(_ context.Context, roomID string) ([]*models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.rooms[roomID]
	if !ok || s.clock.Now().After(entry.expiresAt) {
		return nil, ErrCacheMiss
	}
	return cloneProducts(entry.products), nil
}

func (s *MemoryStore) Save(_ context.Context, roomID string, products []*models.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rooms[roomID] = &memoryEntry{
		products:  cloneProducts(products),
		expiresAt: s.clock.Now().Add(s.ttl),
	}
	return nil
}

func (s *MemoryStore) UpdateBids(_ context.Context, roomID, auctionID string, bids []models.Bid, highest float64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.rooms[roomID]
	if !ok || s.clock.Now().After(entry.expiresAt) {
		return false, nil
	}
	p := findAuction(entry.products, auctionID)
	if p == nil {
		return false, nil
	}
	applyBids(p, bids, highest)
	return true, nil
}

func (s *MemoryStore) Invalidate(_ context.Context, roomID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, roomID)
	return nil
}

func cloneProducts(in []*models.Product) []*models.Product {
	out := make([]*models.Product, 0, len(in))
	for _, p := range in {
		out = append(out, p.Clone())
	}
	return out
}
