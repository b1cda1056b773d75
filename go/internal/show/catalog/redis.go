package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/liveshow/go/internal/models"
)

// RedisConfig holds connection settings for RedisStore.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
	TTL       time.Duration
}

// RedisStore keeps each room's products in a hash keyed by product id, so a
// bid update rewrites one field instead of the whole list.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// NewRedisStore connects to redis and verifies the connection.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     10,
		MinIdleConns: 2,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}

	keyPrefix := cfg.KeyPrefix
	if keyPrefix == "" {
		keyPrefix = "liveshow"
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	log.Info().Str("addr", cfg.Addr).Int("db", cfg.DB).Str("prefix", keyPrefix).Msg("Connected to redis projection store")
	return &RedisStore{client: client, keyPrefix: keyPrefix, ttl: ttl}, nil
}

func (s *RedisStore) roomKey(roomID string) string {
	return fmt.Sprintf("%s:room:%s:auction-products", s.keyPrefix, roomID)
}

func (s *RedisStore) Load(ctx context.Context, roomID string) ([]*models.Product, error) {
	fields, err := s.client.HGetAll(ctx, s.roomKey(roomID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load products for room %s: %w", roomID, err)
	}
	if len(fields) == 0 {
		return nil, ErrCacheMiss
	}

	products := make([]*models.Product, 0, len(fields))
	for productID, raw := range fields {
		var p models.Product
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			log.Warn().Err(err).Str("room_id", roomID).Str("product_id", productID).Msg("Dropping corrupt cached product")
			continue
		}
		products = append(products, &p)
	}
	return products, nil
}

func (s *RedisStore) Save(ctx context.Context, roomID string, products []*models.Product) error {
	key := s.roomKey(roomID)

	values := make(map[string]any, len(products))
	for _, p := range products {
		raw, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("failed to marshal product %s: %w", p.ID, err)
		}
		values[p.ID] = raw
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, key)
	if len(values) > 0 {
		pipe.HSet(ctx, key, values)
		pipe.Expire(ctx, key, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save products for room %s: %w", roomID, err)
	}
	return nil
}

func (s *RedisStore) UpdateBids(ctx context.Context, roomID, auctionID string, bids []models.Bid, highest float64) (bool, error) {
	key := s.roomKey(roomID)
	updated := false

	// WATCH the hash so a concurrent Save cannot be overwritten with a stale
	// product.
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		fields, err := tx.HGetAll(ctx, key).Result()
		if err != nil {
			return err
		}

		for productID, raw := range fields {
			var p models.Product
			if err := json.Unmarshal([]byte(raw), &p); err != nil {
				continue
			}
			if p.Auction == nil || p.Auction.ID != auctionID {
				continue
			}

			applyBids(&p, bids, highest)
			next, err := json.Marshal(&p)
			if err != nil {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.HSet(ctx, key, productID, next)
				return nil
			})
			if err != nil {
				return err
			}
			updated = true
			return nil
		}
		return nil
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to update bids for auction %s: %w", auctionID, err)
	}
	return updated, nil
}

func (s *RedisStore) Invalidate(ctx context.Context, roomID string) error {
	if err := s.client.Del(ctx, s.roomKey(roomID)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate room %s: %w", roomID, err)
	}
	return nil
}

// Close releases the connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
