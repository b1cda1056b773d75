package main

import (
	"context"
	"fmt"
	"io"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/liveshow/go/clients/marketplace_client"
	"github.com/mcdev12/liveshow/go/internal/models"
	"github.com/mcdev12/liveshow/go/internal/show/catalog"
	"github.com/mcdev12/liveshow/go/internal/show/config"
	"github.com/mcdev12/liveshow/go/internal/show/gateway"
	"github.com/mcdev12/liveshow/go/internal/show/reconciler"
	"github.com/mcdev12/liveshow/go/internal/show/session"
)

type Services struct {
	Transport   gateway.Transport
	Subscribers *gateway.ConnectionManager
	Session     *session.Session
	closers     []func() error
}

func setupServices(ctx context.Context, cfg *config.Config) (*Services, error) {
	// Wire up dependency injection chain
	// Transport + marketplace API + projection store → Session → HTTP
	clock := clockwork.NewRealClock()
	services := &Services{}

	transport, err := setupTransport(cfg, clock)
	if err != nil {
		return nil, err
	}
	services.Transport = transport
	services.closers = append(services.closers, transport.Close)

	store, err := setupStore(ctx, cfg, clock)
	if err != nil {
		services.Close()
		return nil, err
	}
	if closer, ok := store.(io.Closer); ok {
		services.closers = append(services.closers, closer.Close)
	}

	viewer := models.Viewer{
		UserID:   cfg.Viewer.UserID,
		UserName: cfg.Viewer.UserName,
		Token:    cfg.Viewer.Token,
	}
	marketplace := marketplace_client.NewMarketplaceClient(cfg.API.BaseURL, viewer.Token, viewer.UserID)

	services.Subscribers = gateway.NewConnectionManager(gateway.DefaultConnectionConfig())
	services.Session = session.New(sessionConfig(cfg), viewer, clock, transport, marketplace, store, services.Subscribers)

	return services, nil
}

func setupTransport(cfg *config.Config, clock clockwork.Clock) (gateway.Transport, error) {
	switch cfg.Transport {
	case "nats":
		jsConfig := gateway.DefaultJetStreamConfig()
		jsConfig.URL = cfg.NATS.URL
		jsConfig.StreamName = cfg.NATS.StreamName
		jsConfig.SubjectPrefix = cfg.NATS.SubjectPrefix
		bridge, err := gateway.NewNATSBridge(jsConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to create NATS bridge: %w", err)
		}
		return bridge, nil
	default:
		socketConfig := gateway.DefaultSocketConfig()
		socketConfig.URL = cfg.Socket.URL
		socketConfig.Token = cfg.Viewer.Token
		socketConfig.ReconnectWait = cfg.Socket.ReconnectWait
		socketConfig.PingInterval = cfg.Socket.PingInterval
		return gateway.NewSocketClient(socketConfig, clock), nil
	}
}

func setupStore(ctx context.Context, cfg *config.Config, clock clockwork.Clock) (catalog.Store, error) {
	if cfg.Cache.Type != "redis" {
		return catalog.NewMemoryStore(clock, cfg.Cache.TTL), nil
	}

	store, err := catalog.NewRedisStore(ctx, catalog.RedisConfig{
		Addr:      cfg.Cache.RedisAddr,
		Password:  cfg.Cache.RedisPassword,
		DB:        cfg.Cache.RedisDB,
		KeyPrefix: cfg.Cache.KeyPrefix,
		TTL:       cfg.Cache.TTL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	log.Info().Str("addr", cfg.Cache.RedisAddr).Msg("using redis product projection")
	return store, nil
}

func sessionConfig(cfg *config.Config) session.Config {
	t := cfg.Timings
	return session.Config{
		Reconciler: reconciler.Config{
			WinnerAlertTTL:    t.WinnerAlert,
			GiveawayWinnerTTL: t.GiveawayWinner,
			TimeAddedTTL:      t.TimeAddedFlag,
			RefetchWindow:     t.RefetchThrottle,
			RallyDelay:        t.RallyDelay,
			NotificationLimit: t.NotificationLimit,
		},
		LeaveDelay:  t.LeaveDebounce,
		BidFallback: t.BidFallback,
	}
}

func (s *Services) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			log.Error().Err(err).Msg("failed to close service")
		}
	}
}
