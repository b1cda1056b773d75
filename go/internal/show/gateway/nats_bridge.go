package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/liveshow/go/internal/show/events"
)

// JetStreamConfig holds configuration for the NATS JetStream transport
type JetStreamConfig struct {
	URL             string
	StreamName      string
	SubjectPrefix   string // events on <prefix>.events.<room>.<name>, commands on <prefix>.commands.<name>
	ConsumerName    string
	MaxReconnects   int
	ReconnectWait   time.Duration
	AckWait         time.Duration
	InactiveAfter   time.Duration // ephemeral consumer cleanup
	MaxAge          time.Duration
	DuplicateWindow time.Duration
	PublishTimeout  time.Duration
}

// DefaultJetStreamConfig returns default JetStream configuration
func DefaultJetStreamConfig() JetStreamConfig {
	return JetStreamConfig{
		URL:             nats.DefaultURL,
		StreamName:      "SHOW_EVENTS",
		SubjectPrefix:   "show",
		ConsumerName:    "show-client",
		MaxReconnects:   -1, // Infinite
		ReconnectWait:   2 * time.Second,
		AckWait:         30 * time.Second,
		InactiveAfter:   5 * time.Minute,
		MaxAge:          24 * time.Hour,
		DuplicateWindow: 2 * time.Minute,
		PublishTimeout:  5 * time.Second,
	}
}

// Envelope is the JetStream message body carrying one socket event.
type Envelope struct {
	EventID   string          `json:"eventId"`
	EventType string          `json:"eventType"`
	RoomID    string          `json:"roomId,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// NATSBridge is a Transport over NATS JetStream. Room events are consumed
// through an ordered, ephemeral consumer filtered to the joined rooms;
// outbound messages are published with a message id so JetStream drops
// duplicates.
type NATSBridge struct {
	config    JetStreamConfig
	nc        *nats.Conn
	js        jetstream.JetStream
	listeners *Listeners

	mu           sync.Mutex
	hooks        []func()
	rooms        map[string]struct{}
	roomsSince   time.Time
	roomsChanged chan struct{}
}

// NewNATSBridge connects to NATS and makes sure the stream exists.
func NewNATSBridge(config JetStreamConfig) (*NATSBridge, error) {
	b := &NATSBridge{
		config:    config,
		listeners: NewListeners(),
	}
	b.initRooms()

	opts := []nats.Option{
		nats.MaxReconnects(config.MaxReconnects),
		nats.ReconnectWait(config.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
			b.runHooks()
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}
	b.nc = nc
	b.js = js

	if err := b.ensureStream(context.Background()); err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure stream: %w", err)
	}

	return b, nil
}

func (b *NATSBridge) ensureStream(ctx context.Context) error {
	sc := jetstream.StreamConfig{
		Name:        b.config.StreamName,
		Description: "Live show socket events and client commands",
		Subjects:    []string{fmt.Sprintf("%s.>", b.config.SubjectPrefix)},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      b.config.MaxAge,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Duplicates:  b.config.DuplicateWindow,
	}

	if _, err := b.js.Stream(ctx, b.config.StreamName); err != nil {
		if _, err = b.js.CreateStream(ctx, sc); err != nil {
			return fmt.Errorf("create stream: %w", err)
		}
		log.Info().Str("stream", b.config.StreamName).Msg("created JetStream stream")
	}
	return nil
}

// Listeners returns the registry inbound events are delivered to.
func (b *NATSBridge) Listeners() *Listeners {
	return b.listeners
}

// OnConnect registers fn to run after the NATS connection is restored. The
// first connection is made by NewNATSBridge, before any hook exists.
func (b *NATSBridge) OnConnect(fn func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.hooks = append(b.hooks, fn)
}

func (b *NATSBridge) runHooks() {
	b.mu.Lock()
	hooks := append([]func(){}, b.hooks...)
	b.mu.Unlock()

	for _, fn := range hooks {
		fn()
	}
}

// Run consumes room events until ctx is done. Messages are handled one at a
// time, in stream order. The consumer is replaced whenever the set of joined
// rooms changes; with no room joined nothing is consumed.
func (b *NATSBridge) Run(ctx context.Context) error {
	stream, err := b.js.Stream(ctx, b.config.StreamName)
	if err != nil {
		return fmt.Errorf("get stream: %w", err)
	}

	messageCh := make(chan jetstream.Msg, 100)
	for {
		filters, since := b.roomFilters()
		stop, err := b.consume(ctx, stream, filters, since, messageCh)
		if err != nil {
			return err
		}

		done := b.handleUntilRoomsChange(ctx, messageCh)
		stop()
		if done {
			log.Info().Msg("event consumer shutting down")
			return nil
		}
	}
}

// consume starts an ephemeral consumer for filters and returns its stop
// func, which also deletes it.
func (b *NATSBridge) consume(ctx context.Context, stream jetstream.Stream, filters []string, since time.Time, out chan<- jetstream.Msg) (func(), error) {
	if len(filters) == 0 {
		return func() {}, nil
	}

	cfg := jetstream.ConsumerConfig{
		Name:              fmt.Sprintf("%s-%s", b.config.ConsumerName, uuid.NewString()),
		Description:       "Live show client event consumer",
		FilterSubjects:    filters,
		DeliverPolicy:     jetstream.DeliverNewPolicy,
		AckPolicy:         jetstream.AckExplicitPolicy,
		AckWait:           b.config.AckWait,
		MaxAckPending:     1,
		InactiveThreshold: b.config.InactiveAfter,
		ReplayPolicy:      jetstream.ReplayInstantPolicy,
	}
	// Events published between the membership change and the consumer
	// creation are replayed from the change time.
	if !since.IsZero() {
		cfg.DeliverPolicy = jetstream.DeliverByStartTimePolicy
		cfg.OptStartTime = &since
	}

	consumer, err := stream.CreateOrUpdateConsumer(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create consumer: %w", err)
	}

	consumeCtx, err := consumer.Consume(func(msg jetstream.Msg) {
		select {
		case out <- msg:
		case <-ctx.Done():
			msg.Nak()
		}
	})
	if err != nil {
		return nil, fmt.Errorf("start consumer: %w", err)
	}

	log.Info().
		Str("stream", b.config.StreamName).
		Strs("filters", filters).
		Msg("starting JetStream event consumer")

	return func() {
		consumeCtx.Stop()
		delCtx, cancel := context.WithTimeout(context.Background(), b.config.PublishTimeout)
		defer cancel()
		if err := stream.DeleteConsumer(delCtx, cfg.Name); err != nil {
			log.Warn().Err(err).Str("consumer", cfg.Name).Msg("failed to delete consumer")
		}
	}, nil
}

// handleUntilRoomsChange processes messages until ctx is done, reported as
// true, or the joined rooms change.
func (b *NATSBridge) handleUntilRoomsChange(ctx context.Context, messageCh <-chan jetstream.Msg) bool {
	for {
		select {
		case <-ctx.Done():
			return true
		case <-b.roomsChanged:
			return false
		case msg := <-messageCh:
			if err := b.processMessage(msg); err != nil {
				log.Error().Err(err).Str("subject", msg.Subject()).Msg("failed to process message")
				// Redelivery would not fix a malformed envelope.
				if termErr := msg.Term(); termErr != nil {
					log.Error().Err(termErr).Msg("failed to TERM message")
				}
				continue
			}
			if ackErr := msg.Ack(); ackErr != nil {
				log.Error().Err(ackErr).Msg("failed to ACK message")
			}
		}
	}
}

func (b *NATSBridge) initRooms() {
	b.rooms = make(map[string]struct{})
	b.roomsChanged = make(chan struct{}, 1)
}

// trackRoom follows join-room and leave-room commands so the consumer only
// receives events of joined rooms.
func (b *NATSBridge) trackRoom(name string, payload any) {
	p, ok := payload.(events.RoomPayload)
	if !ok || p.RoomID == "" {
		return
	}

	b.mu.Lock()
	_, joined := b.rooms[p.RoomID]
	switch {
	case name == events.NameJoinRoom && !joined:
		b.rooms[p.RoomID] = struct{}{}
	case name == events.NameLeaveRoom && joined:
		delete(b.rooms, p.RoomID)
	default:
		b.mu.Unlock()
		return
	}
	b.roomsSince = time.Now().UTC()
	b.mu.Unlock()

	select {
	case b.roomsChanged <- struct{}{}:
	default:
	}
}

// roomFilters returns the event subjects of the joined rooms, sorted, and
// the time of the latest membership change.
func (b *NATSBridge) roomFilters() ([]string, time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	filters := make([]string, 0, len(b.rooms))
	for roomID := range b.rooms {
		filters = append(filters, b.eventSubject(roomID+".>"))
	}
	sort.Strings(filters)
	return filters, b.roomsSince
}

func (b *NATSBridge) processMessage(msg jetstream.Msg) error {
	env, err := DecodeEnvelope(msg.Data())
	if err != nil {
		return err
	}

	log.Debug().
		Str("event_id", env.EventID).
		Str("room_id", env.RoomID).
		Str("event_type", env.EventType).
		Str("subject", msg.Subject()).
		Msg("processing JetStream event")

	b.listeners.deliverRaw(env.EventType, env.Payload)
	return nil
}

// Emit publishes one outbound message.
func (b *NATSBridge) Emit(name string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", name, err)
	}

	b.trackRoom(name, payload)

	env := Envelope{
		EventID:   MessageID(payload),
		EventType: name,
		RoomID:    roomOfPayload(payload),
		Timestamp: time.Now().UTC(),
		Payload:   data,
	}
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), b.config.PublishTimeout)
	defer cancel()

	subject := b.commandSubject(name)
	ack, err := b.js.PublishMsg(ctx, &nats.Msg{
		Subject: subject,
		Data:    body,
		Header: nats.Header{
			"Event-Type": []string{name},
			"Room-ID":    []string{env.RoomID},
			"Event-ID":   []string{env.EventID},
		},
	},
		jetstream.WithMsgID(env.EventID),
		jetstream.WithExpectStream(b.config.StreamName),
	)
	if err != nil {
		return fmt.Errorf("publish to JetStream: %w", err)
	}

	log.Info().
		Str("subject", subject).
		Str("event_id", env.EventID).
		Uint64("sequence", ack.Sequence).
		Bool("duplicate", ack.Duplicate).
		Msg("published to JetStream")
	return nil
}

// Close drains nothing; pending acks are redelivered to the next consumer.
func (b *NATSBridge) Close() error {
	if b.nc != nil {
		b.nc.Close()
	}
	return nil
}

func (b *NATSBridge) eventSubject(rest string) string {
	return fmt.Sprintf("%s.events.%s", b.config.SubjectPrefix, rest)
}

func (b *NATSBridge) commandSubject(name string) string {
	return fmt.Sprintf("%s.commands.%s", b.config.SubjectPrefix, name)
}

// DecodeEnvelope parses a JetStream message body.
func DecodeEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("unmarshal event envelope: %w", err)
	}
	if env.EventType == "" {
		return Envelope{}, fmt.Errorf("event envelope %q has no event type", env.EventID)
	}
	return env, nil
}

// MessageID is the JetStream dedup id for an outbound payload: the client
// bid id for bids, a fresh uuid otherwise.
func MessageID(payload any) string {
	if p, ok := payload.(events.PlaceBidPayload); ok && p.ClientBidID != "" {
		return p.ClientBidID
	}
	return uuid.NewString()
}

func roomOfPayload(payload any) string {
	switch p := payload.(type) {
	case events.PlaceBidPayload:
		return p.RoomID
	case events.RoomPayload:
		return p.RoomID
	}
	return ""
}
