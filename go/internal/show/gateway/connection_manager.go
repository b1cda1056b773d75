package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// ConnectionConfig holds the limits of subscriber sockets.
type ConnectionConfig struct {
	WriteTimeout   time.Duration
	ReadTimeout    time.Duration
	PingInterval   time.Duration
	MaxMessageSize int64
	SendBuffer     int
	QueueSize      int
	CheckOrigin    func(r *http.Request) bool
}

// DefaultConnectionConfig returns the subscriber defaults.
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:   10 * time.Second,
		ReadTimeout:    60 * time.Second,
		PingInterval:   30 * time.Second,
		MaxMessageSize: 1024,
		SendBuffer:     64,
		QueueSize:      1000,
		CheckOrigin:    func(*http.Request) bool { return true },
	}
}

// Update is the frame pushed to subscribers.
type Update struct {
	Type   string    `json:"type"`
	RoomID string    `json:"room_id"`
	At     time.Time `json:"at"`
	Data   any       `json:"data"`
}

// SubscriberStats counts open subscriber sockets.
type SubscriberStats struct {
	Total  int            `json:"total_connections"`
	Rooms  int            `json:"active_rooms"`
	ByRoom map[string]int `json:"room_connections"`
}

type frame struct {
	roomID string
	userID string
	data   []byte
}

// subscriber is one rendering client watching one room.
type subscriber struct {
	id     string
	userID string
	roomID string
	conn   *websocket.Conn
	send   chan []byte
}

// ConnectionManager fans reconciled room state out to local rendering
// clients. Frames are encoded by the caller and delivered in order by Start.
type ConnectionManager struct {
	cfg      ConnectionConfig
	upgrader websocket.Upgrader
	frames   chan frame

	mu    sync.RWMutex
	rooms map[string]map[*subscriber]struct{}
}

// NewConnectionManager creates a manager with cfg.
func NewConnectionManager(cfg ConnectionConfig) *ConnectionManager {
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = DefaultConnectionConfig().SendBuffer
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultConnectionConfig().QueueSize
	}
	return &ConnectionManager{
		cfg:      cfg,
		upgrader: websocket.Upgrader{CheckOrigin: cfg.CheckOrigin},
		frames:   make(chan frame, cfg.QueueSize),
		rooms:    make(map[string]map[*subscriber]struct{}),
	}
}

// Start delivers queued frames until ctx is done.
func (cm *ConnectionManager) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case f := <-cm.frames:
			cm.deliver(f)
		}
	}
}

// HandleSubscribe upgrades GET /ws/rooms/{id}. The optional user_id query
// parameter scopes per-viewer notifications.
func (cm *ConnectionManager) HandleSubscribe(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("id")
	if roomID == "" {
		http.Error(w, "room id is required", http.StatusBadRequest)
		return
	}

	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("room_id", roomID).Msg("Subscriber upgrade failed")
		return
	}

	sub := &subscriber{
		id:     uuid.NewString(),
		userID: r.URL.Query().Get("user_id"),
		roomID: roomID,
		conn:   conn,
		send:   make(chan []byte, cm.cfg.SendBuffer),
	}
	cm.add(sub)

	go cm.writeLoop(sub)
	go cm.readLoop(sub)
}

// BroadcastToRoom queues data for every subscriber of roomID.
func (cm *ConnectionManager) BroadcastToRoom(roomID, kind string, data any) {
	cm.enqueue(roomID, "", kind, data)
}

// BroadcastToUser queues data for userID's subscriptions to roomID.
func (cm *ConnectionManager) BroadcastToUser(roomID, userID, kind string, data any) {
	cm.enqueue(roomID, userID, kind, data)
}

// Stats counts subscribers per room.
func (cm *ConnectionManager) Stats() SubscriberStats {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	stats := SubscriberStats{Rooms: len(cm.rooms), ByRoom: make(map[string]int, len(cm.rooms))}
	for roomID, subs := range cm.rooms {
		stats.ByRoom[roomID] = len(subs)
		stats.Total += len(subs)
	}
	return stats
}

func (cm *ConnectionManager) enqueue(roomID, userID, kind string, data any) {
	encoded, err := json.Marshal(Update{Type: kind, RoomID: roomID, At: time.Now().UTC(), Data: data})
	if err != nil {
		log.Error().Err(err).Str("room_id", roomID).Str("type", kind).Msg("Failed to encode update")
		return
	}
	select {
	case cm.frames <- frame{roomID: roomID, userID: userID, data: encoded}:
	default:
		log.Warn().Str("room_id", roomID).Str("type", kind).Msg("Subscriber queue full, dropping update")
	}
}

// deliver hands f to matching subscribers. A subscriber whose buffer is full
// is dropped; it reconnects and receives the next snapshot.
func (cm *ConnectionManager) deliver(f frame) {
	var stalled []*subscriber

	cm.mu.RLock()
	for sub := range cm.rooms[f.roomID] {
		if f.userID != "" && sub.userID != f.userID {
			continue
		}
		select {
		case sub.send <- f.data:
		default:
			stalled = append(stalled, sub)
		}
	}
	cm.mu.RUnlock()

	for _, sub := range stalled {
		log.Warn().Str("subscriber_id", sub.id).Str("room_id", sub.roomID).Msg("Subscriber too slow, disconnecting")
		cm.remove(sub)
	}
}

func (cm *ConnectionManager) add(sub *subscriber) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	subs, ok := cm.rooms[sub.roomID]
	if !ok {
		subs = make(map[*subscriber]struct{})
		cm.rooms[sub.roomID] = subs
	}
	subs[sub] = struct{}{}
	log.Info().Str("subscriber_id", sub.id).Str("room_id", sub.roomID).Str("user_id", sub.userID).Msg("Subscriber connected")
}

// remove is idempotent. Closing send stops the write loop, which closes the
// socket.
func (cm *ConnectionManager) remove(sub *subscriber) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	subs := cm.rooms[sub.roomID]
	if _, ok := subs[sub]; !ok {
		return
	}
	delete(subs, sub)
	if len(subs) == 0 {
		delete(cm.rooms, sub.roomID)
	}
	close(sub.send)
	log.Info().Str("subscriber_id", sub.id).Str("room_id", sub.roomID).Msg("Subscriber disconnected")
}

func (cm *ConnectionManager) writeLoop(sub *subscriber) {
	ping := time.NewTicker(cm.cfg.PingInterval)
	defer func() {
		ping.Stop()
		cm.remove(sub)
		sub.conn.Close()
	}()

	write := func(kind int, data []byte) error {
		if err := sub.conn.SetWriteDeadline(time.Now().Add(cm.cfg.WriteTimeout)); err != nil {
			return err
		}
		return sub.conn.WriteMessage(kind, data)
	}

	for {
		select {
		case data, open := <-sub.send:
			if !open {
				_ = write(websocket.CloseMessage, nil)
				return
			}
			if err := write(websocket.TextMessage, data); err != nil {
				log.Debug().Err(err).Str("subscriber_id", sub.id).Msg("Subscriber write failed")
				return
			}
		case <-ping.C:
			if err := write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readLoop discards client frames; it exists to observe pongs and closes.
func (cm *ConnectionManager) readLoop(sub *subscriber) {
	defer cm.remove(sub)

	extend := func() error {
		return sub.conn.SetReadDeadline(time.Now().Add(cm.cfg.ReadTimeout))
	}
	sub.conn.SetReadLimit(cm.cfg.MaxMessageSize)
	_ = extend()
	sub.conn.SetPongHandler(func(string) error { return extend() })

	for {
		if _, _, err := sub.conn.ReadMessage(); err != nil {
			return
		}
		_ = extend()
	}
}
