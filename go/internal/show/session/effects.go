package session

import (
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/liveshow/go/internal/show/reconciler"
)

// roomEffects carries out a room reconciler's side effects: fetches go to the
// catalog, notifications to the viewer's subscribers and rally redirects back
// into the session.
type roomEffects struct {
	session *Session
	roomID  string
}

func (e *roomEffects) Notify(n reconciler.Notification) {
	log.Info().
		Str("room_id", e.roomID).
		Str("kind", string(n.Kind)).
		Str("title", n.Title).
		Bool("blocking", n.Blocking).
		Msg(n.Message)

	if p := e.session.publisher; p != nil {
		p.BroadcastToUser(e.roomID, e.session.viewer.UserID, "notification", n)
	}
}

func (e *roomEffects) Invalidate(roomID string, keys ...reconciler.CacheKey) {
	e.session.catalog.Invalidate(roomID, keys...)
}

func (e *roomEffects) Refetch(roomID string, target reconciler.RefetchTarget) {
	e.session.catalog.Refetch(roomID, target)
}

func (e *roomEffects) RequestShippingEstimate(roomID, productID, ownerID string) {
	e.session.catalog.RequestShippingEstimate(roomID, productID, ownerID)
}

// Redirect follows a rally only while the session still shows the room the
// rally was announced in.
func (e *roomEffects) Redirect(from, to string) {
	if e.session.Room() != from {
		log.Debug().Str("from_room_id", from).Str("to_room_id", to).Msg("Ignoring stale rally")
		return
	}
	e.session.Enter(to)
}
