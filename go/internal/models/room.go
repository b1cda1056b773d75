package models

// RoomStatus is the lifecycle state of a live show.
type RoomStatus string

const (
	RoomStatusScheduled RoomStatus = "SCHEDULED"
	RoomStatusLive      RoomStatus = "LIVE"
	RoomStatusEnded     RoomStatus = "ENDED"
)

// PinnedProduct is a buy-now product pinned in a room.
type PinnedProduct struct {
	ID       string  `json:"id"`
	Name     string  `json:"name,omitempty"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
	OwnerID  string  `json:"owner_id,omitempty"`
}

// Room is the client's view of a live show.
type Room struct {
	ID      string     `json:"id"`
	OwnerID string     `json:"owner_id"`
	Status  RoomStatus `json:"status"`
	Viewers int        `json:"viewers"`
}

// Viewer identifies the local user of a session.
type Viewer struct {
	UserID   string `json:"user_id"`
	UserName string `json:"user_name,omitempty"`
	Token    string `json:"-"`
}

// Authenticated reports whether the viewer is signed in.
func (v Viewer) Authenticated() bool {
	return v.UserID != ""
}
