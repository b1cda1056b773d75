package models

import "time"

// GiveawayWinner is the participant drawn when a giveaway ends.
type GiveawayWinner struct {
	UserID   string `json:"user_id"`
	UserName string `json:"user_name,omitempty"`
}

// Giveaway is a free-entry draw pinned in a room.
type Giveaway struct {
	ID           string          `json:"id"`
	ProductID    string          `json:"product_id,omitempty"`
	RoomID       string          `json:"room_id,omitempty"`
	Participants []string        `json:"participants"`
	Duration     time.Duration   `json:"duration,omitempty"`
	StartedTime  time.Time       `json:"started_time,omitempty"`
	Ended        bool            `json:"ended"`
	Winner       *GiveawayWinner `json:"winner,omitempty"`
}

// Clone returns a deep copy.
func (g *Giveaway) Clone() *Giveaway {
	if g == nil {
		return nil
	}
	dup := *g
	if g.Participants != nil {
		dup.Participants = append([]string(nil), g.Participants...)
	}
	if g.Winner != nil {
		w := *g.Winner
		dup.Winner = &w
	}
	return &dup
}
