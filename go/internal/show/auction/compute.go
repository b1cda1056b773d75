package auction

import (
	"time"

	"github.com/mcdev12/liveshow/go/internal/models"
)

// CurrentBid returns the highest bid amount, or the base price when there are
// no bids.
func CurrentBid(a *models.Auction) float64 {
	if a == nil {
		return 0
	}
	if w := FindWinner(a.Bids); w != nil {
		return w.Amount
	}
	return a.BasePrice
}

// FindWinner returns the bid with the highest amount. Equal amounts keep the
// first one seen. It returns nil for an empty list.
func FindWinner(bids []models.Bid) *models.Bid {
	if len(bids) == 0 {
		return nil
	}
	best := 0
	for i := 1; i < len(bids); i++ {
		if bids[i].Amount > bids[best].Amount {
			best = i
		}
	}
	winner := bids[best]
	return &winner
}

// MinimumNextBid is the lowest amount a new bid may carry.
func MinimumNextBid(a *models.Auction) float64 {
	if a == nil {
		return 0
	}
	if len(a.Bids) == 0 {
		return a.BasePrice
	}
	return CurrentBid(a) + a.Increment
}

// TimeLeft is the countdown shown for an auction.
type TimeLeft struct {
	Seconds    int  `json:"seconds"`
	NotStarted bool `json:"not_started"`
}

// ComputeTimeLeft derives the countdown from the auction's timing mode and a
// server-synced clock.
//
// Scheduled auctions are fixed windows and are computed purely from the clock,
// ignoring the ended flag. Duration-based auctions report zero once ended and
// the full duration before they start.
func ComputeTimeLeft(a *models.Auction, now func() time.Time) TimeLeft {
	if a == nil {
		return TimeLeft{}
	}
	t := now()

	if a.Scheduled() {
		if t.Before(a.StartTimeDate) {
			return TimeLeft{Seconds: seconds(a.StartTimeDate.Sub(t)), NotStarted: true}
		}
		if t.Before(a.EndTimeDate) {
			return TimeLeft{Seconds: seconds(a.EndTimeDate.Sub(t))}
		}
		return TimeLeft{}
	}

	if a.Ended {
		return TimeLeft{}
	}
	if !a.Started || (a.StartedTime.IsZero() && a.EndTime.IsZero()) {
		return TimeLeft{Seconds: seconds(a.Duration), NotStarted: true}
	}

	deadline, ok := Deadline(a)
	if !ok {
		return TimeLeft{}
	}
	return TimeLeft{Seconds: seconds(deadline.Sub(t))}
}

// Deadline returns the server-time instant at which a running auction closes.
// An explicit end time wins over startedTime+duration so time extensions apply.
func Deadline(a *models.Auction) (time.Time, bool) {
	if a == nil {
		return time.Time{}, false
	}
	if a.Scheduled() {
		return a.EndTimeDate, true
	}
	if !a.EndTime.IsZero() {
		return a.EndTime, true
	}
	if !a.StartedTime.IsZero() && a.Duration > 0 {
		return a.StartedTime.Add(a.Duration), true
	}
	return time.Time{}, false
}

func seconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(d / time.Second)
}
