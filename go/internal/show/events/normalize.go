package events

import (
	"time"

	"github.com/mcdev12/liveshow/go/internal/models"
	"github.com/mcdev12/liveshow/go/internal/show/auction"
)

// NormalizeBid maps every historical bid shape onto models.Bid. The bidder is
// taken from user, then bidder, then userId.
func NormalizeBid(p BidPayload) models.Bid {
	bid := models.Bid{
		Amount:  p.Amount,
		Autobid: p.Autobid,
	}
	switch {
	case p.User != nil && p.User.ID != "":
		bid.BidderID, bid.BidderName = p.User.ID, p.User.Name
	case p.Bidder != nil && p.Bidder.ID != "":
		bid.BidderID, bid.BidderName = p.Bidder.ID, p.Bidder.Name
	default:
		bid.BidderID = p.UserID
	}
	if p.AutobidAmount != nil && *p.AutobidAmount > 0 {
		bid.AutobidCeiling = *p.AutobidAmount
		bid.Autobid = true
	}
	return bid
}

// NormalizeBids maps a bid list, keeping nil for an absent list.
func NormalizeBids(in []BidPayload) []models.Bid {
	if in == nil {
		return nil
	}
	out := make([]models.Bid, 0, len(in))
	for _, b := range in {
		out = append(out, NormalizeBid(b))
	}
	return out
}

// ID returns the auction id whichever field carried it.
func (p *AuctionPayload) ID() string {
	return firstNonEmpty(p.MongoID, p.AuctionID)
}

// ToAuction builds a full auction from a document. Absent fields take zero
// values.
func (p *AuctionPayload) ToAuction() *models.Auction {
	if p == nil {
		return nil
	}
	a := &models.Auction{
		ID:            p.ID(),
		RoomID:        p.RoomID,
		Bids:          NormalizeBids(p.Bids),
		StartedTime:   p.StartedTime.value(),
		EndTime:       p.EndTime.value(),
		StartTimeDate: p.StartTimeDate.value(),
		EndTimeDate:   p.EndTimeDate.value(),
		Kind:          models.AuctionKindShow,
	}
	if p.Product != nil {
		a.ProductID = p.Product.ID
	}
	if p.Owner != nil {
		a.SellerID = p.Owner.ID
	}
	if p.Type == string(models.AuctionKindScheduled) || a.Scheduled() {
		a.Kind = models.AuctionKindScheduled
	}
	if a.Bids == nil {
		a.Bids = []models.Bid{}
	}
	if p.BasePrice != nil {
		a.BasePrice = *p.BasePrice
	}
	if p.HighestBid != nil {
		a.HighestBid = *p.HighestBid
	}
	if p.IncreaseBidBy != nil {
		a.Increment = *p.IncreaseBidBy
	}
	if p.Started != nil {
		a.Started = *p.Started
	}
	if p.Ended != nil {
		a.Ended = *p.Ended
	}
	if p.Duration != nil {
		a.Duration = minutes(*p.Duration)
	}
	return a
}

// ToPatch builds a field-level patch: only fields present on the wire are set.
func (p *AuctionPayload) ToPatch() auction.Patch {
	patch := auction.Patch{
		AuctionID:  p.ID(),
		Bids:       NormalizeBids(p.Bids),
		HighestBid: p.HighestBid,
		BasePrice:  p.BasePrice,
		Increment:  p.IncreaseBidBy,
		Started:    p.Started,
		Ended:      p.Ended,
	}
	if p.StartedTime != nil && !p.StartedTime.IsZero() {
		t := p.StartedTime.Time
		patch.StartedTime = &t
	}
	if p.EndTime != nil && !p.EndTime.IsZero() {
		t := p.EndTime.Time
		patch.EndTime = &t
	}
	return patch
}

// ToProduct maps a pinned product document.
func (p *ProductPayload) ToProduct() *models.PinnedProduct {
	if p == nil {
		return nil
	}
	product := &models.PinnedProduct{
		ID:       p.MongoID,
		Name:     p.Name,
		Price:    p.Price,
		Quantity: p.Quantity,
	}
	if p.OwnerID != nil {
		product.OwnerID = p.OwnerID.ID
	}
	return product
}

// ToGiveaway maps a giveaway document.
func (p *GiveawayPayload) ToGiveaway() *models.Giveaway {
	if p == nil {
		return nil
	}
	g := &models.Giveaway{
		ID:           p.MongoID,
		RoomID:       p.RoomID,
		StartedTime:  p.StartedTime.value(),
		Ended:        p.Ended,
		Participants: make([]string, 0, len(p.Participants)),
	}
	if p.Product != nil {
		g.ProductID = p.Product.ID
	}
	for _, ref := range p.Participants {
		if ref.ID != "" {
			g.Participants = append(g.Participants, ref.ID)
		}
	}
	if p.Duration != nil {
		g.Duration = minutes(*p.Duration)
	}
	if p.Winner != nil && p.Winner.ID != "" {
		g.Winner = &models.GiveawayWinner{UserID: p.Winner.ID, UserName: p.Winner.Name}
	}
	return g
}

func minutes(m float64) time.Duration {
	return time.Duration(m * float64(time.Minute))
}
