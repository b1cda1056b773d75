package models

// SaleType is how a product is sold in a show.
type SaleType string

const (
	SaleTypeAuction  SaleType = "auction"
	SaleTypeBuyNow   SaleType = "buy_now"
	SaleTypeGiveaway SaleType = "giveaway"
)

// Product is a listing in a room, with its auction when sold by auction.
type Product struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Price    float64  `json:"price"`
	Quantity int      `json:"quantity"`
	OwnerID  string   `json:"owner_id"`
	RoomID   string   `json:"room_id,omitempty"`
	SaleType SaleType `json:"sale_type"`
	Auction  *Auction `json:"auction,omitempty"`
}

// Clone returns a deep copy.
func (p *Product) Clone() *Product {
	if p == nil {
		return nil
	}
	dup := *p
	dup.Auction = p.Auction.Clone()
	return &dup
}

// Offer is a viewer's price offer on a buy-now product.
type Offer struct {
	ID        string  `json:"id"`
	ProductID string  `json:"product_id"`
	BuyerID   string  `json:"buyer_id"`
	Amount    float64 `json:"amount"`
	Status    string  `json:"status"`
}

// Estimate is a shipping quote for one product and customer.
type Estimate struct {
	ProductID string  `json:"product_id"`
	Amount    float64 `json:"amount"`
	Currency  string  `json:"currency"`
	Carrier   string  `json:"carrier,omitempty"`
}
