package marketplace_client

import (
	"context"
	"fmt"
	"net/url"

	"github.com/mcdev12/liveshow/go/internal/models"
	"github.com/mcdev12/liveshow/go/internal/show/events"
)

// ProductDocument is a product as the API returns it, with its auction
// embedded.
type ProductDocument struct {
	events.ProductPayload
	RoomID   string                 `json:"roomId,omitempty"`
	SaleType string                 `json:"saletype,omitempty"`
	Auction  *events.AuctionPayload `json:"auction,omitempty"`
}

// ToProduct normalizes the document.
func (d *ProductDocument) ToProduct() *models.Product {
	pinned := d.ProductPayload.ToProduct()
	p := &models.Product{
		ID:       pinned.ID,
		Name:     pinned.Name,
		Price:    pinned.Price,
		Quantity: pinned.Quantity,
		OwnerID:  pinned.OwnerID,
		RoomID:   d.RoomID,
		SaleType: models.SaleType(d.SaleType),
		Auction:  d.Auction.ToAuction(),
	}
	if p.Auction != nil {
		if p.Auction.ProductID == "" {
			p.Auction.ProductID = p.ID
		}
		if p.Auction.RoomID == "" {
			p.Auction.RoomID = p.RoomID
		}
		if p.SaleType == "" {
			p.SaleType = models.SaleTypeAuction
		}
	}
	return p
}

type productsResponse struct {
	Products []ProductDocument `json:"products"`
}

// GetProduct loads one product document with its current auction.
func (c *MarketplaceClient) GetProduct(ctx context.Context, productID string) (*models.Product, error) {
	var doc ProductDocument
	if err := c.GetJSON(ctx, fmt.Sprintf("%s/%s", ProductsEndpoint, url.PathEscape(productID)), &doc); err != nil {
		return nil, fmt.Errorf("failed to get product %s: %w", productID, err)
	}
	return doc.ToProduct(), nil
}

// GetRoomProducts lists the products of a room with the given sale type.
func (c *MarketplaceClient) GetRoomProducts(ctx context.Context, roomID string, saleType models.SaleType) ([]*models.Product, error) {
	endpoint := fmt.Sprintf("%s/%s/products?saletype=%s", RoomsEndpoint, url.PathEscape(roomID), url.QueryEscape(string(saleType)))

	var response productsResponse
	if err := c.GetJSON(ctx, endpoint, &response); err != nil {
		return nil, fmt.Errorf("failed to get %s products for room %s: %w", saleType, roomID, err)
	}

	products := make([]*models.Product, 0, len(response.Products))
	for i := range response.Products {
		p := response.Products[i].ToProduct()
		if p.RoomID == "" {
			p.RoomID = roomID
		}
		products = append(products, p)
	}
	return products, nil
}

type giveawaysResponse struct {
	Giveaways []events.GiveawayPayload `json:"giveaways"`
}

// GetGiveaways lists the giveaways of a room.
func (c *MarketplaceClient) GetGiveaways(ctx context.Context, roomID string) ([]*models.Giveaway, error) {
	var response giveawaysResponse
	if err := c.GetJSON(ctx, fmt.Sprintf("%s?room=%s", GiveawaysEndpoint, url.QueryEscape(roomID)), &response); err != nil {
		return nil, fmt.Errorf("failed to get giveaways for room %s: %w", roomID, err)
	}

	giveaways := make([]*models.Giveaway, 0, len(response.Giveaways))
	for i := range response.Giveaways {
		giveaways = append(giveaways, response.Giveaways[i].ToGiveaway())
	}
	return giveaways, nil
}

type offersResponse struct {
	Offers []struct {
		MongoID string      `json:"_id"`
		Product *events.Ref `json:"product"`
		Buyer   *events.Ref `json:"buyer"`
		Amount  float64     `json:"amount"`
		Status  string      `json:"status"`
	} `json:"offers"`
}

// GetOffers lists the open offers of a room.
func (c *MarketplaceClient) GetOffers(ctx context.Context, roomID string) ([]models.Offer, error) {
	var response offersResponse
	if err := c.GetJSON(ctx, fmt.Sprintf("%s?room=%s", OffersEndpoint, url.QueryEscape(roomID)), &response); err != nil {
		return nil, fmt.Errorf("failed to get offers for room %s: %w", roomID, err)
	}

	offers := make([]models.Offer, 0, len(response.Offers))
	for _, o := range response.Offers {
		offer := models.Offer{ID: o.MongoID, Amount: o.Amount, Status: o.Status}
		if o.Product != nil {
			offer.ProductID = o.Product.ID
		}
		if o.Buyer != nil {
			offer.BuyerID = o.Buyer.ID
		}
		offers = append(offers, offer)
	}
	return offers, nil
}

type auctionsResponse struct {
	Auctions []events.AuctionPayload `json:"auctions"`
}

// GetScheduledAuctions lists the scheduled auctions attached to a room.
func (c *MarketplaceClient) GetScheduledAuctions(ctx context.Context, roomID string) ([]*models.Auction, error) {
	var response auctionsResponse
	if err := c.GetJSON(ctx, fmt.Sprintf("%s?room=%s", ScheduledAuctionsEndpoint, url.QueryEscape(roomID)), &response); err != nil {
		return nil, fmt.Errorf("failed to get scheduled auctions for room %s: %w", roomID, err)
	}

	auctions := make([]*models.Auction, 0, len(response.Auctions))
	for i := range response.Auctions {
		a := response.Auctions[i].ToAuction()
		a.Kind = models.AuctionKindScheduled
		auctions = append(auctions, a)
	}
	return auctions, nil
}
