package marketplace_client

import (
	"context"
	"fmt"

	"github.com/mcdev12/liveshow/go/internal/models"
)

// EstimateRequest identifies the product, buyer and seller of a quote.
type EstimateRequest struct {
	ProductID  string `json:"productId"`
	CustomerID string `json:"customerId"`
	OwnerID    string `json:"ownerId"`
}

type estimateResponse struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
	Carrier  string  `json:"carrier,omitempty"`
}

// GetShippingEstimate quotes shipping for a product to the customer.
func (c *MarketplaceClient) GetShippingEstimate(ctx context.Context, req EstimateRequest) (models.Estimate, error) {
	var response estimateResponse
	if err := c.PostJSON(ctx, ShippingEstimateEndpoint, req, &response); err != nil {
		return models.Estimate{}, fmt.Errorf("failed to get shipping estimate for product %s: %w", req.ProductID, err)
	}
	return models.Estimate{
		ProductID: req.ProductID,
		Amount:    response.Amount,
		Currency:  response.Currency,
		Carrier:   response.Carrier,
	}, nil
}
