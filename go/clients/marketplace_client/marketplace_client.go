package marketplace_client

import (
	"github.com/mcdev12/liveshow/go/clients"
)

// MarketplaceClient talks to the marketplace REST API that owns products,
// auctions, giveaways, offers and estimates.
type MarketplaceClient struct {
	*clients.BaseClient
}

func NewMarketplaceClient(baseURL, token, userID string) *MarketplaceClient {
	client := &MarketplaceClient{
		BaseClient: clients.NewBaseClient(baseURL),
	}

	if token != "" {
		client.SetHeader(AuthorizationHeader, "Bearer "+token)
	}
	if userID != "" {
		client.SetHeader(UserIDHeader, userID)
	}

	return client
}
