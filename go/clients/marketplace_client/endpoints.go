package marketplace_client

const (
	// API Endpoints
	ProductsEndpoint          = "/products"
	RoomsEndpoint             = "/rooms"
	GiveawaysEndpoint         = "/giveaways"
	OffersEndpoint            = "/offers"
	ShippingEstimateEndpoint  = "/shipping/estimate"
	ScheduledAuctionsEndpoint = "/auctions/scheduled"

	// Headers
	AuthorizationHeader = "Authorization"
	UserIDHeader        = "X-User-Id"
)
