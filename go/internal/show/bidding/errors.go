package bidding

import "errors"

var (
	ErrNotAuthenticated  = errors.New("not authenticated")
	ErrNoAuction         = errors.New("no auction to bid on")
	ErrAuctionNotStarted = errors.New("auction has not started")
	ErrAuctionEnded      = errors.New("auction has ended")
	ErrSelfBid           = errors.New("cannot bid on your own auction")
	ErrBidTooLow         = errors.New("bid is below the minimum")
)
