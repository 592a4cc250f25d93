package biddingerrors

import "errors"

// Repository-level errors
var (
	ErrAuctionNotFound = errors.New("auction not found")
	ErrUserNotFound    = errors.New("user not found")
	ErrNoBids          = errors.New("no bids found for auction")
	ErrUserNoBids      = errors.New("user has not placed any bids")
	ErrPersistence     = errors.New("ledger persistence failure")
)

// business logic errors
var (
	ErrInvalidBid        = errors.New("invalid bid")
	ErrAuctionNotActive  = errors.New("auction is not active")
	ErrBidTooLow         = errors.New("bid amount too low")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrStaleBid          = errors.New("bid lost to a concurrent higher bid")
)

// IsRetryable reports whether a caller may resubmit the same bid after refreshing its view.
// Only lost commit races and transient store failures qualify.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStaleBid) || errors.Is(err, ErrPersistence)
}
