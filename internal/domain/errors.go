package domain

import (
	"errors"
	"fmt"
)

// Reason names a business rejection. Rejections are expected outcomes and are
// returned to the caller as values, never logged as failures.
type Reason string

const (
	ReasonAuctionNotLive      Reason = "AuctionNotLive"
	ReasonAuctionEnded        Reason = "AuctionEnded"
	ReasonBidTooLow           Reason = "BidTooLow"
	ReasonInvalidBid          Reason = "InvalidBid"
	ReasonSelfRaise           Reason = "SelfRaise"
	ReasonSellerBid           Reason = "SellerCannotBid"
	ReasonInsufficientBalance Reason = "InsufficientBalance"
	ReasonNotReadyToSettle    Reason = "NotReadyToSettle"
	ReasonAlreadyTerminal     Reason = "AuctionAlreadyClosed"
	ReasonInvalidAuction      Reason = "InvalidAuction"
	ReasonAlreadyReversed     Reason = "AlreadyReversed"
	ReasonInvalidRequest      Reason = "InvalidRequest"
)

type Rejection struct {
	Reason Reason
	Detail string
}

func (r *Rejection) Error() string {
	if r.Detail == "" {
		return string(r.Reason)
	}
	return string(r.Reason) + ": " + r.Detail
}

// Is matches any rejection with the same reason, so the sentinels below work
// with errors.Is regardless of detail.
func (r *Rejection) Is(target error) bool {
	t, ok := target.(*Rejection)
	return ok && t.Reason == r.Reason
}

func Reject(reason Reason, format string, args ...any) *Rejection {
	return &Rejection{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

var (
	ErrAuctionNotLive      = &Rejection{Reason: ReasonAuctionNotLive}
	ErrAuctionEnded        = &Rejection{Reason: ReasonAuctionEnded}
	ErrBidTooLow           = &Rejection{Reason: ReasonBidTooLow}
	ErrInvalidBid          = &Rejection{Reason: ReasonInvalidBid}
	ErrSelfRaise           = &Rejection{Reason: ReasonSelfRaise}
	ErrSellerBid           = &Rejection{Reason: ReasonSellerBid}
	ErrInsufficientBalance = &Rejection{Reason: ReasonInsufficientBalance}
	ErrNotReadyToSettle    = &Rejection{Reason: ReasonNotReadyToSettle}
	ErrAlreadyTerminal     = &Rejection{Reason: ReasonAlreadyTerminal}
	ErrInvalidAuction      = &Rejection{Reason: ReasonInvalidAuction}
	ErrAlreadyReversed     = &Rejection{Reason: ReasonAlreadyReversed}
	ErrInvalidRequest      = &Rejection{Reason: ReasonInvalidRequest}
)

// IsRejection reports whether err carries a business rejection.
func IsRejection(err error) bool {
	var r *Rejection
	return errors.As(err, &r)
}

var (
	ErrAuctionNotFound     = errors.New("auction not found")
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrTryAgain is returned once transient storage failures have exhausted
	// the retry budget. Re-submitting the same request is safe.
	ErrTryAgain = errors.New("temporarily unavailable, try again")

	// ErrInvariant marks a programming error or corrupted row. The operation
	// is aborted and the error is never shown to clients verbatim.
	ErrInvariant = errors.New("invariant violation")
)

func Invariantf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvariant, fmt.Sprintf(format, args...))
}
