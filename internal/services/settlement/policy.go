package settlement

import (
	"auctionengine/internal/domain"

	"github.com/shopspring/decimal"
)

// ReservePolicy reports whether the auction may be sold at the winning amount.
type ReservePolicy func(a *domain.Auction, winning decimal.Decimal) bool

// RequireReserve sells only when the winning amount reaches the reserve.
func RequireReserve(a *domain.Auction, winning decimal.Decimal) bool {
	return !a.ReservePrice.Valid || winning.GreaterThanOrEqual(a.ReservePrice.Decimal)
}

func IgnoreReserve(*domain.Auction, decimal.Decimal) bool { return true }

// PolicyByName maps the configured policy name, falling back to RequireReserve.
func PolicyByName(name string) ReservePolicy {
	if name == "ignore" {
		return IgnoreReserve
	}
	return RequireReserve
}
