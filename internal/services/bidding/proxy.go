package bidding

import (
	"auctionengine/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type row struct {
	domain.Bid
	ceiling decimal.Decimal
}

// resolve turns an accepted proposal into the bid rows to insert, the
// incoming bid first. When the current leader holds an automatic ceiling it
// answers once, and an automatic newcomer answers back once. Each row beats
// the previous one by at least the increment, and on equal ceilings the
// earlier leader keeps the lead.
func resolve(a *domain.Auction, p Proposal) []row {
	mine := p.Ceiling()
	first := row{
		Bid:     domain.Bid{UserID: p.UserID, Amount: p.Amount, BidType: p.Type, MaxAmount: p.MaxAmount},
		ceiling: mine,
	}
	if !a.HighBidderID.Valid {
		return []row{first}
	}

	leader := a.HighBidderID.UUID
	leaderMax := a.Price()
	if a.HighBidderMax.Valid {
		leaderMax = a.HighBidderMax.Decimal
	}
	if leader == p.UserID {
		first.ceiling = decimal.Max(mine, leaderMax)
		return []row{first}
	}

	inc := a.BidIncrement
	rows := []row{first}
	if leaderMax.LessThan(p.Amount.Add(inc)) {
		return rows
	}

	counter := decimal.Min(leaderMax, mine.Add(inc))
	rows = append(rows, autoRow(leader, counter, leaderMax))
	if p.Type == domain.BidAutomatic && !mine.LessThan(counter.Add(inc)) {
		rows = append(rows, autoRow(p.UserID, decimal.Min(mine, leaderMax.Add(inc)), mine))
	}
	return rows
}

func autoRow(user uuid.UUID, amount, ceiling decimal.Decimal) row {
	return row{
		Bid:     domain.Bid{UserID: user, Amount: amount, BidType: domain.BidAutomatic},
		ceiling: ceiling,
	}
}

// displaced lists every bidder who led at some point in this placement but
// does not lead at the end.
func displaced(prev uuid.NullUUID, rows []row, final uuid.UUID) []uuid.UUID {
	seen := map[uuid.UUID]bool{final: true}
	var out []uuid.UUID
	add := func(id uuid.UUID) {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	if prev.Valid {
		add(prev.UUID)
	}
	for _, r := range rows {
		add(r.UserID)
	}
	return out
}
