package settlement

import (
	"auctionengine/internal/domain"
)

func settlementEvents(out *outcome) []domain.Event {
	a := &out.auction
	s := &out.settlement
	data := map[string]any{"outcome": string(s.Outcome)}
	if s.Amount.Valid {
		data["amount"] = s.Amount.Decimal.String()
	}

	events := []domain.Event{
		domain.NewEvent(domain.EventAuctionEnded, &a.ID, nil, "Auction ended", a.Title, data),
		domain.NewEvent(domain.EventAuctionEnded, &a.ID, &a.SellerID, sellerTitle(s.Outcome), a.Title, data),
	}
	if !s.WinnerID.Valid {
		return events
	}

	winner := s.WinnerID.UUID
	switch s.Outcome {
	case domain.OutcomeSold:
		events = append(events, domain.NewEvent(domain.EventAuctionWon, &a.ID, &winner,
			"You won the auction", a.Title, data))
		if out.txn != nil && out.balance != nil {
			events = append(events, domain.NewEvent(domain.EventBalanceChanged, nil, &winner,
				"Balance updated", string(out.txn.TransactionType), map[string]any{
					"transaction_id":  out.txn.ID.String(),
					"balance_real":    out.balance.BalanceReal.String(),
					"balance_virtual": out.balance.BalanceVirtual.String(),
				}))
		}
	case domain.OutcomeReserveNotMet:
		events = append(events, domain.NewEvent(domain.EventAuctionEnded, &a.ID, &winner,
			"Reserve price not met", a.Title, data))
	case domain.OutcomePaymentFailed:
		events = append(events, domain.NewEvent(domain.EventAuctionEnded, &a.ID, &winner,
			"Payment for your winning bid failed", a.Title, data))
	}
	return events
}

func sellerTitle(o domain.SettlementOutcome) string {
	switch o {
	case domain.OutcomeSold:
		return "Your item sold"
	case domain.OutcomeReserveNotMet:
		return "Your auction ended below the reserve"
	case domain.OutcomePaymentFailed:
		return "The winner could not pay"
	default:
		return "Your auction ended without bids"
	}
}
