package bidding

import (
	"time"

	"auctionengine/internal/domain"
)

func placementEvents(p *Placement) []domain.Event {
	a := &p.Auction
	price := a.CurrentBid.Decimal.String()

	title := "Bid placed"
	if !p.Leading {
		title = "Bid placed, but you were outbid"
	}
	events := []domain.Event{
		domain.NewEvent(domain.EventBidPlaced, &a.ID, &p.Bid.UserID, title, a.Title, map[string]any{
			"bid_id":      p.Bid.ID.String(),
			"amount":      p.Bid.Amount.String(),
			"current_bid": price,
			"bid_count":   a.BidCount,
			"leading":     p.Leading,
		}),
	}
	for _, user := range p.displaced {
		events = append(events, domain.NewEvent(domain.EventBidOutbid, &a.ID, &user,
			"You have been outbid", a.Title, map[string]any{
				"current_bid": price,
				"minimum_bid": MinimumBid(a).String(),
			}))
	}
	if p.Extended {
		events = append(events, domain.NewEvent(domain.EventAuctionExtended, &a.ID, nil,
			"Auction extended", a.Title, map[string]any{
				"end_time":        a.EndTime.Format(time.RFC3339Nano),
				"extensions_used": a.ExtensionsUsed,
			}))
	}
	return events
}
