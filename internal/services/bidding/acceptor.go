package bidding

import (
	"context"
	"errors"
	"time"

	"auctionengine/internal/domain"
	"auctionengine/internal/notify"
	"auctionengine/internal/services/auction"
	"auctionengine/internal/services/ledger"
	"auctionengine/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type PlaceBidRequest struct {
	AuctionID uuid.UUID
	UserID    uuid.UUID
	Amount    decimal.Decimal
	Type      domain.BidType
	MaxAmount decimal.NullDecimal
}

// Placement is the committed outcome of one PlaceBid call.
type Placement struct {
	Bid      domain.Bid     `json:"bid"`
	AutoBids []domain.Bid   `json:"auto_bids,omitempty"`
	Auction  domain.Auction `json:"auction"`
	Leading  bool           `json:"leading"`
	Extended bool           `json:"extended"`

	displaced []uuid.UUID
}

type Acceptor struct {
	store  store.Store
	ledger *ledger.Ledger
	events notify.Emitter
	retry  store.RetryPolicy
	rules  []Rule
	now    func() time.Time
}

func NewAcceptor(st store.Store, l *ledger.Ledger, events notify.Emitter, retry store.RetryPolicy, rules ...Rule) *Acceptor {
	if events == nil {
		events = notify.Discard
	}
	return &Acceptor{store: st, ledger: l, events: events, retry: retry, rules: rules, now: time.Now}
}

// PlaceBid accepts a bid in one unit of work on the locked auction row. Bids
// on the same auction are serialized by that lock; bids on different
// auctions never contend.
func (ac *Acceptor) PlaceBid(ctx context.Context, req PlaceBidRequest) (*Placement, error) {
	if req.Type == "" {
		req.Type = domain.BidManual
	}
	p := Proposal{UserID: req.UserID, Amount: req.Amount, Type: req.Type, MaxAmount: req.MaxAmount}

	var placed *Placement
	err := ac.retry.Do(ctx, "place_bid", func() error {
		placed = nil
		return ac.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
			var err error
			placed, err = ac.placeInTx(ctx, tx, req.AuctionID, p)
			return err
		})
	})
	if err != nil {
		ac.logFailure(req, err)
		return nil, err
	}

	zap.L().Info("bid_accepted",
		zap.String("auction_id", req.AuctionID.String()),
		zap.String("user_id", req.UserID.String()),
		zap.String("amount", placed.Bid.Amount.String()),
		zap.Int("auto_bids", len(placed.AutoBids)),
		zap.Bool("extended", placed.Extended),
	)
	ac.events.Emit(placementEvents(placed)...)
	return placed, nil
}

func (ac *Acceptor) placeInTx(ctx context.Context, tx store.Tx, auctionID uuid.UUID, p Proposal) (*Placement, error) {
	a, err := tx.LockAuction(ctx, auctionID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, domain.ErrAuctionNotFound
	}
	if err != nil {
		return nil, err
	}

	now := ac.now().UTC()
	if err := Validate(a, p, now, ac.rules...); err != nil {
		return nil, err
	}

	bal, err := tx.GetBalance(ctx, p.UserID)
	if err != nil {
		return nil, err
	}
	if power := ac.ledger.SpendingPower(bal); power.LessThan(p.Ceiling()) {
		return nil, domain.Reject(domain.ReasonInsufficientBalance,
			"spending power %s does not cover %s", power, p.Ceiling())
	}

	prevLeader := a.HighBidderID
	rows := resolve(a, p)

	placed := &Placement{}
	for i := range rows {
		a.BidCount++
		rows[i].ID = uuid.New()
		rows[i].AuctionID = a.ID
		rows[i].Sequence = a.BidCount
		rows[i].CreatedAt = now
		if err := tx.InsertBid(ctx, &rows[i].Bid); err != nil {
			return nil, err
		}
		a.CurrentBid = decimal.NewNullDecimal(rows[i].Amount)
		a.HighBidderID = uuid.NullUUID{UUID: rows[i].UserID, Valid: true}
		a.HighBidderMax = decimal.NewNullDecimal(rows[i].ceiling)
	}

	placed.Extended = auction.ApplyExtension(a, now)
	a.UpdatedAt = now
	if err := a.CheckInvariants(); err != nil {
		return nil, err
	}
	if err := tx.UpdateAuction(ctx, a); err != nil {
		return nil, err
	}

	placed.Bid = rows[0].Bid
	for _, r := range rows[1:] {
		placed.AutoBids = append(placed.AutoBids, r.Bid)
	}
	placed.Auction = *a
	placed.Leading = a.HighBidderID.UUID == p.UserID
	placed.displaced = displaced(prevLeader, rows, a.HighBidderID.UUID)
	return placed, nil
}

func (ac *Acceptor) logFailure(req PlaceBidRequest, err error) {
	fields := []zap.Field{
		zap.String("auction_id", req.AuctionID.String()),
		zap.String("user_id", req.UserID.String()),
		zap.String("amount", req.Amount.String()),
		zap.Error(err),
	}
	switch {
	case domain.IsRejection(err), errors.Is(err, domain.ErrAuctionNotFound):
		zap.L().Debug("bid_rejected", fields...)
	case errors.Is(err, domain.ErrInvariant):
		zap.L().Error("bid_invariant_violation", fields...)
	case errors.Is(err, domain.ErrTryAgain):
		zap.L().Warn("bid_try_again", fields...)
	default:
		zap.L().Error("bid_failed", fields...)
	}
}
