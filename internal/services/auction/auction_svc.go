package auction

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"auctionengine/internal/domain"
	"auctionengine/internal/notify"
	"auctionengine/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const dueBatchSize = 100

type CreateAuctionRequest struct {
	SellerID                 uuid.UUID
	Title                    string
	StartingBid              decimal.Decimal
	BidIncrement             decimal.Decimal
	ReservePrice             decimal.NullDecimal
	StartTime                time.Time
	EndTime                  time.Time
	AutoExtend               bool
	ExtensionTriggerMinutes  int
	ExtensionDurationMinutes int
	MaxExtensions            int
}

type IAuctionService interface {
	CreateAuction(ctx context.Context, req CreateAuctionRequest) (*domain.Auction, error)
	GetAuction(ctx context.Context, id uuid.UUID) (*domain.Auction, error)
	ListAuctions(ctx context.Context, status string, limit, offset int) ([]domain.Auction, error)
	ListBids(ctx context.Context, id uuid.UUID, limit, offset int) ([]domain.Bid, error)
	ActivateDue(ctx context.Context, now time.Time) (int, error)
	CancelAuction(ctx context.Context, id, actor uuid.UUID, reason string) (*domain.Auction, error)
}

type auctionService struct {
	store  store.Store
	events notify.Emitter
	retry  store.RetryPolicy
	now    func() time.Time
}

var _ IAuctionService = (*auctionService)(nil)

func NewAuctionService(st store.Store, events notify.Emitter, retry store.RetryPolicy) IAuctionService {
	if events == nil {
		events = notify.Discard
	}
	return &auctionService{store: st, events: events, retry: retry, now: time.Now}
}

func (svc *auctionService) CreateAuction(ctx context.Context, req CreateAuctionRequest) (*domain.Auction, error) {
	now := svc.now().UTC()
	if err := validateCreate(req, now); err != nil {
		return nil, err
	}

	a := &domain.Auction{
		ID:                       uuid.New(),
		SellerID:                 req.SellerID,
		Title:                    strings.TrimSpace(req.Title),
		StartingBid:              req.StartingBid,
		BidIncrement:             req.BidIncrement,
		ReservePrice:             req.ReservePrice,
		Status:                   domain.AuctionScheduled,
		StartTime:                req.StartTime.UTC(),
		EndTime:                  req.EndTime.UTC(),
		AutoExtend:               req.AutoExtend,
		ExtensionTriggerMinutes:  req.ExtensionTriggerMinutes,
		ExtensionDurationMinutes: req.ExtensionDurationMinutes,
		MaxExtensions:            req.MaxExtensions,
		CreatedAt:                now,
		UpdatedAt:                now,
	}
	live := TryActivate(a, now)

	err := svc.retry.Do(ctx, "create_auction", func() error {
		return svc.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
			return tx.CreateAuction(ctx, a)
		})
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("auction_created",
		zap.String("auction_id", a.ID.String()),
		zap.String("status", string(a.Status)),
		zap.Time("end_time", a.EndTime),
	)
	if live {
		svc.events.Emit(liveEvent(a))
	}
	return a, nil
}

func validateCreate(req CreateAuctionRequest, now time.Time) error {
	switch {
	case req.SellerID == uuid.Nil:
		return domain.Reject(domain.ReasonInvalidAuction, "seller is required")
	case strings.TrimSpace(req.Title) == "":
		return domain.Reject(domain.ReasonInvalidAuction, "title is required")
	case req.StartingBid.IsNegative():
		return domain.Reject(domain.ReasonInvalidAuction, "starting bid must not be negative")
	case !req.BidIncrement.IsPositive():
		return domain.Reject(domain.ReasonInvalidAuction, "bid increment must be positive")
	case req.ReservePrice.Valid && req.ReservePrice.Decimal.IsNegative():
		return domain.Reject(domain.ReasonInvalidAuction, "reserve price must not be negative")
	case !domain.OnScale(req.StartingBid) || !domain.OnScale(req.BidIncrement) ||
		(req.ReservePrice.Valid && !domain.OnScale(req.ReservePrice.Decimal)):
		return domain.Reject(domain.ReasonInvalidAuction, "prices allow at most %d decimal places", domain.MoneyScale)
	case !req.EndTime.After(req.StartTime):
		return domain.Reject(domain.ReasonInvalidAuction, "end time must be after start time")
	case !req.EndTime.After(now):
		return domain.Reject(domain.ReasonInvalidAuction, "end time is in the past")
	case req.ExtensionTriggerMinutes < 0 || req.ExtensionDurationMinutes < 0 || req.MaxExtensions < 0:
		return domain.Reject(domain.ReasonInvalidAuction, "extension settings must not be negative")
	case req.AutoExtend && (req.ExtensionDurationMinutes == 0 || req.MaxExtensions == 0):
		return domain.Reject(domain.ReasonInvalidAuction, "auto extend needs a duration and at least one extension")
	}
	return nil
}

func (svc *auctionService) GetAuction(ctx context.Context, id uuid.UUID) (*domain.Auction, error) {
	a, err := svc.store.GetAuction(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, domain.ErrAuctionNotFound
	}
	return a, err
}

func (svc *auctionService) ListAuctions(ctx context.Context, status string, limit, offset int) ([]domain.Auction, error) {
	st := domain.AuctionStatus(strings.ToUpper(status))
	switch st {
	case "", domain.AuctionScheduled, domain.AuctionLive, domain.AuctionEnded, domain.AuctionCancelled:
	default:
		return nil, domain.Reject(domain.ReasonInvalidRequest, "unknown status %q", status)
	}
	return svc.store.ListAuctions(ctx, store.AuctionFilter{Status: st, Limit: limit, Offset: offset})
}

func (svc *auctionService) ListBids(ctx context.Context, id uuid.UUID, limit, offset int) ([]domain.Bid, error) {
	if _, err := svc.GetAuction(ctx, id); err != nil {
		return nil, err
	}
	return svc.store.ListBids(ctx, id, limit, offset)
}

// ActivateDue moves every SCHEDULED auction whose start time has passed to
// LIVE. Safe to call repeatedly and from several instances.
func (svc *auctionService) ActivateDue(ctx context.Context, now time.Time) (int, error) {
	ids, err := svc.store.DueForActivation(ctx, now, dueBatchSize)
	if err != nil {
		return 0, err
	}

	var errs []error
	activated := 0
	for _, id := range ids {
		var a domain.Auction
		changed := false
		err := svc.retry.Do(ctx, "activate_auction", func() error {
			changed = false
			return svc.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
				locked, err := tx.LockAuction(ctx, id)
				if err != nil {
					return err
				}
				if !TryActivate(locked, now) {
					return nil
				}
				locked.UpdatedAt = now
				if err := tx.UpdateAuction(ctx, locked); err != nil {
					return err
				}
				a, changed = *locked, true
				return nil
			})
		})
		if err != nil {
			zap.L().Error("auction.activate_failed", zap.String("auction_id", id.String()), zap.Error(err))
			errs = append(errs, fmt.Errorf("activate %s: %w", id, err))
			continue
		}
		if changed {
			activated++
			svc.events.Emit(liveEvent(&a))
		}
	}
	if activated > 0 {
		zap.L().Info("auctions_activated", zap.Int("count", activated))
	}
	return activated, errors.Join(errs...)
}

func (svc *auctionService) CancelAuction(ctx context.Context, id, actor uuid.UUID, reason string) (*domain.Auction, error) {
	var a domain.Auction
	err := svc.retry.Do(ctx, "cancel_auction", func() error {
		return svc.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
			locked, err := tx.LockAuction(ctx, id)
			if errors.Is(err, store.ErrNotFound) {
				return domain.ErrAuctionNotFound
			}
			if err != nil {
				return err
			}
			if err := Cancel(locked); err != nil {
				return err
			}
			locked.UpdatedAt = svc.now().UTC()
			if err := tx.UpdateAuction(ctx, locked); err != nil {
				return err
			}
			a = *locked
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("auction_cancelled",
		zap.String("auction_id", id.String()),
		zap.String("actor", actor.String()),
		zap.String("reason", reason),
	)
	events := []domain.Event{
		domain.NewEvent(domain.EventAuctionCancelled, &a.ID, nil, "Auction cancelled", reason, nil),
		domain.NewEvent(domain.EventAuctionCancelled, &a.ID, &a.SellerID, "Your auction was cancelled", reason, nil),
	}
	if a.HighBidderID.Valid {
		events = append(events, domain.NewEvent(domain.EventAuctionCancelled, &a.ID, &a.HighBidderID.UUID,
			"An auction you were leading was cancelled", a.Title, nil))
	}
	svc.events.Emit(events...)
	return &a, nil
}

func liveEvent(a *domain.Auction) domain.Event {
	return domain.NewEvent(domain.EventAuctionLive, &a.ID, nil, "Auction is live", a.Title, map[string]any{
		"end_time": a.EndTime.Format(time.RFC3339Nano),
	})
}
