package store

import (
	"context"
	"errors"
	"time"

	"auctionengine/internal/domain"

	"github.com/google/uuid"
)

var (
	ErrNotFound = errors.New("store: not found")

	// ErrLockTimeout is returned when a row lock could not be acquired within
	// the configured lock wait.
	ErrLockTimeout = errors.New("store: lock wait timeout")

	// ErrConflict covers serialization failures, deadlocks and optimistic
	// version mismatches.
	ErrConflict = errors.New("store: concurrent update conflict")

	ErrUnavailable = errors.New("store: unavailable")

	// ErrCommitUnknown means the commit was sent but its outcome is unknown.
	// The unit of work must not be re-run blindly.
	ErrCommitUnknown = errors.New("store: commit outcome unknown")
)

// IsTransient reports whether the unit of work failed for infrastructure
// reasons and can be re-run from scratch.
func IsTransient(err error) bool {
	return errors.Is(err, ErrLockTimeout) ||
		errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrUnavailable)
}

type AuctionFilter struct {
	Status domain.AuctionStatus
	Limit  int
	Offset int
}

// Reader serves snapshot reads. Nothing read here is locked.
type Reader interface {
	GetAuction(ctx context.Context, id uuid.UUID) (*domain.Auction, error)
	ListAuctions(ctx context.Context, f AuctionFilter) ([]domain.Auction, error)
	ListBids(ctx context.Context, auctionID uuid.UUID, limit, offset int) ([]domain.Bid, error)
	DueForActivation(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)
	DueForSettlement(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)
	GetSettlement(ctx context.Context, auctionID uuid.UUID) (*domain.Settlement, error)

	// GetBalance returns a zero balance for users that never had one.
	GetBalance(ctx context.Context, userID uuid.UUID) (*domain.Balance, error)
	NegativeBalances(ctx context.Context, limit int) ([]domain.Balance, error)
	ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.Transaction, error)
}

// Tx is one serializable unit of work. Row locks taken through Lock* are
// held until the unit commits or rolls back. Callers take auction locks before
// balance locks.
type Tx interface {
	LockAuction(ctx context.Context, id uuid.UUID) (*domain.Auction, error)
	CreateAuction(ctx context.Context, a *domain.Auction) error

	// UpdateAuction writes a locked auction when its version still matches
	// and bumps the version; a mismatch returns ErrConflict.
	UpdateAuction(ctx context.Context, a *domain.Auction) error

	InsertBid(ctx context.Context, b *domain.Bid) error
	LatestBid(ctx context.Context, auctionID uuid.UUID) (*domain.Bid, error)

	GetBalance(ctx context.Context, userID uuid.UUID) (*domain.Balance, error)

	// LockBalance locks the user's balance row, creating a zero row first
	// when the user has none.
	LockBalance(ctx context.Context, userID uuid.UUID) (*domain.Balance, error)
	UpdateBalance(ctx context.Context, b *domain.Balance) error

	InsertTransaction(ctx context.Context, t *domain.Transaction) error
	GetTransaction(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
	FindReversal(ctx context.Context, originalID uuid.UUID) (*domain.Transaction, error)
	InsertAdjustment(ctx context.Context, adj *domain.BalanceAdjustment) error

	GetSettlement(ctx context.Context, auctionID uuid.UUID) (*domain.Settlement, error)
	InsertSettlement(ctx context.Context, s *domain.Settlement) error
}

type Store interface {
	Reader

	// RunInTx runs fn in a new unit of work. Returning an error from fn rolls
	// back every write made through tx.
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
