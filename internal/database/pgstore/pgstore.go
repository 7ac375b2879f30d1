// Package pgstore implements store.Store on Postgres through database/sql
// and the pgx driver. Units of work run SERIALIZABLE with a bounded lock
// wait, and row locks are taken with SELECT ... FOR UPDATE.
package pgstore

import (
	"context"
	"database/sql"
	"database/sql/driver"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"auctionengine/internal/domain"
	"auctionengine/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

//go:embed schema.sql
var schema string

type Store struct {
	db          *sql.DB
	lockTimeout time.Duration
}

var _ store.Store = (*Store)(nil)

func New(db *sql.DB, lockTimeout time.Duration) *Store {
	if lockTimeout <= 0 {
		lockTimeout = 3 * time.Second
	}
	return &Store{db: db, lockTimeout: lockTimeout}
}

// EnsureSchema creates missing tables and indexes.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	zap.L().Info("pg_schema_ready")
	return nil
}

func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("%w: begin: %w", store.ErrUnavailable, err)
	}
	defer func() { _ = sqlTx.Rollback() }()

	if _, err := sqlTx.ExecContext(ctx,
		fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.lockTimeout.Milliseconds())); err != nil {
		return classify(err)
	}

	if err := fn(ctx, &tx{q: sqlTx}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		if c := classify(err); errors.Is(c, store.ErrConflict) {
			return c
		}
		return fmt.Errorf("%w: %w", store.ErrCommitUnknown, err)
	}
	return nil
}

// classify maps driver errors onto the store sentinels.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01":
			return fmt.Errorf("%w: %w", store.ErrConflict, err)
		case "55P03":
			return fmt.Errorf("%w: %w", store.ErrLockTimeout, err)
		case "23505":
			return fmt.Errorf("%w: %w", store.ErrConflict, err)
		}
		return err
	}

	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) || errors.Is(err, driver.ErrBadConn) || pgconn.SafeToRetry(err) {
		return fmt.Errorf("%w: %w", store.ErrUnavailable, err)
	}
	return err
}

func (s *Store) GetAuction(ctx context.Context, id uuid.UUID) (*domain.Auction, error) {
	return scanAuction(s.db.QueryRowContext(ctx,
		`SELECT `+auctionColumns+` FROM auctions WHERE id = $1`, id))
}

func (s *Store) ListAuctions(ctx context.Context, f store.AuctionFilter) ([]domain.Auction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+auctionColumns+` FROM auctions
		  WHERE ($1 = '' OR status = $1)
		  ORDER BY end_time DESC
		  LIMIT $2 OFFSET $3`,
		string(f.Status), limitArg(f.Limit), f.Offset)
	if err != nil {
		return nil, classify(err)
	}
	return collect(rows, scanAuction)
}

func (s *Store) ListBids(ctx context.Context, auctionID uuid.UUID, limit, offset int) ([]domain.Bid, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+bidColumns+` FROM bids
		  WHERE auction_id = $1
		  ORDER BY sequence DESC
		  LIMIT $2 OFFSET $3`,
		auctionID, limitArg(limit), offset)
	if err != nil {
		return nil, classify(err)
	}
	return collect(rows, scanBid)
}

func (s *Store) DueForActivation(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	return s.dueIDs(ctx,
		`SELECT id FROM auctions WHERE status = 'SCHEDULED' AND start_time <= $1 ORDER BY start_time LIMIT $2`,
		now, limit)
}

func (s *Store) DueForSettlement(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	return s.dueIDs(ctx,
		`SELECT id FROM auctions WHERE status = 'LIVE' AND end_time <= $1 ORDER BY end_time LIMIT $2`,
		now, limit)
}

func (s *Store) dueIDs(ctx context.Context, query string, now time.Time, limit int) ([]uuid.UUID, error) {
	rows, err := s.db.QueryContext(ctx, query, now, limitArg(limit))
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	ids := []uuid.UUID{}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, classify(err)
		}
		ids = append(ids, id)
	}
	return ids, classify(rows.Err())
}

func (s *Store) GetSettlement(ctx context.Context, auctionID uuid.UUID) (*domain.Settlement, error) {
	return getSettlement(ctx, s.db, auctionID)
}

func (s *Store) GetBalance(ctx context.Context, userID uuid.UUID) (*domain.Balance, error) {
	return getBalance(ctx, s.db, userID)
}

func (s *Store) NegativeBalances(ctx context.Context, limit int) ([]domain.Balance, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+balanceColumns+` FROM balances WHERE balance_real < 0 ORDER BY balance_real LIMIT $1`,
		limitArg(limit))
	if err != nil {
		return nil, classify(err)
	}
	return collect(rows, scanBalance)
}

func (s *Store) ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.Transaction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		  WHERE user_id = $1
		  ORDER BY created_at DESC
		  LIMIT $2 OFFSET $3`,
		userID, limitArg(limit), offset)
	if err != nil {
		return nil, classify(err)
	}
	return collect(rows, scanTransaction)
}

// SaveNotification stores a delivered event once; replays are ignored.
func (s *Store) SaveNotification(ctx context.Context, ev domain.Event) error {
	var data any
	if len(ev.Data) > 0 {
		b, err := json.Marshal(ev.Data)
		if err != nil {
			return fmt.Errorf("marshal notification data: %w", err)
		}
		data = string(b)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notifications (id, user_id, auction_id, type, title, message, data, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (id) DO NOTHING`,
		ev.ID, ev.UserID, ev.AuctionID, string(ev.Type), ev.Title, ev.Message, data, ev.CreatedAt)
	return classify(err)
}

func getSettlement(ctx context.Context, q querier, auctionID uuid.UUID) (*domain.Settlement, error) {
	return scanSettlement(q.QueryRowContext(ctx,
		`SELECT `+settlementColumns+` FROM settlements WHERE auction_id = $1`, auctionID))
}

func getBalance(ctx context.Context, q querier, userID uuid.UUID) (*domain.Balance, error) {
	b, err := scanBalance(q.QueryRowContext(ctx,
		`SELECT `+balanceColumns+` FROM balances WHERE user_id = $1`, userID))
	if errors.Is(err, store.ErrNotFound) {
		return &domain.Balance{UserID: userID}, nil
	}
	return b, err
}
