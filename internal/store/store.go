// Package store persists subscription state and payment transactions in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/book-expert/voice-service/internal/core"

	// Registers the "sqlite" database/sql driver.
	_ "modernc.org/sqlite"
)

const (
	driverName = "sqlite"
	memoryPath = ":memory:"
	dirMode    = 0o755
)

var (
	// ErrUserNotFound is returned when no user row matches an id.
	ErrUserNotFound = errors.New("user not found")
	// ErrUserIDEmpty is returned when a write has no user id.
	ErrUserIDEmpty = errors.New("user id is required")
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
    id TEXT PRIMARY KEY,
    plan TEXT NOT NULL,
    subscription_status TEXT NOT NULL,
    current_period_end TIMESTAMP,
    updated_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS transactions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    buyer_id TEXT NOT NULL,
    transaction_id TEXT NOT NULL,
    amount TEXT NOT NULL,
    plan TEXT NOT NULL,
    payment_id TEXT NOT NULL,
    order_id TEXT NOT NULL,
    status TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_transactions_buyer_created ON transactions(buyer_id, created_at);
`

// Store is a SQLite-backed core.UserStore and core.TransactionStore.
type Store struct {
	db    *sql.DB
	clock func() time.Time
}

// Open opens or creates the database at path in WAL mode and applies the schema.
// ":memory:" opens a private in-memory database.
func Open(ctx context.Context, path string) (*Store, error) {
	dsn := memoryPath

	if path != memoryPath {
		dir := filepath.Dir(path)
		if dir != "." && dir != "" {
			err := os.MkdirAll(dir, dirMode)
			if err != nil {
				return nil, fmt.Errorf("create data dir: %w", err)
			}
		}

		dsn = fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(10000)", path)
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if path == memoryPath {
		// Every pooled connection would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
	}

	err = db.PingContext(ctx)
	if err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	_, err = db.ExecContext(ctx, schema)
	if err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db, clock: time.Now}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// UpdatePlan creates or replaces the subscription state of a user.
func (s *Store) UpdatePlan(ctx context.Context, user core.User) (*core.User, error) {
	if user.ID == "" {
		return nil, ErrUserIDEmpty
	}

	var periodEnd sql.NullTime
	if !user.CurrentPeriodEnd.IsZero() {
		periodEnd = sql.NullTime{Time: user.CurrentPeriodEnd.UTC(), Valid: true}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users(id, plan, subscription_status, current_period_end, updated_at)
		 VALUES(?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   plan=excluded.plan,
		   subscription_status=excluded.subscription_status,
		   current_period_end=excluded.current_period_end,
		   updated_at=excluded.updated_at`,
		user.ID, user.Plan, user.SubscriptionStatus, periodEnd, s.clock().UTC())
	if err != nil {
		return nil, fmt.Errorf("update plan for user %s: %w", user.ID, err)
	}

	return s.GetUser(ctx, user.ID)
}

// GetUser returns the subscription state of a user.
func (s *Store) GetUser(ctx context.Context, id string) (*core.User, error) {
	var (
		user      core.User
		periodEnd sql.NullTime
	)

	err := s.db.QueryRowContext(ctx,
		`SELECT id, plan, subscription_status, current_period_end FROM users WHERE id = ?`, id,
	).Scan(&user.ID, &user.Plan, &user.SubscriptionStatus, &periodEnd)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, id)
	}

	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", id, err)
	}

	if periodEnd.Valid {
		user.CurrentPeriodEnd = periodEnd.Time
	}

	return &user, nil
}

// CreateTransaction records a completed payment. A zero CreatedAt is set to now.
func (s *Store) CreateTransaction(ctx context.Context, txn core.Transaction) error {
	if txn.BuyerID == "" {
		return ErrUserIDEmpty
	}

	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = s.clock()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO transactions(buyer_id, transaction_id, amount, plan, payment_id, order_id, status, created_at)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?)`,
		txn.BuyerID, txn.TransactionID, txn.Amount, txn.Plan, txn.PaymentID, txn.OrderID, txn.Status,
		txn.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("create transaction %s: %w", txn.OrderID, err)
	}

	return nil
}

// ListTransactions returns a buyer's transactions, newest first.
func (s *Store) ListTransactions(ctx context.Context, buyerID string) ([]core.Transaction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT buyer_id, transaction_id, amount, plan, payment_id, order_id, status, created_at
		 FROM transactions WHERE buyer_id = ? ORDER BY created_at DESC, id DESC`, buyerID)
	if err != nil {
		return nil, fmt.Errorf("list transactions for %s: %w", buyerID, err)
	}
	defer rows.Close()

	transactions := []core.Transaction{}

	for rows.Next() {
		var txn core.Transaction

		scanErr := rows.Scan(&txn.BuyerID, &txn.TransactionID, &txn.Amount, &txn.Plan,
			&txn.PaymentID, &txn.OrderID, &txn.Status, &txn.CreatedAt)
		if scanErr != nil {
			return nil, fmt.Errorf("scan transaction: %w", scanErr)
		}

		transactions = append(transactions, txn)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}

	return transactions, nil
}

// Stats summarizes the stored data.
type Stats struct {
	Users        int `json:"users"`
	Transactions int `json:"transactions"`
}

// Stats counts users and transactions.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	var stats Stats

	err := s.db.QueryRowContext(ctx,
		`SELECT (SELECT COUNT(*) FROM users), (SELECT COUNT(*) FROM transactions)`,
	).Scan(&stats.Users, &stats.Transactions)
	if err != nil {
		return nil, fmt.Errorf("count rows: %w", err)
	}

	return &stats, nil
}
