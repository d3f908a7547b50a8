// Package postgres implements the PostgreSQL persistence layer for the merit engine.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/earth-innovators/merit-engine/internal/domain/ledger"
	"github.com/earth-innovators/merit-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEDGER REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// LedgerRepository implements ledger.Repository for PostgreSQL.
type LedgerRepository struct {
	conn *Connection
}

// NewLedgerRepository creates a new LedgerRepository.
func NewLedgerRepository(conn *Connection) *LedgerRepository {
	return &LedgerRepository{conn: conn}
}

// ─────────────────────────────────────────────────────────────────────────────
// Write Path
// ─────────────────────────────────────────────────────────────────────────────

// Record appends a transaction and updates the cached balance atomically.
// The log insert and the balance upsert share one database transaction,
// so the balance row can never diverge from the sum of the log. When
// allowNegative is off and the debit would drive the balance below zero,
// the transaction is rolled back and nothing is written.
func (r *LedgerRepository) Record(ctx context.Context, tx *ledger.Transaction, allowNegative bool) (shared.Points, error) {
	var newBalance int64

	err := r.conn.WithTx(ctx, DefaultTxOptions(), func(dbtx pgx.Tx) error {
		insertTx := `
			INSERT INTO point_transactions (id, user_id, type, points, description, source, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`
		_, err := dbtx.Exec(ctx, insertTx,
			tx.ID,
			string(tx.UserID),
			string(tx.Type),
			tx.Points.Int64(),
			tx.Description,
			tx.Source,
			tx.CreatedAt,
		)
		if err != nil {
			if IsUniqueViolation(err) {
				return shared.WrapError("ledger", "Record", shared.ErrAlreadyExists, "transaction ID already recorded", err)
			}
			return fmt.Errorf("failed to insert transaction: %w", err)
		}

		upsertBalance := `
			INSERT INTO point_balances (user_id, balance, updated_at)
			VALUES ($1, $2, NOW())
			ON CONFLICT (user_id) DO UPDATE SET
				balance = point_balances.balance + EXCLUDED.balance,
				updated_at = NOW()
			RETURNING balance
		`
		err = dbtx.QueryRow(ctx, upsertBalance, string(tx.UserID), tx.Points.Int64()).Scan(&newBalance)
		if err != nil {
			return fmt.Errorf("failed to update balance: %w", err)
		}

		if !allowNegative && newBalance < 0 {
			return shared.ErrInsufficientPoints
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return shared.Points(newBalance), nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Read Path
// ─────────────────────────────────────────────────────────────────────────────

// GetBalance returns the cached balance for a user. A user with no
// balance row has a zero balance, not an error.
func (r *LedgerRepository) GetBalance(ctx context.Context, userID shared.UserID) (*ledger.Balance, error) {
	query := `
		SELECT balance, updated_at
		FROM point_balances
		WHERE user_id = $1
	`

	b := &ledger.Balance{UserID: userID}
	var balance int64

	err := r.conn.QueryRow(ctx, query, string(userID)).Scan(&balance, &b.UpdatedAt)
	if IsNoRows(err) {
		return b, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}

	b.Balance = shared.Points(balance)
	return b, nil
}

// GetSummary returns the per-type aggregate for a user, computed from
// the transaction log.
func (r *LedgerRepository) GetSummary(ctx context.Context, userID shared.UserID) (*ledger.Summary, error) {
	query := `
		SELECT
			COALESCE(SUM(points), 0),
			COALESCE(SUM(points) FILTER (WHERE type = 'earned'), 0),
			COALESCE(SUM(points) FILTER (WHERE type = 'bonus'), 0),
			COALESCE(SUM(-points) FILTER (WHERE type = 'redeemed'), 0),
			COALESCE(SUM(-points) FILTER (WHERE type = 'penalty'), 0),
			COUNT(*)
		FROM point_transactions
		WHERE user_id = $1
	`

	s := ledger.NewSummary(userID)
	var balance, earned, bonus, spent, penalty int64

	err := r.conn.QueryRow(ctx, query, string(userID)).Scan(
		&balance, &earned, &bonus, &spent, &penalty, &s.Count,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get summary: %w", err)
	}

	s.Balance = shared.Points(balance)
	s.TotalEarned = shared.Points(earned)
	s.TotalBonus = shared.Points(bonus)
	s.TotalSpent = shared.Points(spent)
	s.TotalPenalty = shared.Points(penalty)
	return s, nil
}

// ListTransactions returns a user's transactions in reverse chronological
// order with a stable tiebreak on ID, so paging never duplicates or
// skips entries while new rows arrive.
func (r *LedgerRepository) ListTransactions(ctx context.Context, userID shared.UserID, filter ledger.ListFilter, page shared.Pagination) ([]*ledger.Transaction, int, error) {
	where := "WHERE user_id = $1"
	args := []interface{}{string(userID)}
	if filter.Type != nil {
		where += " AND type = $2"
		args = append(args, string(*filter.Type))
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM point_transactions " + where
	if err := r.conn.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count transactions: %w", err)
	}

	listQuery := fmt.Sprintf(`
		SELECT id, user_id, type, points, description, source, created_at
		FROM point_transactions
		%s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d OFFSET $%d
	`, where, len(args)+1, len(args)+2)
	args = append(args, page.Limit(), page.Offset())

	rows, err := r.conn.Query(ctx, listQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	txs, err := r.scanTransactions(rows)
	if err != nil {
		return nil, 0, err
	}
	return txs, total, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

// scanTransactions scans multiple transactions from rows.
func (r *LedgerRepository) scanTransactions(rows pgx.Rows) ([]*ledger.Transaction, error) {
	var txs []*ledger.Transaction

	for rows.Next() {
		var tx ledger.Transaction
		var userID, txType string
		var points int64

		err := rows.Scan(
			&tx.ID,
			&userID,
			&txType,
			&points,
			&tx.Description,
			&tx.Source,
			&tx.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}

		tx.UserID = shared.UserID(userID)
		tx.Type = ledger.TransactionType(txType)
		tx.Points = shared.Points(points)
		txs = append(txs, &tx)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return txs, nil
}
