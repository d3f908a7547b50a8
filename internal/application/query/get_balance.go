// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"
	"fmt"

	"github.com/earth-innovators/merit-engine/internal/domain/ledger"
	"github.com/earth-innovators/merit-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEDGER QUERIES
// Balance, per-type summary, and paginated transaction history.
// ══════════════════════════════════════════════════════════════════════════════

// GetBalanceQuery requests a user's current point balance.
type GetBalanceQuery struct {
	UserID string
}

// GetBalanceResult is the balance reading.
type GetBalanceResult struct {
	UserID  string
	Balance shared.Points
}

// GetSummaryQuery requests a user's per-type ledger aggregate.
type GetSummaryQuery struct {
	UserID string
}

// ListTransactionsQuery requests a page of a user's transaction history,
// newest first.
type ListTransactionsQuery struct {
	UserID string

	// Type filters to a single transaction type. Empty means all.
	Type string

	Page     int
	PageSize int
}

// ListTransactionsResult is one page of history plus the total count so
// callers can restart pagination from any point.
type ListTransactionsResult struct {
	Transactions []*ledger.Transaction
	TotalCount   int
	Page         int
	PageSize     int
}

// LedgerQueries bundles the read side of the ledger.
type LedgerQueries struct {
	ledgerRepo ledger.Repository
}

// NewLedgerQueries creates a new LedgerQueries.
func NewLedgerQueries(ledgerRepo ledger.Repository) *LedgerQueries {
	return &LedgerQueries{ledgerRepo: ledgerRepo}
}

// GetBalance returns the user's cached balance. Users with no ledger
// history read as zero.
func (q *LedgerQueries) GetBalance(ctx context.Context, query GetBalanceQuery) (*GetBalanceResult, error) {
	userID, err := shared.NewUserID(query.UserID)
	if err != nil {
		return nil, fmt.Errorf("get_balance: %w", err)
	}

	balance, err := q.ledgerRepo.GetBalance(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get_balance: %w", err)
	}

	return &GetBalanceResult{
		UserID:  userID.String(),
		Balance: balance.Balance,
	}, nil
}

// GetSummary returns the user's per-type aggregate.
func (q *LedgerQueries) GetSummary(ctx context.Context, query GetSummaryQuery) (*ledger.Summary, error) {
	userID, err := shared.NewUserID(query.UserID)
	if err != nil {
		return nil, fmt.Errorf("get_summary: %w", err)
	}

	summary, err := q.ledgerRepo.GetSummary(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get_summary: %w", err)
	}

	return summary, nil
}

// ListTransactions returns one page of history, newest first.
func (q *LedgerQueries) ListTransactions(ctx context.Context, query ListTransactionsQuery) (*ListTransactionsResult, error) {
	userID, err := shared.NewUserID(query.UserID)
	if err != nil {
		return nil, fmt.Errorf("list_transactions: %w", err)
	}

	filter := ledger.ListFilter{}
	if query.Type != "" {
		txType, err := ledger.NewTransactionType(query.Type)
		if err != nil {
			return nil, fmt.Errorf("list_transactions: %w", err)
		}
		filter.Type = &txType
	}

	page := shared.NewPagination(query.Page, query.PageSize)

	txs, total, err := q.ledgerRepo.ListTransactions(ctx, userID, filter, page)
	if err != nil {
		return nil, fmt.Errorf("list_transactions: %w", err)
	}

	return &ListTransactionsResult{
		Transactions: txs,
		TotalCount:   total,
		Page:         page.Page,
		PageSize:     page.Limit(),
	}, nil
}
