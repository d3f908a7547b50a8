// Package ledger contains domain entities and business logic for the
// append-only merit point ledger.
package ledger

import (
	"context"

	"github.com/earth-innovators/merit-engine/internal/domain/shared"
)

// ListFilter narrows a transaction listing. A nil Type means all types.
type ListFilter struct {
	Type *TransactionType
}

// Repository defines the interface for ledger persistence.
// This interface is implemented by the infrastructure layer.
// The domain layer has no knowledge of the actual storage mechanism.
type Repository interface {
	// Record appends a transaction and updates the cached balance in a
	// single atomic unit. Returns the balance after the append. When the
	// allowNegative policy is off and the debit would drive the balance
	// below zero, the whole unit fails with ErrInsufficientPoints and
	// nothing is written.
	Record(ctx context.Context, tx *Transaction, allowNegative bool) (shared.Points, error)

	// GetBalance returns the cached balance for a user. A user with no
	// transactions has a zero balance, not an error.
	GetBalance(ctx context.Context, userID shared.UserID) (*Balance, error)

	// GetSummary returns the per-type aggregate for a user.
	GetSummary(ctx context.Context, userID shared.UserID) (*Summary, error)

	// ListTransactions returns a user's transactions in reverse
	// chronological order, paginated. Also returns the total count so
	// callers can render page controls.
	ListTransactions(ctx context.Context, userID shared.UserID, filter ListFilter, page shared.Pagination) ([]*Transaction, int, error)
}
