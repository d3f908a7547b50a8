// Package ledger contains domain entities and business logic for the
// append-only merit point ledger. Every change to a user's balance is a
// transaction row; the balance is derived state that the storage layer
// keeps in step with the log. This is a pure domain layer with zero
// external dependencies.
package ledger

import (
	"time"

	"github.com/earth-innovators/merit-engine/internal/domain/shared"
)

// TransactionType classifies a ledger entry. Credits carry positive
// point amounts, debits negative ones; the type decides which sign is
// legal, never the other way around.
type TransactionType string

const (
	TypeEarned   TransactionType = "earned"   // credit: activity completion
	TypeBonus    TransactionType = "bonus"    // credit: manual or campaign grant
	TypeRedeemed TransactionType = "redeemed" // debit: points spent
	TypePenalty  TransactionType = "penalty"  // debit: points withdrawn
)

// AllTransactionTypes lists every supported transaction type.
func AllTransactionTypes() []TransactionType {
	return []TransactionType{TypeEarned, TypeBonus, TypeRedeemed, TypePenalty}
}

// IsValid checks if the transaction type is one of the supported types.
func (t TransactionType) IsValid() bool {
	switch t {
	case TypeEarned, TypeBonus, TypeRedeemed, TypePenalty:
		return true
	}
	return false
}

// IsCredit returns true for types that add points.
func (t TransactionType) IsCredit() bool {
	return t == TypeEarned || t == TypeBonus
}

// IsDebit returns true for types that remove points.
func (t TransactionType) IsDebit() bool {
	return t == TypeRedeemed || t == TypePenalty
}

// String returns the string representation.
func (t TransactionType) String() string {
	return string(t)
}

// NewTransactionType creates a TransactionType with validation.
func NewTransactionType(value string) (TransactionType, error) {
	t := TransactionType(value)
	if !t.IsValid() {
		return "", shared.ErrInvalidTransactionType
	}
	return t, nil
}

// Transaction is a single immutable ledger entry. Once persisted it is
// never updated or deleted; corrections are new entries.
type Transaction struct {
	ID          string
	UserID      shared.UserID
	Type        TransactionType
	Points      shared.Points
	Description string
	Source      string // originating system, e.g. "challenge-service", "meritctl"
	CreatedAt   time.Time
}

// NewTransaction creates a validated ledger transaction. The points sign
// must agree with the transaction type: credits positive, debits negative.
func NewTransaction(id string, userID shared.UserID, txType TransactionType, points shared.Points, description, source string, createdAt time.Time) (*Transaction, error) {
	if id == "" {
		return nil, shared.NewDomainError("ledger", "NewTransaction", shared.ErrEmptyValue, "transaction ID cannot be empty")
	}
	if !userID.IsValid() {
		return nil, shared.NewDomainError("ledger", "NewTransaction", shared.ErrInvalidID, "invalid user ID")
	}
	if !txType.IsValid() {
		return nil, shared.ErrInvalidTransactionType
	}
	if points == 0 {
		return nil, shared.ErrZeroPoints
	}
	if txType.IsCredit() && points.IsDebit() {
		return nil, shared.ErrWrongPointsSign
	}
	if txType.IsDebit() && points.IsCredit() {
		return nil, shared.ErrWrongPointsSign
	}
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	return &Transaction{
		ID:          id,
		UserID:      userID,
		Type:        txType,
		Points:      points,
		Description: description,
		Source:      source,
		CreatedAt:   createdAt,
	}, nil
}

// IsCredit returns true if the transaction adds points.
func (t *Transaction) IsCredit() bool {
	return t.Type.IsCredit()
}

// Balance is the cached running total for one user. The storage layer
// updates it in the same database transaction as the ledger insert, so
// it never diverges from the sum of the log.
type Balance struct {
	UserID    shared.UserID
	Balance   shared.Points
	UpdatedAt time.Time
}

// Summary aggregates a user's ledger by transaction type.
type Summary struct {
	UserID       shared.UserID
	Balance      shared.Points
	TotalEarned  shared.Points // sum of earned credits (positive)
	TotalBonus   shared.Points // sum of bonus credits (positive)
	TotalSpent   shared.Points // absolute sum of redemptions
	TotalPenalty shared.Points // absolute sum of penalties
	Count        int           // total number of transactions
}

// Apply folds a transaction into the summary. Used by in-memory fakes
// and by consistency checks against the cached balance.
func (s *Summary) Apply(tx *Transaction) {
	s.Balance += tx.Points
	s.Count++
	switch tx.Type {
	case TypeEarned:
		s.TotalEarned += tx.Points
	case TypeBonus:
		s.TotalBonus += tx.Points
	case TypeRedeemed:
		s.TotalSpent += tx.Points.Abs()
	case TypePenalty:
		s.TotalPenalty += tx.Points.Abs()
	}
}

// NewSummary creates an empty summary for a user.
func NewSummary(userID shared.UserID) *Summary {
	return &Summary{UserID: userID}
}
