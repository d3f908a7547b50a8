// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/earth-innovators/merit-engine/internal/domain/ledger"
	"github.com/earth-innovators/merit-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECORD TRANSACTION COMMAND
// Appends a point transaction to a user's ledger and updates the cached
// balance in the same storage transaction.
// ══════════════════════════════════════════════════════════════════════════════

// RecordTransactionCommand contains the data to record a ledger entry.
type RecordTransactionCommand struct {
	// UserID is the internal ID of the user.
	UserID string

	// Type is the transaction type (earned, bonus, redeemed, penalty).
	Type string

	// Points is the signed amount. The sign must match the type.
	Points int64

	// Description is a human-readable reason.
	Description string

	// Source identifies the originating system.
	Source string

	// Timestamp is when the transaction occurred (defaults to now if zero).
	Timestamp time.Time

	// CorrelationID for tracing.
	CorrelationID string
}

// RecordTransactionResult contains the result of recording a transaction.
type RecordTransactionResult struct {
	// TransactionID is the ID of the appended entry.
	TransactionID string

	// UserID is the internal ID of the user.
	UserID string

	// NewBalance is the cached balance after the append.
	NewBalance shared.Points

	// RecordedAt is when the transaction was recorded.
	RecordedAt time.Time
}

// RecordTransactionHandler handles the RecordTransactionCommand.
type RecordTransactionHandler struct {
	ledgerRepo     ledger.Repository
	eventPublisher shared.EventPublisher

	// allowNegative permits debits past zero; the ledger records what
	// happened, enforcement is policy.
	allowNegative bool
}

// NewRecordTransactionHandler creates a new RecordTransactionHandler.
func NewRecordTransactionHandler(
	ledgerRepo ledger.Repository,
	eventPublisher shared.EventPublisher,
	allowNegative bool,
) *RecordTransactionHandler {
	return &RecordTransactionHandler{
		ledgerRepo:     ledgerRepo,
		eventPublisher: eventPublisher,
		allowNegative:  allowNegative,
	}
}

// Handle executes the record transaction command.
func (h *RecordTransactionHandler) Handle(ctx context.Context, cmd RecordTransactionCommand) (*RecordTransactionResult, error) {
	userID, err := shared.NewUserID(cmd.UserID)
	if err != nil {
		return nil, fmt.Errorf("record_transaction: %w", err)
	}

	txType, err := ledger.NewTransactionType(cmd.Type)
	if err != nil {
		return nil, fmt.Errorf("record_transaction: %w", err)
	}

	timestamp := cmd.Timestamp
	if timestamp.IsZero() {
		timestamp = time.Now().UTC()
	}

	tx, err := ledger.NewTransaction(
		uuid.NewString(),
		userID,
		txType,
		shared.Points(cmd.Points),
		cmd.Description,
		cmd.Source,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("record_transaction: %w", err)
	}

	newBalance, err := h.ledgerRepo.Record(ctx, tx, h.allowNegative)
	if err != nil {
		return nil, fmt.Errorf("record_transaction: failed to record: %w", err)
	}

	event := shared.NewPointsRecordedEvent(
		userID.String(),
		tx.ID,
		txType.String(),
		tx.Points.Int64(),
		newBalance.Int64(),
		cmd.Source,
	)
	if cmd.CorrelationID != "" {
		event.BaseEvent = event.BaseEvent.WithCorrelationID(cmd.CorrelationID)
	}
	_ = h.eventPublisher.Publish(event)

	return &RecordTransactionResult{
		TransactionID: tx.ID,
		UserID:        userID.String(),
		NewBalance:    newBalance,
		RecordedAt:    tx.CreatedAt,
	}, nil
}
