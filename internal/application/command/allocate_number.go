package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/earth-innovators/merit-engine/internal/domain/membership"
	"github.com/earth-innovators/merit-engine/internal/domain/shared"
	"github.com/earth-innovators/merit-engine/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// ALLOCATE NUMBER COMMAND
// Reserves a unique role-prefixed membership number for a user. Candidates
// are random draws; a draw that collides with an existing number is retried
// with a fresh draw, up to the configured budget. Exhaustion is a typed
// failure, never a silent fallback.
// ══════════════════════════════════════════════════════════════════════════════

// AllocateNumberCommand contains the data to allocate a membership number.
type AllocateNumberCommand struct {
	// UserID is the internal ID of the user.
	UserID string

	// Role determines the number prefix.
	Role string

	// CorrelationID for tracing.
	CorrelationID string
}

// AllocateNumberResult contains the result of an allocation.
type AllocateNumberResult struct {
	// Number is the user's membership number.
	Number membership.Number

	// AlreadyAssigned is true when the user held a number before this
	// command ran; no new number was reserved.
	AlreadyAssigned bool

	// Attempts is the number of reservation attempts made (0 when the
	// user already held a number).
	Attempts int
}

// AllocateNumberHandler handles the AllocateNumberCommand.
type AllocateNumberHandler struct {
	numberRepo     membership.NumberRepository
	eventPublisher shared.EventPublisher
	maxAttempts    int
}

// NewAllocateNumberHandler creates a new AllocateNumberHandler.
func NewAllocateNumberHandler(
	numberRepo membership.NumberRepository,
	eventPublisher shared.EventPublisher,
	maxAttempts int,
) *AllocateNumberHandler {
	if maxAttempts < 1 {
		maxAttempts = 10
	}
	return &AllocateNumberHandler{
		numberRepo:     numberRepo,
		eventPublisher: eventPublisher,
		maxAttempts:    maxAttempts,
	}
}

// Handle executes the allocate number command. Allocation is idempotent:
// a user that already holds a number gets it back unchanged.
func (h *AllocateNumberHandler) Handle(ctx context.Context, cmd AllocateNumberCommand) (*AllocateNumberResult, error) {
	userID, err := shared.NewUserID(cmd.UserID)
	if err != nil {
		return nil, fmt.Errorf("allocate_number: %w", err)
	}

	role, err := shared.NewRole(cmd.Role)
	if err != nil {
		return nil, fmt.Errorf("allocate_number: %w", err)
	}

	// Fast path: the user already holds a number.
	if existing, err := h.numberRepo.GetByUser(ctx, userID); err == nil {
		return &AllocateNumberResult{Number: existing.Number, AlreadyAssigned: true}, nil
	} else if !shared.IsNotFound(err) {
		return nil, fmt.Errorf("allocate_number: lookup failed: %w", err)
	}

	attempts := 0
	var reserved *membership.Assignment

	retrier := retry.AllocatorRetrier(h.maxAttempts)
	err = retrier.Do(ctx, func(ctx context.Context) error {
		attempts++

		number, err := membership.GenerateNumber(role)
		if err != nil {
			return retry.Permanent(err)
		}

		assignment, err := membership.NewAssignment(number, userID, role, time.Now().UTC())
		if err != nil {
			return retry.Permanent(err)
		}

		inserted, err := h.numberRepo.TryReserve(ctx, assignment)
		if err != nil {
			if shared.IsAlreadyExists(err) {
				// A concurrent allocation won for this user. Not a failure.
				return retry.Permanent(err)
			}
			return retry.Permanent(fmt.Errorf("reserve failed: %w", err))
		}
		if !inserted {
			// Genuine number collision: draw again.
			return retry.Retryable(shared.ErrNumberTaken)
		}

		reserved = assignment
		return nil
	})

	if err != nil {
		if retry.IsExhausted(err) {
			return nil, shared.WrapError("membership", "Allocate", shared.ErrExhausted,
				fmt.Sprintf("no free number after %d attempts", attempts), shared.ErrAllocationExhausted)
		}
		if shared.IsAlreadyExists(err) {
			existing, getErr := h.numberRepo.GetByUser(ctx, userID)
			if getErr != nil {
				return nil, fmt.Errorf("allocate_number: lost race and lookup failed: %w", errors.Join(err, getErr))
			}
			return &AllocateNumberResult{Number: existing.Number, AlreadyAssigned: true, Attempts: attempts}, nil
		}
		return nil, fmt.Errorf("allocate_number: %w", err)
	}

	event := shared.NewNumberAssignedEvent(userID.String(), reserved.Number.String(), role.String())
	if cmd.CorrelationID != "" {
		event.BaseEvent = event.BaseEvent.WithCorrelationID(cmd.CorrelationID)
	}
	_ = h.eventPublisher.Publish(event)

	return &AllocateNumberResult{Number: reserved.Number, Attempts: attempts}, nil
}
