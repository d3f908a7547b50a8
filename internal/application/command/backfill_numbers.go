package command

import (
	"context"
	"fmt"

	"github.com/earth-innovators/merit-engine/internal/domain/membership"
	"github.com/earth-innovators/merit-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// BACKFILL NUMBERS COMMAND
// Allocates membership numbers for every user that has none. Best effort:
// one user's failure never aborts the run; failures are collected and the
// aggregate tally is returned.
// ══════════════════════════════════════════════════════════════════════════════

// BackfillNumbersCommand contains the data for a backfill run.
type BackfillNumbersCommand struct {
	// Roles restricts the run to the given roles. Empty means all roles.
	Roles []string

	// CorrelationID for tracing.
	CorrelationID string
}

// BackfillNumbersResult contains the aggregate tally of a backfill run.
type BackfillNumbersResult struct {
	TotalCount   int
	SuccessCount int
	FailedCount  int

	// Assigned maps user ID to the allocated number.
	Assigned map[string]membership.Number

	// Errors maps user ID to the allocation failure.
	Errors map[string]error
}

// BackfillNumbersHandler handles the BackfillNumbersCommand.
type BackfillNumbersHandler struct {
	profiles  membership.ProfileReader
	allocator *AllocateNumberHandler
}

// NewBackfillNumbersHandler creates a new BackfillNumbersHandler.
func NewBackfillNumbersHandler(
	profiles membership.ProfileReader,
	allocator *AllocateNumberHandler,
) *BackfillNumbersHandler {
	return &BackfillNumbersHandler{
		profiles:  profiles,
		allocator: allocator,
	}
}

// Handle executes the backfill numbers command.
func (h *BackfillNumbersHandler) Handle(ctx context.Context, cmd BackfillNumbersCommand) (*BackfillNumbersResult, error) {
	roles := make([]shared.Role, 0, len(cmd.Roles))
	for _, r := range cmd.Roles {
		role, err := shared.NewRole(r)
		if err != nil {
			return nil, fmt.Errorf("backfill_numbers: %w", err)
		}
		roles = append(roles, role)
	}

	profiles, err := h.profiles.ListWithoutNumber(ctx, roles)
	if err != nil {
		return nil, fmt.Errorf("backfill_numbers: failed to list users: %w", err)
	}

	result := &BackfillNumbersResult{
		TotalCount: len(profiles),
		Assigned:   make(map[string]membership.Number, len(profiles)),
		Errors:     make(map[string]error),
	}

	for _, p := range profiles {
		allocated, err := h.allocator.Handle(ctx, AllocateNumberCommand{
			UserID:        p.UserID.String(),
			Role:          p.Role.String(),
			CorrelationID: cmd.CorrelationID,
		})
		if err != nil {
			result.FailedCount++
			result.Errors[p.UserID.String()] = err
			continue
		}

		result.SuccessCount++
		result.Assigned[p.UserID.String()] = allocated.Number
	}

	return result, nil
}
