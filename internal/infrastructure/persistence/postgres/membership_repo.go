// Package postgres implements the PostgreSQL persistence layer for the merit engine.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/earth-innovators/merit-engine/internal/domain/membership"
	"github.com/earth-innovators/merit-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// MEMBERSHIP NUMBER REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// NumberRepository implements membership.NumberRepository for PostgreSQL.
// Both uniqueness guarantees the allocator depends on are constraints on
// the membership_numbers table: the primary key on number and the unique
// index on user_id.
type NumberRepository struct {
	conn *Connection
}

// NewNumberRepository creates a new NumberRepository.
func NewNumberRepository(conn *Connection) *NumberRepository {
	return &NumberRepository{conn: conn}
}

// TryReserve atomically inserts the assignment. A collision on the
// number itself means the candidate is taken and the caller should draw
// a fresh one; a collision on user_id means the user already holds a
// number and retrying is pointless.
func (r *NumberRepository) TryReserve(ctx context.Context, a *membership.Assignment) (bool, error) {
	query := `
		INSERT INTO membership_numbers (number, user_id, role, assigned_at)
		VALUES ($1, $2, $3, $4)
	`

	_, err := r.conn.Exec(ctx, query,
		a.Number.String(),
		string(a.UserID),
		string(a.Role),
		a.AssignedAt,
	)
	if err != nil {
		if isUniqueViolationOn(err, "membership_numbers_user_id_key") {
			return false, shared.ErrNumberAssigned
		}
		if IsUniqueViolation(err) {
			// Candidate number taken by another user.
			return false, nil
		}
		return false, fmt.Errorf("failed to reserve membership number: %w", err)
	}

	return true, nil
}

// GetByUser returns the assignment for a user.
func (r *NumberRepository) GetByUser(ctx context.Context, userID shared.UserID) (*membership.Assignment, error) {
	query := `
		SELECT number, user_id, role, assigned_at
		FROM membership_numbers
		WHERE user_id = $1
	`

	var a membership.Assignment
	var number, uid, role string

	err := r.conn.QueryRow(ctx, query, string(userID)).Scan(&number, &uid, &role, &a.AssignedAt)
	if IsNoRows(err) {
		return nil, shared.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get membership number: %w", err)
	}

	a.Number = membership.Number(number)
	a.UserID = shared.UserID(uid)
	a.Role = shared.Role(role)
	return &a, nil
}

// isUniqueViolationOn reports a unique violation against one specific
// constraint, so a number collision and a user collision can be told
// apart.
func isUniqueViolationOn(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && pgErr.ConstraintName == constraint
	}
	return false
}
