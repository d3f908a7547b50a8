// Package postgres implements the PostgreSQL persistence layer for the merit engine.
package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/earth-innovators/merit-engine/internal/domain/membership"
	"github.com/earth-innovators/merit-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROFILE REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// ProfileRepository implements membership.ProfileReader for PostgreSQL.
// Profiles are maintained by the platform's upstream services; this
// repository only reads them.
type ProfileRepository struct {
	conn *Connection
}

// NewProfileRepository creates a new ProfileRepository.
func NewProfileRepository(conn *Connection) *ProfileRepository {
	return &ProfileRepository{conn: conn}
}

const profileColumns = `
	user_id, email, role, COALESCE(school_id::text, ''), display_name,
	approved_projects, challenges_participated, rating_avg, students_count, registered_at
`

// GetByUserID returns the profile for a user.
func (r *ProfileRepository) GetByUserID(ctx context.Context, userID shared.UserID) (*membership.Profile, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM member_profiles
		WHERE user_id = $1
	`, profileColumns)

	row := r.conn.QueryRow(ctx, query, string(userID))
	return r.scanProfile(row)
}

// GetByEmail returns the profile for an email. The lookup is
// case-insensitive so operators can paste addresses as given.
func (r *ProfileRepository) GetByEmail(ctx context.Context, email shared.Email) (*membership.Profile, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM member_profiles
		WHERE LOWER(email) = $1
	`, profileColumns)

	row := r.conn.QueryRow(ctx, query, strings.ToLower(strings.TrimSpace(string(email))))
	return r.scanProfile(row)
}

// ListWithoutNumber returns users of the given roles that have no
// membership number yet, in stable user_id order so backfill runs are
// reproducible. An empty roles slice means all roles.
func (r *ProfileRepository) ListWithoutNumber(ctx context.Context, roles []shared.Role) ([]*membership.Profile, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM member_profiles p
		WHERE NOT EXISTS (
			SELECT 1 FROM membership_numbers n WHERE n.user_id = p.user_id
		)
	`, profileColumns)

	var args []interface{}
	if len(roles) > 0 {
		placeholders := make([]string, len(roles))
		for i, role := range roles {
			placeholders[i] = fmt.Sprintf("$%d", i+1)
			args = append(args, string(role))
		}
		query += " AND role IN (" + strings.Join(placeholders, ", ") + ")"
	}
	query += " ORDER BY user_id ASC"

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles without number: %w", err)
	}
	defer rows.Close()

	return r.scanProfiles(rows)
}

// ListSchools returns every school profile, for standings computation.
func (r *ProfileRepository) ListSchools(ctx context.Context) ([]*membership.Profile, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM member_profiles
		WHERE role = 'school'
		ORDER BY user_id ASC
	`, profileColumns)

	rows, err := r.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list schools: %w", err)
	}
	defer rows.Close()

	return r.scanProfiles(rows)
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

// scanProfile scans a single profile from a row.
func (r *ProfileRepository) scanProfile(row pgx.Row) (*membership.Profile, error) {
	var p membership.Profile
	var userID, email, role, schoolID string

	err := row.Scan(
		&userID,
		&email,
		&role,
		&schoolID,
		&p.DisplayName,
		&p.ApprovedProjects,
		&p.ChallengesParticipated,
		&p.RatingAvg,
		&p.StudentsCount,
		&p.RegisteredAt,
	)
	if IsNoRows(err) {
		return nil, shared.ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan profile: %w", err)
	}

	p.UserID = shared.UserID(userID)
	p.Email = shared.Email(email)
	p.Role = shared.Role(role)
	p.SchoolID = shared.SchoolID(schoolID)
	return &p, nil
}

// scanProfiles scans multiple profiles from rows.
func (r *ProfileRepository) scanProfiles(rows pgx.Rows) ([]*membership.Profile, error) {
	var profiles []*membership.Profile

	for rows.Next() {
		var p membership.Profile
		var userID, email, role, schoolID string

		err := rows.Scan(
			&userID,
			&email,
			&role,
			&schoolID,
			&p.DisplayName,
			&p.ApprovedProjects,
			&p.ChallengesParticipated,
			&p.RatingAvg,
			&p.StudentsCount,
			&p.RegisteredAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}

		p.UserID = shared.UserID(userID)
		p.Email = shared.Email(email)
		p.Role = shared.Role(role)
		p.SchoolID = shared.SchoolID(schoolID)
		profiles = append(profiles, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return profiles, nil
}
