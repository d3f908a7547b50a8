// Package postgres implements the PostgreSQL persistence layer for the merit engine.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/earth-innovators/merit-engine/internal/domain/membership"
	"github.com/earth-innovators/merit-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CERTIFICATE REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// CertificateRepository implements membership.CertificateRepository for
// PostgreSQL. The unique index on user_id carries the at-most-one
// guarantee; concurrent awards collide on it and the loser reads the
// winner's row.
type CertificateRepository struct {
	conn *Connection
}

// NewCertificateRepository creates a new CertificateRepository.
func NewCertificateRepository(conn *Connection) *CertificateRepository {
	return &CertificateRepository{conn: conn}
}

// InsertOrFetch attempts the insert; if the user already holds a
// certificate the existing row is returned instead. The second return
// value is true when the given certificate was inserted.
func (r *CertificateRepository) InsertOrFetch(ctx context.Context, cert *membership.Certificate) (*membership.Certificate, bool, error) {
	snapshotJSON, err := json.Marshal(cert.Snapshot)
	if err != nil {
		return nil, false, fmt.Errorf("failed to marshal eligibility snapshot: %w", err)
	}

	query := `
		INSERT INTO certificates (id, user_id, certificate_number, role, issue_date, forced, eligibility_snapshot)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err = r.conn.Exec(ctx, query,
		cert.ID,
		string(cert.UserID),
		cert.CertificateNumber.String(),
		string(cert.Role),
		cert.IssueDate,
		cert.Forced,
		snapshotJSON,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			existing, getErr := r.GetByUser(ctx, cert.UserID)
			if getErr != nil {
				return nil, false, fmt.Errorf("failed to fetch existing certificate after collision: %w", getErr)
			}
			return existing, false, nil
		}
		return nil, false, fmt.Errorf("failed to insert certificate: %w", err)
	}

	return cert, true, nil
}

// GetByUser returns the certificate for a user.
func (r *CertificateRepository) GetByUser(ctx context.Context, userID shared.UserID) (*membership.Certificate, error) {
	query := `
		SELECT id, user_id, certificate_number, role, issue_date, forced, eligibility_snapshot
		FROM certificates
		WHERE user_id = $1
	`

	row := r.conn.QueryRow(ctx, query, string(userID))
	return r.scanCertificate(row)
}

// scanCertificate scans a single certificate from a row.
func (r *CertificateRepository) scanCertificate(row pgx.Row) (*membership.Certificate, error) {
	var cert membership.Certificate
	var userID, number, role string
	var snapshotJSON []byte

	err := row.Scan(
		&cert.ID,
		&userID,
		&number,
		&role,
		&cert.IssueDate,
		&cert.Forced,
		&snapshotJSON,
	)
	if IsNoRows(err) {
		return nil, shared.ErrCertificateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan certificate: %w", err)
	}

	cert.UserID = shared.UserID(userID)
	cert.CertificateNumber = membership.Number(number)
	cert.Role = shared.Role(role)

	var snapshot membership.Snapshot
	if err := json.Unmarshal(snapshotJSON, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal eligibility snapshot: %w", err)
	}
	cert.Snapshot = &snapshot

	return &cert, nil
}
