package membership

import (
	"context"

	"github.com/earth-innovators/merit-engine/internal/domain/shared"
)

// NumberRepository persists membership number assignments. Uniqueness of
// both the number and the user binding is a storage constraint; the
// allocator layers bounded retry on top of TryReserve.
type NumberRepository interface {
	// TryReserve atomically inserts the assignment. Returns
	// (true, nil) on success, (false, nil) when the candidate number is
	// already taken by another user (the caller should draw a fresh
	// candidate), and (false, ErrAlreadyExists) when the user already
	// holds a number.
	TryReserve(ctx context.Context, assignment *Assignment) (bool, error)

	// GetByUser returns the assignment for a user, or ErrNotFound.
	GetByUser(ctx context.Context, userID shared.UserID) (*Assignment, error)
}

// CertificateRepository persists certificates with an at-most-one-per-user
// guarantee enforced by a storage uniqueness constraint.
type CertificateRepository interface {
	// InsertOrFetch attempts the insert; if a certificate already
	// exists for the user it returns the existing row instead. The
	// second return value is true when the given certificate was
	// inserted, false when an existing one was returned.
	InsertOrFetch(ctx context.Context, cert *Certificate) (*Certificate, bool, error)

	// GetByUser returns the certificate for a user, or ErrNotFound.
	GetByUser(ctx context.Context, userID shared.UserID) (*Certificate, error)
}

// ProfileReader provides read-only access to member profile facts.
type ProfileReader interface {
	// GetByUserID returns the profile for a user, or ErrNotFound.
	GetByUserID(ctx context.Context, userID shared.UserID) (*Profile, error)

	// GetByEmail returns the profile for a normalized email, or ErrNotFound.
	GetByEmail(ctx context.Context, email shared.Email) (*Profile, error)

	// ListWithoutNumber returns users of the given roles that have no
	// membership number yet. An empty roles slice means all roles.
	ListWithoutNumber(ctx context.Context, roles []shared.Role) ([]*Profile, error)

	// ListSchools returns every school profile, for standings computation.
	ListSchools(ctx context.Context) ([]*Profile, error)
}
