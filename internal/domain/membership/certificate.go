package membership

import (
	"time"

	"github.com/earth-innovators/merit-engine/internal/domain/shared"
)

// Certificate is the at-most-one membership certificate for a user. The
// embedded snapshot records the eligibility state at issuance; Forced
// marks certificates issued past a failing gate by operator override.
type Certificate struct {
	ID                string
	UserID            shared.UserID
	CertificateNumber Number
	Role              shared.Role
	IssueDate         time.Time
	Forced            bool
	Snapshot          *Snapshot
}

// NewCertificate creates a validated certificate. A forced certificate
// may carry an ineligible snapshot; an unforced one must not.
func NewCertificate(id string, userID shared.UserID, number Number, role shared.Role, issueDate time.Time, forced bool, snapshot *Snapshot) (*Certificate, error) {
	if id == "" {
		return nil, shared.NewDomainError("membership", "NewCertificate", shared.ErrEmptyValue, "certificate ID cannot be empty")
	}
	if !userID.IsValid() {
		return nil, shared.NewDomainError("membership", "NewCertificate", shared.ErrInvalidID, "invalid user ID")
	}
	if !number.IsValid() {
		return nil, shared.NewDomainError("membership", "NewCertificate", shared.ErrInvalidFormat, "invalid certificate number")
	}
	if !role.IsValid() {
		return nil, shared.ErrUnknownRole
	}
	if snapshot == nil {
		return nil, shared.NewDomainError("membership", "NewCertificate", shared.ErrEmptyValue, "eligibility snapshot is required")
	}
	if !forced && !snapshot.Eligible {
		return nil, shared.ErrNotEligible
	}
	if issueDate.IsZero() {
		issueDate = time.Now()
	}

	return &Certificate{
		ID:                id,
		UserID:            userID,
		CertificateNumber: number,
		Role:              role,
		IssueDate:         issueDate,
		Forced:            forced,
		Snapshot:          snapshot,
	}, nil
}

// Profile holds the read-only member facts supplied by external
// collaborators. The engine reads profiles; it never writes them.
type Profile struct {
	UserID                 shared.UserID
	Email                  shared.Email
	Role                   shared.Role
	SchoolID               shared.SchoolID // optional, empty for schools themselves
	DisplayName            string
	ApprovedProjects       int
	ChallengesParticipated int
	RatingAvg              float64
	StudentsCount          int
	RegisteredAt           time.Time
}

// AccountAgeDays returns whole days since registration, as of now.
func (p *Profile) AccountAgeDays(now time.Time) int {
	if p.RegisteredAt.IsZero() || now.Before(p.RegisteredAt) {
		return 0
	}
	return int(now.Sub(p.RegisteredAt).Hours() / 24)
}
