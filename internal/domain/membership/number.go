// Package membership contains the domain model for membership numbers,
// eligibility evaluation, and certificate issuance. Eligibility is pure
// computation over supplied facts; uniqueness guarantees for numbers and
// certificates live in the storage layer.
package membership

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/earth-innovators/merit-engine/internal/domain/shared"
)

// Number is a role-prefixed membership identifier, e.g. "STU-4F2A9C1B".
// The suffix is random; uniqueness is enforced by the storage layer, not
// by the generator.
type Number string

var numberRegex = regexp.MustCompile(`^(STU|TCH|SCH)-[0-9A-F]{8}$`)

// IsValid checks if the number matches the expected format.
func (n Number) IsValid() bool {
	return numberRegex.MatchString(string(n))
}

// String returns the string representation.
func (n Number) String() string {
	return string(n)
}

// Role returns the role a number was issued for, derived from its prefix.
func (n Number) Role() (shared.Role, error) {
	switch {
	case strings.HasPrefix(string(n), "STU-"):
		return shared.RoleStudent, nil
	case strings.HasPrefix(string(n), "TCH-"):
		return shared.RoleTeacher, nil
	case strings.HasPrefix(string(n), "SCH-"):
		return shared.RoleSchool, nil
	}
	return "", shared.NewDomainError("membership", "Role", shared.ErrInvalidFormat, "number has no recognized role prefix")
}

// NewNumber parses and validates a membership number.
func NewNumber(raw string) (Number, error) {
	n := Number(strings.ToUpper(strings.TrimSpace(raw)))
	if !n.IsValid() {
		return "", shared.NewDomainError("membership", "NewNumber", shared.ErrInvalidFormat, "invalid membership number format")
	}
	return n, nil
}

// GenerateNumber produces a candidate number for a role. Candidates are
// random draws; the allocator retries with a fresh draw when the storage
// layer reports the candidate is already taken.
func GenerateNumber(role shared.Role) (Number, error) {
	if !role.IsValid() {
		return "", shared.ErrUnknownRole
	}
	id := uuid.New()
	suffix := strings.ToUpper(strings.ReplaceAll(id.String(), "-", ""))[:8]
	return Number(fmt.Sprintf("%s-%s", role.Prefix(), suffix)), nil
}

// Assignment records a number reserved for a user.
type Assignment struct {
	Number     Number
	UserID     shared.UserID
	Role       shared.Role
	AssignedAt time.Time
}

// NewAssignment creates a validated assignment.
func NewAssignment(number Number, userID shared.UserID, role shared.Role, assignedAt time.Time) (*Assignment, error) {
	if !number.IsValid() {
		return nil, shared.NewDomainError("membership", "NewAssignment", shared.ErrInvalidFormat, "invalid membership number")
	}
	if !userID.IsValid() {
		return nil, shared.NewDomainError("membership", "NewAssignment", shared.ErrInvalidID, "invalid user ID")
	}
	if !role.IsValid() {
		return nil, shared.ErrUnknownRole
	}
	numberRole, err := number.Role()
	if err != nil {
		return nil, err
	}
	if numberRole != role {
		return nil, shared.NewDomainError("membership", "NewAssignment", shared.ErrInvalidInput, "number prefix does not match role")
	}
	if assignedAt.IsZero() {
		assignedAt = time.Now()
	}

	return &Assignment{
		Number:     number,
		UserID:     userID,
		Role:       role,
		AssignedAt: assignedAt,
	}, nil
}
