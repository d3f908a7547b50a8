// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"fmt"
	"regexp"
	"strings"
)

// ═══════════════════════════════════════════════════════════════════════════
// ID Value Objects
// ═══════════════════════════════════════════════════════════════════════════

// UserID represents a unique platform user identifier (UUID format).
type UserID string

// UUID validation regex (simple version).
var uuidRegex = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// IsValid checks if the user ID is a valid UUID.
func (u UserID) IsValid() bool {
	return uuidRegex.MatchString(string(u))
}

// String returns the string representation.
func (u UserID) String() string {
	return string(u)
}

// IsEmpty checks if the ID is empty.
func (u UserID) IsEmpty() bool {
	return u == ""
}

// NewUserID creates a new UserID with validation.
func NewUserID(id string) (UserID, error) {
	uid := UserID(strings.ToLower(strings.TrimSpace(id)))
	if !uid.IsValid() {
		return "", NewDomainError("shared", "NewUserID", ErrInvalidID, "invalid user ID format")
	}
	return uid, nil
}

// SchoolID represents a school identifier (UUID format).
// Students and teachers carry an optional school association.
type SchoolID string

// IsValid checks if the school ID is a valid UUID.
func (s SchoolID) IsValid() bool {
	return uuidRegex.MatchString(string(s))
}

// String returns the string representation.
func (s SchoolID) String() string {
	return string(s)
}

// IsEmpty checks if the ID is empty.
func (s SchoolID) IsEmpty() bool {
	return s == ""
}

// Email represents a user's email address, the human-facing lookup key
// used by the CLI commands.
type Email string

// Minimal format check; full validation belongs to the identity provider.
var emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// IsValid checks if the email has a plausible format.
func (e Email) IsValid() bool {
	return emailRegex.MatchString(string(e))
}

// String returns the string representation.
func (e Email) String() string {
	return string(e)
}

// Normalize returns a normalized (lowercase, trimmed) version of the email.
func (e Email) Normalize() Email {
	return Email(strings.ToLower(strings.TrimSpace(string(e))))
}

// NewEmail creates a new Email with validation.
func NewEmail(raw string) (Email, error) {
	e := Email(raw).Normalize()
	if !e.IsValid() {
		return "", NewDomainError("shared", "NewEmail", ErrInvalidFormat, "invalid email format")
	}
	return e, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Role Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Role represents the membership role of a platform user.
// Eligibility criteria and membership number prefixes are role-specific.
type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
	RoleSchool  Role = "school"
)

// AllRoles lists every supported role, in display order.
func AllRoles() []Role {
	return []Role{RoleStudent, RoleTeacher, RoleSchool}
}

// IsValid checks if the role is one of the supported roles.
func (r Role) IsValid() bool {
	switch r {
	case RoleStudent, RoleTeacher, RoleSchool:
		return true
	}
	return false
}

// String returns the string representation.
func (r Role) String() string {
	return string(r)
}

// Prefix returns the membership number prefix for the role.
func (r Role) Prefix() string {
	switch r {
	case RoleStudent:
		return "STU"
	case RoleTeacher:
		return "TCH"
	case RoleSchool:
		return "SCH"
	default:
		return ""
	}
}

// NewRole creates a new Role with validation.
func NewRole(value string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(value)))
	if !r.IsValid() {
		return "", ErrUnknownRole
	}
	return r, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Points Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Points represents a signed amount of merit points. Debits (redemptions,
// penalties) are negative; credits (earned, bonus) are positive.
type Points int64

// Int64 returns the underlying int64 value.
func (p Points) Int64() int64 {
	return int64(p)
}

// IsCredit returns true for a positive amount.
func (p Points) IsCredit() bool {
	return p > 0
}

// IsDebit returns true for a negative amount.
func (p Points) IsDebit() bool {
	return p < 0
}

// Abs returns the absolute value.
func (p Points) Abs() Points {
	if p < 0 {
		return -p
	}
	return p
}

// String returns the string representation with an explicit sign for credits.
func (p Points) String() string {
	if p > 0 {
		return fmt.Sprintf("+%d", int64(p))
	}
	return fmt.Sprintf("%d", int64(p))
}

// ═══════════════════════════════════════════════════════════════════════════
// Percentile Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Percentile represents a ranked position as a percentage (0-100].
// Lower is better: percentile 10 means top 10%.
type Percentile float64

// IsValid checks that the percentile is within (0, 100].
func (p Percentile) IsValid() bool {
	return p > 0 && p <= 100
}

// Float64 returns the underlying float64 value.
func (p Percentile) Float64() float64 {
	return float64(p)
}

// WithinTop returns true if the percentile is at or above the given cutoff
// (e.g. WithinTop(50) for the top half).
func (p Percentile) WithinTop(cutoff float64) bool {
	return p.IsValid() && float64(p) <= cutoff
}

// String returns the string representation.
func (p Percentile) String() string {
	return fmt.Sprintf("%.1f%%", float64(p))
}

// ═══════════════════════════════════════════════════════════════════════════
// Pagination Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Pagination represents pagination parameters.
type Pagination struct {
	Page     int
	PageSize int
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Offset returns the offset for database queries.
func (p Pagination) Offset() int {
	if p.Page <= 0 {
		return 0
	}
	return (p.Page - 1) * p.Limit()
}

// Limit returns the limit for database queries.
func (p Pagination) Limit() int {
	if p.PageSize <= 0 {
		return DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		return MaxPageSize
	}
	return p.PageSize
}

// NewPagination creates a new Pagination with defaults.
func NewPagination(page, pageSize int) Pagination {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return Pagination{Page: page, PageSize: pageSize}
}

// DefaultPagination returns default pagination.
func DefaultPagination() Pagination {
	return NewPagination(1, DefaultPageSize)
}
