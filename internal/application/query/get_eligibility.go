package query

import (
	"context"
	"fmt"
	"time"

	"github.com/earth-innovators/merit-engine/internal/domain/ledger"
	"github.com/earth-innovators/merit-engine/internal/domain/membership"
	"github.com/earth-innovators/merit-engine/internal/domain/ranking"
	"github.com/earth-innovators/merit-engine/internal/domain/shared"
	"github.com/earth-innovators/merit-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// ELIGIBILITY QUERY
// Assembles the facts (ledger balance, profile metrics, account age, and
// for schools the current rank percentile) and runs the pure evaluator.
// ══════════════════════════════════════════════════════════════════════════════

// StandingsSource supplies the current school standings. The default
// implementation recomputes them on demand; a caching decorator may sit
// in front.
type StandingsSource interface {
	SchoolStandings(ctx context.Context) (*ranking.Standings, error)
}

// GetEligibilityQuery requests an eligibility snapshot. Exactly one of
// UserID or Email must be set; Email is the human-facing lookup key.
type GetEligibilityQuery struct {
	UserID string
	Email  string
}

// GetEligibilityResult carries the snapshot plus the profile it was
// evaluated against.
type GetEligibilityResult struct {
	Profile  *membership.Profile
	Snapshot *membership.Snapshot
}

// GetEligibilityHandler handles the GetEligibilityQuery.
type GetEligibilityHandler struct {
	profiles  membership.ProfileReader
	ledger    ledger.Repository
	evaluator *membership.Evaluator
	standings StandingsSource

	// now is injectable for reproducible account-age readings in tests.
	now func() time.Time
}

// NewGetEligibilityHandler creates a new GetEligibilityHandler.
func NewGetEligibilityHandler(
	profiles membership.ProfileReader,
	ledgerRepo ledger.Repository,
	evaluator *membership.Evaluator,
	standings StandingsSource,
) *GetEligibilityHandler {
	return &GetEligibilityHandler{
		profiles:  profiles,
		ledger:    ledgerRepo,
		evaluator: evaluator,
		standings: standings,
		now:       timeutil.Now,
	}
}

// WithClock overrides the handler's clock.
func (h *GetEligibilityHandler) WithClock(now func() time.Time) *GetEligibilityHandler {
	h.now = now
	return h
}

// Handle executes the eligibility query.
func (h *GetEligibilityHandler) Handle(ctx context.Context, query GetEligibilityQuery) (*GetEligibilityResult, error) {
	profile, err := h.resolveProfile(ctx, query)
	if err != nil {
		return nil, err
	}

	snapshot, err := h.SnapshotFor(ctx, profile)
	if err != nil {
		return nil, err
	}

	return &GetEligibilityResult{Profile: profile, Snapshot: snapshot}, nil
}

// SnapshotFor assembles the facts for a profile and evaluates them.
// Also used by the award command so the gate and the report agree.
func (h *GetEligibilityHandler) SnapshotFor(ctx context.Context, profile *membership.Profile) (*membership.Snapshot, error) {
	balance, err := h.ledger.GetBalance(ctx, profile.UserID)
	if err != nil {
		return nil, fmt.Errorf("get_eligibility: balance lookup failed: %w", err)
	}

	facts := membership.Facts{
		Balance:                balance.Balance,
		ApprovedProjects:       profile.ApprovedProjects,
		ChallengesParticipated: profile.ChallengesParticipated,
		RatingAvg:              profile.RatingAvg,
		StudentsCount:          profile.StudentsCount,
		AccountAgeDays:         timeutil.DaysSinceAt(profile.RegisteredAt, h.now()),
	}

	if profile.Role == shared.RoleSchool {
		standings, err := h.standings.SchoolStandings(ctx)
		if shared.IsValidation(err) || (err != nil && shared.IsNotFound(err)) {
			// No standings at all: the school evaluates as unranked.
			standings = nil
		} else if err != nil {
			return nil, fmt.Errorf("get_eligibility: standings failed: %w", err)
		}
		if standing, err := position(standings, shared.SchoolID(profile.UserID)); err == nil {
			facts.Percentile = standing.Percentile
			facts.Ranked = true
		} else if !shared.IsNotFound(err) {
			return nil, fmt.Errorf("get_eligibility: standings lookup failed: %w", err)
		}
	}

	snapshot, err := h.evaluator.Evaluate(profile.UserID, profile.Role, facts)
	if err != nil {
		return nil, fmt.Errorf("get_eligibility: %w", err)
	}
	return snapshot, nil
}

func position(standings *ranking.Standings, schoolID shared.SchoolID) (ranking.Standing, error) {
	if standings == nil {
		return ranking.Standing{}, shared.ErrSchoolNotRanked
	}
	return standings.Position(schoolID)
}

func (h *GetEligibilityHandler) resolveProfile(ctx context.Context, query GetEligibilityQuery) (*membership.Profile, error) {
	switch {
	case query.UserID != "":
		userID, err := shared.NewUserID(query.UserID)
		if err != nil {
			return nil, fmt.Errorf("get_eligibility: %w", err)
		}
		profile, err := h.profiles.GetByUserID(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("get_eligibility: %w", err)
		}
		return profile, nil

	case query.Email != "":
		email, err := shared.NewEmail(query.Email)
		if err != nil {
			return nil, fmt.Errorf("get_eligibility: %w", err)
		}
		profile, err := h.profiles.GetByEmail(ctx, email)
		if err != nil {
			return nil, fmt.Errorf("get_eligibility: %w", err)
		}
		return profile, nil
	}

	return nil, shared.NewDomainError("query", "GetEligibility", shared.ErrInvalidInput, "user ID or email is required")
}

// ══════════════════════════════════════════════════════════════════════════════
// STANDINGS BUILDER
// The default StandingsSource: every school's metric is the aggregate merit
// balance of its ledger, recomputed on demand.
// ══════════════════════════════════════════════════════════════════════════════

// StandingsBuilder computes standings from school profiles and balances.
type StandingsBuilder struct {
	profiles membership.ProfileReader
	ledger   ledger.Repository
}

// NewStandingsBuilder creates a new StandingsBuilder.
func NewStandingsBuilder(profiles membership.ProfileReader, ledgerRepo ledger.Repository) *StandingsBuilder {
	return &StandingsBuilder{profiles: profiles, ledger: ledgerRepo}
}

// SchoolStandings implements StandingsSource.
func (b *StandingsBuilder) SchoolStandings(ctx context.Context) (*ranking.Standings, error) {
	schools, err := b.profiles.ListSchools(ctx)
	if err != nil {
		return nil, fmt.Errorf("standings: failed to list schools: %w", err)
	}

	metrics := make([]ranking.SchoolMetric, 0, len(schools))
	for _, s := range schools {
		balance, err := b.ledger.GetBalance(ctx, s.UserID)
		if err != nil {
			return nil, fmt.Errorf("standings: balance lookup for %s failed: %w", s.UserID, err)
		}
		metrics = append(metrics, ranking.SchoolMetric{
			SchoolID: shared.SchoolID(s.UserID),
			Points:   balance.Balance,
		})
	}

	return ranking.Compute(metrics)
}
