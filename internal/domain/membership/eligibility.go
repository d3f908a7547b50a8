package membership

import (
	"fmt"
	"time"

	"github.com/earth-innovators/merit-engine/internal/domain/shared"
)

// Criterion names reported in eligibility snapshots.
const (
	CriterionPoints     = "merit_points"
	CriterionProjects   = "approved_projects"
	CriterionChallenges = "challenges_participated"
	CriterionRating     = "rating_avg"
	CriterionStudents   = "students_count"
	CriterionPercentile = "rank_percentile"
	CriterionAccountAge = "account_age_days"
)

// Criterion is one line of an eligibility snapshot. Every criterion for
// the role is always reported, met or not, so operators see the full
// picture instead of just the first failure.
type Criterion struct {
	Name     string `json:"name"`
	Current  string `json:"current"`
	Required string `json:"required"`
	Met      bool   `json:"met"`
}

// Snapshot is the full result of one eligibility evaluation. It is
// embedded into the certificate row at issuance as the audit record of
// what the gate saw.
type Snapshot struct {
	UserID      shared.UserID `json:"user_id"`
	Role        shared.Role   `json:"role"`
	Criteria    []Criterion   `json:"criteria"`
	Eligible    bool          `json:"eligible"`
	EvaluatedAt time.Time     `json:"evaluated_at"`
}

// FailedCriteria returns the names of unmet criteria, in report order.
func (s *Snapshot) FailedCriteria() []string {
	var failed []string
	for _, c := range s.Criteria {
		if !c.Met {
			failed = append(failed, c.Name)
		}
	}
	return failed
}

// Facts are the inputs to an evaluation, assembled by the query layer
// from the ledger, the member profile, and (for schools) the standings.
// The evaluator itself never touches storage.
type Facts struct {
	Balance                shared.Points
	ApprovedProjects       int
	ChallengesParticipated int
	RatingAvg              float64
	StudentsCount          int
	AccountAgeDays         int

	// Percentile is set only for schools; Ranked is false when the
	// school does not appear in the standings at all.
	Percentile shared.Percentile
	Ranked     bool
}

// ═══════════════════════════════════════════════════════════════════════════
// Thresholds
// ═══════════════════════════════════════════════════════════════════════════

// StudentThresholds are the criteria bounds for student membership.
type StudentThresholds struct {
	MinPoints     shared.Points
	MinProjects   int
	MinChallenges int
	MinAccountAge int // days
}

// TeacherThresholds are the criteria bounds for teacher membership.
type TeacherThresholds struct {
	MinPoints     shared.Points
	MinProjects   int
	MinRating     float64
	MinAccountAge int // days
}

// SchoolThresholds are the criteria bounds for school membership.
type SchoolThresholds struct {
	MinStudents      int
	MinProjects      int
	PercentileCutoff float64
	MinAccountAge    int // days
}

// Thresholds bundles the per-role criteria bounds. Values come from
// configuration; DefaultThresholds supplies the platform defaults.
type Thresholds struct {
	Student StudentThresholds
	Teacher TeacherThresholds
	School  SchoolThresholds
}

// DefaultThresholds returns the platform default criteria bounds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Student: StudentThresholds{
			MinPoints:     100,
			MinProjects:   2,
			MinChallenges: 3,
			MinAccountAge: 365,
		},
		Teacher: TeacherThresholds{
			MinPoints:     100,
			MinProjects:   2,
			MinRating:     4.0,
			MinAccountAge: 365,
		},
		School: SchoolThresholds{
			MinStudents:      10,
			MinProjects:      5,
			PercentileCutoff: 50,
			MinAccountAge:    365,
		},
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Evaluator
// ═══════════════════════════════════════════════════════════════════════════

// Policy evaluates one role's criteria against the supplied facts.
type Policy interface {
	// Evaluate returns the ordered criteria lines for this role.
	Evaluate(facts Facts) []Criterion
}

// Evaluator dispatches to the per-role policy and assembles the snapshot.
type Evaluator struct {
	policies map[shared.Role]Policy
}

// NewEvaluator builds an evaluator with the per-role policy table.
func NewEvaluator(thresholds Thresholds) *Evaluator {
	return &Evaluator{
		policies: map[shared.Role]Policy{
			shared.RoleStudent: studentPolicy{thresholds.Student},
			shared.RoleTeacher: teacherPolicy{thresholds.Teacher},
			shared.RoleSchool:  schoolPolicy{thresholds.School},
		},
	}
}

// Evaluate produces the eligibility snapshot for a user. Eligible is
// true only when every criterion is met.
func (e *Evaluator) Evaluate(userID shared.UserID, role shared.Role, facts Facts) (*Snapshot, error) {
	policy, ok := e.policies[role]
	if !ok {
		return nil, shared.ErrUnknownRole
	}

	criteria := policy.Evaluate(facts)
	eligible := true
	for _, c := range criteria {
		if !c.Met {
			eligible = false
			break
		}
	}

	return &Snapshot{
		UserID:      userID,
		Role:        role,
		Criteria:    criteria,
		Eligible:    eligible,
		EvaluatedAt: time.Now(),
	}, nil
}

// ───────────────────────────────────────────────────────────────────────────
// Per-role policies
// ───────────────────────────────────────────────────────────────────────────

type studentPolicy struct {
	t StudentThresholds
}

func (p studentPolicy) Evaluate(f Facts) []Criterion {
	return []Criterion{
		intCriterion(CriterionPoints, f.Balance.Int64(), p.t.MinPoints.Int64()),
		intCriterion(CriterionProjects, int64(f.ApprovedProjects), int64(p.t.MinProjects)),
		intCriterion(CriterionChallenges, int64(f.ChallengesParticipated), int64(p.t.MinChallenges)),
		intCriterion(CriterionAccountAge, int64(f.AccountAgeDays), int64(p.t.MinAccountAge)),
	}
}

type teacherPolicy struct {
	t TeacherThresholds
}

func (p teacherPolicy) Evaluate(f Facts) []Criterion {
	return []Criterion{
		intCriterion(CriterionPoints, f.Balance.Int64(), p.t.MinPoints.Int64()),
		intCriterion(CriterionProjects, int64(f.ApprovedProjects), int64(p.t.MinProjects)),
		floatCriterion(CriterionRating, f.RatingAvg, p.t.MinRating),
		intCriterion(CriterionAccountAge, int64(f.AccountAgeDays), int64(p.t.MinAccountAge)),
	}
}

type schoolPolicy struct {
	t SchoolThresholds
}

func (p schoolPolicy) Evaluate(f Facts) []Criterion {
	percentile := Criterion{
		Name:     CriterionPercentile,
		Required: fmt.Sprintf("<= %.1f", p.t.PercentileCutoff),
		Current:  "unranked",
		Met:      false,
	}
	if f.Ranked {
		percentile.Current = fmt.Sprintf("%.1f", f.Percentile.Float64())
		percentile.Met = f.Percentile.WithinTop(p.t.PercentileCutoff)
	}

	return []Criterion{
		intCriterion(CriterionStudents, int64(f.StudentsCount), int64(p.t.MinStudents)),
		intCriterion(CriterionProjects, int64(f.ApprovedProjects), int64(p.t.MinProjects)),
		percentile,
		intCriterion(CriterionAccountAge, int64(f.AccountAgeDays), int64(p.t.MinAccountAge)),
	}
}

func intCriterion(name string, current, required int64) Criterion {
	return Criterion{
		Name:     name,
		Current:  fmt.Sprintf("%d", current),
		Required: fmt.Sprintf(">= %d", required),
		Met:      current >= required,
	}
}

func floatCriterion(name string, current, required float64) Criterion {
	return Criterion{
		Name:     name,
		Current:  fmt.Sprintf("%.1f", current),
		Required: fmt.Sprintf(">= %.1f", required),
		Met:      current >= required,
	}
}
