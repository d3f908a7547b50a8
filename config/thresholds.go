package config

import (
	"fmt"
	"strings"

	"github.com/earth-innovators/merit-engine/internal/domain/membership"
	"github.com/earth-innovators/merit-engine/internal/domain/shared"
)

// ThresholdsConfig holds the per-role eligibility criteria bounds.
// Each value is an environment knob so platform policy can move without
// a redeploy; the defaults are the platform policy.
type ThresholdsConfig struct {
	// Student criteria
	StudentMinPoints     int64
	StudentMinProjects   int
	StudentMinChallenges int
	StudentMinAccountAge int // days

	// Teacher criteria
	TeacherMinPoints     int64
	TeacherMinProjects   int
	TeacherMinRating     float64
	TeacherMinAccountAge int // days

	// School criteria
	SchoolMinStudents      int
	SchoolMinProjects      int
	SchoolPercentileCutoff float64
	SchoolMinAccountAge    int // days
}

// LoadThresholds loads eligibility thresholds from environment variables.
func LoadThresholds() *ThresholdsConfig {
	defaults := membership.DefaultThresholds()

	return &ThresholdsConfig{
		StudentMinPoints:     getEnvInt64("THRESHOLD_STUDENT_POINTS", defaults.Student.MinPoints.Int64()),
		StudentMinProjects:   getEnvInt("THRESHOLD_STUDENT_PROJECTS", defaults.Student.MinProjects),
		StudentMinChallenges: getEnvInt("THRESHOLD_STUDENT_CHALLENGES", defaults.Student.MinChallenges),
		StudentMinAccountAge: getEnvInt("THRESHOLD_STUDENT_ACCOUNT_AGE_DAYS", defaults.Student.MinAccountAge),

		TeacherMinPoints:     getEnvInt64("THRESHOLD_TEACHER_POINTS", defaults.Teacher.MinPoints.Int64()),
		TeacherMinProjects:   getEnvInt("THRESHOLD_TEACHER_PROJECTS", defaults.Teacher.MinProjects),
		TeacherMinRating:     getEnvFloat("THRESHOLD_TEACHER_RATING", defaults.Teacher.MinRating),
		TeacherMinAccountAge: getEnvInt("THRESHOLD_TEACHER_ACCOUNT_AGE_DAYS", defaults.Teacher.MinAccountAge),

		SchoolMinStudents:      getEnvInt("THRESHOLD_SCHOOL_STUDENTS", defaults.School.MinStudents),
		SchoolMinProjects:      getEnvInt("THRESHOLD_SCHOOL_PROJECTS", defaults.School.MinProjects),
		SchoolPercentileCutoff: getEnvFloat("THRESHOLD_SCHOOL_PERCENTILE", defaults.School.PercentileCutoff),
		SchoolMinAccountAge:    getEnvInt("THRESHOLD_SCHOOL_ACCOUNT_AGE_DAYS", defaults.School.MinAccountAge),
	}
}

// Validate checks threshold sanity.
func (t *ThresholdsConfig) Validate() error {
	var errs []string

	if t.StudentMinPoints < 0 || t.TeacherMinPoints < 0 {
		errs = append(errs, "point thresholds cannot be negative")
	}
	if t.TeacherMinRating < 0 || t.TeacherMinRating > 5 {
		errs = append(errs, "THRESHOLD_TEACHER_RATING must be 0-5")
	}
	if t.SchoolPercentileCutoff <= 0 || t.SchoolPercentileCutoff > 100 {
		errs = append(errs, "THRESHOLD_SCHOOL_PERCENTILE must be in (0, 100]")
	}

	if len(errs) > 0 {
		return fmt.Errorf("threshold errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Membership converts the config into the domain threshold set.
func (t *ThresholdsConfig) Membership() membership.Thresholds {
	return membership.Thresholds{
		Student: membership.StudentThresholds{
			MinPoints:     shared.Points(t.StudentMinPoints),
			MinProjects:   t.StudentMinProjects,
			MinChallenges: t.StudentMinChallenges,
			MinAccountAge: t.StudentMinAccountAge,
		},
		Teacher: membership.TeacherThresholds{
			MinPoints:     shared.Points(t.TeacherMinPoints),
			MinProjects:   t.TeacherMinProjects,
			MinRating:     t.TeacherMinRating,
			MinAccountAge: t.TeacherMinAccountAge,
		},
		School: membership.SchoolThresholds{
			MinStudents:      t.SchoolMinStudents,
			MinProjects:      t.SchoolMinProjects,
			PercentileCutoff: t.SchoolPercentileCutoff,
			MinAccountAge:    t.SchoolMinAccountAge,
		},
	}
}
