// Package ranking computes school standings and percentiles for the
// membership eligibility gate. Standings are recomputed on demand from
// current metrics; nothing here is persisted.
package ranking

import (
	"sort"

	"github.com/earth-innovators/merit-engine/internal/domain/shared"
)

// SchoolMetric is one school's input to the ranking: the descending
// metric the standings sort on. The metric is the school's aggregate
// merit points.
type SchoolMetric struct {
	SchoolID shared.SchoolID
	Points   shared.Points
}

// Standing is one school's computed position. Tied schools share a rank;
// the next distinct metric gets rank = previous rank + number of tied
// schools (1, 1, 3).
type Standing struct {
	SchoolID   shared.SchoolID
	Points     shared.Points
	Rank       int
	Percentile shared.Percentile
}

// Standings is the full ranked table for all schools.
type Standings struct {
	Entries []Standing
	Total   int

	byID map[shared.SchoolID]int // index into Entries
}

// Compute builds standings from raw metrics. Input order does not
// matter; output is sorted by points descending, school ID ascending for
// deterministic tie ordering.
func Compute(metrics []SchoolMetric) (*Standings, error) {
	if len(metrics) == 0 {
		return nil, shared.ErrEmptyStandings
	}

	seen := make(map[shared.SchoolID]bool, len(metrics))
	for _, m := range metrics {
		if m.SchoolID.IsEmpty() {
			return nil, shared.NewDomainError("ranking", "Compute", shared.ErrInvalidID, "school ID cannot be empty")
		}
		if seen[m.SchoolID] {
			return nil, shared.ErrDuplicateSchool
		}
		seen[m.SchoolID] = true
	}

	sorted := make([]SchoolMetric, len(metrics))
	copy(sorted, metrics)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Points != sorted[j].Points {
			return sorted[i].Points > sorted[j].Points
		}
		return sorted[i].SchoolID < sorted[j].SchoolID
	})

	total := len(sorted)
	s := &Standings{
		Entries: make([]Standing, 0, total),
		Total:   total,
		byID:    make(map[shared.SchoolID]int, total),
	}

	currentRank := 1
	for i, m := range sorted {
		if i > 0 && m.Points != sorted[i-1].Points {
			// Tied schools share a rank; the next distinct metric
			// resumes from the absolute position.
			currentRank = i + 1
		}
		entry := Standing{
			SchoolID:   m.SchoolID,
			Points:     m.Points,
			Rank:       currentRank,
			Percentile: shared.Percentile(float64(currentRank) / float64(total) * 100),
		}
		s.byID[m.SchoolID] = len(s.Entries)
		s.Entries = append(s.Entries, entry)
	}

	return s, nil
}

// Position returns the standing for one school.
func (s *Standings) Position(schoolID shared.SchoolID) (Standing, error) {
	idx, ok := s.byID[schoolID]
	if !ok {
		return Standing{}, shared.ErrSchoolNotRanked
	}
	return s.Entries[idx], nil
}

// TopHalf reports whether the school sits in the top half of the
// standings. This is the membership gate: percentile <= 50 passes.
func (s *Standings) TopHalf(schoolID shared.SchoolID) (bool, error) {
	st, err := s.Position(schoolID)
	if err != nil {
		return false, err
	}
	return st.Percentile.WithinTop(50), nil
}
