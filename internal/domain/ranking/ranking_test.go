package ranking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/earth-innovators/merit-engine/internal/domain/shared"
)

func schoolID(n byte) shared.SchoolID {
	return shared.SchoolID("00000000-0000-4000-8000-0000000000" + string([]byte{'0', '0' + n}))
}

func TestCompute_SharedRanks(t *testing.T) {
	// Four schools, two tied at the top: ranks 1, 1, 3, 4.
	metrics := []SchoolMetric{
		{SchoolID: schoolID(1), Points: 500},
		{SchoolID: schoolID(2), Points: 500},
		{SchoolID: schoolID(3), Points: 300},
		{SchoolID: schoolID(4), Points: 100},
	}

	s, err := Compute(metrics)
	require.NoError(t, err)
	require.Equal(t, 4, s.Total)

	ranks := make([]int, 0, 4)
	for _, e := range s.Entries {
		ranks = append(ranks, e.Rank)
	}
	assert.Equal(t, []int{1, 1, 3, 4}, ranks)
}

func TestCompute_Percentiles(t *testing.T) {
	metrics := []SchoolMetric{
		{SchoolID: schoolID(1), Points: 400},
		{SchoolID: schoolID(2), Points: 300},
		{SchoolID: schoolID(3), Points: 200},
		{SchoolID: schoolID(4), Points: 100},
	}

	s, err := Compute(metrics)
	require.NoError(t, err)

	first, err := s.Position(schoolID(1))
	require.NoError(t, err)
	assert.InDelta(t, 25.0, first.Percentile.Float64(), 0.001)

	last, err := s.Position(schoolID(4))
	require.NoError(t, err)
	assert.InDelta(t, 100.0, last.Percentile.Float64(), 0.001)
}

func TestCompute_AllTied(t *testing.T) {
	// Every school at the same metric shares rank 1 and everyone is
	// in the top half.
	metrics := []SchoolMetric{
		{SchoolID: schoolID(1), Points: 100},
		{SchoolID: schoolID(2), Points: 100},
		{SchoolID: schoolID(3), Points: 100},
	}

	s, err := Compute(metrics)
	require.NoError(t, err)

	for _, e := range s.Entries {
		assert.Equal(t, 1, e.Rank)
		topHalf, err := s.TopHalf(e.SchoolID)
		require.NoError(t, err)
		assert.True(t, topHalf)
	}
}

func TestCompute_SingleSchool(t *testing.T) {
	s, err := Compute([]SchoolMetric{{SchoolID: schoolID(1), Points: 0}})
	require.NoError(t, err)

	st, err := s.Position(schoolID(1))
	require.NoError(t, err)
	assert.Equal(t, 1, st.Rank)
	assert.InDelta(t, 100.0, st.Percentile.Float64(), 0.001)

	// The only school is at percentile 100 and fails the top-half gate.
	topHalf, err := s.TopHalf(schoolID(1))
	require.NoError(t, err)
	assert.False(t, topHalf)
}

func TestCompute_TopHalfBoundary(t *testing.T) {
	// Exactly 50% is still in the top half.
	metrics := []SchoolMetric{
		{SchoolID: schoolID(1), Points: 200},
		{SchoolID: schoolID(2), Points: 100},
	}

	s, err := Compute(metrics)
	require.NoError(t, err)

	topHalf, err := s.TopHalf(schoolID(1))
	require.NoError(t, err)
	assert.True(t, topHalf)

	bottomHalf, err := s.TopHalf(schoolID(2))
	require.NoError(t, err)
	assert.False(t, bottomHalf)
}

func TestCompute_Errors(t *testing.T) {
	_, err := Compute(nil)
	assert.ErrorIs(t, err, shared.ErrEmptyValue)

	_, err = Compute([]SchoolMetric{
		{SchoolID: schoolID(1), Points: 10},
		{SchoolID: schoolID(1), Points: 20},
	})
	assert.ErrorIs(t, err, shared.ErrAlreadyExists)

	s, err := Compute([]SchoolMetric{{SchoolID: schoolID(1), Points: 10}})
	require.NoError(t, err)

	_, err = s.Position(schoolID(9))
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestCompute_InputOrderIrrelevant(t *testing.T) {
	a := []SchoolMetric{
		{SchoolID: schoolID(1), Points: 300},
		{SchoolID: schoolID(2), Points: 100},
		{SchoolID: schoolID(3), Points: 200},
	}
	b := []SchoolMetric{a[1], a[2], a[0]}

	sa, err := Compute(a)
	require.NoError(t, err)
	sb, err := Compute(b)
	require.NoError(t, err)

	assert.Equal(t, sa.Entries, sb.Entries)
}
