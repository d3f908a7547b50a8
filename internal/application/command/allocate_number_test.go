package command

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/earth-innovators/merit-engine/internal/domain/membership"
	"github.com/earth-innovators/merit-engine/internal/domain/shared"
)

func allocTestUser(n int) string {
	return fmt.Sprintf("a1b2c3d4-0000-4000-8000-%012d", n)
}

func TestAllocateNumber_AssignsAndPublishes(t *testing.T) {
	repo := newFakeNumberRepo()
	bus := &fakeBus{}
	h := NewAllocateNumberHandler(repo, bus, 10)

	res, err := h.Handle(context.Background(), AllocateNumberCommand{
		UserID: allocTestUser(1),
		Role:   "student",
	})
	require.NoError(t, err)
	assert.True(t, res.Number.IsValid())
	assert.False(t, res.AlreadyAssigned)
	assert.Equal(t, 1, res.Attempts)
	assert.Len(t, bus.byType(shared.EventNumberAssigned), 1)
}

func TestAllocateNumber_Idempotent(t *testing.T) {
	repo := newFakeNumberRepo()
	bus := &fakeBus{}
	h := NewAllocateNumberHandler(repo, bus, 10)

	first, err := h.Handle(context.Background(), AllocateNumberCommand{UserID: allocTestUser(1), Role: "teacher"})
	require.NoError(t, err)

	second, err := h.Handle(context.Background(), AllocateNumberCommand{UserID: allocTestUser(1), Role: "teacher"})
	require.NoError(t, err)
	assert.Equal(t, first.Number, second.Number)
	assert.True(t, second.AlreadyAssigned)

	// No second assignment event.
	assert.Len(t, bus.byType(shared.EventNumberAssigned), 1)
}

func TestAllocateNumber_Exhaustion(t *testing.T) {
	repo := newFakeNumberRepo()
	repo.alwaysCollide = true
	h := NewAllocateNumberHandler(repo, &fakeBus{}, 10)

	_, err := h.Handle(context.Background(), AllocateNumberCommand{UserID: allocTestUser(1), Role: "student"})
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrExhausted)
	assert.ErrorIs(t, err, shared.ErrAllocationExhausted)

	// Nothing was assigned.
	_, err = repo.GetByUser(context.Background(), shared.UserID(allocTestUser(1)))
	assert.ErrorIs(t, err, shared.ErrNotFound)
	assert.Empty(t, repo.byNumber)
}

func TestAllocateNumber_UnknownRole(t *testing.T) {
	h := NewAllocateNumberHandler(newFakeNumberRepo(), &fakeBus{}, 10)

	_, err := h.Handle(context.Background(), AllocateNumberCommand{UserID: allocTestUser(1), Role: "admin"})
	assert.ErrorIs(t, err, shared.ErrUnknownRole)
}

func TestAllocateNumber_ConcurrentDistinct(t *testing.T) {
	// 100 concurrent allocations for 100 users produce 100 distinct numbers.
	repo := newFakeNumberRepo()
	h := NewAllocateNumberHandler(repo, &fakeBus{}, 10)

	const users = 100
	results := make([]membership.Number, users)

	var wg sync.WaitGroup
	wg.Add(users)
	for i := 0; i < users; i++ {
		go func(i int) {
			defer wg.Done()
			res, err := h.Handle(context.Background(), AllocateNumberCommand{
				UserID: allocTestUser(i),
				Role:   "student",
			})
			if assert.NoError(t, err) {
				results[i] = res.Number
			}
		}(i)
	}
	wg.Wait()

	seen := make(map[membership.Number]bool, users)
	for i, n := range results {
		require.True(t, n.IsValid(), "user %d got invalid number", i)
		assert.False(t, seen[n], "duplicate number %q", n)
		seen[n] = true
	}
	assert.Len(t, seen, users)
}

func TestAllocateNumber_ConcurrentSameUser(t *testing.T) {
	// Concurrent allocations for one user settle on a single number.
	repo := newFakeNumberRepo()
	h := NewAllocateNumberHandler(repo, &fakeBus{}, 10)

	const callers = 20
	results := make([]membership.Number, callers)

	var wg sync.WaitGroup
	wg.Add(callers)
	for i := 0; i < callers; i++ {
		go func(i int) {
			defer wg.Done()
			res, err := h.Handle(context.Background(), AllocateNumberCommand{
				UserID: allocTestUser(1),
				Role:   "school",
			})
			if assert.NoError(t, err) {
				results[i] = res.Number
			}
		}(i)
	}
	wg.Wait()

	for _, n := range results {
		assert.Equal(t, results[0], n)
	}
	assert.Len(t, repo.byNumber, 1)
}

func TestBackfillNumbers(t *testing.T) {
	numbers := newFakeNumberRepo()
	profiles := newFakeProfiles(numbers,
		testProfile(shared.UserID(allocTestUser(1)), "a@school.edu", shared.RoleStudent),
		testProfile(shared.UserID(allocTestUser(2)), "b@school.edu", shared.RoleStudent),
		testProfile(shared.UserID(allocTestUser(3)), "c@school.edu", shared.RoleTeacher),
	)
	allocator := NewAllocateNumberHandler(numbers, &fakeBus{}, 10)
	h := NewBackfillNumbersHandler(profiles, allocator)

	res, err := h.Handle(context.Background(), BackfillNumbersCommand{})
	require.NoError(t, err)
	assert.Equal(t, 3, res.TotalCount)
	assert.Equal(t, 3, res.SuccessCount)
	assert.Equal(t, 0, res.FailedCount)
	assert.Len(t, res.Assigned, 3)

	// A second run finds nobody left to process.
	res, err = h.Handle(context.Background(), BackfillNumbersCommand{})
	require.NoError(t, err)
	assert.Equal(t, 0, res.TotalCount)
}

func TestBackfillNumbers_RoleFilter(t *testing.T) {
	numbers := newFakeNumberRepo()
	profiles := newFakeProfiles(numbers,
		testProfile(shared.UserID(allocTestUser(1)), "a@school.edu", shared.RoleStudent),
		testProfile(shared.UserID(allocTestUser(2)), "b@school.edu", shared.RoleTeacher),
	)
	allocator := NewAllocateNumberHandler(numbers, &fakeBus{}, 10)
	h := NewBackfillNumbersHandler(profiles, allocator)

	res, err := h.Handle(context.Background(), BackfillNumbersCommand{Roles: []string{"teacher"}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.TotalCount)
	assert.Contains(t, res.Assigned, allocTestUser(2))

	_, err = h.Handle(context.Background(), BackfillNumbersCommand{Roles: []string{"janitor"}})
	assert.ErrorIs(t, err, shared.ErrUnknownRole)
}

func TestBackfillNumbers_FailureDoesNotAbort(t *testing.T) {
	numbers := newFakeNumberRepo()
	numbers.failFor = map[shared.UserID]error{
		shared.UserID(allocTestUser(2)): assert.AnError,
	}
	profiles := newFakeProfiles(numbers,
		testProfile(shared.UserID(allocTestUser(1)), "a@school.edu", shared.RoleStudent),
		testProfile(shared.UserID(allocTestUser(2)), "b@school.edu", shared.RoleStudent),
		testProfile(shared.UserID(allocTestUser(3)), "c@school.edu", shared.RoleStudent),
	)
	allocator := NewAllocateNumberHandler(numbers, &fakeBus{}, 10)
	h := NewBackfillNumbersHandler(profiles, allocator)

	res, err := h.Handle(context.Background(), BackfillNumbersCommand{})
	require.NoError(t, err)
	assert.Equal(t, 3, res.TotalCount)
	assert.Equal(t, 2, res.SuccessCount)
	assert.Equal(t, 1, res.FailedCount)
	assert.Contains(t, res.Errors, allocTestUser(2))
}
