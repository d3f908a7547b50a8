package query

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/earth-innovators/merit-engine/internal/domain/ledger"
	"github.com/earth-innovators/merit-engine/internal/domain/membership"
	"github.com/earth-innovators/merit-engine/internal/domain/shared"
)

// ───────────────────────────────────────────────────────────────────────────
// In-memory fakes
// ───────────────────────────────────────────────────────────────────────────

type memLedger struct {
	mu       sync.Mutex
	txs      map[shared.UserID][]*ledger.Transaction
	balances map[shared.UserID]shared.Points
}

func newMemLedger() *memLedger {
	return &memLedger{
		txs:      make(map[shared.UserID][]*ledger.Transaction),
		balances: make(map[shared.UserID]shared.Points),
	}
}

func (m *memLedger) Record(ctx context.Context, tx *ledger.Transaction, allowNegative bool) (shared.Points, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := m.balances[tx.UserID] + tx.Points
	if !allowNegative && next < 0 {
		return 0, shared.ErrInsufficientPoints
	}
	m.txs[tx.UserID] = append(m.txs[tx.UserID], tx)
	m.balances[tx.UserID] = next
	return next, nil
}

func (m *memLedger) GetBalance(ctx context.Context, userID shared.UserID) (*ledger.Balance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return &ledger.Balance{UserID: userID, Balance: m.balances[userID], UpdatedAt: time.Now()}, nil
}

func (m *memLedger) GetSummary(ctx context.Context, userID shared.UserID) (*ledger.Summary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := ledger.NewSummary(userID)
	for _, tx := range m.txs[userID] {
		s.Apply(tx)
	}
	return s, nil
}

func (m *memLedger) ListTransactions(ctx context.Context, userID shared.UserID, filter ledger.ListFilter, page shared.Pagination) ([]*ledger.Transaction, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var all []*ledger.Transaction
	for _, tx := range m.txs[userID] {
		if filter.Type != nil && tx.Type != *filter.Type {
			continue
		}
		all = append(all, tx)
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	total := len(all)
	offset := page.Offset()
	if offset >= total {
		return nil, total, nil
	}
	end := offset + page.Limit()
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

type memProfiles struct {
	byUser  map[shared.UserID]*membership.Profile
	byEmail map[shared.Email]*membership.Profile
}

func newMemProfiles(profiles ...*membership.Profile) *memProfiles {
	m := &memProfiles{
		byUser:  make(map[shared.UserID]*membership.Profile),
		byEmail: make(map[shared.Email]*membership.Profile),
	}
	for _, p := range profiles {
		m.byUser[p.UserID] = p
		m.byEmail[p.Email] = p
	}
	return m
}

func (m *memProfiles) GetByUserID(ctx context.Context, userID shared.UserID) (*membership.Profile, error) {
	if p, ok := m.byUser[userID]; ok {
		return p, nil
	}
	return nil, shared.ErrProfileNotFound
}

func (m *memProfiles) GetByEmail(ctx context.Context, email shared.Email) (*membership.Profile, error) {
	if p, ok := m.byEmail[email]; ok {
		return p, nil
	}
	return nil, shared.ErrProfileNotFound
}

func (m *memProfiles) ListWithoutNumber(ctx context.Context, roles []shared.Role) ([]*membership.Profile, error) {
	return nil, nil
}

func (m *memProfiles) ListSchools(ctx context.Context) ([]*membership.Profile, error) {
	var out []*membership.Profile
	for _, p := range m.byUser {
		if p.Role == shared.RoleSchool {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func uid(n int) shared.UserID {
	return shared.UserID(fmt.Sprintf("b1b2c3d4-0000-4000-8000-%012d", n))
}

func mustRecord(t *testing.T, repo *memLedger, userID shared.UserID, txType ledger.TransactionType, points shared.Points, at time.Time) {
	t.Helper()
	tx, err := ledger.NewTransaction(fmt.Sprintf("tx-%d", at.UnixNano()), userID, txType, points, "", "test", at)
	require.NoError(t, err)
	_, err = repo.Record(context.Background(), tx, true)
	require.NoError(t, err)
}

// ───────────────────────────────────────────────────────────────────────────
// Ledger queries
// ───────────────────────────────────────────────────────────────────────────

func TestGetBalance_ZeroForUnknownUser(t *testing.T) {
	q := NewLedgerQueries(newMemLedger())

	res, err := q.GetBalance(context.Background(), GetBalanceQuery{UserID: uid(1).String()})
	require.NoError(t, err)
	assert.Equal(t, shared.Points(0), res.Balance)
}

func TestGetSummary(t *testing.T) {
	repo := newMemLedger()
	now := time.Now()
	mustRecord(t, repo, uid(1), ledger.TypeEarned, 100, now)
	mustRecord(t, repo, uid(1), ledger.TypeBonus, 20, now.Add(time.Second))
	mustRecord(t, repo, uid(1), ledger.TypeRedeemed, -30, now.Add(2*time.Second))

	q := NewLedgerQueries(repo)
	s, err := q.GetSummary(context.Background(), GetSummaryQuery{UserID: uid(1).String()})
	require.NoError(t, err)

	assert.Equal(t, shared.Points(90), s.Balance)
	assert.Equal(t, shared.Points(100), s.TotalEarned)
	assert.Equal(t, shared.Points(20), s.TotalBonus)
	assert.Equal(t, shared.Points(30), s.TotalSpent)
	assert.Equal(t, 3, s.Count)
}

func TestListTransactions_PaginationRestartable(t *testing.T) {
	repo := newMemLedger()
	base := time.Now()
	for i := 0; i < 25; i++ {
		mustRecord(t, repo, uid(1), ledger.TypeEarned, 10, base.Add(time.Duration(i)*time.Second))
	}

	q := NewLedgerQueries(repo)

	var collected []string
	for page := 1; ; page++ {
		res, err := q.ListTransactions(context.Background(), ListTransactionsQuery{
			UserID:   uid(1).String(),
			Page:     page,
			PageSize: 10,
		})
		require.NoError(t, err)
		assert.Equal(t, 25, res.TotalCount)
		if len(res.Transactions) == 0 {
			break
		}
		for _, tx := range res.Transactions {
			collected = append(collected, tx.ID)
		}
	}

	// All entries appear exactly once across pages, newest first.
	assert.Len(t, collected, 25)
	seen := make(map[string]bool)
	for _, id := range collected {
		assert.False(t, seen[id], "duplicate entry across pages: %s", id)
		seen[id] = true
	}

	first, err := q.ListTransactions(context.Background(), ListTransactionsQuery{
		UserID: uid(1).String(), Page: 1, PageSize: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, collected[0], first.Transactions[0].ID, "re-reading page 1 is stable")
}

func TestListTransactions_TypeFilter(t *testing.T) {
	repo := newMemLedger()
	now := time.Now()
	mustRecord(t, repo, uid(1), ledger.TypeEarned, 10, now)
	mustRecord(t, repo, uid(1), ledger.TypeRedeemed, -5, now.Add(time.Second))
	mustRecord(t, repo, uid(1), ledger.TypeEarned, 10, now.Add(2*time.Second))

	q := NewLedgerQueries(repo)
	res, err := q.ListTransactions(context.Background(), ListTransactionsQuery{
		UserID: uid(1).String(),
		Type:   "earned",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.TotalCount)
	for _, tx := range res.Transactions {
		assert.Equal(t, ledger.TypeEarned, tx.Type)
	}

	_, err = q.ListTransactions(context.Background(), ListTransactionsQuery{
		UserID: uid(1).String(),
		Type:   "gifted",
	})
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

// ───────────────────────────────────────────────────────────────────────────
// Eligibility query
// ───────────────────────────────────────────────────────────────────────────

func eligibilityFixture(t *testing.T) (*GetEligibilityHandler, *memLedger, *memProfiles) {
	t.Helper()
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

	student := &membership.Profile{
		UserID:                 uid(1),
		Email:                  "maria@school.edu",
		Role:                   shared.RoleStudent,
		ApprovedProjects:       3,
		ChallengesParticipated: 5,
		RegisteredAt:           now.AddDate(-2, 0, 0),
	}
	schoolA := &membership.Profile{
		UserID:           uid(10),
		Email:            "north@district.edu",
		Role:             shared.RoleSchool,
		StudentsCount:    30,
		ApprovedProjects: 12,
		RegisteredAt:     now.AddDate(-3, 0, 0),
	}
	schoolB := &membership.Profile{
		UserID:           uid(11),
		Email:            "south@district.edu",
		Role:             shared.RoleSchool,
		StudentsCount:    25,
		ApprovedProjects: 9,
		RegisteredAt:     now.AddDate(-3, 0, 0),
	}

	ledgerRepo := newMemLedger()
	profiles := newMemProfiles(student, schoolA, schoolB)
	evaluator := membership.NewEvaluator(membership.DefaultThresholds())
	standings := NewStandingsBuilder(profiles, ledgerRepo)

	h := NewGetEligibilityHandler(profiles, ledgerRepo, evaluator, standings).
		WithClock(func() time.Time { return now })
	return h, ledgerRepo, profiles
}

func TestGetEligibility_StudentEligible(t *testing.T) {
	h, ledgerRepo, _ := eligibilityFixture(t)
	mustRecord(t, ledgerRepo, uid(1), ledger.TypeEarned, 150, time.Now())

	res, err := h.Handle(context.Background(), GetEligibilityQuery{UserID: uid(1).String()})
	require.NoError(t, err)
	assert.True(t, res.Snapshot.Eligible)
	assert.Len(t, res.Snapshot.Criteria, 4)
}

func TestGetEligibility_StudentShortOnPoints(t *testing.T) {
	h, ledgerRepo, _ := eligibilityFixture(t)
	mustRecord(t, ledgerRepo, uid(1), ledger.TypeEarned, 50, time.Now())

	res, err := h.Handle(context.Background(), GetEligibilityQuery{UserID: uid(1).String()})
	require.NoError(t, err)
	assert.False(t, res.Snapshot.Eligible)
	assert.Equal(t, []string{membership.CriterionPoints}, res.Snapshot.FailedCriteria())
}

func TestGetEligibility_ByEmail(t *testing.T) {
	h, ledgerRepo, _ := eligibilityFixture(t)
	mustRecord(t, ledgerRepo, uid(1), ledger.TypeEarned, 150, time.Now())

	res, err := h.Handle(context.Background(), GetEligibilityQuery{Email: " Maria@School.EDU "})
	require.NoError(t, err)
	assert.Equal(t, uid(1), res.Profile.UserID)

	_, err = h.Handle(context.Background(), GetEligibilityQuery{Email: "nobody@school.edu"})
	assert.ErrorIs(t, err, shared.ErrNotFound)

	_, err = h.Handle(context.Background(), GetEligibilityQuery{})
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestGetEligibility_SchoolPercentile(t *testing.T) {
	h, ledgerRepo, _ := eligibilityFixture(t)

	// School A leads the standings; school B is in the bottom half.
	mustRecord(t, ledgerRepo, uid(10), ledger.TypeEarned, 500, time.Now())
	mustRecord(t, ledgerRepo, uid(11), ledger.TypeEarned, 100, time.Now())

	top, err := h.Handle(context.Background(), GetEligibilityQuery{UserID: uid(10).String()})
	require.NoError(t, err)
	assert.True(t, top.Snapshot.Eligible)

	bottom, err := h.Handle(context.Background(), GetEligibilityQuery{UserID: uid(11).String()})
	require.NoError(t, err)
	assert.False(t, bottom.Snapshot.Eligible)
	assert.Equal(t, []string{membership.CriterionPercentile}, bottom.Snapshot.FailedCriteria())
}

func TestGetEligibility_SchoolStandingsRecomputedOnDemand(t *testing.T) {
	h, ledgerRepo, _ := eligibilityFixture(t)

	mustRecord(t, ledgerRepo, uid(10), ledger.TypeEarned, 500, time.Now())
	mustRecord(t, ledgerRepo, uid(11), ledger.TypeEarned, 100, time.Now())

	before, err := h.Handle(context.Background(), GetEligibilityQuery{UserID: uid(11).String()})
	require.NoError(t, err)
	assert.False(t, before.Snapshot.Eligible)

	// School B overtakes; the next evaluation sees the new standings.
	mustRecord(t, ledgerRepo, uid(11), ledger.TypeEarned, 1000, time.Now())

	after, err := h.Handle(context.Background(), GetEligibilityQuery{UserID: uid(11).String()})
	require.NoError(t, err)
	assert.True(t, after.Snapshot.Eligible)
}
