package command

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/earth-innovators/merit-engine/internal/domain/ledger"
	"github.com/earth-innovators/merit-engine/internal/domain/membership"
	"github.com/earth-innovators/merit-engine/internal/domain/shared"
)

// In-memory fakes shared by the command handler tests. All fakes are
// safe for concurrent use so the race-oriented tests exercise the same
// paths production code does.

type fakeLedgerRepo struct {
	mu       sync.Mutex
	txs      map[shared.UserID][]*ledger.Transaction
	balances map[shared.UserID]shared.Points
}

func newFakeLedgerRepo() *fakeLedgerRepo {
	return &fakeLedgerRepo{
		txs:      make(map[shared.UserID][]*ledger.Transaction),
		balances: make(map[shared.UserID]shared.Points),
	}
}

func (f *fakeLedgerRepo) Record(ctx context.Context, tx *ledger.Transaction, allowNegative bool) (shared.Points, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	next := f.balances[tx.UserID] + tx.Points
	if !allowNegative && next < 0 {
		return 0, shared.ErrInsufficientPoints
	}
	f.txs[tx.UserID] = append(f.txs[tx.UserID], tx)
	f.balances[tx.UserID] = next
	return next, nil
}

func (f *fakeLedgerRepo) GetBalance(ctx context.Context, userID shared.UserID) (*ledger.Balance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &ledger.Balance{UserID: userID, Balance: f.balances[userID], UpdatedAt: time.Now()}, nil
}

func (f *fakeLedgerRepo) GetSummary(ctx context.Context, userID shared.UserID) (*ledger.Summary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	s := ledger.NewSummary(userID)
	for _, tx := range f.txs[userID] {
		s.Apply(tx)
	}
	return s, nil
}

func (f *fakeLedgerRepo) ListTransactions(ctx context.Context, userID shared.UserID, filter ledger.ListFilter, page shared.Pagination) ([]*ledger.Transaction, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var all []*ledger.Transaction
	for _, tx := range f.txs[userID] {
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

type fakeNumberRepo struct {
	mu       sync.Mutex
	byNumber map[membership.Number]*membership.Assignment
	byUser   map[shared.UserID]*membership.Assignment

	// alwaysCollide simulates a fully occupied number space.
	alwaysCollide bool
	// failFor makes TryReserve error for specific users.
	failFor map[shared.UserID]error
}

func newFakeNumberRepo() *fakeNumberRepo {
	return &fakeNumberRepo{
		byNumber: make(map[membership.Number]*membership.Assignment),
		byUser:   make(map[shared.UserID]*membership.Assignment),
	}
}

func (f *fakeNumberRepo) TryReserve(ctx context.Context, a *membership.Assignment) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err, ok := f.failFor[a.UserID]; ok {
		return false, err
	}
	if _, ok := f.byUser[a.UserID]; ok {
		return false, shared.ErrNumberAssigned
	}
	if f.alwaysCollide {
		return false, nil
	}
	if _, ok := f.byNumber[a.Number]; ok {
		return false, nil
	}
	f.byNumber[a.Number] = a
	f.byUser[a.UserID] = a
	return true, nil
}

func (f *fakeNumberRepo) GetByUser(ctx context.Context, userID shared.UserID) (*membership.Assignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	a, ok := f.byUser[userID]
	if !ok {
		return nil, shared.ErrUserNotFound
	}
	return a, nil
}

type fakeCertRepo struct {
	mu     sync.Mutex
	byUser map[shared.UserID]*membership.Certificate
}

func newFakeCertRepo() *fakeCertRepo {
	return &fakeCertRepo{byUser: make(map[shared.UserID]*membership.Certificate)}
}

func (f *fakeCertRepo) InsertOrFetch(ctx context.Context, cert *membership.Certificate) (*membership.Certificate, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if existing, ok := f.byUser[cert.UserID]; ok {
		return existing, false, nil
	}
	f.byUser[cert.UserID] = cert
	return cert, true, nil
}

func (f *fakeCertRepo) GetByUser(ctx context.Context, userID shared.UserID) (*membership.Certificate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	cert, ok := f.byUser[userID]
	if !ok {
		return nil, shared.ErrCertificateNotFound
	}
	return cert, nil
}

type fakeProfiles struct {
	mu      sync.Mutex
	byUser  map[shared.UserID]*membership.Profile
	byEmail map[shared.Email]*membership.Profile
	numbers *fakeNumberRepo
}

func newFakeProfiles(numbers *fakeNumberRepo, profiles ...*membership.Profile) *fakeProfiles {
	f := &fakeProfiles{
		byUser:  make(map[shared.UserID]*membership.Profile),
		byEmail: make(map[shared.Email]*membership.Profile),
		numbers: numbers,
	}
	for _, p := range profiles {
		f.byUser[p.UserID] = p
		f.byEmail[p.Email] = p
	}
	return f
}

func (f *fakeProfiles) GetByUserID(ctx context.Context, userID shared.UserID) (*membership.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	p, ok := f.byUser[userID]
	if !ok {
		return nil, shared.ErrProfileNotFound
	}
	return p, nil
}

func (f *fakeProfiles) GetByEmail(ctx context.Context, email shared.Email) (*membership.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	p, ok := f.byEmail[email]
	if !ok {
		return nil, shared.ErrProfileNotFound
	}
	return p, nil
}

func (f *fakeProfiles) ListWithoutNumber(ctx context.Context, roles []shared.Role) ([]*membership.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	roleSet := make(map[shared.Role]bool, len(roles))
	for _, r := range roles {
		roleSet[r] = true
	}

	var out []*membership.Profile
	for _, p := range f.byUser {
		if len(roleSet) > 0 && !roleSet[p.Role] {
			continue
		}
		if f.numbers != nil {
			f.numbers.mu.Lock()
			_, has := f.numbers.byUser[p.UserID]
			f.numbers.mu.Unlock()
			if has {
				continue
			}
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (f *fakeProfiles) ListSchools(ctx context.Context) ([]*membership.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []*membership.Profile
	for _, p := range f.byUser {
		if p.Role == shared.RoleSchool {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

type fakeBus struct {
	mu     sync.Mutex
	events []shared.Event
}

func (f *fakeBus) Publish(event shared.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func (f *fakeBus) byType(t shared.EventType) []shared.Event {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []shared.Event
	for _, e := range f.events {
		if e.EventType() == t {
			out = append(out, e)
		}
	}
	return out
}

type fakeSnapshots struct {
	eligible bool
}

func (f *fakeSnapshots) SnapshotFor(ctx context.Context, profile *membership.Profile) (*membership.Snapshot, error) {
	return &membership.Snapshot{
		UserID: profile.UserID,
		Role:   profile.Role,
		Criteria: []membership.Criterion{
			{Name: membership.CriterionPoints, Current: "0", Required: ">= 100", Met: f.eligible},
		},
		Eligible:    f.eligible,
		EvaluatedAt: time.Now(),
	}, nil
}

func testProfile(userID shared.UserID, email string, role shared.Role) *membership.Profile {
	return &membership.Profile{
		UserID:       userID,
		Email:        shared.Email(email),
		Role:         role,
		RegisteredAt: time.Now().AddDate(-2, 0, 0),
	}
}
