package service_test

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kettleworks/brewbot/internal/domain"
	"github.com/kettleworks/brewbot/internal/repo"
	"github.com/kettleworks/brewbot/internal/schedule"
	"github.com/kettleworks/brewbot/internal/service"
)

// ---- mock brew repo --------------------------------------------------------

// mockBrewRepo is a hand-written test double for repo.BrewRepo.
// Unset fields fail loudly via nil dereference, pointing at the test that
// exercised an unexpected call.
type mockBrewRepo struct {
	getByID         func(ctx context.Context, id uuid.UUID) (domain.Brew, error)
	findUpcoming    func(ctx context.Context, location string) (domain.Brew, error)
	list            func(ctx context.Context) ([]domain.Brew, error)
	listUpcoming    func(ctx context.Context) ([]domain.Brew, error)
	findInWindow    func(ctx context.Context, location string, from, until time.Time) ([]domain.Brew, error)
	findLastForUser func(ctx context.Context, userID string) (domain.Brew, error)
	create          func(ctx context.Context, brew domain.Brew) (domain.Brew, bool, error)
	update          func(ctx context.Context, brew domain.Brew) (domain.Brew, error)
}

func (m *mockBrewRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.Brew, error) {
	return m.getByID(ctx, id)
}
func (m *mockBrewRepo) FindUpcoming(ctx context.Context, location string) (domain.Brew, error) {
	return m.findUpcoming(ctx, location)
}
func (m *mockBrewRepo) List(ctx context.Context) ([]domain.Brew, error) {
	return m.list(ctx)
}
func (m *mockBrewRepo) ListUpcoming(ctx context.Context) ([]domain.Brew, error) {
	return m.listUpcoming(ctx)
}
func (m *mockBrewRepo) FindInWindow(ctx context.Context, location string, from, until time.Time) ([]domain.Brew, error) {
	return m.findInWindow(ctx, location, from, until)
}
func (m *mockBrewRepo) FindLastForUser(ctx context.Context, userID string) (domain.Brew, error) {
	return m.findLastForUser(ctx, userID)
}
func (m *mockBrewRepo) Create(ctx context.Context, brew domain.Brew) (domain.Brew, bool, error) {
	return m.create(ctx, brew)
}
func (m *mockBrewRepo) Update(ctx context.Context, brew domain.Brew) (domain.Brew, error) {
	return m.update(ctx, brew)
}

// compile-time check: mockBrewRepo must satisfy repo.BrewRepo.
var _ repo.BrewRepo = (*mockBrewRepo)(nil)

// ---- mock timer queue ------------------------------------------------------

// mockTimers records armed entries without ever firing them.
type mockTimers struct {
	mu      sync.Mutex
	entries []armedEntry
}

type armedEntry struct {
	id uuid.UUID
	at time.Time
	fn schedule.Callback
}

func (m *mockTimers) Schedule(id uuid.UUID, at time.Time, fn schedule.Callback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, armedEntry{id: id, at: at, fn: fn})
}

func (m *mockTimers) armed() []armedEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]armedEntry(nil), m.entries...)
}

var _ service.TimerQueue = (*mockTimers)(nil)

// ---- mock notifier ---------------------------------------------------------

// mockNotifier records Send and SendAlert invocations. sent and alerted are
// buffered so background senders never block.
type mockNotifier struct {
	sendErr  error
	alertErr error
	sent     chan domain.Brew
	alerted  chan domain.HistoricalRoster
}

func newMockNotifier() *mockNotifier {
	return &mockNotifier{
		sent:    make(chan domain.Brew, 16),
		alerted: make(chan domain.HistoricalRoster, 16),
	}
}

func (m *mockNotifier) Send(ctx context.Context, brew domain.Brew) error {
	m.sent <- brew
	return m.sendErr
}

func (m *mockNotifier) SendAlert(ctx context.Context, roster domain.HistoricalRoster, location string, lead time.Duration) error {
	m.alerted <- roster
	return m.alertErr
}

var _ service.Notifier = (*mockNotifier)(nil)

// ---- mock roster builder ---------------------------------------------------

type mockRosterBuilder struct {
	roster domain.HistoricalRoster
	err    error
}

func (m *mockRosterBuilder) Roster(ctx context.Context, location string, lookback time.Duration) (domain.HistoricalRoster, error) {
	return m.roster, m.err
}

var _ service.RosterBuilder = (*mockRosterBuilder)(nil)

// ---- in-memory brew repo ---------------------------------------------------

// memBrewRepo is a stateful in-memory BrewRepo with the same semantics as
// the Postgres implementation: insert-if-absent creation and version-checked
// updates. Used by the end-to-end scheduler test where the hand-rolled
// per-call mocks would have to reimplement half the store anyway.
type memBrewRepo struct {
	mu    sync.Mutex
	clock schedule.Clock
	brews map[uuid.UUID]domain.Brew
}

func newMemBrewRepo(clock schedule.Clock) *memBrewRepo {
	return &memBrewRepo{clock: clock, brews: make(map[uuid.UUID]domain.Brew)}
}

var _ repo.BrewRepo = (*memBrewRepo)(nil)

func (m *memBrewRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.Brew, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.brews[id]
	if !ok {
		return domain.Brew{}, domain.ErrNotFound
	}
	return b, nil
}

func (m *memBrewRepo) FindUpcoming(ctx context.Context, location string) (domain.Brew, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.findUpcomingLocked(location)
}

func (m *memBrewRepo) findUpcomingLocked(location string) (domain.Brew, error) {
	now := m.clock.Now()
	var best *domain.Brew
	for _, b := range m.brews {
		if b.Location != location || !b.DueAt.After(now) {
			continue
		}
		if best == nil || b.DueAt.Before(best.DueAt) {
			c := b
			best = &c
		}
	}
	if best == nil {
		return domain.Brew{}, domain.ErrNotFound
	}
	return *best, nil
}

func (m *memBrewRepo) List(ctx context.Context) ([]domain.Brew, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Brew, 0, len(m.brews))
	for _, b := range m.brews {
		out = append(out, b)
	}
	return out, nil
}

func (m *memBrewRepo) ListUpcoming(ctx context.Context) ([]domain.Brew, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.clock.Now()
	var out []domain.Brew
	for _, b := range m.brews {
		if b.DueAt.After(now) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *memBrewRepo) FindInWindow(ctx context.Context, location string, from, until time.Time) ([]domain.Brew, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Brew
	for _, b := range m.brews {
		if b.Location == location && b.DueAt.After(from) && b.DueAt.Before(until) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *memBrewRepo) FindLastForUser(ctx context.Context, userID string) (domain.Brew, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var best *domain.Brew
	for _, b := range m.brews {
		if !b.HasUser(userID) {
			continue
		}
		if best == nil || b.DueAt.After(best.DueAt) {
			c := b
			best = &c
		}
	}
	if best == nil {
		return domain.Brew{}, domain.ErrNotFound
	}
	return *best, nil
}

func (m *memBrewRepo) Create(ctx context.Context, brew domain.Brew) (domain.Brew, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, err := m.findUpcomingLocked(brew.Location); err == nil {
		return existing, false, nil
	}
	brew.ID = uuid.New()
	brew.Version = 1
	if brew.Brewers == nil {
		brew.Brewers = []domain.Brewer{}
	}
	now := m.clock.Now()
	brew.CreatedAt = now
	brew.UpdatedAt = now
	m.brews[brew.ID] = brew
	return brew, true, nil
}

func (m *memBrewRepo) Update(ctx context.Context, brew domain.Brew) (domain.Brew, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.brews[brew.ID]
	if !ok {
		return domain.Brew{}, domain.ErrNotFound
	}
	if stored.Version != brew.Version {
		return domain.Brew{}, domain.ErrConflict
	}
	stored.Brewers = brew.Brewers
	stored.Brewer = brew.Brewer
	stored.HasBrewer = brew.HasBrewer
	stored.Version++
	stored.UpdatedAt = m.clock.Now()
	m.brews[brew.ID] = stored
	return stored, nil
}
