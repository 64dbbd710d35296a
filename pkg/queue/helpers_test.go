package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"game-soul-technology/joker/appliance-queue-server/pkg/infra"
	"game-soul-technology/joker/appliance-queue-server/pkg/model"
	"game-soul-technology/joker/appliance-queue-server/pkg/store"

	"github.com/stretchr/testify/require"
)

const waitFor = 2 * time.Second

type gateFunc func(now time.Time) bool

func (f gateFunc) IsOpen(now time.Time) bool { return f(now) }

var alwaysOpen = gateFunc(func(time.Time) bool { return true })

func newTestService(t *testing.T, s store.Store, gate Gate) *Service {
	t.Helper()
	return NewService(s, gate, NewStats(time.Minute, 10, infra.ProvideNopLoggerFactory().Create("Stats").Sugar()), Options{
		AllocateMaxAttempts: 64,
		AdvanceMaxAttempts:  3,
		StoreTimeout:        time.Second,
		MaxNameLength:       10,
	}, infra.ProvideNopLoggerFactory())
}

func openParticipant(t *testing.T, svc *Service, id string) *Participant {
	t.Helper()
	p, err := svc.Open(context.Background(), NewClientSession(id))
	require.NoError(t, err)
	t.Cleanup(p.Close)
	return p
}

func waitView(t *testing.T, p *Participant, cond func(View) bool) View {
	t.Helper()
	var view View
	require.Eventually(t, func() bool {
		view = p.Projector.Snapshot()
		return cond(view)
	}, waitFor, 5*time.Millisecond)
	return view
}

func serving(t *testing.T, s store.Store) int64 {
	t.Helper()
	n, err := s.InitServing(context.Background())
	require.NoError(t, err)
	return n
}

func ticketNumbers(t *testing.T, s store.Store) []int64 {
	t.Helper()
	tickets, err := s.Tickets(context.Background())
	require.NoError(t, err)
	numbers := []int64{}
	for _, ticket := range tickets {
		numbers = append(numbers, ticket.Number)
	}
	return numbers
}

// advanceTo moves an empty store's counter up to number.
func advanceTo(t *testing.T, s store.Store, number int64) {
	t.Helper()
	for current := serving(t, s); current < number; current = serving(t, s) {
		_, err := s.AdvanceServing(context.Background(), current)
		require.NoError(t, err)
	}
}

// faultyStore fails the next N calls of selected operations and can
// block inserts until released.
type faultyStore struct {
	store.Store

	mu            sync.Mutex
	failInserts   int
	failDeletes   int
	failAdvances  int
	insertsTaken  bool
	blockInsert   chan struct{}
	insertStarted chan struct{}
}

func (s *faultyStore) take(counter *int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if *counter > 0 {
		*counter--
		return true
	}
	return false
}

func (s *faultyStore) InsertTicket(ctx context.Context, ticket *model.Ticket) error {
	s.mu.Lock()
	block, started := s.blockInsert, s.insertStarted
	s.mu.Unlock()
	if block != nil {
		if started != nil {
			close(started)
			s.mu.Lock()
			s.insertStarted = nil
			s.mu.Unlock()
		}
		<-block
	}

	s.mu.Lock()
	taken := s.insertsTaken
	s.mu.Unlock()
	if taken {
		return store.ErrAlreadyExists
	}

	if s.take(&s.failInserts) {
		return store.ErrUnavailable
	}
	return s.Store.InsertTicket(ctx, ticket)
}

func (s *faultyStore) DeleteTicket(ctx context.Context, number int64) error {
	if s.take(&s.failDeletes) {
		return store.ErrUnavailable
	}
	return s.Store.DeleteTicket(ctx, number)
}

func (s *faultyStore) AdvanceServing(ctx context.Context, from int64) (int64, error) {
	if s.take(&s.failAdvances) {
		return 0, store.ErrUnavailable
	}
	return s.Store.AdvanceServing(ctx, from)
}

// resolvingStore offers the atomic path on top of a memory store.
type resolvingStore struct {
	*store.MemoryStore

	mu       sync.Mutex
	resolved []int64
}

func (s *resolvingStore) Resolve(ctx context.Context, number int64) (int64, error) {
	s.mu.Lock()
	s.resolved = append(s.resolved, number)
	s.mu.Unlock()

	if err := s.MemoryStore.DeleteTicket(ctx, number); err != nil {
		return 0, err
	}
	return s.MemoryStore.AdvanceServing(ctx, number)
}

// deleteHookStore runs afterDelete once, right after the next delete.
type deleteHookStore struct {
	store.Store

	mu          sync.Mutex
	afterDelete func()
}

func (s *deleteHookStore) DeleteTicket(ctx context.Context, number int64) error {
	if err := s.Store.DeleteTicket(ctx, number); err != nil {
		return err
	}

	s.mu.Lock()
	hook := s.afterDelete
	s.afterDelete = nil
	s.mu.Unlock()
	if hook != nil {
		hook()
	}
	return nil
}

// laggingStore reports a counter ahead of the real one once ahead is
// set, the way a client sees it after somebody else moved on.
type laggingStore struct {
	store.Store

	mu    sync.Mutex
	ahead int64
}

func (s *laggingStore) setAhead(serving int64) {
	s.mu.Lock()
	s.ahead = serving
	s.mu.Unlock()
}

func (s *laggingStore) InitServing(ctx context.Context) (int64, error) {
	s.mu.Lock()
	ahead := s.ahead
	s.mu.Unlock()
	if ahead > 0 {
		return ahead, nil
	}
	return s.Store.InitServing(ctx)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Add(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}
