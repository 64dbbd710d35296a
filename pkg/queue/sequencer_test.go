package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"game-soul-technology/joker/appliance-queue-server/pkg/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestSequencer(s store.Store, maxAttempts int) *Sequencer {
	return NewSequencer(s, maxAttempts, time.Second, zap.NewNop().Sugar())
}

func TestAllocateStartsAtServing(t *testing.T) {
	s := store.NewMemoryStore()
	advanceTo(t, s, 7)

	ticket, err := newTestSequencer(s, 3).Allocate(context.Background(), "Ana", time.Now(), nil)
	require.NoError(t, err)
	assert.EqualValues(t, 7, ticket.Number)
}

func TestAllocateSkipsTakenNumbers(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()
	seq := newTestSequencer(s, 5)

	for want := int64(1); want <= 3; want++ {
		ticket, err := seq.Allocate(ctx, "x", time.Now(), nil)
		require.NoError(t, err)
		assert.Equal(t, want, ticket.Number)
	}
}

func TestAllocateOccupiedHint(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()
	seq := newTestSequencer(s, 5)
	for i := 0; i < 4; i++ {
		_, err := seq.Allocate(ctx, "x", time.Now(), nil)
		require.NoError(t, err)
	}

	// Four taken numbers cost no attempt when the caller knows them.
	occupied := func(n int64) bool { return n <= 4 }
	ticket, err := newTestSequencer(s, 1).Allocate(ctx, "y", time.Now(), occupied)
	require.NoError(t, err)
	assert.EqualValues(t, 5, ticket.Number)
}

func TestAllocateExhausted(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()
	seq := newTestSequencer(s, 2)
	for i := 0; i < 2; i++ {
		_, err := newTestSequencer(s, 5).Allocate(ctx, "x", time.Now(), nil)
		require.NoError(t, err)
	}

	_, err := seq.Allocate(ctx, "late", time.Now(), nil)
	assert.ErrorIs(t, err, ErrAllocationFailed)
	assert.Len(t, ticketNumbers(t, s), 2)
}

func TestAllocateSameInstant(t *testing.T) {
	s := store.NewMemoryStore()
	advanceTo(t, s, 3)
	seq := newTestSequencer(s, 3)
	now := time.Now()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		numbers []int64
	)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ticket, err := seq.Allocate(context.Background(), "x", now, nil)
			if assert.NoError(t, err) {
				mu.Lock()
				numbers = append(numbers, ticket.Number)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.ElementsMatch(t, []int64{3, 4}, numbers)
}

func TestAllocateStoreUnavailable(t *testing.T) {
	faulty := &faultyStore{Store: store.NewMemoryStore(), failInserts: 1}

	_, err := newTestSequencer(faulty, 3).Allocate(context.Background(), "x", time.Now(), nil)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.Empty(t, ticketNumbers(t, faulty))
}
