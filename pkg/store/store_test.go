package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"game-soul-technology/joker/appliance-queue-server/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitFor = 2 * time.Second

// Behaviour every Store implementation must share.
func testStore(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("InitServing", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		_, err := s.Serving(ctx)
		assert.ErrorIs(t, err, ErrNotFound)

		serving, err := s.InitServing(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, 1, serving)

		serving, err = s.InitServing(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, 1, serving)
	})

	t.Run("InsertTicket", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		_, err := s.InitServing(ctx)
		require.NoError(t, err)

		require.NoError(t, s.InsertTicket(ctx, ticket(1, "Ana")))
		assert.ErrorIs(t, s.InsertTicket(ctx, ticket(1, "Bob")), ErrAlreadyExists)

		got, err := s.GetTicket(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, "Ana", got.Name)

		_, err = s.GetTicket(ctx, 2)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("InsertBehindServing", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		_, err := s.InitServing(ctx)
		require.NoError(t, err)

		_, err = s.AdvanceServing(ctx, 1)
		require.NoError(t, err)

		assert.ErrorIs(t, s.InsertTicket(ctx, ticket(1, "Late")), ErrBehindServing)
	})

	t.Run("TicketsOrdered", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		for _, n := range []int64{12, 3, 7} {
			require.NoError(t, s.InsertTicket(ctx, ticket(n, "x")))
		}

		tickets, err := s.Tickets(ctx)
		require.NoError(t, err)
		assert.Equal(t, []int64{3, 7, 12}, numbers(tickets))
	})

	t.Run("DeleteTicketIdempotent", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.InsertTicket(ctx, ticket(1, "Ana")))

		require.NoError(t, s.DeleteTicket(ctx, 1))
		require.NoError(t, s.DeleteTicket(ctx, 1))

		tickets, err := s.Tickets(ctx)
		require.NoError(t, err)
		assert.Empty(t, tickets)
	})

	t.Run("AdvanceServing", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		_, err := s.InitServing(ctx)
		require.NoError(t, err)

		serving, err := s.AdvanceServing(ctx, 1)
		require.NoError(t, err)
		assert.EqualValues(t, 2, serving)

		// Stale from value leaves the counter alone.
		serving, err = s.AdvanceServing(ctx, 1)
		require.NoError(t, err)
		assert.EqualValues(t, 2, serving)
	})

	t.Run("AdvanceSkipsGaps", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		_, err := s.InitServing(ctx)
		require.NoError(t, err)
		require.NoError(t, s.InsertTicket(ctx, ticket(1, "a")))
		require.NoError(t, s.InsertTicket(ctx, ticket(4, "b")))
		require.NoError(t, s.DeleteTicket(ctx, 1))

		serving, err := s.AdvanceServing(ctx, 1)
		require.NoError(t, err)
		assert.EqualValues(t, 4, serving)
	})

	t.Run("AdvanceKeepsLiveTicket", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		_, err := s.InitServing(ctx)
		require.NoError(t, err)
		require.NoError(t, s.InsertTicket(ctx, ticket(1, "a")))

		serving, err := s.AdvanceServing(ctx, 1)
		require.NoError(t, err)
		assert.EqualValues(t, 1, serving)

		require.NoError(t, s.DeleteTicket(ctx, 1))
		serving, err = s.AdvanceServing(ctx, 1)
		require.NoError(t, err)
		assert.EqualValues(t, 2, serving)
	})

	t.Run("Resolve", func(t *testing.T) {
		s := newStore(t)
		resolver, ok := s.(Resolver)
		require.True(t, ok)
		ctx := context.Background()

		_, err := s.InitServing(ctx)
		require.NoError(t, err)
		require.NoError(t, s.InsertTicket(ctx, ticket(1, "Ana")))
		require.NoError(t, s.InsertTicket(ctx, ticket(2, "Bob")))

		// Waiting ticket: removed, counter untouched.
		serving, err := resolver.Resolve(ctx, 2)
		require.NoError(t, err)
		assert.EqualValues(t, 1, serving)

		// Served ticket: removed and the counter moves on.
		serving, err = resolver.Resolve(ctx, 1)
		require.NoError(t, err)
		assert.EqualValues(t, 2, serving)

		tickets, err := s.Tickets(ctx)
		require.NoError(t, err)
		assert.Empty(t, tickets)
	})

	t.Run("SubscribeTickets", func(t *testing.T) {
		s := newStore(t)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		updates, err := s.SubscribeTickets(ctx)
		require.NoError(t, err)

		require.NoError(t, s.InsertTicket(context.Background(), ticket(1, "Ana")))
		require.Eventually(t, func() bool {
			return hasTickets(updates, []int64{1})
		}, waitFor, 10*time.Millisecond)

		cancel()
		require.Eventually(t, func() bool {
			for {
				select {
				case _, ok := <-updates:
					if !ok {
						return true
					}
				default:
					return false
				}
			}
		}, waitFor, 10*time.Millisecond)
	})

	t.Run("SubscribeServing", func(t *testing.T) {
		s := newStore(t)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		_, err := s.InitServing(context.Background())
		require.NoError(t, err)

		updates, err := s.SubscribeServing(ctx)
		require.NoError(t, err)

		_, err = s.AdvanceServing(context.Background(), 1)
		require.NoError(t, err)

		var last int64
		require.Eventually(t, func() bool {
			select {
			case last = <-updates:
			default:
			}
			return last == 2
		}, waitFor, 10*time.Millisecond)
	})

	t.Run("ConcurrentInsertSameNumber", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			winners int
		)
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := s.InsertTicket(ctx, ticket(5, "x")); err == nil {
					mu.Lock()
					winners++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, winners)
	})
}

func ticket(number int64, name string) *model.Ticket {
	return &model.Ticket{Number: number, Name: name, CreatedAt: time.Unix(1700000000, 0).UTC()}
}

func numbers(tickets []*model.Ticket) []int64 {
	result := make([]int64, 0, len(tickets))
	for _, ticket := range tickets {
		result = append(result, ticket.Number)
	}
	return result
}

// Drains updates and reports whether the newest collection matches.
func hasTickets(updates <-chan []*model.Ticket, want []int64) bool {
	var latest []*model.Ticket
	var got bool
	for {
		select {
		case tickets := <-updates:
			latest, got = tickets, true
			continue
		default:
		}
		break
	}
	if !got {
		return false
	}
	return assert.ObjectsAreEqual(want, numbers(latest))
}
