package store

import (
	"context"
	"fmt"
	"sync"

	"game-soul-technology/joker/appliance-queue-server/pkg/model"

	"github.com/emirpasic/gods/maps/treemap"
	"github.com/emirpasic/gods/utils"
)

// MemoryStore keeps the queue inside the process. Every client of the
// process shares it, so it serves single node deployments and tests.
type MemoryStore struct {
	mu sync.Mutex

	// Key value: ticket.Number -> ticket, ordered by number.
	tickets *treemap.Map

	// Zero until initialized.
	serving int64

	broker *broker
}

func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{
		tickets: treemap.NewWith(utils.Int64Comparator),
		broker:  newBroker(),
	}
	s.broker.publishTickets(s.ticketList())
	return s
}

func (s *MemoryStore) InitServing(ctx context.Context) (int64, error) {
	if err := checkCtx(ctx); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.serving == 0 {
		s.serving = 1
		s.broker.publishServing(s.serving)
	}
	return s.serving, nil
}

func (s *MemoryStore) Serving(ctx context.Context) (int64, error) {
	if err := checkCtx(ctx); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.serving == 0 {
		return 0, ErrNotFound
	}
	return s.serving, nil
}

func (s *MemoryStore) AdvanceServing(ctx context.Context, from int64) (int64, error) {
	if err := checkCtx(ctx); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.advance(from), nil
}

// Resolve deletes ticket number and advances past it under one lock, so
// no insert can land between the two steps.
func (s *MemoryStore) Resolve(ctx context.Context, number int64) (int64, error) {
	if err := checkCtx(ctx); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.deleteTicket(number)
	return s.advance(number), nil
}

func (s *MemoryStore) InsertTicket(ctx context.Context, ticket *model.Ticket) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	serving := s.serving
	if serving == 0 {
		serving = 1
	}
	if ticket.Number < serving {
		return ErrBehindServing
	}
	if _, found := s.tickets.Get(ticket.Number); found {
		return ErrAlreadyExists
	}

	stored := *ticket
	s.tickets.Put(stored.Number, &stored)
	s.broker.publishTickets(s.ticketList())
	return nil
}

func (s *MemoryStore) GetTicket(ctx context.Context, number int64) (*model.Ticket, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	value, found := s.tickets.Get(number)
	if !found {
		return nil, ErrNotFound
	}
	ticket := *value.(*model.Ticket)
	return &ticket, nil
}

func (s *MemoryStore) Tickets(ctx context.Context) ([]*model.Ticket, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.ticketList(), nil
}

func (s *MemoryStore) DeleteTicket(ctx context.Context, number int64) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.deleteTicket(number)
	return nil
}

func (s *MemoryStore) SubscribeTickets(ctx context.Context) (<-chan []*model.Ticket, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	return s.broker.subscribeTickets(ctx), nil
}

func (s *MemoryStore) SubscribeServing(ctx context.Context) (<-chan int64, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	return s.broker.subscribeServing(ctx), nil
}

func (s *MemoryStore) deleteTicket(number int64) {
	if _, found := s.tickets.Get(number); !found {
		return
	}
	s.tickets.Remove(number)
	s.broker.publishTickets(s.ticketList())
}

// Must hold s.mu.
func (s *MemoryStore) advance(from int64) int64 {
	if s.serving == 0 {
		s.serving = 1
	}
	if s.serving != from {
		return s.serving
	}
	if _, found := s.tickets.Get(from); found {
		return s.serving
	}

	next := from + 1
	if key, _ := s.tickets.Ceiling(next); key != nil {
		next = key.(int64)
	}
	s.serving = next
	s.broker.publishServing(s.serving)
	return s.serving
}

// Must hold s.mu.
func (s *MemoryStore) ticketList() []*model.Ticket {
	tickets := make([]*model.Ticket, 0, s.tickets.Size())
	it := s.tickets.Iterator()
	for it.Next() {
		ticket := *it.Value().(*model.Ticket)
		tickets = append(tickets, &ticket)
	}
	return tickets
}

func checkCtx(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}
