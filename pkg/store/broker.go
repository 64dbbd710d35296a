package store

import (
	"context"
	"sync"

	"game-soul-technology/joker/appliance-queue-server/pkg/model"
)

// broker fans store values out to local subscribers. Each subscriber
// channel holds one value; publishing replaces an undelivered value
// with the newer one.
type broker struct {
	mu sync.Mutex

	nextId      int
	ticketSubs  map[int]chan []*model.Ticket
	servingSubs map[int]chan int64

	tickets     []*model.Ticket
	haveTickets bool
	serving     int64
	haveServing bool
}

func newBroker() *broker {
	return &broker{
		ticketSubs:  make(map[int]chan []*model.Ticket),
		servingSubs: make(map[int]chan int64),
	}
}

func (b *broker) subscribeTickets(ctx context.Context) <-chan []*model.Ticket {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextId
	b.nextId++
	ch := make(chan []*model.Ticket, 1)
	b.ticketSubs[id] = ch
	if b.haveTickets {
		ch <- b.tickets
	}

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.ticketSubs, id)
		close(ch)
	}()
	return ch
}

func (b *broker) subscribeServing(ctx context.Context) <-chan int64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextId
	b.nextId++
	ch := make(chan int64, 1)
	b.servingSubs[id] = ch
	if b.haveServing {
		ch <- b.serving
	}

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.servingSubs, id)
		close(ch)
	}()
	return ch
}

func (b *broker) publishTickets(tickets []*model.Ticket) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.haveTickets && ticketsEqual(b.tickets, tickets) {
		return
	}
	b.tickets, b.haveTickets = tickets, true

	for _, ch := range b.ticketSubs {
		select {
		case <-ch:
		default:
		}
		ch <- tickets
	}
}

func (b *broker) publishServing(serving int64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.haveServing && b.serving == serving {
		return
	}
	b.serving, b.haveServing = serving, true

	for _, ch := range b.servingSubs {
		select {
		case <-ch:
		default:
		}
		ch <- serving
	}
}

func ticketsEqual(a, b []*model.Ticket) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Number != b[i].Number || a[i].Name != b[i].Name || !a[i].CreatedAt.Equal(b[i].CreatedAt) {
			return false
		}
	}
	return true
}
