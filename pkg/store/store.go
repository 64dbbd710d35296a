package store

import (
	"context"
	"errors"

	"game-soul-technology/joker/appliance-queue-server/pkg/model"
)

var (
	// Insert refused because a record with the same key exists.
	ErrAlreadyExists = errors.New("record already exists")

	// Insert refused because the ticket number is already behind the
	// serving counter.
	ErrBehindServing = errors.New("ticket number behind serving counter")

	ErrNotFound = errors.New("record not found")

	// Transient failure talking to the backing store. Callers must not
	// assume the operation took effect.
	ErrUnavailable = errors.New("store unavailable")
)

// Store holds the canonical queue: the ticket collection keyed by
// number and the serving counter. Every mutation is atomic per record
// and is pushed to subscribers of every process sharing the store.
type Store interface {
	// InitServing returns the serving counter, creating it with 1 if
	// it does not exist yet.
	InitServing(ctx context.Context) (int64, error)

	// Serving returns the serving counter or ErrNotFound.
	Serving(ctx context.Context) (int64, error)

	// AdvanceServing moves the counter forward if it still equals
	// from and ticket from no longer exists, and returns the counter
	// after the call. Otherwise the counter is returned unchanged, so
	// repeating the call is harmless, and a ticket taken for from
	// after its previous holder deleted it keeps its turn.
	//
	// The new value is from+1 unless no ticket from+1 exists while
	// higher tickets do; then it is the lowest of those. Skipping over
	// cancelled numbers keeps the queue moving without anybody having
	// to advance through them one by one. On an empty queue the step
	// is exactly one.
	AdvanceServing(ctx context.Context, from int64) (int64, error)

	// InsertTicket stores the ticket if its number is free and not
	// behind the serving counter. Returns ErrAlreadyExists or
	// ErrBehindServing otherwise.
	InsertTicket(ctx context.Context, ticket *model.Ticket) error

	GetTicket(ctx context.Context, number int64) (*model.Ticket, error)

	// Tickets returns all tickets ordered by number.
	Tickets(ctx context.Context) ([]*model.Ticket, error)

	// DeleteTicket removes the ticket. Deleting a missing ticket is
	// not an error.
	DeleteTicket(ctx context.Context, number int64) error

	// SubscribeTickets delivers the full ticket collection right away
	// and after every change. Only the latest collection is kept for
	// a slow receiver. The channel is closed when ctx is done, which
	// is how callers unsubscribe. Received slices are read only.
	SubscribeTickets(ctx context.Context) (<-chan []*model.Ticket, error)

	// SubscribeServing is SubscribeTickets for the serving counter.
	SubscribeServing(ctx context.Context) (<-chan int64, error)
}

// Resolver is implemented by stores able to delete a ticket and advance
// the counter past it in one atomic step.
type Resolver interface {
	// Resolve deletes ticket number and, if the counter equals number,
	// advances it like AdvanceServing. Returns the counter after the
	// call.
	Resolve(ctx context.Context, number int64) (int64, error)
}
