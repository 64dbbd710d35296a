package queue

import (
	"context"
	"errors"
	"time"

	"game-soul-technology/joker/appliance-queue-server/pkg/model"
	"game-soul-technology/joker/appliance-queue-server/pkg/store"

	"go.uber.org/zap"
)

// Sequencer hands out ticket numbers. The candidate comes from the
// serving counter, so the first joiner of an empty queue is served right
// away. The store's insert-if-absent decides races: exactly one caller
// wins a number, the others move on to the next candidate.
type Sequencer struct {
	store       store.Store
	maxAttempts int
	timeout     time.Duration
	logger      *zap.SugaredLogger
}

func NewSequencer(s store.Store, maxAttempts int, timeout time.Duration, logger *zap.SugaredLogger) *Sequencer {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Sequencer{
		store:       s,
		maxAttempts: maxAttempts,
		timeout:     timeout,
		logger:      logger,
	}
}

// Allocate inserts a ticket for name and returns it. The counter is
// re-read before every attempt since it may move between attempts.
// occupied, when not nil, reports numbers the caller already knows to be
// taken; they are skipped without spending an attempt.
func (s *Sequencer) Allocate(ctx context.Context, name string, now time.Time, occupied func(number int64) bool) (*model.Ticket, error) {
	var candidate int64
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		serving, err := s.readServing(ctx)
		if err != nil {
			return nil, storeError(err)
		}

		if candidate < serving {
			candidate = serving
		}
		for occupied != nil && occupied(candidate) {
			candidate++
		}

		ticket := &model.Ticket{
			Number:    candidate,
			Name:      name,
			CreatedAt: now,
		}
		err = s.insert(ctx, ticket)
		switch {
		case err == nil:
			s.logger.Infof("allocated ticket[%+v] attempt[%v]", ticket, attempt)
			return ticket, nil

		case errors.Is(err, store.ErrAlreadyExists), errors.Is(err, store.ErrBehindServing):
			s.logger.Debugf("candidate[%v] taken attempt[%v] %v", candidate, attempt, err)
			candidate++

		default:
			return nil, storeError(err)
		}
	}

	s.logger.Warnf("allocation failed after maxAttempts[%v]", s.maxAttempts)
	return nil, ErrAllocationFailed
}

func (s *Sequencer) readServing(ctx context.Context) (int64, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()
	return s.store.InitServing(ctx)
}

func (s *Sequencer) insert(ctx context.Context, ticket *model.Ticket) error {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()
	return s.store.InsertTicket(ctx, ticket)
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
