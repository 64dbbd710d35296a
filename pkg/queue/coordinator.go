package queue

import (
	"context"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"game-soul-technology/joker/appliance-queue-server/pkg/model"
	"game-soul-technology/joker/appliance-queue-server/pkg/store"

	"go.uber.org/zap"
)

// Gate decides whether new joins are accepted right now.
type Gate interface {
	IsOpen(now time.Time) bool
}

// ClientSession is the process local state of one client: the ticket it
// holds, if any. A client holds at most one ticket.
type ClientSession struct {
	Id string

	mu     sync.Mutex
	ticket *model.Ticket
}

func NewClientSession(id string) *ClientSession {
	return &ClientSession{Id: id}
}

// Number returns the held ticket number, 0 when none.
func (s *ClientSession) Number() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ticket == nil {
		return 0
	}
	return s.ticket.Number
}

func (s *ClientSession) Ticket() *model.Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ticket == nil {
		return nil
	}
	ticket := *s.ticket
	return &ticket
}

func (s *ClientSession) set(ticket *model.Ticket) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ticket = ticket
}

// Coordinator runs join, confirm and cancel for one client against the
// shared store. Calls of one coordinator never overlap: a call made
// while another is outstanding fails with ErrBusy.
type Coordinator struct {
	session   *ClientSession
	store     store.Store
	sequencer *Sequencer
	gate      Gate
	projector *Projector
	stats     *Stats

	maxNameLength      int
	advanceMaxAttempts int
	timeout            time.Duration
	now                func() time.Time

	inFlight chan struct{}

	logger *zap.SugaredLogger
}

// Join takes a ticket for name. The resulting role is derived by the
// projector once the store echoes the change.
func (c *Coordinator) Join(ctx context.Context, name string) (*model.Ticket, error) {
	if !c.acquire() {
		return nil, ErrBusy
	}
	defer c.release()

	now := c.now()
	name = strings.TrimSpace(name)

	if c.activeNumber() != 0 {
		return nil, ErrAlreadyQueued
	}
	if !c.gate.IsOpen(now) {
		return nil, ErrServiceClosed
	}
	if name == "" || (c.maxNameLength > 0 && utf8.RuneCountInString(name) > c.maxNameLength) {
		return nil, ErrInvalidName
	}

	var occupied func(int64) bool
	if c.projector != nil {
		occupied = c.projector.Occupied
	}

	ticket, err := c.sequencer.Allocate(ctx, name, now, occupied)
	if err != nil {
		c.logger.Warnf("session[%v] join failed %v", c.session.Id, err)
		return nil, err
	}

	c.setTicket(ticket)
	c.logger.Infof("session[%v] joined ticket[%+v]", c.session.Id, ticket)
	return ticket, nil
}

// Confirm marks the held ticket as served: the ticket is deleted, then
// the counter moves on. Only valid while being served.
func (c *Coordinator) Confirm(ctx context.Context) (int64, error) {
	if !c.acquire() {
		return 0, ErrBusy
	}
	defer c.release()

	ticket := c.session.Ticket()
	if ticket == nil {
		return 0, ErrNoActiveTicket
	}

	serving, err := c.readServing(ctx)
	if err != nil {
		return 0, storeError(err)
	}

	switch {
	case ticket.Number > serving:
		return 0, ErrNotYourTurn

	case ticket.Number < serving:
		// The counter has moved past the ticket. Drop whatever record
		// is left of it.
		c.logger.Warnf("session[%v] ticket[%v] already passed serving[%v]", c.session.Id, ticket.Number, serving)
		if err := c.deleteTicket(ctx, ticket.Number); err != nil {
			return 0, storeError(err)
		}
		c.setTicket(nil)
		return ticket.Number, nil
	}

	if err := c.resolve(ctx, ticket.Number); err != nil {
		c.logger.Errorf("session[%v] confirm ticket[%v] failed %v", c.session.Id, ticket.Number, err)
		return 0, err
	}

	now := c.now()
	servedAt := now
	if c.projector != nil {
		if since := c.projector.ServedSince(); !since.IsZero() {
			servedAt = since
		}
	}

	c.setTicket(nil)
	if c.stats != nil {
		c.stats.Record(servedAt.Sub(ticket.CreatedAt), now.Sub(servedAt))
	}
	c.logger.Infof("session[%v] confirmed ticket[%v]", c.session.Id, ticket.Number)
	return ticket.Number, nil
}

// Cancel gives up the held ticket, waiting or being served. A ticket
// being served moves the counter on so the appliance is not left idle.
func (c *Coordinator) Cancel(ctx context.Context) (int64, error) {
	if !c.acquire() {
		return 0, ErrBusy
	}
	defer c.release()

	number := c.session.Number()
	if number == 0 {
		return 0, ErrNoActiveTicket
	}

	serving, err := c.readServing(ctx)
	if err != nil {
		return 0, storeError(err)
	}

	if number >= serving {
		err = c.resolve(ctx, number)
	} else {
		err = storeError(c.deleteTicket(ctx, number))
	}
	if err != nil {
		c.logger.Errorf("session[%v] cancel ticket[%v] failed %v", c.session.Id, number, err)
		return 0, err
	}

	c.setTicket(nil)
	c.logger.Infof("session[%v] cancelled ticket[%v] serving[%v]", c.session.Id, number, serving)
	return number, nil
}

// resolve deletes ticket number and advances the counter past it if it
// is the one being served. Without an atomic store primitive the delete
// goes first so nobody sees the counter on a ticket that still exists.
func (c *Coordinator) resolve(ctx context.Context, number int64) error {
	if resolver, ok := c.store.(store.Resolver); ok {
		ctx, cancel := withTimeout(ctx, c.timeout)
		defer cancel()
		_, err := resolver.Resolve(ctx, number)
		return storeError(err)
	}

	if err := c.deleteTicket(ctx, number); err != nil {
		return storeError(err)
	}
	return c.advancePast(ctx, number)
}

// advancePast retries only the counter step. The counter is re-read on
// every attempt and the write is a compare-and-set from number, so a
// counter somebody else already moved is left alone.
func (c *Coordinator) advancePast(ctx context.Context, number int64) error {
	var lastErr error
	for attempt := 1; attempt <= c.advanceMaxAttempts; attempt++ {
		serving, err := c.readServing(ctx)
		if err != nil {
			lastErr = err
			c.logger.Warnf("session[%v] read serving attempt[%v] %v", c.session.Id, attempt, err)
			continue
		}
		if serving != number {
			return nil
		}

		advanceCtx, cancel := withTimeout(ctx, c.timeout)
		next, err := c.store.AdvanceServing(advanceCtx, number)
		cancel()
		if err != nil {
			lastErr = err
			c.logger.Warnf("session[%v] advance from[%v] attempt[%v] %v", c.session.Id, number, attempt, err)
			continue
		}

		c.logger.Debugf("session[%v] advanced serving from[%v] to[%v]", c.session.Id, number, next)
		return nil
	}
	return storeError(lastErr)
}

func (c *Coordinator) readServing(ctx context.Context) (int64, error) {
	ctx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()
	return c.store.InitServing(ctx)
}

func (c *Coordinator) deleteTicket(ctx context.Context, number int64) error {
	ctx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()
	return c.store.DeleteTicket(ctx, number)
}

// activeNumber is the held number unless the local view shows it has
// already been passed, in which case the stale ticket is dropped.
func (c *Coordinator) activeNumber() int64 {
	number := c.session.Number()
	if number == 0 || c.projector == nil {
		return number
	}

	if serving := c.projector.Snapshot().CurrentNumber; serving > 0 && model.RoleOf(number, serving) == model.NotQueued {
		c.logger.Infof("session[%v] drop passed ticket[%v] serving[%v]", c.session.Id, number, serving)
		c.setTicket(nil)
		return 0
	}
	return number
}

func (c *Coordinator) setTicket(ticket *model.Ticket) {
	c.session.set(ticket)
	if c.projector == nil {
		return
	}
	if ticket == nil {
		c.projector.SetMine(0)
	} else {
		c.projector.SetMine(ticket.Number)
	}
}

func (c *Coordinator) acquire() bool {
	select {
	case c.inFlight <- struct{}{}:
		return true
	default:
		return false
	}
}

func (c *Coordinator) release() {
	<-c.inFlight
}
