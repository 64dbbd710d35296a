package queue

import (
	"context"
	"sync"
	"time"

	"game-soul-technology/joker/appliance-queue-server/pkg/model"
	"game-soul-technology/joker/appliance-queue-server/pkg/store"
	"game-soul-technology/joker/appliance-queue-server/pkg/window"

	"github.com/emirpasic/gods/maps/treemap"
	"github.com/emirpasic/gods/utils"
	"go.uber.org/zap"
)

type TicketView struct {
	Number int64  `json:"number"`
	Name   string `json:"name"`
}

// View is the read-only state handed to the presentation layer.
type View struct {
	CurrentNumber  int64        `json:"currentNumber"`
	WaitingTickets []TicketView `json:"waitingTickets"`
	QueueLength    int          `json:"queueLength"`
	IsServiceOpen  bool         `json:"isServiceOpen"`
	MyRole         model.Role   `json:"myRole"`
	MyNumber       int64        `json:"myNumber,omitempty"`

	// Tickets ahead of mine. Zero when being served or not queued.
	Position int `json:"position"`
}

// Projector mirrors the shared queue for one client. Each store update
// replaces the matching part of the mirror; the client's role is always
// recomputed from the held number and the latest counter.
type Projector struct {
	store store.Store
	gate  Gate
	now   func() time.Time

	mu sync.RWMutex

	// Key value: ticket.Number -> ticket, ordered by number.
	tickets *treemap.Map
	serving int64
	isOpen  bool
	mine    int64

	// When the counter reached mine. Zero unless being served.
	servedSince time.Time

	// Latest view only; an unread view is replaced by a newer one.
	views chan View

	logger *zap.SugaredLogger
}

func NewProjector(s store.Store, gate Gate, now func() time.Time, logger *zap.SugaredLogger) *Projector {
	return &Projector{
		store:   s,
		gate:    gate,
		now:     now,
		tickets: treemap.NewWith(utils.Int64Comparator),
		views:   make(chan View, 1),
		logger:  logger,
	}
}

// Views delivers a fresh View after every change.
func (p *Projector) Views() <-chan View {
	return p.views
}

// Run follows the store until ctx is done or a subscription ends. The
// gate is re-evaluated on every minute boundary.
func (p *Projector) Run(ctx context.Context) error {
	ticketUpdates, err := p.store.SubscribeTickets(ctx)
	if err != nil {
		return err
	}
	servingUpdates, err := p.store.SubscribeServing(ctx)
	if err != nil {
		return err
	}

	p.refreshGate()

	timer := time.NewTimer(p.untilBoundary())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case tickets, ok := <-ticketUpdates:
			if !ok {
				return nil
			}
			p.replaceTickets(tickets)

		case serving, ok := <-servingUpdates:
			if !ok {
				return nil
			}
			p.setServing(serving)

		case <-timer.C:
			p.refreshGate()
			timer.Reset(p.untilBoundary())
		}
	}
}

// SetMine records the ticket number this client holds, 0 for none.
func (p *Projector) SetMine(number int64) {
	p.mu.Lock()
	p.mine = number
	p.markServedLocked()
	p.mu.Unlock()
	p.publish()
}

// ServedSince returns when the counter reached the held ticket, zero if
// it has not.
func (p *Projector) ServedSince() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.servedSince
}

// Occupied reports whether the mirror holds a ticket with number.
func (p *Projector) Occupied(number int64) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, found := p.tickets.Get(number)
	return found
}

func (p *Projector) Snapshot() View {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.viewLocked()
}

func (p *Projector) replaceTickets(tickets []*model.Ticket) {
	p.mu.Lock()
	p.tickets.Clear()
	for _, ticket := range tickets {
		p.tickets.Put(ticket.Number, ticket)
	}
	p.mu.Unlock()

	p.logger.Debugf("tickets replaced count[%v]", len(tickets))
	p.publish()
}

func (p *Projector) setServing(serving int64) {
	p.mu.Lock()
	p.serving = serving
	p.markServedLocked()
	p.mu.Unlock()

	p.logger.Debugf("serving[%v]", serving)
	p.publish()
}

func (p *Projector) refreshGate() {
	isOpen := p.gate.IsOpen(p.now())

	p.mu.Lock()
	changed := p.isOpen != isOpen
	p.isOpen = isOpen
	p.mu.Unlock()

	if changed {
		p.logger.Infof("service open[%v]", isOpen)
		p.publish()
	}
}

func (p *Projector) untilBoundary() time.Duration {
	now := p.now()
	return window.NextBoundary(now).Sub(now)
}

// Holds the write lock while replacing so a newer view is never
// overwritten by an older one from a concurrent publish.
func (p *Projector) publish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	select {
	case <-p.views:
	default:
	}
	p.views <- p.viewLocked()
}

// Must hold p.mu.
func (p *Projector) markServedLocked() {
	if model.RoleOf(p.mine, p.serving) != model.BeingServed {
		p.servedSince = time.Time{}
		return
	}
	if p.servedSince.IsZero() {
		p.servedSince = p.now()
	}
}

// Must hold p.mu.
func (p *Projector) viewLocked() View {
	view := View{
		CurrentNumber:  p.serving,
		WaitingTickets: make([]TicketView, 0, p.tickets.Size()),
		IsServiceOpen:  p.isOpen,
		MyRole:         model.RoleOf(p.mine, p.serving),
	}
	if view.MyRole != model.NotQueued {
		view.MyNumber = p.mine
	}

	it := p.tickets.Iterator()
	for it.Next() {
		ticket := it.Value().(*model.Ticket)
		if ticket.Number < p.serving {
			continue
		}
		view.WaitingTickets = append(view.WaitingTickets, TicketView{Number: ticket.Number, Name: ticket.Name})
		if view.MyRole == model.Waiting && ticket.Number < p.mine {
			view.Position++
		}
	}
	view.QueueLength = len(view.WaitingTickets)
	return view
}
