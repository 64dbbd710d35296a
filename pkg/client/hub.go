package client

import (
	"context"
	"net/http"
	"sync"
	"time"

	"game-soul-technology/joker/appliance-queue-server/pkg/config"
	"game-soul-technology/joker/appliance-queue-server/pkg/infra"
	"game-soul-technology/joker/appliance-queue-server/pkg/msg"
	"game-soul-technology/joker/appliance-queue-server/pkg/notify"
	"game-soul-technology/joker/appliance-queue-server/pkg/queue"

	"github.com/emirpasic/gods/maps/hashmap"
	"github.com/emirpasic/gods/maps/linkedhashmap"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type HubOptions struct {
	// A detached session is stale after this period. Its ticket is
	// cancelled and the session is dropped.
	StalePeriod time.Duration

	// How often stale sessions are looked for.
	SweepInterval time.Duration

	// How often queue stats are broadcast to every client.
	StatsInterval time.Duration

	PingInterval time.Duration
}

// session outlives its websocket connection so that a client coming
// back within the stale period keeps its ticket.
type session struct {
	participant *queue.Participant

	// Attached client, nil while detached.
	client *Client

	// The most recent time the session got detached.
	inactiveTime time.Time
}

func (s *session) isStale(now time.Time, stalePeriod time.Duration) bool {
	return s.client == nil && now.Sub(s.inactiveTime) >= stalePeriod
}

type Hub struct {
	mu sync.Mutex

	// Registered clients. Key value: client.id -> client.
	clients *hashmap.Map

	// Sessions in creation order. Key value: session id -> session.
	sessions *linkedhashmap.Map

	service    *queue.Service
	notifier   notify.Notifier
	wsUpgrader *websocket.Upgrader
	options    HubOptions

	loggerFactory *infra.LoggerFactory
	logger        *zap.SugaredLogger
}

func ProvideHub(service *queue.Service, notifier notify.Notifier, config *config.Config, loggerFactory *infra.LoggerFactory) (*Hub, func()) {
	sweepInterval := 10 * time.Second
	if config.SessionStalePeriod() < sweepInterval {
		sweepInterval = config.SessionStalePeriod()
	}

	hub := NewHub(service, notifier, HubOptions{
		StalePeriod:   config.SessionStalePeriod(),
		SweepInterval: sweepInterval,
		StatsInterval: config.NotifyStatsInterval(),
		PingInterval:  config.PingInterval(),
	}, loggerFactory)
	return hub, hub.Close
}

func NewHub(service *queue.Service, notifier notify.Notifier, options HubOptions, loggerFactory *infra.LoggerFactory) *Hub {
	return &Hub{
		clients:  hashmap.New(),
		sessions: linkedhashmap.New(),

		service:  service,
		notifier: notifier,
		wsUpgrader: &websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		options: options,

		loggerFactory: loggerFactory,
		logger:        loggerFactory.Create("Hub").Sugar(),
	}
}

// Run sweeps stale sessions and broadcasts stats until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	sweepTicker := time.NewTicker(h.options.SweepInterval)
	defer sweepTicker.Stop()
	statsTicker := time.NewTicker(h.options.StatsInterval)
	defer statsTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-sweepTicker.C:
			h.sweepStaleSessions(ctx)

		case <-statsTicker.C:
			h.broadcastStats()
		}
	}
}

// ServeWs upgrades the request and starts a client for it. A sessionId
// header or query parameter reattaches an existing session.
func (h *Hub) ServeWs(w http.ResponseWriter, r *http.Request) error {
	sessionId := r.Header.Get("sessionId")
	if sessionId == "" {
		sessionId = r.URL.Query().Get("sessionId")
	}

	conn, err := h.wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	client := NewClient(conn, h, h.options.PingInterval, h.loggerFactory.Create("Client").Sugar())
	go client.Run(sessionId)
	return nil
}

// Close drops every session. Held tickets stay in the store.
func (h *Hub) Close() {
	h.mu.Lock()
	var participants []*queue.Participant
	for _, value := range h.sessions.Values() {
		s := value.(*session)
		participants = append(participants, s.participant)
		if s.client != nil {
			s.client.TryClose()
		}
	}
	h.sessions.Clear()
	h.clients.Clear()
	h.mu.Unlock()

	for _, participant := range participants {
		participant.Close()
	}
	h.logger.Infof("hub closed sessions[%v]", len(participants))
}

// attach binds c to session sessionId, or to a new session when there is
// no such session. A client already attached to the session is closed.
func (h *Hub) attach(ctx context.Context, c *Client, sessionId string) (*queue.Participant, error) {
	if sessionId != "" {
		h.mu.Lock()
		value, ok := h.sessions.Get(sessionId)
		if ok {
			s := value.(*session)
			previous := s.client
			s.client = c
			s.inactiveTime = time.Time{}
			h.clients.Put(c.id, c)
			h.mu.Unlock()

			if previous != nil {
				h.logger.Infof("session[%v] taken over from client[%v]", sessionId, previous.id)
				h.removeClient(previous)
			}
			h.logger.Infof("client[%v] reattached session[%v]", c.id, sessionId)
			return s.participant, nil
		}
		h.mu.Unlock()
		h.logger.Infof("client[%v] unknown session[%v], opening a new one", c.id, sessionId)
	}

	participant, err := h.service.Open(ctx, queue.NewClientSession(uuid.NewString()))
	if err != nil {
		return nil, err
	}

	h.mu.Lock()
	h.sessions.Put(participant.Session.Id, &session{
		participant: participant,
		client:      c,
	})
	h.clients.Put(c.id, c)
	h.mu.Unlock()

	h.logger.Infof("client[%v] attached new session[%v]", c.id, participant.Session.Id)
	return participant, nil
}

// detach unbinds c from its session and starts the stale countdown.
func (h *Hub) detach(c *Client, sessionId string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients.Remove(c.id)
	value, ok := h.sessions.Get(sessionId)
	if !ok {
		return
	}
	s := value.(*session)
	if s.client != c {
		return
	}
	s.client = nil
	s.inactiveTime = time.Now()
	h.logger.Debugf("client[%v] detached session[%v]", c.id, sessionId)
}

func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	if value, ok := h.clients.Get(c.id); ok && value.(*Client) == c {
		h.clients.Remove(c.id)
	}
	h.mu.Unlock()
	c.TryClose()
}

// sweepStaleSessions cancels the tickets of stale sessions. A session
// whose cancel fails is put back and retried on the next sweep.
func (h *Hub) sweepStaleSessions(ctx context.Context) {
	now := time.Now()

	h.mu.Lock()
	var stale []*session
	it := h.sessions.Iterator()
	for it.Begin(); it.Next(); {
		s := it.Value().(*session)
		if s.isStale(now, h.options.StalePeriod) {
			stale = append(stale, s)
		}
	}
	for _, s := range stale {
		h.sessions.Remove(s.participant.Session.Id)
	}
	h.mu.Unlock()

	if len(stale) == 0 {
		return
	}

	removedCnt := 0
	for _, s := range stale {
		sessionId := s.participant.Session.Id
		if s.participant.Session.Number() != 0 {
			number, err := s.participant.Cancel(ctx)
			if err != nil {
				h.logger.Warnf("cannot cancel stale session[%v] %v", sessionId, err)
				h.putBack(s)
				continue
			}
			h.logger.Infof("cancelled ticket[%v] of stale session[%v]", number, sessionId)
		}

		s.participant.Close()
		removedCnt++
	}
	h.logger.Infof("removing stale sessions done, removed sessionCnt[%v]", removedCnt)
}

func (h *Hub) putBack(s *session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.sessions.Get(s.participant.Session.Id); !ok {
		h.sessions.Put(s.participant.Session.Id, s)
	}
}

func (h *Hub) broadcastStats() {
	stats := h.service.Stats().Snapshot()
	wsMessage, err := msg.NewWsMessage(msg.QueueStatsCode, &msg.QueueStatsServerEvent{
		AvgWaitMsec:    stats.AvgWaitDuration.Milliseconds(),
		AvgServiceMsec: stats.AvgServiceDuration.Milliseconds(),
		ServedCount:    stats.ServedCount,
	})
	if err != nil {
		h.logger.Errorf("cannot marshal QueueStatsServerEvent %v", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.logger.Debugf("broadcast stats[%+v] clients[%v]", stats, h.clients.Size())
	for _, value := range h.clients.Values() {
		value.(*Client).trySend(wsMessage)
	}
}
