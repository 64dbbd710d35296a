package queue

import (
	"context"
	"time"

	"game-soul-technology/joker/appliance-queue-server/pkg/config"
	"game-soul-technology/joker/appliance-queue-server/pkg/infra"
	"game-soul-technology/joker/appliance-queue-server/pkg/store"

	"go.uber.org/zap"
)

type Options struct {
	AllocateMaxAttempts int
	AdvanceMaxAttempts  int
	StoreTimeout        time.Duration
	MaxNameLength       int

	// Clock of the coordinators and projectors. Defaults to time.Now.
	Now func() time.Time
}

// Service creates the per client pieces sharing one store.
type Service struct {
	store   store.Store
	gate    Gate
	stats   *Stats
	options Options

	loggerFactory *infra.LoggerFactory
	logger        *zap.SugaredLogger
}

func ProvideStats(config *config.Config, loggerFactory *infra.LoggerFactory) *Stats {
	return NewStats(config.InitAvgWait(), *config.AverageWaitWindowSize, loggerFactory.Create("Stats").Sugar())
}

func ProvideService(s store.Store, serviceConfig *config.ServiceConfig, stats *Stats, config *config.Config, loggerFactory *infra.LoggerFactory) *Service {
	return NewService(s, serviceConfig, stats, Options{
		AllocateMaxAttempts: *config.AllocateMaxAttempts,
		AdvanceMaxAttempts:  *config.AdvanceMaxAttempts,
		StoreTimeout:        config.StoreTimeout(),
		MaxNameLength:       *config.MaxNameLength,
	}, loggerFactory)
}

func NewService(s store.Store, gate Gate, stats *Stats, options Options, loggerFactory *infra.LoggerFactory) *Service {
	if options.Now == nil {
		options.Now = time.Now
	}
	if options.AdvanceMaxAttempts < 1 {
		options.AdvanceMaxAttempts = 1
	}
	return &Service{
		store:         s,
		gate:          gate,
		stats:         stats,
		options:       options,
		loggerFactory: loggerFactory,
		logger:        loggerFactory.Create("Service").Sugar(),
	}
}

func (s *Service) Stats() *Stats {
	return s.stats
}

func (s *Service) Store() store.Store {
	return s.store
}

// Participant is one connected client: its session, the coordinator
// acting for it and the projector mirroring the queue for it.
type Participant struct {
	Session *ClientSession
	*Coordinator
	Projector *Projector

	cancel context.CancelFunc
	done   chan struct{}
}

// Open starts a participant for session and its projector. The serving
// counter is created on first use.
func (s *Service) Open(ctx context.Context, session *ClientSession) (*Participant, error) {
	initCtx, cancel := withTimeout(ctx, s.options.StoreTimeout)
	serving, err := s.store.InitServing(initCtx)
	cancel()
	if err != nil {
		return nil, storeError(err)
	}

	logger := s.loggerFactory.Create("Session").Sugar()
	projector := NewProjector(s.store, s.gate, s.options.Now, logger)
	if number := session.Number(); number != 0 {
		projector.SetMine(number)
	}

	coordinator := &Coordinator{
		session:            session,
		store:              s.store,
		sequencer:          NewSequencer(s.store, s.options.AllocateMaxAttempts, s.options.StoreTimeout, logger),
		gate:               s.gate,
		projector:          projector,
		stats:              s.stats,
		maxNameLength:      s.options.MaxNameLength,
		advanceMaxAttempts: s.options.AdvanceMaxAttempts,
		timeout:            s.options.StoreTimeout,
		now:                s.options.Now,
		inFlight:           make(chan struct{}, 1),
		logger:             logger,
	}

	runCtx, stop := context.WithCancel(context.Background())
	p := &Participant{
		Session:     session,
		Coordinator: coordinator,
		Projector:   projector,
		cancel:      stop,
		done:        make(chan struct{}),
	}

	go func() {
		defer close(p.done)
		if err := projector.Run(runCtx); err != nil {
			logger.Errorf("projector stopped %v", err)
		}
	}()

	s.logger.Infof("session[%v] opened ticket[%v] serving[%v]", session.Id, session.Number(), serving)
	return p, nil
}

// Close stops the projector. The held ticket, if any, stays in the
// queue.
func (p *Participant) Close() {
	p.cancel()
	<-p.done
}
