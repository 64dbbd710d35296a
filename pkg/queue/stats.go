package queue

import (
	"sync"
	"time"

	"github.com/emirpasic/gods/queues/linkedlistqueue"
	"go.uber.org/zap"
)

type StatsSnapshot struct {
	// Avg time from joining to the counter reaching the ticket.
	AvgWaitDuration time.Duration

	// Avg time from the counter reaching the ticket to confirming.
	AvgServiceDuration time.Duration

	// Tickets confirmed by clients of this process.
	ServedCount uint64
}

// Stats tracks how long tickets wait and how long the appliance is in
// use per ticket on this process.
type Stats struct {
	mu sync.Mutex

	avgWaitDuration    time.Duration
	avgServiceDuration time.Duration
	servedCount        uint64

	// Fixed size sliding windows for calculating the averages.
	waitDurationQueue    *linkedlistqueue.Queue
	serviceDurationQueue *linkedlistqueue.Queue
	windowSize           int

	logger *zap.SugaredLogger
}

func NewStats(initAvgWait time.Duration, windowSize int, logger *zap.SugaredLogger) *Stats {
	if windowSize < 1 {
		windowSize = 1
	}
	return &Stats{
		avgWaitDuration:      initAvgWait,
		waitDurationQueue:    linkedlistqueue.New(),
		serviceDurationQueue: linkedlistqueue.New(),
		windowSize:           windowSize,
		logger:               logger,
	}
}

// Record adds the durations of one served ticket. Negative values count
// as zero.
func (s *Stats) Record(waitDuration, serviceDuration time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.servedCount++
	s.avgWaitDuration = s.slide(s.waitDurationQueue, waitDuration)
	s.avgServiceDuration = s.slide(s.serviceDurationQueue, serviceDuration)
	s.logger.Infof("updated avgWaitDuration[%v] avgServiceDuration[%v] servedCount[%v]", s.avgWaitDuration, s.avgServiceDuration, s.servedCount)
}

// Must hold s.mu.
func (s *Stats) slide(window *linkedlistqueue.Queue, d time.Duration) time.Duration {
	if d < 0 {
		d = 0
	}
	if window.Size() >= s.windowSize {
		window.Dequeue()
	}
	window.Enqueue(d)

	it := window.Iterator()
	var total time.Duration
	for it.Next() {
		total += it.Value().(time.Duration)
	}
	return total / time.Duration(window.Size())
}

func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return StatsSnapshot{
		AvgWaitDuration:    s.avgWaitDuration,
		AvgServiceDuration: s.avgServiceDuration,
		ServedCount:        s.servedCount,
	}
}
