package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestStatsSlidingWindow(t *testing.T) {
	s := NewStats(3*time.Minute, 2, zap.NewNop().Sugar())
	assert.Equal(t, 3*time.Minute, s.Snapshot().AvgWaitDuration)
	assert.Equal(t, time.Duration(0), s.Snapshot().AvgServiceDuration)

	s.Record(2*time.Minute, 10*time.Second)
	assert.Equal(t, 2*time.Minute, s.Snapshot().AvgWaitDuration)
	assert.Equal(t, 10*time.Second, s.Snapshot().AvgServiceDuration)

	s.Record(4*time.Minute, 30*time.Second)
	assert.Equal(t, 3*time.Minute, s.Snapshot().AvgWaitDuration)
	assert.Equal(t, 20*time.Second, s.Snapshot().AvgServiceDuration)

	// Oldest sample leaves the window.
	s.Record(6*time.Minute, 50*time.Second)
	snapshot := s.Snapshot()
	assert.Equal(t, 5*time.Minute, snapshot.AvgWaitDuration)
	assert.Equal(t, 40*time.Second, snapshot.AvgServiceDuration)
	assert.EqualValues(t, 3, snapshot.ServedCount)
}

func TestStatsNegativeDurations(t *testing.T) {
	s := NewStats(time.Minute, 5, zap.NewNop().Sugar())
	s.Record(-time.Second, -time.Second)
	assert.Equal(t, time.Duration(0), s.Snapshot().AvgWaitDuration)
	assert.Equal(t, time.Duration(0), s.Snapshot().AvgServiceDuration)
}
