package metrics

import "sync/atomic"

// Stats holds the engine's rolling check counters. Workers update it with
// atomic adds; the collector samples it on every tick.
type Stats struct {
	totalChecks      atomic.Int64
	successfulChecks atomic.Int64
	failedChecks     atomic.Int64
}

// NewStats creates zeroed counters
func NewStats() *Stats {
	return &Stats{}
}

// RecordCheck counts one completed check
func (s *Stats) RecordCheck(success bool) {
	s.totalChecks.Add(1)
	if success {
		s.successfulChecks.Add(1)
	} else {
		s.failedChecks.Add(1)
	}
}

// Totals returns the current counter values
func (s *Stats) Totals() (total, successful, failed int64) {
	return s.totalChecks.Load(), s.successfulChecks.Load(), s.failedChecks.Load()
}
