// Package stats tracks run-scoped transfer counters for user-facing
// summaries.
package stats

import (
	"fmt"
	"sync"
)

// Session accumulates transfer totals for one harvest run. The pipeline is
// strictly sequential today; counters sit behind a mutex so a concurrent
// engine would stay correct without touching callers.
type Session struct {
	mu        sync.Mutex
	imageSets int
	bytes     int64
}

// NewSession returns a zeroed session.
func NewSession() *Session {
	return &Session{}
}

// Reset zeroes both counters at the start of a run.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.imageSets = 0
	s.bytes = 0
}

// RecordWriteGroup registers one record whose processing newly wrote at
// least one asset, adding that record's byte total to the cumulative
// counter.
func (s *Session) RecordWriteGroup(bytesWritten int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.imageSets++
	s.bytes += bytesWritten
}

// Snapshot returns the current group count and cumulative bytes.
func (s *Session) Snapshot() (imageSets int, bytes int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.imageSets, s.bytes
}

// FormatBytes renders n in B, KiB, MiB, GiB or TiB, with two decimals for
// anything at or above one KiB.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit && exp < 3; m /= unit {
		div *= unit
		exp++
	}
	units := []string{"KiB", "MiB", "GiB", "TiB"}
	return fmt.Sprintf("%.2f %s", float64(n)/float64(div), units[exp])
}
