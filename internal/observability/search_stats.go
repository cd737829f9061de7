package observability

import (
	"sort"
	"sync"
	"time"
)

// SearchStats tracks which filter attributes searches use, and how
// often. The data feeds capacity planning and decides which attributes
// deserve a dedicated index.
type SearchStats struct {
	mu       sync.RWMutex
	attrFreq map[string]*AttributeStats
	window   time.Duration
}

// AttributeStats holds usage statistics for one filter attribute.
type AttributeStats struct {
	Attribute string
	Frequency int64
	LastSeen  time.Time
}

// NewSearchStats creates a search statistics tracker.
// window: time duration for pruning stale entries (e.g., 1 hour)
func NewSearchStats(window time.Duration) *SearchStats {
	return &SearchStats{
		attrFreq: make(map[string]*AttributeStats),
		window:   window,
	}
}

// RecordFilter records one use of a filter attribute.
// This method is O(1) and thread-safe.
func (s *SearchStats) RecordFilter(attribute string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats, exists := s.attrFreq[attribute]
	if !exists {
		stats = &AttributeStats{Attribute: attribute}
		s.attrFreq[attribute] = stats
	}
	stats.Frequency++
	stats.LastSeen = time.Now()
}

// TopAttributes returns the n most frequently filtered attributes,
// most frequent first.
func (s *SearchStats) TopAttributes(n int) []AttributeStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]AttributeStats, 0, len(s.attrFreq))
	for _, stats := range s.attrFreq {
		out = append(out, *stats)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Frequency != out[j].Frequency {
			return out[i].Frequency > out[j].Frequency
		}
		return out[i].Attribute < out[j].Attribute
	})
	if n < len(out) {
		out = out[:n]
	}
	return out
}

// Prune removes entries not seen within the window.
func (s *SearchStats) Prune() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-s.window)
	removed := 0
	for attr, stats := range s.attrFreq {
		if stats.LastSeen.Before(cutoff) {
			delete(s.attrFreq, attr)
			removed++
		}
	}
	return removed
}
