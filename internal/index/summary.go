// Package index implements the project-scoped event index: an
// append-only event log with derived per-(project, event-name)
// summaries, plus the retention daemon that archives aged records to
// object storage.
package index

import (
	"sort"
	"sync"

	"github.com/spaolacci/murmur3"

	"github.com/siftlog/sift/pkg/types"
)

// numStripes is the number of summary mutation locks. Striping keeps
// summary updates for distinct keys independent; a global lock would
// bottleneck ingestion.
const numStripes = 64

// summaryEntry is the mutable aggregate for one (project, name) key.
// Mutations happen only under the key's stripe lock.
type summaryEntry struct {
	projectID string
	name      string
	count     int64
	lastSeen  int64
}

// SummaryIndex maintains the derived (count, last-seen) aggregates.
// Map structure changes take the table lock; value mutation takes only
// the murmur3-selected stripe for the key, so updates for different
// keys proceed in parallel.
type SummaryIndex struct {
	mu      sync.RWMutex
	entries map[string]*summaryEntry
	stripes [numStripes]sync.Mutex
}

// NewSummaryIndex creates an empty summary index.
func NewSummaryIndex() *SummaryIndex {
	return &SummaryIndex{
		entries: make(map[string]*summaryEntry),
	}
}

func summaryKey(projectID, name string) string {
	return projectID + "\x00" + name
}

func stripeFor(projectID, name string) uint32 {
	h := murmur3.New32()
	h.Write([]byte(projectID))
	h.Write([]byte{0})
	h.Write([]byte(name))
	return h.Sum32() % numStripes
}

// entryFor returns the entry for the key, creating it if needed.
func (s *SummaryIndex) entryFor(projectID, name string) *summaryEntry {
	key := summaryKey(projectID, name)

	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if ok {
		return e
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok = s.entries[key]; ok {
		return e
	}
	e = &summaryEntry{projectID: projectID, name: name}
	s.entries[key] = e
	return e
}

// Record applies one ingested record to the key's aggregate:
// count increments by one and lastSeen becomes the max of itself and
// ts. Linearizable per key via the stripe lock.
func (s *SummaryIndex) Record(projectID, name string, ts int64) {
	e := s.entryFor(projectID, name)

	stripe := &s.stripes[stripeFor(projectID, name)]
	stripe.Lock()
	e.count++
	if ts > e.lastSeen {
		e.lastSeen = ts
	}
	stripe.Unlock()
}

// Replace overwrites the aggregate for a key, removing it when count
// is zero. Used by startup recovery and by the retention daemon after
// archiving records out of the live log.
func (s *SummaryIndex) Replace(projectID, name string, count, lastSeen int64) {
	key := summaryKey(projectID, name)

	if count <= 0 {
		s.mu.Lock()
		delete(s.entries, key)
		s.mu.Unlock()
		return
	}

	e := s.entryFor(projectID, name)
	stripe := &s.stripes[stripeFor(projectID, name)]
	stripe.Lock()
	e.count = count
	e.lastSeen = lastSeen
	stripe.Unlock()
}

// Get returns the aggregate for one key, or false when absent.
func (s *SummaryIndex) Get(projectID, name string) (types.Summary, bool) {
	s.mu.RLock()
	e, ok := s.entries[summaryKey(projectID, name)]
	s.mu.RUnlock()
	if !ok {
		return types.Summary{}, false
	}

	stripe := &s.stripes[stripeFor(projectID, name)]
	stripe.Lock()
	out := types.Summary{Name: e.name, Count: e.count, LastSeen: e.lastSeen}
	stripe.Unlock()
	return out, true
}

// Snapshot returns the summaries for a project, sorted by last-seen
// descending with name as the tiebreak. The snapshot reflects all
// ingests that completed before the call started.
func (s *SummaryIndex) Snapshot(projectID string) []types.Summary {
	s.mu.RLock()
	matched := make([]*summaryEntry, 0, 16)
	for _, e := range s.entries {
		if e.projectID == projectID {
			matched = append(matched, e)
		}
	}
	s.mu.RUnlock()

	out := make([]types.Summary, 0, len(matched))
	for _, e := range matched {
		stripe := &s.stripes[stripeFor(e.projectID, e.name)]
		stripe.Lock()
		out = append(out, types.Summary{Name: e.name, Count: e.count, LastSeen: e.lastSeen})
		stripe.Unlock()
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].LastSeen != out[j].LastSeen {
			return out[i].LastSeen > out[j].LastSeen
		}
		return out[i].Name < out[j].Name
	})
	return out
}
