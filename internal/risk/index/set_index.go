// Package index holds the lookup structures the risk scorers consult: identity
// documents and addresses to voter records, per-origin submission windows, and
// booth to poll-book document numbers. Indexes make no decisions.
package index

import (
	"sync"

	id "rollguard/pkg/domain"
)

// recordSet maps a normalized key to the set of voter records holding it.
type recordSet struct {
	mu        sync.RWMutex
	entries   map[string]map[id.VoterRecordID]struct{}
	normalize func(string) string
}

func newRecordSet(normalize func(string) string) *recordSet {
	return &recordSet{
		entries:   make(map[string]map[id.VoterRecordID]struct{}),
		normalize: normalize,
	}
}

func (s *recordSet) add(key string, record id.VoterRecordID) {
	k := s.normalize(key)
	if k == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	holders := s.entries[k]
	if holders == nil {
		holders = make(map[id.VoterRecordID]struct{})
		s.entries[k] = holders
	}
	holders[record] = struct{}{}
}

func (s *recordSet) remove(key string, record id.VoterRecordID) {
	k := s.normalize(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	holders := s.entries[k]
	if holders == nil {
		return
	}
	delete(holders, record)
	if len(holders) == 0 {
		delete(s.entries, k)
	}
}

// countExcluding counts holders of key other than exclude. A nil exclude
// counts every holder.
func (s *recordSet) countExcluding(key string, exclude id.VoterRecordID) int {
	k := s.normalize(key)
	if k == "" {
		return 0
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	holders := s.entries[k]
	n := len(holders)
	if _, ok := holders[exclude]; ok && !exclude.IsNil() {
		n--
	}
	return n
}

func (s *recordSet) holders(key string) []id.VoterRecordID {
	k := s.normalize(key)
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]id.VoterRecordID, 0, len(s.entries[k]))
	for rec := range s.entries[k] {
		out = append(out, rec)
	}
	return out
}
