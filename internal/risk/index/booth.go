package index

import (
	"sync"

	"rollguard/pkg/platform/strings"
)

// BoothIndex accumulates which document numbers appeared in which booth's
// poll-book across every ingested batch, in both directions.
type BoothIndex struct {
	mu       sync.RWMutex
	byBooth  map[string]map[string]struct{}
	byDocNum map[string]map[string]struct{}
}

func NewBoothIndex() *BoothIndex {
	return &BoothIndex{
		byBooth:  make(map[string]map[string]struct{}),
		byDocNum: make(map[string]map[string]struct{}),
	}
}

// Add records documents as seen in booth.
func (b *BoothIndex) Add(booth string, documents ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, raw := range documents {
		doc := NormalizeDocument(raw)
		if doc == "" {
			continue
		}
		addTo(b.byBooth, booth, doc)
		addTo(b.byDocNum, doc, booth)
	}
}

// Contains reports whether document was seen in booth.
func (b *BoothIndex) Contains(booth, document string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.byBooth[booth][NormalizeDocument(document)]
	return ok
}

// BoothsFor returns the sorted booths in which document was seen.
func (b *BoothIndex) BoothsFor(document string) []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return strings.SortedSet(b.byDocNum[NormalizeDocument(document)])
}

// Documents returns how many distinct documents were seen in booth.
func (b *BoothIndex) Documents(booth string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.byBooth[booth])
}

func addTo(m map[string]map[string]struct{}, key, member string) {
	set := m[key]
	if set == nil {
		set = make(map[string]struct{})
		m[key] = set
	}
	set[member] = struct{}{}
}
