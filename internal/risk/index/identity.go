package index

import (
	"strings"

	id "rollguard/pkg/domain"
)

// IdentityIndex maps identity-document numbers to the active records holding them.
// More than one holder for a document is the primary duplicate signal.
type IdentityIndex struct {
	set *recordSet
}

// NewIdentityIndex creates an empty identity index.
func NewIdentityIndex() *IdentityIndex {
	return &IdentityIndex{set: newRecordSet(NormalizeDocument)}
}

// NormalizeDocument trims and uppercases a document number.
func NormalizeDocument(doc string) string {
	return strings.ToUpper(strings.TrimSpace(doc))
}

func (i *IdentityIndex) Add(document string, record id.VoterRecordID) {
	i.set.add(document, record)
}

func (i *IdentityIndex) Remove(document string, record id.VoterRecordID) {
	i.set.remove(document, record)
}

// CountOthers returns how many records other than self hold document.
func (i *IdentityIndex) CountOthers(document string, self id.VoterRecordID) int {
	return i.set.countExcluding(document, self)
}

// Holders lists the records holding document, in no particular order.
func (i *IdentityIndex) Holders(document string) []id.VoterRecordID {
	return i.set.holders(document)
}
