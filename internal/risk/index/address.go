package index

import (
	id "rollguard/pkg/domain"
	"rollguard/pkg/platform/strings"
)

// AddressIndex maps normalized residential addresses to the records registered there.
type AddressIndex struct {
	set *recordSet
}

func NewAddressIndex() *AddressIndex {
	return &AddressIndex{set: newRecordSet(strings.NormalizeKey)}
}

func (a *AddressIndex) Add(address string, record id.VoterRecordID) {
	a.set.add(address, record)
}

func (a *AddressIndex) Remove(address string, record id.VoterRecordID) {
	a.set.remove(address, record)
}

// Density returns the number of records at address that are not self, plus
// one for the applicant being scored.
func (a *AddressIndex) Density(address string, self id.VoterRecordID) int {
	return a.set.countExcluding(address, self) + 1
}
