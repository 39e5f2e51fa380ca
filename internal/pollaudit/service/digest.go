package service

import (
	"encoding/binary"
	"encoding/hex"

	"github.com/zeebo/blake3"

	"rollguard/internal/pollaudit/models"
)

// batchDomainKey separates batch digests from any other BLAKE3 use.
var batchDomainKey = [32]byte{
	'r', 'o', 'l', 'l', 'g', 'u', 'a', 'r', 'd', '.', 'f', 'o', 'r', 'm', '1', '7',
	'a', '.', 'b', 'a', 't', 'c', 'h', 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// BatchDigest is the keyed BLAKE3 digest of a batch's canonical encoding:
// booth id then each record's fields in upload order, every field
// length-prefixed so no two distinct batches encode the same.
func BatchDigest(boothID string, records []*models.Form17ARecord) string {
	hasher, err := blake3.NewKeyed(batchDomainKey[:])
	if err != nil {
		panic("pollaudit: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	var lenBuf [4]byte
	write := func(field string) {
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(field)))
		_, _ = hasher.Write(lenBuf[:])
		_, _ = hasher.Write([]byte(field))
	}
	write(boothID)
	for _, r := range records {
		write(r.DocumentNumber)
		write(r.SerialNumber)
		write(r.VoterName)
		write(r.ThumbImpressionHash)
		write(r.SignatureHash)
	}
	return hex.EncodeToString(hasher.Sum(nil))
}
