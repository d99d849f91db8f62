package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// The version suffix leaves room for algorithm migration.
const (
	DomainRecord = "multicast/record/v1"
	DomainObject = "multicast/object/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// RecordID computes the content-addressed id of a chain record.
// Two records with the same entries, links and targets share an id
// regardless of map iteration order or the document format they came from.
func RecordID(r ChainRecord) (string, error) {
	canonical, err := MarshalCanonical(r.CanonicalMap())
	if err != nil {
		return "", fmt.Errorf("RecordID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainRecord, canonical), nil
}

// ObjectHash computes the content hash of a persisted receiver.
func ObjectHash(o Object) (string, error) {
	canonical, err := MarshalCanonical(o.CanonicalMap())
	if err != nil {
		return "", fmt.Errorf("ObjectHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainObject, canonical), nil
}

// MustRecordID is like RecordID but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustRecordID(r ChainRecord) string {
	id, err := RecordID(r)
	if err != nil {
		panic(err)
	}
	return id
}
