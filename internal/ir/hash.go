package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for hashed identities.
// Version suffix enables future algorithm migration.
const (
	DomainElement = "panopticon/element/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// identityFields are consulted in order when an array element is an object.
var identityFields = []string{"id", "_id"}

// ElementHash returns the identity used to match array elements across two
// snapshots of the same document.
//
// Objects carrying a non-empty scalar "id" (or "_id") field are identified by
// it, so an edited element keeps its identity. Everything else falls back to a
// hash of its canonical JSON, i.e. full-value equality.
func ElementHash(v IRValue) string {
	if obj, ok := v.(IRObject); ok {
		for _, field := range identityFields {
			if id, ok := scalarIdentity(obj[field]); ok {
				return field + ":" + id
			}
		}
	}

	data, err := MarshalCanonical(v)
	if err != nil {
		// Only unknown IRValue implementations fail; they cannot occur
		// through the sealed interface.
		return fmt.Sprintf("unhashable:%T", v)
	}
	return hashWithDomain(DomainElement, data)
}

// scalarIdentity extracts an id field value. Empty strings, zero, false and
// null do not count as an identity; floats always do.
func scalarIdentity(v IRValue) (string, bool) {
	switch id := v.(type) {
	case IRString:
		if id == "" {
			return "", false
		}
		return "s" + string(id), true
	case IRInt:
		if id == 0 {
			return "", false
		}
		return fmt.Sprintf("i%d", id), true
	case IRFloat:
		data, err := marshalCanonicalFloat(float64(id))
		if err != nil {
			return "", false
		}
		return "f" + string(data), true
	case IRBool:
		if !id {
			return "", false
		}
		return "btrue", true
	default:
		return "", false
	}
}
