package models

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// ComputeDegreeHash derives the content hash from a degree's canonical
// fields. The ledger core trusts the hash it is handed; this helper lets the
// API layer fill it in server-side when a caller omits it, so both parties
// can derive the same digest from the same data.
func ComputeDegreeHash(studentID, studentName, degreeName, institutionID string) string {
	canonical := strings.Join([]string{studentID, studentName, degreeName, institutionID}, "|")
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}
