// Package models holds the record types persisted on the attestation ledger.
// Records are JSON-encoded under composite keys; every field is immutable
// once written except the status fields noted below.
package models

import "time"

// Entity kinds used for composite key derivation.
const (
	KindInstitution  = "University"
	KindDegree       = "Degree"
	KindVerification = "Verification"
	KindRevocation   = "Revocation"
	KindBlacklisting = "Blacklisting"
	KindHash         = "Hash"
	KindEmail        = "UniversityEmail"
)

// StatsKey is the well-known key of the aggregate statistics register.
const StatsKey = "system-info"

type InstitutionStatus string

const (
	InstitutionPending     InstitutionStatus = "PENDING"
	InstitutionActive      InstitutionStatus = "ACTIVE"
	InstitutionBlacklisted InstitutionStatus = "BLACKLISTED"
)

type DegreeStatus string

const (
	DegreeRegistered DegreeStatus = "REGISTERED"
	DegreeVerified   DegreeStatus = "VERIFIED"
	DegreeRevoked    DegreeStatus = "REVOKED"
)

type VerificationResultStatus string

const (
	VerificationPending   VerificationResultStatus = "PENDING"
	VerificationAuthentic VerificationResultStatus = "AUTHENTIC"
	VerificationFailed    VerificationResultStatus = "FAILED"
)

// Institution is an issuing university. Status is the only mutable field;
// every change appends a new ledger version.
type Institution struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Email       string            `json:"email"`
	StakeAmount float64           `json:"stakeAmount"`
	Status      InstitutionStatus `json:"status"`
	JoinedAt    time.Time         `json:"joinedAt"`
}

// Degree is an attested degree. Hash is the caller-computed content digest;
// its binding to ID via the hash index is permanent. Status is the only
// mutable field.
type Degree struct {
	ID            string       `json:"id"`
	StudentID     string       `json:"studentId"`
	StudentName   string       `json:"studentName"`
	DegreeName    string       `json:"degreeName"`
	InstitutionID string       `json:"universityId"`
	IssueDate     time.Time    `json:"issueDate"`
	Hash          string       `json:"degreeHash"`
	Status        DegreeStatus `json:"status"`
}

// VerificationRecord persists one verification attempt. DegreeID is empty
// when the attempt targeted a hash the ledger does not know.
type VerificationRecord struct {
	ID            string                   `json:"id"`
	DegreeID      string                   `json:"degreeId,omitempty"`
	EmployerID    string                   `json:"employerId"`
	RequestedAt   time.Time                `json:"requestDate"`
	Result        VerificationResultStatus `json:"result"`
	PaymentAmount float64                  `json:"paymentAmount"`
	PaymentStatus string                   `json:"paymentStatus"`
}

// RevocationEvent is the append-only audit record written alongside a degree
// revocation. Never updated.
type RevocationEvent struct {
	ID        string    `json:"id"`
	DegreeID  string    `json:"degreeId"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

// BlacklistingEvent is the append-only audit record written alongside an
// institution blacklisting. Never updated.
type BlacklistingEvent struct {
	ID            string    `json:"id"`
	InstitutionID string    `json:"universityId"`
	Reason        string    `json:"reason"`
	Timestamp     time.Time `json:"timestamp"`
}

// AggregateStats is the singleton register tracking system-wide counts. The
// authentic/failed counts are the source of truth; SuccessRate is derived
// from them exactly on every write, never incrementally adjusted.
type AggregateStats struct {
	ID                     string    `json:"id"`
	RegisteredInstitutions int64     `json:"registeredUniversities"`
	TotalDegrees           int64     `json:"totalDegrees"`
	VerificationCount      int64     `json:"verificationCount"`
	AuthenticCount         int64     `json:"authenticCount"`
	FailedCount            int64     `json:"failedCount"`
	SuccessRate            float64   `json:"successRate"`
	LastUpdated            time.Time `json:"lastUpdated"`
}

// Rate computes the exact success rate from the integer counts. With no
// recorded outcomes the rate is 100: nothing has failed yet.
func (s AggregateStats) Rate() float64 {
	total := s.AuthenticCount + s.FailedCount
	if total == 0 {
		return 100.0
	}
	return float64(s.AuthenticCount) / float64(total) * 100.0
}

// VerificationResult is the read-only answer to a verify-by-hash lookup.
type VerificationResult struct {
	IsValid       bool         `json:"isValid"`
	DegreeID      string       `json:"degreeId,omitempty"`
	InstitutionID string       `json:"universityId,omitempty"`
	IssueDate     *time.Time   `json:"issueDate,omitempty"`
	Status        DegreeStatus `json:"status,omitempty"`
	Message       string       `json:"message"`
}

// History actions.
const (
	ActionUpdate = "UPDATE"
	ActionDelete = "DELETE"
)

// StatusDeleted marks tombstoned history versions.
const StatusDeleted = "DELETED"

// HistoryEntry is one version in a degree's reconstructed timeline.
type HistoryEntry struct {
	TxID      string    `json:"txId"`
	Timestamp time.Time `json:"timestamp"`
	DegreeID  string    `json:"degreeId"`
	Status    string    `json:"status"`
	Action    string    `json:"action"`
}
