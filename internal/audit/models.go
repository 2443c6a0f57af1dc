package audit

import "time"

// Actions emitted by the ledger service.
const (
	ActionRegisterInstitution  = "register_institution"
	ActionRegisterDegree       = "register_degree"
	ActionRecordVerification   = "record_verification"
	ActionRevokeDegree         = "revoke_degree"
	ActionBlacklistInstitution = "blacklist_institution"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Actor     string    `json:"actor"`
	Action    string    `json:"action"`
	EntityID  string    `json:"entityId"`
	Detail    string    `json:"detail,omitempty"`
}
