package sentinel

import "errors"

// Sentinel errors for infrastructure facts. The substrate and stores return
// these (optionally wrapped) so services can translate them into domain errors.
//
// These represent factual states about resources, not business-rule failures:
// - ErrNotFound: key or record does not exist in the store
// - ErrConflict: a concurrent commit invalidated this transaction's reads
// - ErrClosed: the store has been shut down
// - ErrUnavailable: backing service temporarily unreachable
//
// For business-rule violations (duplicate ids, dangling references), use
// pkg/domain-errors.
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrClosed      = errors.New("closed")
	ErrUnavailable = errors.New("unavailable")
)
