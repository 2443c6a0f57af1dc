// Package substrate abstracts the ordered, history-preserving key-value store
// the ledger core writes to. Implementations serialize conflicting writers
// and expose every past version of a key in commit order; the core performs
// no locking of its own.
package substrate

import (
	"context"
	"time"

	"veryphy/internal/ledger/key"
)

// Modification is one committed version of a key.
type Modification struct {
	TxID      string
	Timestamp time.Time
	Value     []byte
	// Deleted marks a tombstone version; Value is empty.
	Deleted bool
}

// Txn is the view the core gets inside one atomic unit. Reads observe a
// consistent snapshot plus this transaction's own buffered writes; nothing is
// visible to other transactions until commit.
type Txn interface {
	// Get returns the current value, or an error wrapping sentinel.ErrNotFound.
	Get(k key.Key) ([]byte, error)
	// Put stages a write of the current value; the substrate retains prior
	// versions for History.
	Put(k key.Key, value []byte) error
	Exists(k key.Key) (bool, error)
	// Delete stages a tombstone. The key stops resolving but its history,
	// including the tombstone, remains replayable.
	Delete(k key.Key) error
	// History returns every committed version of k, oldest first. Writes
	// staged in this transaction are not included.
	History(k key.Key) ([]Modification, error)
	// ID is the transaction id versions committed by this Txn will carry.
	ID() string
}

// Store runs core transactions. Update executes fn as one atomic unit: either
// every staged write commits or none does. Implementations detect read-set
// invalidation by concurrent commits and retry fn a bounded number of times
// before giving up with sentinel.ErrConflict. View runs fn against a
// read-only snapshot and discards any staged writes.
type Store interface {
	Update(ctx context.Context, fn func(tx Txn) error) error
	View(ctx context.Context, fn func(tx Txn) error) error
}
