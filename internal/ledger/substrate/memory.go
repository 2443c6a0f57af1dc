package substrate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"veryphy/internal/ledger/key"
	"veryphy/pkg/platform/sentinel"
)

// maxCommitRetries bounds optimistic-concurrency retries before Update gives
// up with sentinel.ErrConflict.
const maxCommitRetries = 10

// Memory is the in-process substrate: a per-key version log with buffered
// writes and commit-time read-set validation. It favors clarity over
// performance and is the default backend for tests and single-node runs.
type Memory struct {
	mu       sync.RWMutex
	versions map[key.Key][]Modification
	now      func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		versions: make(map[key.Key][]Modification),
		now:      time.Now,
	}
}

type pendingWrite struct {
	value   []byte
	deleted bool
}

type memTxn struct {
	store    *Memory
	txID     string
	readOnly bool

	// readSet records the version count observed for every key read from
	// committed state; commit fails if any count moved.
	readSet map[key.Key]int

	pending map[key.Key]pendingWrite
	order   []key.Key
}

func (m *Memory) newTxn(readOnly bool) *memTxn {
	return &memTxn{
		store:    m,
		txID:     uuid.NewString(),
		readOnly: readOnly,
		readSet:  make(map[key.Key]int),
		pending:  make(map[key.Key]pendingWrite),
	}
}

// Update runs fn as one atomic unit, retrying on commit conflicts.
func (m *Memory) Update(ctx context.Context, fn func(tx Txn) error) error {
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		tx := m.newTxn(false)
		if err := fn(tx); err != nil {
			return err
		}
		err := m.commit(tx)
		if err == nil {
			return nil
		}
		if attempt+1 >= maxCommitRetries {
			return fmt.Errorf("commit after %d attempts: %w", attempt+1, err)
		}
		// Brief linear backoff; contention here is the stats register.
		time.Sleep(time.Duration(attempt+1) * time.Millisecond)
	}
}

// View runs fn read-only; staged writes are rejected.
func (m *Memory) View(ctx context.Context, fn func(tx Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(m.newTxn(true))
}

func (m *Memory) commit(tx *memTxn) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for k, observed := range tx.readSet {
		if len(m.versions[k]) != observed {
			return sentinel.ErrConflict
		}
	}
	ts := m.now()
	for _, k := range tx.order {
		w := tx.pending[k]
		m.versions[k] = append(m.versions[k], Modification{
			TxID:      tx.txID,
			Timestamp: ts,
			Value:     w.value,
			Deleted:   w.deleted,
		})
	}
	return nil
}

func (t *memTxn) ID() string { return t.txID }

func (t *memTxn) Get(k key.Key) ([]byte, error) {
	if w, ok := t.pending[k]; ok {
		if w.deleted {
			return nil, fmt.Errorf("get %q: %w", k, sentinel.ErrNotFound)
		}
		return append([]byte(nil), w.value...), nil
	}
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()

	log := t.store.versions[k]
	t.readSet[k] = len(log)
	if len(log) == 0 || log[len(log)-1].Deleted {
		return nil, fmt.Errorf("get %q: %w", k, sentinel.ErrNotFound)
	}
	head := log[len(log)-1]
	return append([]byte(nil), head.Value...), nil
}

func (t *memTxn) Exists(k key.Key) (bool, error) {
	if w, ok := t.pending[k]; ok {
		return !w.deleted, nil
	}
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()

	log := t.store.versions[k]
	t.readSet[k] = len(log)
	return len(log) > 0 && !log[len(log)-1].Deleted, nil
}

func (t *memTxn) Put(k key.Key, value []byte) error {
	if t.readOnly {
		return fmt.Errorf("put %q in read-only txn: %w", k, sentinel.ErrConflict)
	}
	t.stage(k, pendingWrite{value: append([]byte(nil), value...)})
	return nil
}

func (t *memTxn) Delete(k key.Key) error {
	if t.readOnly {
		return fmt.Errorf("delete %q in read-only txn: %w", k, sentinel.ErrConflict)
	}
	t.stage(k, pendingWrite{deleted: true})
	return nil
}

func (t *memTxn) stage(k key.Key, w pendingWrite) {
	if _, ok := t.pending[k]; !ok {
		t.order = append(t.order, k)
	}
	t.pending[k] = w
}

func (t *memTxn) History(k key.Key) ([]Modification, error) {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()

	log := t.store.versions[k]
	t.readSet[k] = len(log)
	out := make([]Modification, len(log))
	for i, m := range log {
		// Detach the value bytes so callers cannot mutate the version log.
		m.Value = append([]byte(nil), m.Value...)
		out[i] = m
	}
	return out, nil
}
