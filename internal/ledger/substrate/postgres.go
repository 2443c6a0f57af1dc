package substrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"veryphy/internal/ledger/key"
	"veryphy/pkg/platform/sentinel"
)

// Postgres persists the version log in a single append-only table. Every Put
// or Delete inserts a new row; the current value of a key is its highest-seq
// row. Transactions run SERIALIZABLE so racing writers are rejected at commit
// and retried here, mirroring the in-memory backend's optimistic model.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const schema = `
CREATE TABLE IF NOT EXISTS ledger_versions (
	seq          BIGSERIAL PRIMARY KEY,
	key          TEXT        NOT NULL,
	tx_id        TEXT        NOT NULL,
	committed_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	value        BYTEA,
	deleted      BOOLEAN     NOT NULL DEFAULT FALSE
);
CREATE INDEX IF NOT EXISTS ledger_versions_key_seq_idx ON ledger_versions (key, seq);
`

// Migrate creates the version-log schema if it does not exist.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate ledger_versions: %w", err)
	}
	return nil
}

func (p *Postgres) Update(ctx context.Context, fn func(tx Txn) error) error {
	for attempt := 0; ; attempt++ {
		err := p.run(ctx, sql.LevelSerializable, false, fn)
		if err == nil || !isSerializationFailure(err) {
			return err
		}
		if attempt+1 >= maxCommitRetries {
			return fmt.Errorf("commit after %d attempts: %w", attempt+1, sentinel.ErrConflict)
		}
		time.Sleep(time.Duration(attempt+1) * time.Millisecond)
	}
}

func (p *Postgres) View(ctx context.Context, fn func(tx Txn) error) error {
	return p.run(ctx, sql.LevelRepeatableRead, true, fn)
}

func (p *Postgres) run(ctx context.Context, level sql.IsolationLevel, readOnly bool, fn func(tx Txn) error) error {
	tx, err := p.db.BeginTx(ctx, &sql.TxOptions{Isolation: level, ReadOnly: readOnly})
	if err != nil {
		return fmt.Errorf("begin ledger tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	pt := &pgTxn{ctx: ctx, tx: tx, txID: uuid.NewString(), readOnly: readOnly}
	if err := fn(pt); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit ledger tx: %w", err)
	}
	return nil
}

func isSerializationFailure(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "40001"
	}
	return false
}

type pgTxn struct {
	ctx      context.Context
	tx       *sql.Tx
	txID     string
	readOnly bool
}

func (t *pgTxn) ID() string { return t.txID }

func (t *pgTxn) Get(k key.Key) ([]byte, error) {
	var value []byte
	var deleted bool
	err := t.tx.QueryRowContext(t.ctx,
		`SELECT value, deleted FROM ledger_versions WHERE key = $1 ORDER BY seq DESC LIMIT 1`,
		k.String(),
	).Scan(&value, &deleted)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("get %q: %w", k, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get %q: %w", k, err)
	}
	if deleted {
		return nil, fmt.Errorf("get %q: %w", k, sentinel.ErrNotFound)
	}
	return value, nil
}

func (t *pgTxn) Exists(k key.Key) (bool, error) {
	var deleted bool
	err := t.tx.QueryRowContext(t.ctx,
		`SELECT deleted FROM ledger_versions WHERE key = $1 ORDER BY seq DESC LIMIT 1`,
		k.String(),
	).Scan(&deleted)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("exists %q: %w", k, err)
	}
	return !deleted, nil
}

func (t *pgTxn) Put(k key.Key, value []byte) error {
	if t.readOnly {
		return fmt.Errorf("put %q in read-only txn: %w", k, sentinel.ErrConflict)
	}
	if _, err := t.tx.ExecContext(t.ctx,
		`INSERT INTO ledger_versions (key, tx_id, value, deleted) VALUES ($1, $2, $3, FALSE)`,
		k.String(), t.txID, value,
	); err != nil {
		return fmt.Errorf("put %q: %w", k, err)
	}
	return nil
}

func (t *pgTxn) Delete(k key.Key) error {
	if t.readOnly {
		return fmt.Errorf("delete %q in read-only txn: %w", k, sentinel.ErrConflict)
	}
	if _, err := t.tx.ExecContext(t.ctx,
		`INSERT INTO ledger_versions (key, tx_id, value, deleted) VALUES ($1, $2, NULL, TRUE)`,
		k.String(), t.txID,
	); err != nil {
		return fmt.Errorf("delete %q: %w", k, err)
	}
	return nil
}

func (t *pgTxn) History(k key.Key) ([]Modification, error) {
	rows, err := t.tx.QueryContext(t.ctx,
		`SELECT tx_id, committed_at, value, deleted FROM ledger_versions WHERE key = $1 AND tx_id <> $2 ORDER BY seq ASC`,
		k.String(), t.txID,
	)
	if err != nil {
		return nil, fmt.Errorf("history %q: %w", k, err)
	}
	defer rows.Close()

	var out []Modification
	for rows.Next() {
		var m Modification
		var value []byte
		if err := rows.Scan(&m.TxID, &m.Timestamp, &value, &m.Deleted); err != nil {
			return nil, fmt.Errorf("history %q: %w", k, err)
		}
		m.Value = value
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history %q: %w", k, err)
	}
	return out, nil
}
