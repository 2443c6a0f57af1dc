package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	dErrors "veryphy/pkg/domain-errors"

	"veryphy/internal/ledger/key"
	"veryphy/internal/ledger/models"
	"veryphy/internal/ledger/substrate"
	"veryphy/internal/platform/middleware"
)

// emailKey derives the (case-insensitive) email uniqueness index key.
func emailKey(email string) (key.Key, error) {
	return key.Make(models.KindEmail, strings.ToLower(email))
}

// callerFrom names the authenticated caller for audit records; mutations
// issued outside a request context are attributed to the system.
func callerFrom(ctx context.Context) string {
	if id := middleware.GetUserID(ctx); id != "" {
		return id
	}
	return "system"
}

// putJSON writes v as the current version of (kind, id).
func putJSON(tx substrate.Txn, kind, id string, v any) error {
	k, err := key.Make(kind, id)
	if err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s %s: %w", kind, id, err)
	}
	return tx.Put(k, data)
}

// getJSON reads the current version of (kind, id) into dst. Not-found is
// reported via sentinel.ErrNotFound in the error chain.
func getJSON(tx substrate.Txn, kind, id string, dst any) error {
	k, err := key.Make(kind, id)
	if err != nil {
		return err
	}
	data, err := tx.Get(k)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return dErrors.Wrap(dErrors.CodeIntegrityViolation,
			fmt.Sprintf("corrupt %s record %s", kind, id), err)
	}
	return nil
}

func entityExists(tx substrate.Txn, kind, id string) (bool, error) {
	k, err := key.Make(kind, id)
	if err != nil {
		return false, err
	}
	return tx.Exists(k)
}

// asDomainError passes domain errors through untouched and wraps everything
// else (substrate connectivity, conflict-retry exhaustion) as a substrate
// failure. The enclosing transaction left no partial state.
func asDomainError(op string, err error) error {
	if err == nil {
		return nil
	}
	var de *dErrors.Error
	if errors.As(err, &de) {
		return de
	}
	return dErrors.Wrap(dErrors.CodeSubstrate, op, err)
}
