package ledger

import (
	"errors"
	"fmt"

	"veryphy/internal/ledger/key"
	"veryphy/internal/ledger/models"
	"veryphy/internal/ledger/substrate"
	dErrors "veryphy/pkg/domain-errors"
	"veryphy/pkg/platform/sentinel"
)

// bindHash maps a content hash to a degree id. The mapping is permanent:
// binding an already-bound hash to the same id is an idempotent no-op,
// binding it to a different id is refused, and nothing ever unbinds it —
// revocation changes the degree's status, not the hash binding, so verifiers
// can re-derive history even for revoked degrees.
func bindHash(tx substrate.Txn, hash, degreeID string) error {
	k, err := key.Make(models.KindHash, hash)
	if err != nil {
		return err
	}
	existing, err := tx.Get(k)
	if err == nil {
		if string(existing) == degreeID {
			return nil
		}
		return dErrors.New(dErrors.CodeDuplicateHash,
			fmt.Sprintf("hash %s already bound to degree %s", hash, existing))
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return err
	}
	return tx.Put(k, []byte(degreeID))
}

// resolveHash returns the degree id bound to hash; sentinel.ErrNotFound when
// the hash is unknown.
func resolveHash(tx substrate.Txn, hash string) (string, error) {
	k, err := key.Make(models.KindHash, hash)
	if err != nil {
		return "", err
	}
	id, err := tx.Get(k)
	if err != nil {
		return "", err
	}
	return string(id), nil
}
