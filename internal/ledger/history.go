package ledger

import (
	"context"
	"encoding/json"
	"fmt"

	"veryphy/internal/ledger/key"
	"veryphy/internal/ledger/models"
	"veryphy/internal/ledger/substrate"
	dErrors "veryphy/pkg/domain-errors"
)

// DegreeHistory replays every committed version of a degree into a
// chronological status timeline, oldest first. Tombstoned versions map to
// DELETED/DELETE. The query is restartable; no cursor state survives the
// call. A degree that never existed yields UnknownDegree.
func (s *Service) DegreeHistory(ctx context.Context, degreeID string) ([]models.HistoryEntry, error) {
	ctx, span := s.tracer.Start(ctx, "ledger.DegreeHistory")
	defer span.End()
	defer s.observe("degree_history", s.now())

	if degreeID == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "degree id is required")
	}
	k, err := key.Make(models.KindDegree, degreeID)
	if err != nil {
		return nil, err
	}

	var entries []models.HistoryEntry
	err = s.store.View(ctx, func(tx substrate.Txn) error {
		mods, err := tx.History(k)
		if err != nil {
			return err
		}
		if len(mods) == 0 {
			return dErrors.New(dErrors.CodeUnknownDegree,
				fmt.Sprintf("degree with id %s does not exist", degreeID))
		}
		entries = make([]models.HistoryEntry, 0, len(mods))
		for _, mod := range mods {
			entry := models.HistoryEntry{
				TxID:      mod.TxID,
				Timestamp: mod.Timestamp,
				DegreeID:  degreeID,
			}
			if mod.Deleted {
				entry.Status = models.StatusDeleted
				entry.Action = models.ActionDelete
			} else {
				var deg models.Degree
				if err := json.Unmarshal(mod.Value, &deg); err != nil {
					return dErrors.Wrap(dErrors.CodeIntegrityViolation,
						fmt.Sprintf("corrupt history version of degree %s", degreeID), err)
				}
				entry.Status = string(deg.Status)
				entry.Action = models.ActionUpdate
			}
			entries = append(entries, entry)
		}
		return nil
	})
	if err != nil {
		return nil, asDomainError("degree history", err)
	}
	return entries, nil
}

// Stats returns the current aggregate statistics register. A ledger that has
// never been touched reports the zero register.
func (s *Service) Stats(ctx context.Context) (models.AggregateStats, error) {
	ctx, span := s.tracer.Start(ctx, "ledger.Stats")
	defer span.End()

	var stats models.AggregateStats
	err := s.store.View(ctx, func(tx substrate.Txn) error {
		var err error
		stats, err = s.loadStats(tx)
		return err
	})
	if err != nil {
		return models.AggregateStats{}, asDomainError("read stats", err)
	}
	// The lazy-bootstrap zero register has no derived fields set yet.
	if stats.LastUpdated.IsZero() {
		stats.SuccessRate = stats.Rate()
	}
	return stats, nil
}
