package ledger

import (
	"encoding/json"
	"errors"
	"fmt"

	"veryphy/internal/ledger/key"
	"veryphy/internal/ledger/models"
	"veryphy/internal/ledger/substrate"
	dErrors "veryphy/pkg/domain-errors"
	"veryphy/pkg/platform/sentinel"
)

// The statistics register lives at a single well-known key, not a composite
// one.
var statsKey = key.Key(models.StatsKey)

// loadStats reads the register, bootstrapping a zero register on first use.
// The lazy bootstrap is non-fatal and self-healing: the first transaction
// that touches statistics writes the initial record.
func (s *Service) loadStats(tx substrate.Txn) (models.AggregateStats, error) {
	data, err := tx.Get(statsKey)
	if errors.Is(err, sentinel.ErrNotFound) {
		return models.AggregateStats{ID: models.StatsKey, SuccessRate: 100.0}, nil
	}
	if err != nil {
		return models.AggregateStats{}, err
	}
	var stats models.AggregateStats
	if err := json.Unmarshal(data, &stats); err != nil {
		return models.AggregateStats{}, dErrors.Wrap(dErrors.CodeIntegrityViolation,
			"corrupt statistics register", err)
	}
	return stats, nil
}

// saveStats recomputes the derived rate and writes the register back within
// the enclosing transaction, so statistics are never observable out of sync
// with the entity write that triggered them.
func (s *Service) saveStats(tx substrate.Txn, stats models.AggregateStats) error {
	stats.SuccessRate = stats.Rate()
	stats.LastUpdated = s.now()
	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("marshal statistics register: %w", err)
	}
	return tx.Put(statsKey, data)
}

func (s *Service) bumpInstitutionCount(tx substrate.Txn) error {
	stats, err := s.loadStats(tx)
	if err != nil {
		return err
	}
	stats.RegisteredInstitutions++
	return s.saveStats(tx, stats)
}

func (s *Service) bumpDegreeCount(tx substrate.Txn) error {
	stats, err := s.loadStats(tx)
	if err != nil {
		return err
	}
	stats.TotalDegrees++
	return s.saveStats(tx, stats)
}

// recordVerificationOutcome updates the verification counters. The rate is
// derived from the post-write integer counts inside saveStats; nothing is
// carried over from previous float values, so repeated recomputation cannot
// drift.
func (s *Service) recordVerificationOutcome(tx substrate.Txn, authentic bool) error {
	stats, err := s.loadStats(tx)
	if err != nil {
		return err
	}
	stats.VerificationCount++
	if authentic {
		stats.AuthenticCount++
	} else {
		stats.FailedCount++
	}
	return s.saveStats(tx, stats)
}
