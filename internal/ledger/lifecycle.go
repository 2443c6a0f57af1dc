package ledger

import (
	"context"
	"errors"
	"fmt"

	"veryphy/internal/audit"
	"veryphy/internal/ledger/models"
	"veryphy/internal/ledger/substrate"
	dErrors "veryphy/pkg/domain-errors"
	"veryphy/pkg/platform/sentinel"
)

// GetDegree returns the current snapshot of a degree; UnknownDegree when it
// does not exist. Read-only.
func (s *Service) GetDegree(ctx context.Context, degreeID string) (models.Degree, error) {
	ctx, span := s.tracer.Start(ctx, "ledger.GetDegree")
	defer span.End()
	defer s.observe("get_degree", s.now())

	if degreeID == "" {
		return models.Degree{}, dErrors.New(dErrors.CodeBadRequest, "degree id is required")
	}

	var deg models.Degree
	err := s.store.View(ctx, func(tx substrate.Txn) error {
		if err := getJSON(tx, models.KindDegree, degreeID, &deg); err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeUnknownDegree,
					fmt.Sprintf("degree with id %s does not exist", degreeID))
			}
			return err
		}
		return nil
	})
	if err != nil {
		return models.Degree{}, asDomainError("get degree", err)
	}
	return deg, nil
}

// RevokeDegree sets the degree's status to REVOKED and appends a revocation
// event, both in one atomic unit. Revoking an already-revoked degree is an
// idempotent success: the status cannot change back, but a new history
// version and a fresh event are still appended for audit completeness.
// Returns the post-revocation snapshot so callers can refresh projections.
func (s *Service) RevokeDegree(ctx context.Context, degreeID, reason string) (models.Degree, error) {
	ctx, span := s.tracer.Start(ctx, "ledger.RevokeDegree")
	defer span.End()
	defer s.observe("revoke_degree", s.now())

	if degreeID == "" {
		return models.Degree{}, dErrors.New(dErrors.CodeBadRequest, "degree id is required")
	}

	var deg models.Degree
	err := s.store.Update(ctx, func(tx substrate.Txn) error {
		deg = models.Degree{}
		if err := getJSON(tx, models.KindDegree, degreeID, &deg); err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeUnknownDegree,
					fmt.Sprintf("degree with id %s does not exist", degreeID))
			}
			return err
		}
		deg.Status = models.DegreeRevoked
		if err := putJSON(tx, models.KindDegree, degreeID, deg); err != nil {
			return err
		}
		event := models.RevocationEvent{
			ID:        s.newID(),
			DegreeID:  degreeID,
			Reason:    reason,
			Timestamp: s.now(),
		}
		return putJSON(tx, models.KindRevocation, event.ID, event)
	})
	if err != nil {
		return models.Degree{}, asDomainError("revoke degree", err)
	}

	s.metrics.LifecycleEvents.WithLabelValues("revocation").Inc()
	s.logger.InfoContext(ctx, "degree revoked", "degree_id", degreeID, "reason", reason)
	s.emitAudit(ctx, audit.ActionRevokeDegree, degreeID, reason)
	return deg, nil
}

// BlacklistInstitution sets the institution's status to BLACKLISTED and
// appends a blacklisting event. Same idempotency rules as RevokeDegree; a
// blacklisted institution never leaves that state.
func (s *Service) BlacklistInstitution(ctx context.Context, institutionID, reason string) (models.Institution, error) {
	ctx, span := s.tracer.Start(ctx, "ledger.BlacklistInstitution")
	defer span.End()
	defer s.observe("blacklist_institution", s.now())

	if institutionID == "" {
		return models.Institution{}, dErrors.New(dErrors.CodeBadRequest, "university id is required")
	}

	var inst models.Institution
	err := s.store.Update(ctx, func(tx substrate.Txn) error {
		inst = models.Institution{}
		if err := getJSON(tx, models.KindInstitution, institutionID, &inst); err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeUnknownInstitution,
					fmt.Sprintf("university with id %s does not exist", institutionID))
			}
			return err
		}
		inst.Status = models.InstitutionBlacklisted
		if err := putJSON(tx, models.KindInstitution, institutionID, inst); err != nil {
			return err
		}
		event := models.BlacklistingEvent{
			ID:            s.newID(),
			InstitutionID: institutionID,
			Reason:        reason,
			Timestamp:     s.now(),
		}
		return putJSON(tx, models.KindBlacklisting, event.ID, event)
	})
	if err != nil {
		return models.Institution{}, asDomainError("blacklist institution", err)
	}

	s.metrics.LifecycleEvents.WithLabelValues("blacklisting").Inc()
	s.logger.InfoContext(ctx, "institution blacklisted",
		"institution_id", institutionID,
		"reason", reason,
	)
	s.emitAudit(ctx, audit.ActionBlacklistInstitution, institutionID, reason)
	return inst, nil
}
