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

// VerifyByHash answers a verification lookup without mutating state. It is
// safe to retry and to run concurrently with any other transaction; business
// misses degrade to an invalid result rather than an error, only substrate
// failures propagate.
func (s *Service) VerifyByHash(ctx context.Context, hash string) (models.VerificationResult, error) {
	ctx, span := s.tracer.Start(ctx, "ledger.VerifyByHash")
	defer span.End()
	defer s.observe("verify_by_hash", s.now())

	if hash == "" {
		return models.VerificationResult{}, dErrors.New(dErrors.CodeBadRequest, "hash is required")
	}

	var result models.VerificationResult
	err := s.store.View(ctx, func(tx substrate.Txn) error {
		degreeID, err := resolveHash(tx, hash)
		if errors.Is(err, sentinel.ErrNotFound) {
			result = models.VerificationResult{IsValid: false, Message: "hash not found"}
			return nil
		}
		if err != nil {
			return err
		}

		var deg models.Degree
		if err := getJSON(tx, models.KindDegree, degreeID, &deg); err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				// Hash bindings are only ever written alongside their
				// degree record; observing otherwise means the world
				// state is damaged.
				s.logger.ErrorContext(ctx, "hash index points at missing degree",
					"hash", hash,
					"degree_id", degreeID,
				)
				result = models.VerificationResult{
					IsValid:  false,
					DegreeID: degreeID,
					Message:  "degree record missing",
				}
				return nil
			}
			return err
		}

		issued := deg.IssueDate
		result = models.VerificationResult{
			IsValid:       true,
			DegreeID:      deg.ID,
			InstitutionID: deg.InstitutionID,
			IssueDate:     &issued,
			Status:        deg.Status,
			Message:       "degree verified",
		}
		return nil
	})
	if err != nil {
		return models.VerificationResult{}, asDomainError("verify by hash", err)
	}
	return result, nil
}

// RecordVerification persists a verification attempt's outcome and updates
// the statistics register in the same atomic unit. An empty DegreeID records
// an attempt against a hash the ledger does not know and skips the reference
// check.
func (s *Service) RecordVerification(ctx context.Context, rec models.VerificationRecord) (string, error) {
	ctx, span := s.tracer.Start(ctx, "ledger.RecordVerification")
	defer span.End()
	defer s.observe("record_verification", s.now())

	if rec.ID == "" {
		return "", dErrors.New(dErrors.CodeBadRequest, "verification id is required")
	}
	if rec.Result != models.VerificationAuthentic && rec.Result != models.VerificationFailed {
		return "", dErrors.New(dErrors.CodeBadRequest,
			fmt.Sprintf("verification result must be %s or %s",
				models.VerificationAuthentic, models.VerificationFailed))
	}
	if rec.RequestedAt.IsZero() {
		rec.RequestedAt = s.now()
	}

	err := s.store.Update(ctx, func(tx substrate.Txn) error {
		ok, err := entityExists(tx, models.KindVerification, rec.ID)
		if err != nil {
			return err
		}
		if ok {
			return dErrors.New(dErrors.CodeDuplicateID,
				fmt.Sprintf("verification with id %s already exists", rec.ID))
		}
		if rec.DegreeID != "" {
			ok, err := entityExists(tx, models.KindDegree, rec.DegreeID)
			if err != nil {
				return err
			}
			if !ok {
				return dErrors.New(dErrors.CodeUnknownDegree,
					fmt.Sprintf("degree with id %s does not exist", rec.DegreeID))
			}
		}
		if err := putJSON(tx, models.KindVerification, rec.ID, rec); err != nil {
			return err
		}
		return s.recordVerificationOutcome(tx, rec.Result == models.VerificationAuthentic)
	})
	if err != nil {
		return "", asDomainError("record verification", err)
	}

	s.metrics.Verifications.WithLabelValues(string(rec.Result)).Inc()
	s.logger.InfoContext(ctx, "verification recorded",
		"verification_id", rec.ID,
		"degree_id", rec.DegreeID,
		"result", rec.Result,
	)
	s.emitAudit(ctx, audit.ActionRecordVerification, rec.ID, string(rec.Result))
	return rec.ID, nil
}
