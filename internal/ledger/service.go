// Package ledger implements the attestation ledger state machine: institution
// and degree registration, hash-indexed verification, verification recording,
// lifecycle transitions, and history replay. All invariants are enforced
// inside single substrate transactions; the package itself holds no locks and
// no mutable state.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"veryphy/internal/audit"
	"veryphy/internal/ledger/models"
	"veryphy/internal/ledger/substrate"
	"veryphy/internal/platform/metrics"
	dErrors "veryphy/pkg/domain-errors"
	"veryphy/pkg/platform/sentinel"
)

// AuditSink receives an audit event for every committed mutation.
type AuditSink interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service is the ledger state machine. It is safe for concurrent use; the
// substrate serializes conflicting writes.
type Service struct {
	store   substrate.Store
	logger  *slog.Logger
	metrics *metrics.Metrics
	audit   AuditSink // optional
	tracer  trace.Tracer

	now   func() time.Time
	newID func() string
}

func New(store substrate.Store, logger *slog.Logger, m *metrics.Metrics, sink AuditSink) *Service {
	return &Service{
		store:   store,
		logger:  logger,
		metrics: m,
		audit:   sink,
		tracer:  otel.Tracer("veryphy/ledger"),
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// InitLedger seeds the statistics register. Idempotent; registering through
// the lazy bootstrap works identically, this merely makes Stats well-defined
// on a fresh ledger.
func (s *Service) InitLedger(ctx context.Context) error {
	ctx, span := s.tracer.Start(ctx, "ledger.InitLedger")
	defer span.End()

	err := s.store.Update(ctx, func(tx substrate.Txn) error {
		ok, err := tx.Exists(statsKey)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		return s.saveStats(tx, models.AggregateStats{ID: models.StatsKey})
	})
	return asDomainError("init ledger", err)
}

// RegisterInstitution writes a new institution with status PENDING and bumps
// the institution counter atomically. Institution id and contact email are
// each globally unique.
func (s *Service) RegisterInstitution(ctx context.Context, inst models.Institution) (models.Institution, error) {
	ctx, span := s.tracer.Start(ctx, "ledger.RegisterInstitution")
	defer span.End()
	defer s.observe("register_institution", s.now())

	if inst.ID == "" || inst.Name == "" || inst.Email == "" {
		return models.Institution{}, dErrors.New(dErrors.CodeBadRequest, "institution id, name and email are required")
	}
	if inst.StakeAmount < 0 {
		return models.Institution{}, dErrors.New(dErrors.CodeBadRequest, "stake amount must be non-negative")
	}

	inst.Status = models.InstitutionPending
	if inst.JoinedAt.IsZero() {
		inst.JoinedAt = s.now()
	}

	err := s.store.Update(ctx, func(tx substrate.Txn) error {
		ok, err := entityExists(tx, models.KindInstitution, inst.ID)
		if err != nil {
			return err
		}
		if ok {
			return dErrors.New(dErrors.CodeDuplicateID,
				fmt.Sprintf("university with id %s already exists", inst.ID))
		}
		if err := bindEmail(tx, inst.Email, inst.ID); err != nil {
			return err
		}
		if err := putJSON(tx, models.KindInstitution, inst.ID, inst); err != nil {
			return err
		}
		return s.bumpInstitutionCount(tx)
	})
	if err != nil {
		return models.Institution{}, asDomainError("register institution", err)
	}

	s.metrics.InstitutionsRegistered.Inc()
	s.logger.InfoContext(ctx, "institution registered", "institution_id", inst.ID)
	s.emitAudit(ctx, audit.ActionRegisterInstitution, inst.ID, inst.Name)
	return inst, nil
}

// RegisterDegree validates uniqueness and referential integrity, then writes
// the degree record, the hash binding, and the degree counter as one atomic
// unit. Partial application is never observable.
func (s *Service) RegisterDegree(ctx context.Context, deg models.Degree) (models.Degree, error) {
	ctx, span := s.tracer.Start(ctx, "ledger.RegisterDegree")
	defer span.End()
	defer s.observe("register_degree", s.now())

	if deg.ID == "" || deg.InstitutionID == "" || deg.Hash == "" {
		return models.Degree{}, dErrors.New(dErrors.CodeBadRequest, "degree id, university id and hash are required")
	}

	deg.Status = models.DegreeRegistered
	if deg.IssueDate.IsZero() {
		deg.IssueDate = s.now()
	}

	err := s.store.Update(ctx, func(tx substrate.Txn) error {
		ok, err := entityExists(tx, models.KindDegree, deg.ID)
		if err != nil {
			return err
		}
		if ok {
			return dErrors.New(dErrors.CodeDuplicateID,
				fmt.Sprintf("degree with id %s already exists", deg.ID))
		}
		ok, err = entityExists(tx, models.KindInstitution, deg.InstitutionID)
		if err != nil {
			return err
		}
		if !ok {
			return dErrors.New(dErrors.CodeUnknownInstitution,
				fmt.Sprintf("university with id %s does not exist", deg.InstitutionID))
		}
		if err := bindHash(tx, deg.Hash, deg.ID); err != nil {
			return err
		}
		if err := putJSON(tx, models.KindDegree, deg.ID, deg); err != nil {
			return err
		}
		return s.bumpDegreeCount(tx)
	})
	if err != nil {
		return models.Degree{}, asDomainError("register degree", err)
	}

	s.metrics.DegreesRegistered.Inc()
	s.logger.InfoContext(ctx, "degree registered",
		"degree_id", deg.ID,
		"institution_id", deg.InstitutionID,
	)
	s.emitAudit(ctx, audit.ActionRegisterDegree, deg.ID, deg.DegreeName)
	return deg, nil
}

// bindEmail enforces global email uniqueness via a derived index, exactly
// like the content-hash binding.
func bindEmail(tx substrate.Txn, email, institutionID string) error {
	k, err := emailKey(email)
	if err != nil {
		return err
	}
	existing, err := tx.Get(k)
	if err == nil {
		if string(existing) == institutionID {
			return nil
		}
		return dErrors.New(dErrors.CodeDuplicateID,
			fmt.Sprintf("email %s already registered to another university", email))
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return err
	}
	return tx.Put(k, []byte(institutionID))
}

func (s *Service) observe(op string, start time.Time) {
	s.metrics.TxDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (s *Service) emitAudit(ctx context.Context, action, entityID, detail string) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Emit(ctx, audit.Event{
		Timestamp: s.now(),
		Actor:     callerFrom(ctx),
		Action:    action,
		EntityID:  entityID,
		Detail:    detail,
	}); err != nil {
		s.logger.WarnContext(ctx, "audit emit failed", "action", action, "error", err)
	}
}
