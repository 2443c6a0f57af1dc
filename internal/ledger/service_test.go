package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"

	"veryphy/internal/audit"
	"veryphy/internal/ledger/models"
	"veryphy/internal/ledger/substrate"
	"veryphy/internal/platform/metrics"
	dErrors "veryphy/pkg/domain-errors"
)

type LedgerSuite struct {
	suite.Suite
	svc   *Service
	store *substrate.Memory
	audit *audit.InMemoryStore
	ctx   context.Context
}

func (s *LedgerSuite) SetupTest() {
	s.store = substrate.NewMemory()
	s.audit = audit.NewInMemoryStore()
	s.svc = New(
		s.store,
		slog.New(slog.DiscardHandler),
		metrics.New(prometheus.NewRegistry()),
		audit.NewPublisher(s.audit),
	)
	s.ctx = context.Background()
}

func TestLedgerSuite(t *testing.T) {
	suite.Run(t, new(LedgerSuite))
}

func (s *LedgerSuite) registerInstitution(id string) {
	_, err := s.svc.RegisterInstitution(s.ctx, models.Institution{
		ID:          id,
		Name:        "Test University " + id,
		Email:       id + "@example.edu",
		StakeAmount: 1000,
	})
	s.Require().NoError(err)
}

func (s *LedgerSuite) registerDegree(id, hash, institutionID string) {
	_, err := s.svc.RegisterDegree(s.ctx, models.Degree{
		ID:            id,
		StudentID:     "STU-1",
		StudentName:   "Ada Lovelace",
		DegreeName:    "BSc Mathematics",
		InstitutionID: institutionID,
		Hash:          hash,
	})
	s.Require().NoError(err)
}

func (s *LedgerSuite) TestRegisterAndVerify() {
	s.registerInstitution("UNI-1")
	s.registerDegree("DEG-1", "H1", "UNI-1")

	result, err := s.svc.VerifyByHash(s.ctx, "H1")
	s.Require().NoError(err)
	s.True(result.IsValid)
	s.Equal("DEG-1", result.DegreeID)
	s.Equal("UNI-1", result.InstitutionID)
	s.Equal(models.DegreeRegistered, result.Status)
	s.Require().NotNil(result.IssueDate)

	result, err = s.svc.VerifyByHash(s.ctx, "H2")
	s.Require().NoError(err)
	s.False(result.IsValid)
	s.Equal("hash not found", result.Message)
	s.Empty(result.DegreeID)
}

func (s *LedgerSuite) TestInstitutionUniqueness() {
	s.registerInstitution("UNI-1")

	s.Run("duplicate id", func() {
		_, err := s.svc.RegisterInstitution(s.ctx, models.Institution{
			ID:    "UNI-1",
			Name:  "Other",
			Email: "other@example.edu",
		})
		s.Require().Error(err)
		s.Equal(dErrors.CodeDuplicateID, dErrors.CodeOf(err))
	})

	s.Run("duplicate email", func() {
		_, err := s.svc.RegisterInstitution(s.ctx, models.Institution{
			ID:    "UNI-2",
			Name:  "Other",
			Email: "UNI-1@example.edu", // same address, different case
		})
		s.Require().Error(err)
		s.Equal(dErrors.CodeDuplicateID, dErrors.CodeOf(err))
	})

	s.Run("stats count one institution", func() {
		stats, err := s.svc.Stats(s.ctx)
		s.Require().NoError(err)
		s.Equal(int64(1), stats.RegisteredInstitutions)
	})
}

func (s *LedgerSuite) TestDuplicateDegreeIDLeavesFirstUnchanged() {
	s.registerInstitution("UNI-1")
	s.registerDegree("DEG-1", "H1", "UNI-1")

	_, err := s.svc.RegisterDegree(s.ctx, models.Degree{
		ID:            "DEG-1",
		InstitutionID: "UNI-1",
		Hash:          "H-other",
	})
	s.Require().Error(err)
	s.Equal(dErrors.CodeDuplicateID, dErrors.CodeOf(err))

	result, err := s.svc.VerifyByHash(s.ctx, "H1")
	s.Require().NoError(err)
	s.True(result.IsValid)
	s.Equal("DEG-1", result.DegreeID)

	history, err := s.svc.DegreeHistory(s.ctx, "DEG-1")
	s.Require().NoError(err)
	s.Len(history, 1, "failed registration must not add a version")
}

func (s *LedgerSuite) TestDuplicateHash() {
	s.registerInstitution("UNI-1")
	s.registerDegree("DEG-1", "H1", "UNI-1")

	_, err := s.svc.RegisterDegree(s.ctx, models.Degree{
		ID:            "DEG-2",
		InstitutionID: "UNI-1",
		Hash:          "H1",
	})
	s.Require().Error(err)
	s.Equal(dErrors.CodeDuplicateHash, dErrors.CodeOf(err))

	stats, err := s.svc.Stats(s.ctx)
	s.Require().NoError(err)
	s.Equal(int64(1), stats.TotalDegrees)

	// The binding target never changed.
	result, err := s.svc.VerifyByHash(s.ctx, "H1")
	s.Require().NoError(err)
	s.Equal("DEG-1", result.DegreeID)
}

func (s *LedgerSuite) TestUnknownInstitutionLeavesNoPartialWrite() {
	_, err := s.svc.RegisterDegree(s.ctx, models.Degree{
		ID:            "DEG-1",
		InstitutionID: "UNI-missing",
		Hash:          "H1",
	})
	s.Require().Error(err)
	s.Equal(dErrors.CodeUnknownInstitution, dErrors.CodeOf(err))

	result, err := s.svc.VerifyByHash(s.ctx, "H1")
	s.Require().NoError(err)
	s.False(result.IsValid)
	s.Equal("hash not found", result.Message)

	stats, err := s.svc.Stats(s.ctx)
	s.Require().NoError(err)
	s.Zero(stats.TotalDegrees)
}

func (s *LedgerSuite) TestRevokeDegree() {
	s.registerInstitution("UNI-1")
	s.registerDegree("DEG-1", "H1", "UNI-1")

	deg, err := s.svc.RevokeDegree(s.ctx, "DEG-1", "fraud")
	s.Require().NoError(err)
	s.Equal(models.DegreeRevoked, deg.Status)
	s.Equal("H1", deg.Hash)

	s.Run("hash still resolves with revoked status", func() {
		result, err := s.svc.VerifyByHash(s.ctx, "H1")
		s.Require().NoError(err)
		s.True(result.IsValid)
		s.Equal(models.DegreeRevoked, result.Status)
	})

	s.Run("history shows both versions oldest first", func() {
		history, err := s.svc.DegreeHistory(s.ctx, "DEG-1")
		s.Require().NoError(err)
		s.Require().Len(history, 2)
		s.Equal(string(models.DegreeRegistered), history[0].Status)
		s.Equal(string(models.DegreeRevoked), history[1].Status)
		s.Equal(models.ActionUpdate, history[0].Action)
		s.Equal(models.ActionUpdate, history[1].Action)
		s.NotEmpty(history[0].TxID)
	})

	s.Run("re-revoking is idempotent but still audited", func() {
		_, err := s.svc.RevokeDegree(s.ctx, "DEG-1", "still fraud")
		s.Require().NoError(err)

		history, err := s.svc.DegreeHistory(s.ctx, "DEG-1")
		s.Require().NoError(err)
		s.Len(history, 3)
		s.Equal(string(models.DegreeRevoked), history[2].Status)

		events, err := s.audit.ListByEntity(s.ctx, "DEG-1")
		s.Require().NoError(err)
		revocations := 0
		for _, e := range events {
			if e.Action == audit.ActionRevokeDegree {
				revocations++
			}
		}
		s.Equal(2, revocations)
	})

	s.Run("revoking unknown degree fails", func() {
		_, err := s.svc.RevokeDegree(s.ctx, "DEG-missing", "whatever")
		s.Require().Error(err)
		s.Equal(dErrors.CodeUnknownDegree, dErrors.CodeOf(err))
	})
}

func (s *LedgerSuite) TestBlacklistInstitution() {
	s.registerInstitution("UNI-1")

	inst, err := s.svc.BlacklistInstitution(s.ctx, "UNI-1", "diploma mill")
	s.Require().NoError(err)
	s.Equal(models.InstitutionBlacklisted, inst.Status)

	_, err = s.svc.BlacklistInstitution(s.ctx, "UNI-1", "again")
	s.Require().NoError(err)

	// Existing references stay valid: the institution still exists on the
	// ledger, so degree registration against it is not blocked by the core.
	s.registerDegree("DEG-1", "H1", "UNI-1")

	_, err = s.svc.BlacklistInstitution(s.ctx, "UNI-missing", "x")
	s.Require().Error(err)
	s.Equal(dErrors.CodeUnknownInstitution, dErrors.CodeOf(err))
}

func (s *LedgerSuite) TestRecordVerification() {
	s.registerInstitution("UNI-1")
	s.registerDegree("DEG-1", "H1", "UNI-1")

	s.Run("authentic outcome", func() {
		_, err := s.svc.RecordVerification(s.ctx, models.VerificationRecord{
			ID:         "VER-1",
			DegreeID:   "DEG-1",
			EmployerID: "EMP-1",
			Result:     models.VerificationAuthentic,
		})
		s.Require().NoError(err)
	})

	s.Run("duplicate id rejected", func() {
		_, err := s.svc.RecordVerification(s.ctx, models.VerificationRecord{
			ID:       "VER-1",
			DegreeID: "DEG-1",
			Result:   models.VerificationFailed,
		})
		s.Require().Error(err)
		s.Equal(dErrors.CodeDuplicateID, dErrors.CodeOf(err))
	})

	s.Run("unknown degree rejected", func() {
		_, err := s.svc.RecordVerification(s.ctx, models.VerificationRecord{
			ID:       "VER-2",
			DegreeID: "DEG-missing",
			Result:   models.VerificationFailed,
		})
		s.Require().Error(err)
		s.Equal(dErrors.CodeUnknownDegree, dErrors.CodeOf(err))
	})

	s.Run("empty degree id records unknown-hash attempt", func() {
		_, err := s.svc.RecordVerification(s.ctx, models.VerificationRecord{
			ID:         "VER-3",
			EmployerID: "EMP-1",
			Result:     models.VerificationFailed,
		})
		s.Require().NoError(err)
	})

	s.Run("pending result rejected", func() {
		_, err := s.svc.RecordVerification(s.ctx, models.VerificationRecord{
			ID:       "VER-4",
			DegreeID: "DEG-1",
			Result:   models.VerificationPending,
		})
		s.Require().Error(err)
		s.Equal(dErrors.CodeBadRequest, dErrors.CodeOf(err))
	})
}

// TestSuccessRateExact replays k authentic and N-k failed outcomes and checks
// the rate equals k/N*100 with no accumulated drift.
func (s *LedgerSuite) TestSuccessRateExact() {
	s.registerInstitution("UNI-1")
	s.registerDegree("DEG-1", "H1", "UNI-1")

	const authentic, failed = 4, 3
	n := 0
	for i := 0; i < authentic; i++ {
		n++
		_, err := s.svc.RecordVerification(s.ctx, models.VerificationRecord{
			ID:       fmt.Sprintf("VER-%d", n),
			DegreeID: "DEG-1",
			Result:   models.VerificationAuthentic,
		})
		s.Require().NoError(err)
	}
	for i := 0; i < failed; i++ {
		n++
		_, err := s.svc.RecordVerification(s.ctx, models.VerificationRecord{
			ID:       fmt.Sprintf("VER-%d", n),
			DegreeID: "DEG-1",
			Result:   models.VerificationFailed,
		})
		s.Require().NoError(err)
	}

	stats, err := s.svc.Stats(s.ctx)
	s.Require().NoError(err)
	s.Equal(int64(authentic+failed), stats.VerificationCount)
	s.Equal(int64(authentic), stats.AuthenticCount)
	s.Equal(int64(failed), stats.FailedCount)
	s.Equal(float64(authentic)/float64(authentic+failed)*100.0, stats.SuccessRate)
	s.False(stats.LastUpdated.IsZero())
}

func (s *LedgerSuite) TestInitLedgerIdempotent() {
	s.Require().NoError(s.svc.InitLedger(s.ctx))
	s.Require().NoError(s.svc.InitLedger(s.ctx))

	stats, err := s.svc.Stats(s.ctx)
	s.Require().NoError(err)
	s.Zero(stats.RegisteredInstitutions)
	s.Zero(stats.TotalDegrees)
	s.Zero(stats.VerificationCount)
	s.Equal(100.0, stats.SuccessRate)
}

func (s *LedgerSuite) TestHistoryUnknownDegree() {
	_, err := s.svc.DegreeHistory(s.ctx, "DEG-missing")
	s.Require().Error(err)
	s.Equal(dErrors.CodeUnknownDegree, dErrors.CodeOf(err))
}

func (s *LedgerSuite) TestValidationErrors() {
	cases := []struct {
		name string
		call func() error
	}{
		{"institution without email", func() error {
			_, err := s.svc.RegisterInstitution(s.ctx, models.Institution{ID: "U", Name: "N"})
			return err
		}},
		{"negative stake", func() error {
			_, err := s.svc.RegisterInstitution(s.ctx, models.Institution{
				ID: "U", Name: "N", Email: "n@e.edu", StakeAmount: -1,
			})
			return err
		}},
		{"degree without hash", func() error {
			_, err := s.svc.RegisterDegree(s.ctx, models.Degree{ID: "D", InstitutionID: "U"})
			return err
		}},
		{"empty verify hash", func() error {
			_, err := s.svc.VerifyByHash(s.ctx, "")
			return err
		}},
		{"revoke without id", func() error {
			_, err := s.svc.RevokeDegree(s.ctx, "", "reason")
			return err
		}},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			err := tc.call()
			s.Require().Error(err)
			s.Equal(dErrors.CodeBadRequest, dErrors.CodeOf(err))
		})
	}
}

// TestConcurrentSameHashRegistration races registrations of distinct degrees
// carrying the same content hash: exactly one commits, the rest observe
// DuplicateHash after commit-time validation.
func (s *LedgerSuite) TestConcurrentSameHashRegistration() {
	s.registerInstitution("UNI-1")

	const goroutines = 8
	var wg sync.WaitGroup
	errs := make([]error, goroutines)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, errs[n] = s.svc.RegisterDegree(s.ctx, models.Degree{
				ID:            fmt.Sprintf("DEG-%d", n),
				InstitutionID: "UNI-1",
				Hash:          "H-contested",
				IssueDate:     time.Now(),
			})
		}(i)
	}
	wg.Wait()

	var won, lost int
	for _, err := range errs {
		switch {
		case err == nil:
			won++
		case dErrors.CodeOf(err) == dErrors.CodeDuplicateHash:
			lost++
		default:
			s.Failf("unexpected error", "%v", err)
		}
	}
	s.Equal(1, won)
	s.Equal(goroutines-1, lost)

	stats, err := s.svc.Stats(s.ctx)
	s.Require().NoError(err)
	s.Equal(int64(1), stats.TotalDegrees)
}
