//go:build integration

package mirror

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/suite"

	"veryphy/internal/ledger/models"
	"veryphy/pkg/testutil/containers"
)

type MirrorSuite struct {
	suite.Suite
	ctx   context.Context
	pg    *containers.PostgresContainer
	pool  *pgxpool.Pool
	store *Store
}

func TestMirrorSuite(t *testing.T) {
	suite.Run(t, new(MirrorSuite))
}

func (s *MirrorSuite) SetupSuite() {
	s.ctx = context.Background()
	s.pg = containers.NewPostgresContainer(s.T())

	pool, err := pgxpool.New(s.ctx, s.pg.DSN)
	s.Require().NoError(err)
	s.pool = pool

	s.store = New(pool)
	s.Require().NoError(s.store.Migrate(s.ctx))
}

func (s *MirrorSuite) TearDownSuite() {
	s.pool.Close()
	_ = s.pg.DB.Close()
	_ = s.pg.Container.Terminate(s.ctx)
}

func (s *MirrorSuite) SetupTest() {
	s.Require().NoError(s.pg.TruncateTables(s.ctx, "institutions", "degrees"))
}

func (s *MirrorSuite) TestUpsertInstitutionReplacesStatus() {
	inst := models.Institution{
		ID:          "UNI-1",
		Name:        "Example University",
		Email:       "registrar@example.edu",
		StakeAmount: 1000,
		Status:      models.InstitutionPending,
		JoinedAt:    time.Now().UTC().Truncate(time.Second),
	}
	s.Require().NoError(s.store.UpsertInstitution(s.ctx, inst))

	inst.Status = models.InstitutionBlacklisted
	s.Require().NoError(s.store.UpsertInstitution(s.ctx, inst))

	got, err := s.store.ListInstitutions(s.ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(got, 1)
	s.Equal(models.InstitutionBlacklisted, got[0].Status)
}

func (s *MirrorSuite) TestListDegreesFiltersByInstitution() {
	now := time.Now().UTC().Truncate(time.Second)
	degrees := []models.Degree{
		{ID: "DEG-1", StudentID: "STU-1", StudentName: "Ada", DegreeName: "BSc CS", InstitutionID: "UNI-1", IssueDate: now, Hash: "H1", Status: models.DegreeRegistered},
		{ID: "DEG-2", StudentID: "STU-2", StudentName: "Lin", DegreeName: "MSc EE", InstitutionID: "UNI-2", IssueDate: now, Hash: "H2", Status: models.DegreeRegistered},
	}
	for _, deg := range degrees {
		s.Require().NoError(s.store.UpsertDegree(s.ctx, deg))
	}

	got, err := s.store.ListDegrees(s.ctx, "UNI-1", 10)
	s.Require().NoError(err)
	s.Require().Len(got, 1)
	s.Equal("DEG-1", got[0].ID)

	all, err := s.store.ListDegrees(s.ctx, "", 10)
	s.Require().NoError(err)
	s.Len(all, 2)
}
