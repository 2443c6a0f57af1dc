//go:build integration

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"veryphy/internal/ledger/models"
	"veryphy/pkg/platform/sentinel"
	"veryphy/pkg/testutil/containers"
)

type CacheSuite struct {
	suite.Suite
	ctx   context.Context
	redis *containers.RedisContainer
	cache *VerificationCache
}

func TestCacheSuite(t *testing.T) {
	suite.Run(t, new(CacheSuite))
}

func (s *CacheSuite) SetupSuite() {
	s.ctx = context.Background()
	s.redis = containers.NewRedisContainer(s.T())
	s.cache = New(s.redis.Client, time.Minute)
}

func (s *CacheSuite) TearDownSuite() {
	_ = s.redis.Client.Close()
	_ = s.redis.Container.Terminate(s.ctx)
}

func (s *CacheSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(s.ctx))
}

func (s *CacheSuite) TestSetGetRoundTrip() {
	result := models.VerificationResult{
		IsValid:       true,
		DegreeID:      "DEG-1",
		InstitutionID: "UNI-1",
		Status:        models.DegreeRegistered,
		Message:       "degree verified",
	}
	s.Require().NoError(s.cache.Set(s.ctx, "H1", result))

	got, err := s.cache.Get(s.ctx, "H1")
	s.Require().NoError(err)
	s.Equal(result, got)
}

func (s *CacheSuite) TestMissReturnsNotFound() {
	_, err := s.cache.Get(s.ctx, "no-such-hash")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *CacheSuite) TestInvalidateDropsEntry() {
	s.Require().NoError(s.cache.Set(s.ctx, "H1", models.VerificationResult{IsValid: true}))
	s.Require().NoError(s.cache.Invalidate(s.ctx, "H1"))

	_, err := s.cache.Get(s.ctx, "H1")
	s.ErrorIs(err, sentinel.ErrNotFound)
}
