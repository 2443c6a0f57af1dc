package auth

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "veryphy/pkg/domain-errors"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	tokens := NewJWTService("test-signing-key", "veryphy-test")
	return NewService(NewInMemoryUserStore(), tokens, slog.New(slog.DiscardHandler))
}

func TestLoginIssuesValidToken(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	user, err := svc.Provision(ctx, "registrar@uni-1", "s3cret", RoleUniversity, "UNI-1")
	require.NoError(t, err)

	token, err := svc.Login(ctx, "registrar@uni-1", "s3cret")
	require.NoError(t, err)

	claims, err := svc.tokens.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, RoleUniversity, claims.Role)
	assert.Equal(t, "UNI-1", claims.EntityID)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	_, err := svc.Provision(ctx, "admin", "correct", RoleAdmin, "")
	require.NoError(t, err)

	_, err = svc.Login(ctx, "admin", "wrong")
	assert.Equal(t, dErrors.CodeUnauthorized, dErrors.CodeOf(err))

	// Unknown usernames get the same answer as bad passwords.
	_, err = svc.Login(ctx, "nobody", "whatever")
	assert.Equal(t, dErrors.CodeUnauthorized, dErrors.CodeOf(err))
}

func TestProvisionRejectsDuplicateUsername(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	_, err := svc.Provision(ctx, "hr@acme", "pw1", RoleEmployer, "EMP-1")
	require.NoError(t, err)

	_, err = svc.Provision(ctx, "HR@Acme", "pw2", RoleEmployer, "EMP-2")
	assert.Equal(t, dErrors.CodeDuplicateID, dErrors.CodeOf(err))
}

func TestAdapterMapsClaims(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	_, err := svc.Provision(ctx, "admin", "pw", RoleAdmin, "")
	require.NoError(t, err)
	token, err := svc.Login(ctx, "admin", "pw")
	require.NoError(t, err)

	adapter := NewJWTServiceAdapter(svc.tokens)
	claims, err := adapter.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, claims.Role)

	_, err = adapter.ValidateToken("not-a-token")
	assert.Error(t, err)
}
