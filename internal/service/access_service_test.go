package service

import (
	"context"
	"errors"
	"testing"

	"github.com/quillnotes/auth-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequirePermissionGranted(t *testing.T) {
	repo := newFakeAccessRepo()
	repo.grant("user-1", domain.PermissionCheck{Action: "read", Entity: "user", Access: domain.AccessAny})
	svc := NewAccessService(repo)

	assert.NoError(t, svc.RequirePermission(context.Background(), "user-1", "read:user:any"))
}

func TestRequirePermissionWithoutAccessScope(t *testing.T) {
	repo := newFakeAccessRepo()
	repo.grant("user-1", domain.PermissionCheck{Action: "update", Entity: "note", Access: domain.AccessOwn})
	svc := NewAccessService(repo)

	// An unscoped requirement is satisfied by any access level.
	assert.NoError(t, svc.RequirePermission(context.Background(), "user-1", "update:note"))
}

func TestRequirePermissionDeniedEchoesTuple(t *testing.T) {
	repo := newFakeAccessRepo()
	repo.grant("user-1", domain.PermissionCheck{Action: "read", Entity: "user", Access: domain.AccessOwn})
	svc := NewAccessService(repo)

	err := svc.RequirePermission(context.Background(), "user-1", "read:user:any")
	require.Error(t, err)

	var forbidden *domain.ForbiddenError
	require.True(t, errors.As(err, &forbidden))
	require.NotNil(t, forbidden.Permission)
	assert.Equal(t, "read", forbidden.Permission.Action)
	assert.Equal(t, "user", forbidden.Permission.Entity)
	assert.Equal(t, domain.AccessAny, forbidden.Permission.Access)
}

func TestRequirePermissionUnrelatedGrantDoesNotHelp(t *testing.T) {
	repo := newFakeAccessRepo()
	repo.grant("user-1", domain.PermissionCheck{Action: "delete", Entity: "note", Access: domain.AccessAny})
	svc := NewAccessService(repo)

	err := svc.RequirePermission(context.Background(), "user-1", "delete:user:any")
	var forbidden *domain.ForbiddenError
	assert.True(t, errors.As(err, &forbidden))
}

func TestRequirePermissionMalformed(t *testing.T) {
	svc := NewAccessService(newFakeAccessRepo())

	for _, bad := range []string{"", "read", "read:user:sometimes", "read:user:any:extra", ":user"} {
		err := svc.RequirePermission(context.Background(), "user-1", bad)
		require.Error(t, err, "permission %q", bad)

		var forbidden *domain.ForbiddenError
		assert.False(t, errors.As(err, &forbidden), "malformed requirement %q must not read as forbidden", bad)
	}
}

func TestRequireRole(t *testing.T) {
	repo := newFakeAccessRepo()
	require.NoError(t, repo.AssignRole(context.Background(), "user-1", "admin"))
	svc := NewAccessService(repo)

	assert.NoError(t, svc.RequireRole(context.Background(), "user-1", "admin"))

	err := svc.RequireRole(context.Background(), "user-2", "admin")
	var forbidden *domain.ForbiddenError
	require.True(t, errors.As(err, &forbidden))
	assert.Equal(t, "admin", forbidden.Role)
}
