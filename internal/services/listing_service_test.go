package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rentora/backend/internal/apperr"
	"github.com/rentora/backend/internal/rbac"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateExpiry(t *testing.T) {
	e := newTestEnv()
	ctx := context.Background()
	landlord := uuid.New()
	listing := e.seedActiveListing(t, landlord)

	deadline := time.Now().Add(72 * time.Hour)
	updated, err := e.listingSvc.UpdateExpiry(ctx, landlord, rbac.RoleLandlord, listing.ID, &deadline)
	require.NoError(t, err)
	require.NotNil(t, updated.ExpiresAt)
	assert.WithinDuration(t, deadline, *updated.ExpiresAt, time.Second)

	// Clearing disables auto-expiry.
	updated, err = e.listingSvc.UpdateExpiry(ctx, landlord, rbac.RoleLandlord, listing.ID, nil)
	require.NoError(t, err)
	assert.Nil(t, updated.ExpiresAt)

	// A deadline already behind us is rejected.
	past := time.Now().Add(-time.Hour)
	_, err = e.listingSvc.UpdateExpiry(ctx, landlord, rbac.RoleLandlord, listing.ID, &past)
	require.Error(t, err)
	assert.Equal(t, "invalid_expiry", apperr.CodeOf(err))

	// Strangers cannot touch the expiry.
	_, err = e.listingSvc.UpdateExpiry(ctx, uuid.New(), rbac.RoleLandlord, listing.ID, &deadline)
	require.Error(t, err)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
}
