//go:build integration

package identitycache

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	id "cinelog/pkg/domain"
	"cinelog/pkg/platform/middleware/auth"
	"cinelog/pkg/platform/middleware/auth/mocks"
	"cinelog/pkg/testutil/containers"
)

func TestCachedLookup_ReadThrough(t *testing.T) {
	rc := containers.StartRedis(t)
	ctx := context.Background()
	require.NoError(t, rc.FlushAll(ctx))

	ctrl := gomock.NewController(t)
	next := mocks.NewMockIdentityLookup(ctrl)
	userID := id.NewUserID()
	// Only the first lookup reaches the backing store.
	next.EXPECT().FindIdentity(gomock.Any(), userID).Return(&auth.Identity{UserID: userID, Username: "alice"}, nil).Times(1)

	metrics := NewMetrics(prometheus.NewRegistry())
	cache := New(next, rc.Client, time.Minute, WithMetrics(metrics))

	for range 3 {
		identity, err := cache.FindIdentity(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, "alice", identity.Username)
	}
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.Lookups.WithLabelValues("miss")))
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.Lookups.WithLabelValues("hit")))

	ttl, err := rc.Client.TTL(ctx, keyPrefix+userID.String()).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	require.NoError(t, cache.Invalidate(ctx, userID))
	next.EXPECT().FindIdentity(gomock.Any(), userID).Return(&auth.Identity{UserID: userID, Username: "alice2"}, nil)
	identity, err := cache.FindIdentity(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, "alice2", identity.Username)
}
