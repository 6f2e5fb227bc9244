package follow

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "cinelog/pkg/domain"
)

func TestInMemory_FollowLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewInMemory()
	a, b, c := id.NewUserID(), id.NewUserID(), id.NewUserID()
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	changed, err := s.Follow(ctx, a, b, t0)
	require.NoError(t, err)
	assert.True(t, changed, "new edge")

	changed, err = s.Follow(ctx, a, b, t0.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, changed, "already active")

	changed, err = s.Unfollow(ctx, a, b, t0.Add(2*time.Minute))
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = s.Unfollow(ctx, a, b, t0.Add(3*time.Minute))
	require.NoError(t, err)
	assert.False(t, changed, "already inactive")

	changed, err = s.Unfollow(ctx, a, c, t0)
	require.NoError(t, err)
	assert.False(t, changed, "never existed")

	changed, err = s.Follow(ctx, a, b, t0.Add(4*time.Minute))
	require.NoError(t, err)
	assert.True(t, changed, "reactivated")
}

func TestInMemory_Listings(t *testing.T) {
	ctx := context.Background()
	s := NewInMemory()
	a, b, c := id.NewUserID(), id.NewUserID(), id.NewUserID()
	t0 := time.Now()

	_, _ = s.Follow(ctx, a, b, t0)
	_, _ = s.Follow(ctx, a, c, t0.Add(time.Second))
	_, _ = s.Follow(ctx, c, b, t0.Add(2*time.Second))
	_, _ = s.Unfollow(ctx, a, c, t0.Add(3*time.Second))

	following, err := s.FollowingIDs(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, []id.UserID{b}, following)

	followers, err := s.FollowerIDs(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, []id.UserID{a, c}, followers)

	followers, err = s.FollowerIDs(ctx, a)
	require.NoError(t, err)
	assert.Empty(t, followers)
}
