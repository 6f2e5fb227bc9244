//go:build integration

package review_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cinelog/internal/platform/postgres"
	"cinelog/internal/review/models"
	"cinelog/internal/review/store/review"
	usermodels "cinelog/internal/user/models"
	userstore "cinelog/internal/user/store/user"
	id "cinelog/pkg/domain"
	"cinelog/pkg/platform/sentinel"
	"cinelog/pkg/testutil/containers"
)

func TestPostgresStore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()
	pg := containers.StartPostgres(t)
	require.NoError(t, postgres.EnsureSchema(ctx, pg.DB))

	author := &usermodels.User{
		ID: id.NewUserID(), Username: "critic", PasswordHash: "x", Age: 50,
		Gender: usermodels.GenderMale, CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, userstore.NewPostgres(pg.DB).Create(ctx, author))

	store := review.NewPostgres(pg.DB)
	r := &models.Review{
		ID: id.NewReviewID(), AuthorID: author.ID, MovieID: id.NewMovieID(),
		Title: "Alien", Content: "Still scary.", CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
	require.NoError(t, store.Create(ctx, r))

	found, err := store.FindByID(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, r.AuthorID, found.AuthorID)
	assert.Equal(t, r.MovieID, found.MovieID)
	assert.True(t, r.CreatedAt.Equal(found.CreatedAt))

	assert.ErrorIs(t, store.Create(ctx, r), sentinel.ErrConflict)

	orphan := *r
	orphan.ID = id.NewReviewID()
	orphan.AuthorID = id.NewUserID()
	assert.ErrorIs(t, store.Create(ctx, &orphan), sentinel.ErrNotFound)

	_, err = store.FindByID(ctx, id.NewReviewID())
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}
