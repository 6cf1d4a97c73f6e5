package attempts_test

import (
	"context"
	"testing"
	"time"

	"github.com/gistdeck/gistdeck/auth/attempts"
	"github.com/stretchr/testify/require"
)

func TestInMemoryRepo_TakeIsSingleUse(t *testing.T) {
	repo := attempts.NewInMemoryRepo()
	ctx := context.Background()

	err := repo.Upsert(ctx, "sid-1", &attempts.Attempt{
		State:        "state-1",
		CodeVerifier: "verifier-1",
		CreatedAt:    time.Now(),
	})
	require.NoError(t, err)

	attempt, err := repo.Take(ctx, "sid-1")
	require.NoError(t, err)
	require.Equal(t, "state-1", attempt.State)
	require.Equal(t, "verifier-1", attempt.CodeVerifier)

	// A second Take observes an already-consumed attempt.
	_, err = repo.Take(ctx, "sid-1")
	require.ErrorIs(t, err, attempts.ErrNotFound)
}

func TestInMemoryRepo_UpsertOverwrites(t *testing.T) {
	repo := attempts.NewInMemoryRepo()
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, "sid-1", &attempts.Attempt{State: "S1", CodeVerifier: "V1", CreatedAt: time.Now()}))
	require.NoError(t, repo.Upsert(ctx, "sid-1", &attempts.Attempt{State: "S2", CodeVerifier: "V2", CreatedAt: time.Now()}))

	attempt, err := repo.Take(ctx, "sid-1")
	require.NoError(t, err)
	require.Equal(t, "S2", attempt.State, "newer attempt must replace the older one")
}

func TestInMemoryRepo_DeleteIsIdempotent(t *testing.T) {
	repo := attempts.NewInMemoryRepo()
	ctx := context.Background()

	require.NoError(t, repo.Delete(ctx, "missing"))

	require.NoError(t, repo.Upsert(ctx, "sid-1", &attempts.Attempt{State: "S1", CreatedAt: time.Now()}))
	require.NoError(t, repo.Delete(ctx, "sid-1"))
	require.NoError(t, repo.Delete(ctx, "sid-1"))

	_, err := repo.Take(ctx, "sid-1")
	require.ErrorIs(t, err, attempts.ErrNotFound)
}

func TestInMemoryRepo_DeleteExpired(t *testing.T) {
	repo := attempts.NewInMemoryRepo()
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, repo.Upsert(ctx, "old", &attempts.Attempt{State: "S-old", CreatedAt: now.Add(-10 * time.Minute)}))
	require.NoError(t, repo.Upsert(ctx, "fresh", &attempts.Attempt{State: "S-fresh", CreatedAt: now}))

	require.NoError(t, repo.DeleteExpired(ctx, now.Add(-5*time.Minute)))

	_, err := repo.Take(ctx, "old")
	require.ErrorIs(t, err, attempts.ErrNotFound)

	attempt, err := repo.Take(ctx, "fresh")
	require.NoError(t, err)
	require.Equal(t, "S-fresh", attempt.State)
}

func TestInMemoryRepo_Validation(t *testing.T) {
	repo := attempts.NewInMemoryRepo()
	ctx := context.Background()

	require.Error(t, repo.Upsert(ctx, "", &attempts.Attempt{State: "S"}))
	require.Error(t, repo.Upsert(ctx, "sid", nil))

	_, err := repo.Take(ctx, "")
	require.Error(t, err)
}
