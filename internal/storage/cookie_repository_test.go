package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tubegrab/internal/models"
)

func setupCookieRepo(t *testing.T) *CookieRepository {
	t.Helper()

	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewCookieRepository(db)
}

func TestCookieUpsertReplaces(t *testing.T) {
	repo := setupCookieRepo(t)
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, repo.Upsert(ctx, &models.CookieRecord{
		OwnerID:     "alice",
		Ciphertext:  []byte("first"),
		SourceLabel: "firefox",
		UploadedAt:  now,
		ExpiresAt:   now.Add(time.Hour),
	}))
	require.NoError(t, repo.Upsert(ctx, &models.CookieRecord{
		OwnerID:     "alice",
		Ciphertext:  []byte("second"),
		SourceLabel: "chrome",
		UploadedAt:  now.Add(time.Minute),
		ExpiresAt:   now.Add(2 * time.Hour),
	}))

	rec, err := repo.Get(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, []byte("second"), rec.Ciphertext)
	assert.Equal(t, "chrome", rec.SourceLabel)
}

func TestCookieGetAbsent(t *testing.T) {
	repo := setupCookieRepo(t)

	rec, err := repo.Get(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestCookieDeleteExpired(t *testing.T) {
	repo := setupCookieRepo(t)
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, repo.Upsert(ctx, &models.CookieRecord{
		OwnerID:    "stale",
		Ciphertext: []byte("x"),
		UploadedAt: now.Add(-2 * time.Hour),
		ExpiresAt:  now.Add(-time.Hour),
	}))
	require.NoError(t, repo.Upsert(ctx, &models.CookieRecord{
		OwnerID:    "fresh",
		Ciphertext: []byte("y"),
		UploadedAt: now,
		ExpiresAt:  now.Add(time.Hour),
	}))

	swept, err := repo.DeleteExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), swept)

	rec, err := repo.Get(ctx, "stale")
	require.NoError(t, err)
	assert.Nil(t, rec)
	rec, err = repo.Get(ctx, "fresh")
	require.NoError(t, err)
	assert.NotNil(t, rec)
}
