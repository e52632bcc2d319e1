package worker

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tubegrab/internal/classify"
	"tubegrab/internal/extractor"
	"tubegrab/internal/models"
	"tubegrab/internal/results"
	"tubegrab/internal/storage"
	"tubegrab/internal/vault"
)

const (
	testURL    = "https://www.youtube.com/watch?v=dQw4w9WgXcQ"
	testHolder = "test-holder"
)

type poolEnv struct {
	db    *storage.DB
	jobs  *storage.JobRepository
	store *results.Store
	pool  *Pool
	dir   string
}

func setupPool(t *testing.T) *poolEnv {
	t.Helper()

	tmp := t.TempDir()
	db, err := storage.Open(filepath.Join(tmp, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	jobs := storage.NewJobRepository(db)
	v, err := vault.New(storage.NewCookieRepository(db), "test-secret", time.Hour)
	require.NoError(t, err)
	t.Cleanup(v.Stop)

	store := results.NewStore(filepath.Join(tmp, "results"), jobs)
	pool := NewPool(testHolder, jobs, v, store, Config{
		Concurrency: 2,
		BackoffBase: time.Millisecond,
		BackoffCap:  5 * time.Millisecond,
	})
	return &poolEnv{db: db, jobs: jobs, store: store, pool: pool, dir: tmp}
}

// fakeOutput writes a scratch file under dir the way an extractor would, so
// PublishFile has something to consume.
func fakeOutput(t *testing.T, dir, tag, content string) extractor.Output {
	t.Helper()
	f, err := os.CreateTemp(dir, "scratch-")
	require.NoError(t, err)
	_, err = f.WriteString(content)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	return extractor.Output{FormatTag: tag, Path: f.Name()}
}

// runOnce claims the next eligible job and runs it to a settled state.
func (e *poolEnv) runOnce(t *testing.T, ctx context.Context) *models.Job {
	t.Helper()
	job, err := e.jobs.Claim(ctx, testHolder, 10*time.Minute)
	require.NoError(t, err)
	require.NotNil(t, job)
	require.True(t, e.pool.Reserve())
	e.pool.Dispatch(ctx, job)
	e.pool.Wait()
	return job
}

func TestPoolCompletesJob(t *testing.T) {
	env := setupPool(t)
	ctx := context.Background()

	scratch := filepath.Join(env.dir, "extract-scratch")
	require.NoError(t, os.MkdirAll(scratch, 0755))
	env.pool.Register(models.DownloadTranscript, func(ctx context.Context, job *models.Job, credentials []byte) (*extractor.Result, error) {
		return &extractor.Result{
			VideoID:      "dQw4w9WgXcQ",
			LanguageCode: "en",
			Title:        "Test Video",
			Outputs: []extractor.Output{
				fakeOutput(t, scratch, "clean", "clean text"),
				fakeOutput(t, scratch, "timestamped", "[00:00:01] clean text"),
			},
			ScratchDir: scratch,
		}, nil
	})

	created, err := env.jobs.Create(ctx, "alice", models.DownloadTranscript, testURL, 3)
	require.NoError(t, err)
	env.runOnce(t, ctx)

	job, err := env.jobs.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, job.Status)
	assert.Equal(t, 1, job.AttemptCount)
	assert.NotNil(t, job.CompletedAt)
	assert.Contains(t, job.ResultRef, "clean")

	artifacts, err := env.store.List(created.ID)
	require.NoError(t, err)
	tags := make(map[string]bool)
	for _, a := range artifacts {
		tags[a.FormatTag] = true
	}
	// Both outputs plus the metadata sidecar.
	assert.True(t, tags["clean"] && tags["timestamped"] && tags["metadata"])

	// The scratch directory is gone once its outputs are published.
	_, err = os.Stat(scratch)
	assert.True(t, os.IsNotExist(err))
}

func TestPoolRetriesTransientFailure(t *testing.T) {
	env := setupPool(t)
	ctx := context.Background()

	calls := 0
	env.pool.Register(models.DownloadAudio, func(ctx context.Context, job *models.Job, credentials []byte) (*extractor.Result, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("read tcp: connection reset by peer")
		}
		return &extractor.Result{
			VideoID: "dQw4w9WgXcQ",
			Title:   "Test Video",
			Outputs: []extractor.Output{fakeOutput(t, env.dir, "audio", "audio bytes")},
		}, nil
	})

	created, err := env.jobs.Create(ctx, "alice", models.DownloadAudio, testURL, 3)
	require.NoError(t, err)

	env.runOnce(t, ctx)
	job, err := env.jobs.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusQueued, job.Status)
	assert.Equal(t, 1, job.AttemptCount)
	assert.Empty(t, job.HolderID)

	env.runOnce(t, ctx)
	job, err = env.jobs.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, job.Status)
	assert.Equal(t, 2, job.AttemptCount)
}

func TestPoolFailsTerminallyOnAuthError(t *testing.T) {
	env := setupPool(t)
	ctx := context.Background()

	env.pool.Register(models.DownloadTranscript, func(ctx context.Context, job *models.Job, credentials []byte) (*extractor.Result, error) {
		return nil, errors.Wrap(extractor.ErrAuthRequired, "Sign in to confirm you're not a bot")
	})

	created, err := env.jobs.Create(ctx, "alice", models.DownloadTranscript, testURL, 3)
	require.NoError(t, err)
	env.runOnce(t, ctx)

	job, err := env.jobs.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, job.Status)
	// Not retryable: one attempt, no requeue.
	assert.Equal(t, 1, job.AttemptCount)
	assert.Equal(t, string(classify.KindAuthRequired), job.ErrorKind)
	assert.Contains(t, job.ErrorMessage, "not a bot")
}

func TestPoolExhaustsAttempts(t *testing.T) {
	env := setupPool(t)
	ctx := context.Background()

	env.pool.Register(models.DownloadVideo, func(ctx context.Context, job *models.Job, credentials []byte) (*extractor.Result, error) {
		return nil, errors.New("request timed out")
	})

	created, err := env.jobs.Create(ctx, "alice", models.DownloadVideo, testURL, 2)
	require.NoError(t, err)

	env.runOnce(t, ctx)
	env.runOnce(t, ctx)

	job, err := env.jobs.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, job.Status)
	assert.Equal(t, 2, job.AttemptCount)
	assert.Equal(t, string(classify.KindTransientNetwork), job.ErrorKind)
}

// A worker that dies after recording its final attempt leaves the job
// processing with the counter at the ceiling. Whoever reclaims it after the
// lease expires must settle it failed rather than skip it forever.
func TestPoolSettlesReclaimedExhaustedJob(t *testing.T) {
	env := setupPool(t)
	ctx := context.Background()

	handlerRan := false
	env.pool.Register(models.DownloadAudio, func(ctx context.Context, job *models.Job, credentials []byte) (*extractor.Result, error) {
		handlerRan = true
		return nil, errors.New("should not run")
	})

	created, err := env.jobs.Create(ctx, "alice", models.DownloadAudio, testURL, 1)
	require.NoError(t, err)

	claimed, err := env.jobs.Claim(ctx, "dead-holder", 10*time.Minute)
	require.NoError(t, err)
	require.NotNil(t, claimed)
	_, err = env.jobs.BumpAttempt(ctx, created.ID, "dead-holder")
	require.NoError(t, err)

	// Expire the dead holder's lease.
	_, err = env.db.ExecContext(ctx, "UPDATE jobs SET claimed_at = ? WHERE id = ?",
		time.Now().UTC().Add(-time.Hour), created.ID)
	require.NoError(t, err)

	env.runOnce(t, ctx)

	job, err := env.jobs.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, job.Status)
	assert.Equal(t, 1, job.AttemptCount)
	assert.Equal(t, string(classify.KindUnknown), job.ErrorKind)
	assert.Contains(t, job.ErrorMessage, "no attempts left")
	assert.False(t, handlerRan)
}

func TestPoolUnregisteredTypeFailsTerminally(t *testing.T) {
	env := setupPool(t)
	ctx := context.Background()

	created, err := env.jobs.Create(ctx, "alice", models.DownloadVideo, testURL, 3)
	require.NoError(t, err)
	env.runOnce(t, ctx)

	job, err := env.jobs.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, job.Status)
	assert.Equal(t, string(classify.KindInvalidInput), job.ErrorKind)
}

func TestPoolDiscardsArtifactsWhenCancelledMidFlight(t *testing.T) {
	env := setupPool(t)
	ctx := context.Background()

	started := make(chan struct{})
	release := make(chan struct{})
	env.pool.Register(models.DownloadTranscript, func(ctx context.Context, job *models.Job, credentials []byte) (*extractor.Result, error) {
		close(started)
		<-release
		return &extractor.Result{
			VideoID: "dQw4w9WgXcQ",
			Title:   "Test Video",
			Outputs: []extractor.Output{fakeOutput(t, env.dir, "clean", "text")},
		}, nil
	})

	created, err := env.jobs.Create(ctx, "alice", models.DownloadTranscript, testURL, 3)
	require.NoError(t, err)

	job, err := env.jobs.Claim(ctx, testHolder, 10*time.Minute)
	require.NoError(t, err)
	require.NotNil(t, job)
	require.True(t, env.pool.Reserve())
	env.pool.Dispatch(ctx, job)

	<-started
	require.NoError(t, env.jobs.Cancel(ctx, created.ID))
	close(release)
	env.pool.Wait()

	loaded, err := env.jobs.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCancelled, loaded.Status)

	// The losing publish must not leave artifacts behind.
	artifacts, err := env.store.List(created.ID)
	require.NoError(t, err)
	assert.Empty(t, artifacts)
}

func TestReserveBoundsConcurrency(t *testing.T) {
	env := setupPool(t)

	require.True(t, env.pool.Reserve())
	require.True(t, env.pool.Reserve())
	assert.False(t, env.pool.Reserve())
	env.pool.Release()
	assert.True(t, env.pool.Reserve())
}

func TestBackoffDelay(t *testing.T) {
	base := 5 * time.Second
	ceiling := 60 * time.Second

	assert.Equal(t, 5*time.Second, backoffDelay(base, ceiling, 1))
	assert.Equal(t, 10*time.Second, backoffDelay(base, ceiling, 2))
	assert.Equal(t, 20*time.Second, backoffDelay(base, ceiling, 3))
	assert.Equal(t, 60*time.Second, backoffDelay(base, ceiling, 5))
	assert.Equal(t, 60*time.Second, backoffDelay(base, ceiling, 20))
	assert.Equal(t, time.Duration(0), backoffDelay(0, ceiling, 3))
}
