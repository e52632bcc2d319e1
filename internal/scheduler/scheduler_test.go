package scheduler

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tubegrab/internal/extractor"
	"tubegrab/internal/models"
	"tubegrab/internal/results"
	"tubegrab/internal/storage"
	"tubegrab/internal/vault"
	"tubegrab/internal/worker"
)

const testURL = "https://www.youtube.com/watch?v=dQw4w9WgXcQ"

func setupScheduler(t *testing.T, handler worker.Handler) (*Scheduler, *storage.JobRepository) {
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

	holderID := HolderID()
	pool := worker.NewPool(holderID, jobs, v, store, worker.Config{Concurrency: 2})
	pool.Register(models.DownloadTranscript, handler)

	return New(jobs, pool, holderID, 10*time.Millisecond, 10*time.Minute), jobs
}

func TestSchedulerRunsQueuedJobs(t *testing.T) {
	done := make(chan string, 4)
	sched, jobs := setupScheduler(t, func(ctx context.Context, job *models.Job, credentials []byte) (*extractor.Result, error) {
		done <- job.ID
		// No outputs to publish; the job still completes.
		return &extractor.Result{VideoID: "dQw4w9WgXcQ", Title: "t"}, nil
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	created, err := jobs.Create(ctx, "alice", models.DownloadTranscript, testURL, 3)
	require.NoError(t, err)

	go sched.Run(ctx)

	select {
	case id := <-done:
		assert.Equal(t, created.ID, id)
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler never dispatched the job")
	}

	require.Eventually(t, func() bool {
		job, err := jobs.GetByID(context.Background(), created.ID)
		return err == nil && job.Status == models.JobStatusCompleted
	}, 5*time.Second, 10*time.Millisecond)
}

func TestSchedulerStopsOnCancel(t *testing.T) {
	sched, _ := setupScheduler(t, func(ctx context.Context, job *models.Job, credentials []byte) (*extractor.Result, error) {
		return nil, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- sched.Run(ctx) }()

	cancel()
	select {
	case err := <-errc:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop on cancel")
	}
}

func TestHolderIDUnique(t *testing.T) {
	a := HolderID()
	b := HolderID()
	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}
