// Package worker executes claimed extraction jobs to a terminal-for-this-
// attempt outcome: it bumps the attempt counter, fetches credentials, invokes
// the registered handler, and settles the job through the result store and
// job repository.
package worker

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"tubegrab/internal/classify"
	"tubegrab/internal/extractor"
	"tubegrab/internal/models"
	"tubegrab/internal/results"
	"tubegrab/internal/storage"
	"tubegrab/internal/vault"
)

// Handler performs the extraction for one download type.
type Handler func(ctx context.Context, job *models.Job, credentials []byte) (*extractor.Result, error)

// ExtractorHandler adapts an Extractor into a Handler for one download type.
// Register one per type at startup; the set of types is closed.
func ExtractorHandler(ext extractor.Extractor, downloadType models.DownloadType) Handler {
	return func(ctx context.Context, job *models.Job, credentials []byte) (*extractor.Result, error) {
		return ext.Extract(ctx, job.SourceURL, downloadType, credentials)
	}
}

// Config bounds the pool's concurrency and retry backoff.
type Config struct {
	Concurrency int
	BackoffBase time.Duration
	BackoffCap  time.Duration
}

// Pool runs up to Concurrency jobs at once. The scheduler reserves a slot
// before claiming so a claimed job is never left waiting for a worker.
type Pool struct {
	jobs     *storage.JobRepository
	vault    *vault.Vault
	results  *results.Store
	holderID string
	cfg      Config

	mu       sync.RWMutex
	handlers map[models.DownloadType]Handler

	sem chan struct{}
	wg  sync.WaitGroup
}

// NewPool creates a worker pool. holderID must match the id the scheduler
// claims under; it guards every transition the pool performs.
func NewPool(holderID string, jobs *storage.JobRepository, v *vault.Vault, res *results.Store, cfg Config) *Pool {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return &Pool{
		jobs:     jobs,
		vault:    v,
		results:  res,
		holderID: holderID,
		cfg:      cfg,
		handlers: make(map[models.DownloadType]Handler),
		sem:      make(chan struct{}, cfg.Concurrency),
	}
}

// Register installs the handler for a download type.
func (p *Pool) Register(downloadType models.DownloadType, h Handler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers[downloadType] = h
}

// Reserve acquires a worker slot without blocking. Callers that reserve but
// do not dispatch must Release.
func (p *Pool) Reserve() bool {
	select {
	case p.sem <- struct{}{}:
		return true
	default:
		return false
	}
}

// Release returns an unused reservation.
func (p *Pool) Release() {
	<-p.sem
}

// Dispatch runs a claimed job on a previously reserved slot.
func (p *Pool) Dispatch(ctx context.Context, job *models.Job) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.Release()
		p.process(ctx, job)
	}()
}

// Wait blocks until all in-flight jobs have settled.
func (p *Pool) Wait() {
	p.wg.Wait()
}

func (p *Pool) process(ctx context.Context, job *models.Job) {
	logger := log.WithFields(log.Fields{
		"job":   job.ID,
		"type":  job.DownloadType,
		"owner": job.OwnerID,
	})

	attempt, err := p.jobs.BumpAttempt(ctx, job.ID, p.holderID)
	if err != nil {
		if errors.Is(err, storage.ErrConflict) {
			p.settleIfExhausted(ctx, logger, job)
		} else {
			logger.WithError(err).Error("Failed to record attempt")
		}
		return
	}
	logger = logger.WithField("attempt", attempt)

	credentials, err := p.vault.Get(ctx, job.OwnerID)
	if err != nil {
		// Missing credentials degrade the extraction, they don't abort it.
		logger.WithError(err).Warn("Credential lookup failed; proceeding without cookies")
		credentials = nil
	}

	p.mu.RLock()
	handler, ok := p.handlers[job.DownloadType]
	p.mu.RUnlock()
	if !ok {
		p.settleFailed(ctx, logger, job, classify.KindInvalidInput,
			errors.Errorf("no handler registered for download type %q", job.DownloadType))
		return
	}

	logger.Info("Processing job")
	result, err := handler(ctx, job, credentials)
	if err != nil {
		p.handleFailure(ctx, logger, job, attempt, err)
		return
	}
	p.complete(ctx, logger, job, attempt, result)
	if result.ScratchDir != "" {
		if err := os.RemoveAll(result.ScratchDir); err != nil {
			logger.WithError(err).Warn("Failed to remove scratch directory")
		}
	}
}

// settleIfExhausted handles a job reclaimed from a holder that died after
// recording its final attempt: BumpAttempt refuses because the counter is at
// the ceiling, but nobody has settled the job, so without intervention it
// cycles through claim and lease expiry forever.
func (p *Pool) settleIfExhausted(ctx context.Context, logger *log.Entry, job *models.Job) {
	current, err := p.jobs.GetByID(ctx, job.ID)
	if err != nil {
		logger.WithError(err).Error("Failed to re-read job after attempt conflict")
		return
	}
	if current.Status == models.JobStatusProcessing &&
		current.HolderID == p.holderID &&
		current.AttemptCount >= current.MaxAttempts {
		p.settleFailed(ctx, logger, current, classify.KindUnknown,
			errors.Errorf("no attempts left after %d failures", current.AttemptCount))
		return
	}
	logger.Warn("Lost claim before starting; skipping")
}

func (p *Pool) complete(ctx context.Context, logger *log.Entry, job *models.Job, attempt int, result *extractor.Result) {
	var primaryRef string
	for i, out := range result.Outputs {
		name := results.ArtifactName(result.VideoID, result.LanguageCode, result.Title,
			out.FormatTag, filepath.Ext(out.Path))
		ref, size, err := p.results.PublishFile(ctx, job.ID, name, out.Path)
		if err != nil {
			logger.WithError(err).Error("Failed to publish artifact")
			p.handleFailure(ctx, logger, job, attempt, err)
			return
		}
		logger.WithFields(log.Fields{"artifact": name, "bytes": size}).Debug("Published artifact")
		if i == 0 {
			primaryRef = ref
		}
	}

	if err := p.publishMetadata(ctx, job, result); err != nil {
		logger.WithError(err).Warn("Failed to publish metadata artifact")
	}

	now := time.Now().UTC()
	err := p.jobs.Transition(ctx, job.ID,
		[]models.JobStatus{models.JobStatusProcessing}, models.JobStatusCompleted,
		storage.TransitionFields{HolderID: p.holderID, ResultRef: primaryRef, CompletedAt: &now})
	if err != nil {
		// The job went terminal elsewhere (cancelled, or our lease expired
		// and another worker finished it). Its artifacts must not surface.
		if errors.Is(err, storage.ErrConflict) {
			logger.Warn("Job settled elsewhere; discarding published artifacts")
			if derr := p.results.Discard(job.ID); derr != nil {
				logger.WithError(derr).Error("Failed to discard artifacts")
			}
			return
		}
		logger.WithError(err).Error("Failed to complete job")
		return
	}
	logger.WithField("result", primaryRef).Info("Job completed")
}

func (p *Pool) handleFailure(ctx context.Context, logger *log.Entry, job *models.Job, attempt int, jobErr error) {
	kind, retryable := classify.Classify(jobErr)
	logger = logger.WithFields(log.Fields{"kind": kind, "retryable": retryable})
	logger.WithError(jobErr).Warn("Job attempt failed")

	if retryable && attempt < job.MaxAttempts {
		delay := backoffDelay(p.cfg.BackoffBase, p.cfg.BackoffCap, attempt)
		select {
		case <-ctx.Done():
			// Shutting down; skip the backoff and release immediately so the
			// job does not wait out the lease TTL.
		case <-time.After(delay):
		}
		if err := p.jobs.ReleaseForRetry(context.WithoutCancel(ctx), job.ID, p.holderID); err != nil {
			logger.WithError(err).Error("Failed to requeue job")
			return
		}
		logger.WithField("backoff", delay).Info("Job requeued for retry")
		return
	}

	p.settleFailed(ctx, logger, job, kind, jobErr)
}

func (p *Pool) settleFailed(ctx context.Context, logger *log.Entry, job *models.Job, kind classify.Kind, jobErr error) {
	err := p.jobs.Transition(context.WithoutCancel(ctx), job.ID,
		[]models.JobStatus{models.JobStatusProcessing}, models.JobStatusFailed,
		storage.TransitionFields{
			HolderID:     p.holderID,
			ErrorKind:    string(kind),
			ErrorMessage: truncate(jobErr.Error(), 1000),
		})
	if err != nil {
		if errors.Is(err, storage.ErrConflict) {
			logger.Warn("Job settled elsewhere; dropping failure verdict")
			return
		}
		logger.WithError(err).Error("Failed to mark job failed")
		return
	}
	logger.Info("Job failed terminally")
}

// metadataArtifact is the sidecar JSON published alongside every completed
// job's outputs.
type metadataArtifact struct {
	JobID        string                  `json:"job_id"`
	SourceURL    string                  `json:"source_url"`
	DownloadType models.DownloadType     `json:"download_type"`
	VideoID      string                  `json:"video_id"`
	LanguageCode string                  `json:"language_code,omitempty"`
	Title        string                  `json:"title"`
	Artifacts    []models.ResultArtifact `json:"artifacts"`
	WrittenAt    time.Time               `json:"written_at"`
}

func (p *Pool) publishMetadata(ctx context.Context, job *models.Job, result *extractor.Result) error {
	artifacts, err := p.results.List(job.ID)
	if err != nil {
		return err
	}
	meta := metadataArtifact{
		JobID:        job.ID,
		SourceURL:    job.SourceURL,
		DownloadType: job.DownloadType,
		VideoID:      result.VideoID,
		LanguageCode: result.LanguageCode,
		Title:        result.Title,
		Artifacts:    artifacts,
		WrittenAt:    time.Now().UTC(),
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	name := results.ArtifactName(result.VideoID, result.LanguageCode, result.Title, "metadata", "json")
	_, _, err = p.results.Publish(ctx, job.ID, name, strings.NewReader(string(data)))
	return err
}

// backoffDelay is exponential in the attempt number: base*2^(attempt-1),
// capped.
func backoffDelay(base, ceiling time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}
	delay := base
	for i := 1; i < attempt && delay < ceiling; i++ {
		delay *= 2
	}
	if delay > ceiling {
		delay = ceiling
	}
	return delay
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
