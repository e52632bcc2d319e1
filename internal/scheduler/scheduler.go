// Package scheduler promotes eligible jobs to workers. It polls the job store
// on a fixed cadence and claims with an atomic conditional update, so any
// number of scheduler instances can share one database safely.
package scheduler

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"tubegrab/internal/storage"
	"tubegrab/internal/worker"
)

// Scheduler claims jobs and hands each to exactly one worker slot.
type Scheduler struct {
	jobs     *storage.JobRepository
	pool     *worker.Pool
	holderID string
	interval time.Duration
	leaseTTL time.Duration
}

// New creates a Scheduler claiming under holderID.
func New(jobs *storage.JobRepository, pool *worker.Pool, holderID string, interval, leaseTTL time.Duration) *Scheduler {
	return &Scheduler{
		jobs:     jobs,
		pool:     pool,
		holderID: holderID,
		interval: interval,
		leaseTTL: leaseTTL,
	}
}

// HolderID builds a claim holder identity unique to this process.
func HolderID() string {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return fmt.Sprintf("%s-%d-%s", host, os.Getpid(), uuid.New().String()[:8])
}

// Run polls until ctx is cancelled, then waits for in-flight jobs to settle.
func (s *Scheduler) Run(ctx context.Context) error {
	log.WithFields(log.Fields{
		"holder":   s.holderID,
		"interval": s.interval,
		"lease":    s.leaseTTL,
	}).Info("Scheduler started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("Scheduler stopping; draining workers")
			s.pool.Wait()
			return ctx.Err()
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick claims as many eligible jobs as there are free worker slots. A worker
// slot is reserved before claiming so a claimed job never waits unleased.
func (s *Scheduler) tick(ctx context.Context) {
	for {
		if !s.pool.Reserve() {
			return
		}
		job, err := s.jobs.Claim(ctx, s.holderID, s.leaseTTL)
		if err != nil {
			s.pool.Release()
			// Storage trouble is fatal for this iteration only; the next
			// tick retries.
			log.WithError(err).Error("Job claim failed")
			return
		}
		if job == nil {
			s.pool.Release()
			return
		}
		log.WithFields(log.Fields{"job": job.ID, "type": job.DownloadType}).Debug("Claimed job")
		s.pool.Dispatch(ctx, job)
	}
}
