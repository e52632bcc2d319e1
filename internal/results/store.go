// Package results persists completed extraction artifacts on durable storage.
// Artifacts become visible only through an atomic publish (write to a .part
// temp file, then rename), so a partially written file is never observable.
package results

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"tubegrab/internal/models"
	"tubegrab/internal/storage"
)

var (
	// ErrNotReady is returned when artifacts are requested for a job that
	// has not completed.
	ErrNotReady = errors.New("job result not ready")

	// ErrNotFound is returned when no artifact matches the request.
	ErrNotFound = errors.New("artifact not found")
)

// Store addresses artifacts by job id under a base directory.
type Store struct {
	dir  string
	jobs *storage.JobRepository
}

// NewStore creates a Store rooted at dir.
func NewStore(dir string, jobs *storage.JobRepository) *Store {
	return &Store{dir: dir, jobs: jobs}
}

func (s *Store) jobDir(jobID string) string {
	return filepath.Join(s.dir, jobID)
}

// Publish writes r into the job's directory under name and atomically commits
// it. Returns the artifact ref (job-relative path) and the byte count.
func (s *Store) Publish(ctx context.Context, jobID, name string, r io.Reader) (string, int64, error) {
	dir := s.jobDir(jobID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", 0, errors.Wrap(err, "failed to create result directory")
	}

	final := filepath.Join(dir, name)
	tmp := final + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return "", 0, errors.Wrap(err, "failed to create temp artifact")
	}
	size, err := io.Copy(f, r)
	if err != nil {
		f.Close()
		os.Remove(tmp)
		return "", 0, errors.Wrap(err, "failed to write artifact")
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return "", 0, errors.Wrap(err, "failed to flush artifact")
	}
	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return "", 0, errors.Wrap(err, "failed to commit artifact")
	}
	return filepath.Join(jobID, name), size, nil
}

// PublishFile commits an extractor-written temp file into the job's directory
// under name. The source is consumed on success.
func (s *Store) PublishFile(ctx context.Context, jobID, name, srcPath string) (string, int64, error) {
	src, err := os.Open(srcPath)
	if err != nil {
		return "", 0, errors.Wrap(err, "failed to open extraction output")
	}
	defer src.Close()

	ref, size, err := s.Publish(ctx, jobID, name, src)
	if err != nil {
		return "", 0, err
	}
	os.Remove(srcPath)
	return ref, size, nil
}

// Fetch opens an artifact of a completed job. ErrNotReady when the job is not
// completed; ErrNotFound when the job or the requested format is unknown.
// formatTag may be empty to fetch the job's primary artifact.
func (s *Store) Fetch(ctx context.Context, jobID, formatTag string) (io.ReadCloser, *models.ResultArtifact, error) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, nil, err
	}
	if job.Status != models.JobStatusCompleted {
		return nil, nil, errors.Wrapf(ErrNotReady, "job %s is %s", jobID, job.Status)
	}

	artifacts, err := s.List(jobID)
	if err != nil {
		return nil, nil, err
	}
	for i := range artifacts {
		a := &artifacts[i]
		if formatTag != "" && a.FormatTag != formatTag {
			continue
		}
		if formatTag == "" && job.ResultRef != "" && filepath.Base(job.ResultRef) != a.Name {
			continue
		}
		f, err := os.Open(filepath.Join(s.jobDir(jobID), a.Name))
		if err != nil {
			return nil, nil, errors.Wrap(err, "failed to open artifact")
		}
		return f, a, nil
	}
	return nil, nil, errors.Wrapf(ErrNotFound, "job %s has no %q artifact", jobID, formatTag)
}

// List returns the job's published artifacts. Uncommitted .part files are
// never listed.
func (s *Store) List(jobID string) ([]models.ResultArtifact, error) {
	entries, err := os.ReadDir(s.jobDir(jobID))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to read result directory")
	}

	var artifacts []models.ResultArtifact
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasSuffix(name, ".part") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		artifacts = append(artifacts, models.ResultArtifact{
			JobID:     jobID,
			FormatTag: formatTagOf(name),
			Name:      name,
			SizeBytes: info.Size(),
			WrittenAt: info.ModTime().UTC(),
		})
	}
	return artifacts, nil
}

// Discard removes everything published for a job. Used when a publish races a
// cancellation and loses.
func (s *Store) Discard(jobID string) error {
	return os.RemoveAll(s.jobDir(jobID))
}

// formatTagOf recovers the format tag from the canonical artifact name
// (the segment between the last underscore and the extension).
func formatTagOf(name string) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	idx := strings.LastIndex(base, "_")
	if idx < 0 {
		return ""
	}
	return base[idx+1:]
}
