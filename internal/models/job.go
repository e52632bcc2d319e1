package models

import "time"

// DownloadType identifies which artifact a job extracts.
type DownloadType string

const (
	DownloadAudio      DownloadType = "audio"
	DownloadVideo      DownloadType = "video"
	DownloadTranscript DownloadType = "transcript"
)

// Valid reports whether t is one of the recognized download types.
func (t DownloadType) Valid() bool {
	switch t {
	case DownloadAudio, DownloadVideo, DownloadTranscript:
		return true
	}
	return false
}

// JobStatus is the lifecycle state of a job.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusCancelled  JobStatus = "cancelled"
)

// Terminal reports whether a job in this status will never run again.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// Job is one requested extraction unit, tracked end-to-end.
// HolderID/ClaimedAt form the lease a single worker holds while executing;
// both are cleared when the job leaves processing.
type Job struct {
	ID           string       `json:"id"`
	OwnerID      string       `json:"owner_id"`
	DownloadType DownloadType `json:"download_type"`
	SourceURL    string       `json:"source_url"`
	Status       JobStatus    `json:"status"`
	AttemptCount int          `json:"attempt_count"`
	MaxAttempts  int          `json:"max_attempts"`
	HolderID     string       `json:"-"`
	ClaimedAt    *time.Time   `json:"-"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
	CompletedAt  *time.Time   `json:"completed_at,omitempty"`
	ResultRef    string       `json:"result_ref,omitempty"`
	ErrorKind    string       `json:"error_kind,omitempty"`
	ErrorMessage string       `json:"error_message,omitempty"`
}

// ClaimLive reports whether the job carries a claim that has not yet expired
// at the given instant. An absent claim is never live.
func (j *Job) ClaimLive(now time.Time, leaseTTL time.Duration) bool {
	if j.ClaimedAt == nil {
		return false
	}
	return now.Sub(*j.ClaimedAt) < leaseTTL
}
