package models

import "time"

// ResultArtifact describes one published output file of a completed job.
type ResultArtifact struct {
	JobID     string    `json:"job_id"`
	FormatTag string    `json:"format_tag"`
	Name      string    `json:"name"`
	SizeBytes int64     `json:"size_bytes"`
	WrittenAt time.Time `json:"written_at"`
}
