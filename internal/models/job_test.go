package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDownloadTypeValid(t *testing.T) {
	assert.True(t, DownloadAudio.Valid())
	assert.True(t, DownloadVideo.Valid())
	assert.True(t, DownloadTranscript.Valid())
	assert.False(t, DownloadType("playlist").Valid())
	assert.False(t, DownloadType("").Valid())
}

func TestJobStatusTerminal(t *testing.T) {
	for _, s := range []JobStatus{JobStatusPending, JobStatusQueued, JobStatusProcessing} {
		assert.False(t, s.Terminal(), string(s))
	}
	for _, s := range []JobStatus{JobStatusCompleted, JobStatusFailed, JobStatusCancelled} {
		assert.True(t, s.Terminal(), string(s))
	}
}

func TestClaimLive(t *testing.T) {
	now := time.Now()
	ttl := 10 * time.Minute

	unclaimed := &Job{}
	assert.False(t, unclaimed.ClaimLive(now, ttl))

	fresh := now.Add(-time.Minute)
	claimed := &Job{ClaimedAt: &fresh}
	assert.True(t, claimed.ClaimLive(now, ttl))

	stale := now.Add(-time.Hour)
	expired := &Job{ClaimedAt: &stale}
	assert.False(t, expired.ClaimLive(now, ttl))
}

func TestCookieRecordExpired(t *testing.T) {
	now := time.Now()
	rec := &CookieRecord{ExpiresAt: now.Add(time.Hour)}
	assert.False(t, rec.Expired(now))
	// Boundary: a record expiring exactly now is already gone.
	rec.ExpiresAt = now
	assert.True(t, rec.Expired(now))
	rec.ExpiresAt = now.Add(-time.Hour)
	assert.True(t, rec.Expired(now))
}
