package youtube

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// CaptionEntry is one caption cue.
type CaptionEntry struct {
	StartTime time.Duration `json:"start_time"`
	Duration  time.Duration `json:"duration"`
	Text      string        `json:"text"`
}

// EndTime returns the cue's end timestamp.
func (e *CaptionEntry) EndTime() time.Duration {
	return e.StartTime + e.Duration
}

// CaptionResult is a fetched caption track.
type CaptionResult struct {
	LanguageCode string         `json:"language_code"`
	Entries      []CaptionEntry `json:"entries"`
}

// FormatClean renders the transcript as plain text, one cue per line.
func (r *CaptionResult) FormatClean() string {
	var sb strings.Builder
	for _, entry := range r.Entries {
		sb.WriteString(entry.Text)
		sb.WriteString("\n")
	}
	return strings.TrimSpace(sb.String())
}

// FormatTimestamped renders the transcript with a [HH:MM:SS] prefix per cue.
func (r *CaptionResult) FormatTimestamped() string {
	var sb strings.Builder
	for _, entry := range r.Entries {
		sb.WriteString(fmt.Sprintf("[%s] %s\n", formatClockTime(entry.StartTime), entry.Text))
	}
	return strings.TrimSpace(sb.String())
}

// FormatJSON renders the transcript as structured JSON.
func (r *CaptionResult) FormatJSON() (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal transcript: %w", err)
	}
	return string(data), nil
}

// formatClockTime renders HH:MM:SS.
func formatClockTime(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
