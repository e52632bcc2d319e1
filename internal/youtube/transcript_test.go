package youtube

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tubegrab/internal/extractor"
)

const sampleTimedText = `<?xml version="1.0" encoding="utf-8"?>
<timedtext format="3">
  <body>
    <p t="0" d="2500"><s>Hello</s><s> world</s></p>
    <p t="2500" d="1000"></p>
    <p t="3600000" d="2000"><s>one hour in</s></p>
  </body>
</timedtext>`

func sampleResult(t *testing.T) *CaptionResult {
	t.Helper()
	result, err := parseTranscriptXML([]byte(sampleTimedText))
	require.NoError(t, err)
	result.LanguageCode = "en"
	return result
}

func TestParseTranscriptXML(t *testing.T) {
	result := sampleResult(t)

	// Empty cues are dropped.
	require.Len(t, result.Entries, 2)
	assert.Equal(t, "Hello world", result.Entries[0].Text)
	assert.Equal(t, time.Duration(0), result.Entries[0].StartTime)
	assert.Equal(t, 2500*time.Millisecond, result.Entries[0].Duration)
	assert.Equal(t, 2500*time.Millisecond, result.Entries[0].EndTime())
	assert.Equal(t, time.Hour, result.Entries[1].StartTime)
}

func TestParseTranscriptXMLEmpty(t *testing.T) {
	_, err := parseTranscriptXML([]byte(`<timedtext><body></body></timedtext>`))
	assert.ErrorIs(t, err, extractor.ErrNoContent)

	_, err = parseTranscriptXML([]byte(`not xml at all <<<`))
	assert.Error(t, err)
}

func TestFormatClean(t *testing.T) {
	result := sampleResult(t)
	assert.Equal(t, "Hello world\none hour in", result.FormatClean())
}

func TestFormatTimestamped(t *testing.T) {
	result := sampleResult(t)
	assert.Equal(t, "[00:00:00] Hello world\n[01:00:00] one hour in", result.FormatTimestamped())
}

func TestFormatJSON(t *testing.T) {
	result := sampleResult(t)

	out, err := result.FormatJSON()
	require.NoError(t, err)

	var decoded CaptionResult
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, "en", decoded.LanguageCode)
	assert.Len(t, decoded.Entries, 2)
}

func TestFindCaptionPrefersManual(t *testing.T) {
	info := &VideoInfo{Captions: []CaptionTrack{
		{LanguageCode: "en", Kind: "asr", Name: "English (auto-generated)"},
		{LanguageCode: "en", Kind: "", Name: "English"},
		{LanguageCode: "ja", Kind: "", Name: "Japanese"},
	}}

	track := info.FindCaption("en")
	require.NotNil(t, track)
	assert.Equal(t, "English", track.Name)

	// No track for the language: fall back to the first manual track.
	track = info.FindCaption("fr")
	require.NotNil(t, track)
	assert.Equal(t, "English", track.Name)

	asrOnly := &VideoInfo{Captions: []CaptionTrack{
		{LanguageCode: "ja", Kind: "asr"},
	}}
	track = asrOnly.FindCaption("en")
	require.NotNil(t, track)
	assert.Equal(t, "ja", track.LanguageCode)

	assert.Nil(t, (&VideoInfo{}).FindCaption("en"))
}
