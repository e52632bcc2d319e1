package results

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeTitle(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Some Video Title", "some_video_title"},
		{"Rick Astley - Never Gonna Give You Up (Official)", "rick_astley_never_gonna_give_you_up_official"},
		{"日本語タイトル", "untitled"},
		{"  __weird__  ", "weird"},
		{"", "untitled"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SanitizeTitle(tt.in))
	}

	long := SanitizeTitle(strings.Repeat("abcde ", 30))
	assert.LessOrEqual(t, len(long), 60)
	assert.False(t, strings.HasSuffix(long, "_"))
}

func TestArtifactName(t *testing.T) {
	assert.Equal(t, "dQw4w9WgXcQ_en_my_video_clean.txt",
		ArtifactName("dQw4w9WgXcQ", "en", "My Video", "clean", "txt"))
	assert.Equal(t, "dQw4w9WgXcQ_en_my_video_audio.m4a",
		ArtifactName("dQw4w9WgXcQ", "en", "My Video", "audio", ".m4a"))
	// An unknown language falls back to the und tag.
	assert.Equal(t, "dQw4w9WgXcQ_und_my_video_video.mp4",
		ArtifactName("dQw4w9WgXcQ", "", "My Video", "video", "mp4"))
}

func TestFormatTagRoundtrip(t *testing.T) {
	for _, tag := range []string{"audio", "video", "clean", "timestamped", "structured", "metadata"} {
		name := ArtifactName("dQw4w9WgXcQ", "en", "Some Title", tag, "dat")
		assert.Equal(t, tag, formatTagOf(name))
	}
}
