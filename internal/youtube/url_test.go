package youtube

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tubegrab/internal/extractor"
)

func TestExtractVideoID(t *testing.T) {
	tests := []struct {
		name string
		url  string
	}{
		{"watch", "https://www.youtube.com/watch?v=dQw4w9WgXcQ"},
		{"watch with extra params", "https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=42s&list=PL123"},
		{"short link", "https://youtu.be/dQw4w9WgXcQ"},
		{"short link with params", "https://youtu.be/dQw4w9WgXcQ?si=share"},
		{"shorts", "https://www.youtube.com/shorts/dQw4w9WgXcQ"},
		{"embed", "https://www.youtube.com/embed/dQw4w9WgXcQ"},
		{"live", "https://www.youtube.com/live/dQw4w9WgXcQ"},
		{"mobile", "https://m.youtube.com/watch?v=dQw4w9WgXcQ"},
		{"music", "https://music.youtube.com/watch?v=dQw4w9WgXcQ"},
		{"no www", "http://youtube.com/watch?v=dQw4w9WgXcQ"},
		{"surrounding whitespace", "  https://youtu.be/dQw4w9WgXcQ  "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := ExtractVideoID(tt.url)
			require.NoError(t, err)
			assert.Equal(t, "dQw4w9WgXcQ", id)
		})
	}
}

func TestExtractVideoIDRejects(t *testing.T) {
	tests := []struct {
		name string
		url  string
	}{
		{"empty", ""},
		{"not a url", "not a url"},
		{"wrong host", "https://vimeo.com/123456"},
		{"no video id", "https://www.youtube.com/watch"},
		{"short id", "https://youtu.be/abc"},
		{"long id", "https://youtu.be/dQw4w9WgXcQtoolong"},
		{"bad chars", "https://www.youtube.com/watch?v=dQw4w9WgX!Q"},
		{"bare id", "dQw4w9WgXcQ"},
		{"file scheme", "file:///etc/passwd"},
		{"channel page", "https://www.youtube.com/@SomeChannel"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ExtractVideoID(tt.url)
			assert.ErrorIs(t, err, extractor.ErrInvalidURL)
		})
	}
}
