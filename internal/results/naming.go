package results

import (
	"fmt"
	"regexp"
	"strings"
)

const maxTitleLen = 60

var nonWord = regexp.MustCompile(`[^a-z0-9]+`)

// SanitizeTitle reduces a video title to a filesystem-safe slug: lowercase
// alphanumerics with single underscores, trimmed and length-capped.
func SanitizeTitle(title string) string {
	s := nonWord.ReplaceAllString(strings.ToLower(title), "_")
	s = strings.Trim(s, "_")
	if len(s) > maxTitleLen {
		s = strings.Trim(s[:maxTitleLen], "_")
	}
	if s == "" {
		s = "untitled"
	}
	return s
}

// ArtifactName builds the canonical artifact file name
// {video_id}_{language_code}_{sanitized_title}_{format_tag}.{extension}.
// Downstream consumers parse this shape; keep it bit-exact.
func ArtifactName(videoID, languageCode, title, formatTag, extension string) string {
	if languageCode == "" {
		languageCode = "und"
	}
	extension = strings.TrimPrefix(extension, ".")
	return fmt.Sprintf("%s_%s_%s_%s.%s", videoID, languageCode, SanitizeTitle(title), formatTag, extension)
}
