package youtube

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/pkg/errors"

	"tubegrab/internal/extractor"
)

var videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// ExtractVideoID pulls the 11-character video id out of the common YouTube
// URL shapes (watch, youtu.be, shorts, embed, live). Anything else fails with
// extractor.ErrInvalidURL.
func ExtractVideoID(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil {
		return "", errors.Wrapf(extractor.ErrInvalidURL, "unparseable URL %q", raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", errors.Wrapf(extractor.ErrInvalidURL, "unsupported scheme %q", u.Scheme)
	}

	host := strings.ToLower(u.Hostname())
	host = strings.TrimPrefix(host, "www.")
	host = strings.TrimPrefix(host, "m.")

	var id string
	switch host {
	case "youtube.com", "music.youtube.com":
		switch {
		case u.Path == "/watch":
			id = u.Query().Get("v")
		case strings.HasPrefix(u.Path, "/shorts/"),
			strings.HasPrefix(u.Path, "/embed/"),
			strings.HasPrefix(u.Path, "/live/"):
			parts := strings.Split(strings.Trim(u.Path, "/"), "/")
			if len(parts) == 2 {
				id = parts[1]
			}
		}
	case "youtu.be":
		id = strings.Trim(u.Path, "/")
	default:
		return "", errors.Wrapf(extractor.ErrInvalidURL, "unrecognized host %q", u.Hostname())
	}

	if !videoIDPattern.MatchString(id) {
		return "", errors.Wrapf(extractor.ErrInvalidURL, "no video id in %q", raw)
	}
	return id, nil
}
