package youtube

import (
	"context"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	ytdl "github.com/kkdai/youtube/v2"
	"github.com/pkg/errors"

	"tubegrab/internal/extractor"
	"tubegrab/internal/netscape"
)

// Client wraps the YouTube API operations. When built with a credential blob,
// every request (video info, stream, caption fetch) carries those cookies.
type Client struct {
	yt         ytdl.Client
	httpClient *http.Client
}

// NewClient creates a YouTube client. credentials, when non-nil, is a
// plaintext Netscape cookie-jar as returned by the vault.
func NewClient(credentials []byte) (*Client, error) {
	httpClient := &http.Client{Timeout: 10 * time.Minute}

	if credentials != nil {
		entries, err := netscape.Parse(credentials)
		if err != nil {
			return nil, errors.Wrap(err, "failed to parse credential blob")
		}
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, errors.Wrap(err, "failed to create cookie jar")
		}
		for _, origin := range []string{"https://www.youtube.com/", "https://accounts.google.com/"} {
			u, _ := url.Parse(origin)
			jar.SetCookies(u, netscape.HTTPCookies(entries))
		}
		httpClient.Jar = jar
	}

	return &Client{
		yt:         ytdl.Client{HTTPClient: httpClient},
		httpClient: httpClient,
	}, nil
}

// VideoInfo is the metadata of a single video.
type VideoInfo struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Author      string         `json:"author"`
	Duration    time.Duration  `json:"duration"`
	Description string         `json:"description"`
	Captions    []CaptionTrack `json:"captions"`
}

// CaptionTrack describes one available caption track. Kind is "asr" for
// auto-generated tracks, empty for manually authored ones.
type CaptionTrack struct {
	LanguageCode string `json:"language_code"`
	Name         string `json:"name"`
	Kind         string `json:"kind"`
	BaseURL      string `json:"-"`
}

// GetVideo fetches video metadata, including caption track availability.
func (c *Client) GetVideo(ctx context.Context, videoURL string) (*VideoInfo, *ytdl.Video, error) {
	video, err := c.yt.GetVideoContext(ctx, videoURL)
	if err != nil {
		return nil, nil, wrapVideoError(err)
	}

	captions := make([]CaptionTrack, len(video.CaptionTracks))
	for i, track := range video.CaptionTracks {
		captions[i] = CaptionTrack{
			LanguageCode: track.LanguageCode,
			Name:         track.Name.SimpleText,
			Kind:         track.Kind,
			BaseURL:      track.BaseURL,
		}
	}

	return &VideoInfo{
		ID:          video.ID,
		Title:       video.Title,
		Author:      video.Author,
		Duration:    video.Duration,
		Description: video.Description,
		Captions:    captions,
	}, video, nil
}

// FindCaption selects the caption track for lang, preferring manually
// authored tracks over auto-generated ones. Falls back to the first manual
// track of any language, then the first track at all. Nil when none exist.
func (v *VideoInfo) FindCaption(lang string) *CaptionTrack {
	if len(v.Captions) == 0 {
		return nil
	}
	for i := range v.Captions {
		if v.Captions[i].LanguageCode == lang && v.Captions[i].Kind != "asr" {
			return &v.Captions[i]
		}
	}
	for i := range v.Captions {
		if v.Captions[i].LanguageCode == lang {
			return &v.Captions[i]
		}
	}
	for i := range v.Captions {
		if v.Captions[i].Kind != "asr" {
			return &v.Captions[i]
		}
	}
	return &v.Captions[0]
}

// HasCaptions reports whether any caption track is available.
func (v *VideoInfo) HasCaptions() bool {
	return len(v.Captions) > 0
}

// wrapVideoError attaches the typed extraction signals the classifier keys on.
func wrapVideoError(err error) error {
	var playability *ytdl.ErrPlayabiltyStatus
	if errors.As(err, &playability) && playability.Status == "LOGIN_REQUIRED" {
		return errors.Wrap(extractor.ErrAuthRequired, playability.Reason)
	}
	return err
}
