package youtube

import (
	"context"
	"path/filepath"
	"sort"
	"strings"

	ytdl "github.com/kkdai/youtube/v2"
	"github.com/pkg/errors"

	"tubegrab/internal/extractor"
)

// selectVideoFormat picks the best progressive (audio+video) format,
// preferring mp4, then highest resolution.
func selectVideoFormat(video *ytdl.Video) (*ytdl.Format, error) {
	var formats []*ytdl.Format
	for i := range video.Formats {
		f := &video.Formats[i]
		if strings.HasPrefix(f.MimeType, "video/") && f.AudioChannels > 0 {
			formats = append(formats, f)
		}
	}
	if len(formats) == 0 {
		return nil, errors.Wrap(extractor.ErrNoContent, "no combined video formats available")
	}

	sort.SliceStable(formats, func(i, j int) bool {
		mi := strings.Contains(formats[i].MimeType, "mp4")
		mj := strings.Contains(formats[j].MimeType, "mp4")
		if mi != mj {
			return mi
		}
		return formats[i].Height > formats[j].Height
	})
	return formats[0], nil
}

// DownloadVideo streams the best combined video format into dir and returns
// the written path.
func (c *Client) DownloadVideo(ctx context.Context, video *ytdl.Video, dir string) (string, error) {
	format, err := selectVideoFormat(video)
	if err != nil {
		return "", err
	}

	ext := ".mp4"
	if strings.Contains(format.MimeType, "webm") {
		ext = ".webm"
	}
	path := filepath.Join(dir, "video"+ext)
	if err := c.downloadStream(ctx, video, format, path); err != nil {
		return "", err
	}
	return path, nil
}
