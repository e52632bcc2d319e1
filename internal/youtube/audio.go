package youtube

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	ytdl "github.com/kkdai/youtube/v2"
	"github.com/pkg/errors"

	"tubegrab/internal/extractor"
)

// audioExtension maps the stream MIME type to a file extension.
func audioExtension(mimeType string) string {
	if strings.Contains(mimeType, "mp4") {
		return ".m4a"
	}
	if strings.Contains(mimeType, "webm") {
		return ".webm"
	}
	return ".audio"
}

// selectAudioFormat picks the best audio-only format: default-language track
// first, then highest bitrate.
func selectAudioFormat(video *ytdl.Video) (*ytdl.Format, error) {
	var formats []*ytdl.Format
	for i := range video.Formats {
		f := &video.Formats[i]
		if strings.HasPrefix(f.MimeType, "audio/") {
			formats = append(formats, f)
		}
	}
	if len(formats) == 0 {
		return nil, errors.Wrap(extractor.ErrNoContent, "no audio formats available")
	}

	sort.SliceStable(formats, func(i, j int) bool {
		di := formats[i].AudioTrack != nil && formats[i].AudioTrack.AudioIsDefault
		dj := formats[j].AudioTrack != nil && formats[j].AudioTrack.AudioIsDefault
		if di != dj {
			return di
		}
		return formats[i].Bitrate > formats[j].Bitrate
	})
	return formats[0], nil
}

// DownloadAudio streams the best audio-only format into dir and returns the
// written path and the track's language code (empty when unknown).
func (c *Client) DownloadAudio(ctx context.Context, video *ytdl.Video, dir string) (string, string, error) {
	format, err := selectAudioFormat(video)
	if err != nil {
		return "", "", err
	}

	lang := ""
	if format.AudioTrack != nil {
		lang = format.AudioTrack.ID
	}

	path := filepath.Join(dir, "audio"+audioExtension(format.MimeType))
	if err := c.downloadStream(ctx, video, format, path); err != nil {
		return "", "", err
	}
	return path, lang, nil
}

// downloadStream copies one format's stream to path.
func (c *Client) downloadStream(ctx context.Context, video *ytdl.Video, format *ytdl.Format, path string) error {
	stream, _, err := c.yt.GetStreamContext(ctx, video, format)
	if err != nil {
		return errors.Wrap(err, "failed to get stream")
	}
	defer stream.Close()

	out, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "failed to create output file")
	}
	if _, err := io.Copy(out, stream); err != nil {
		out.Close()
		os.Remove(path)
		return errors.Wrap(err, "failed to download stream")
	}
	return out.Close()
}
