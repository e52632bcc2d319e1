package youtube

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"tubegrab/internal/extractor"
	"tubegrab/internal/models"
)

// Format tags of the outputs this extractor produces.
const (
	TagAudio       = "audio"
	TagVideo       = "video"
	TagClean       = "clean"
	TagTimestamped = "timestamped"
	TagStructured  = "structured"
)

// MediaExtractor implements extractor.Extractor against YouTube. Outputs are
// written under ScratchDir; the caller owns publishing them somewhere durable
// and cleaning the scratch directory up.
type MediaExtractor struct {
	ScratchDir string
	// Language is the preferred caption language for transcript jobs.
	Language string
}

// NewMediaExtractor creates a MediaExtractor writing temporaries to scratchDir.
func NewMediaExtractor(scratchDir, language string) *MediaExtractor {
	return &MediaExtractor{ScratchDir: scratchDir, Language: language}
}

// Extract retrieves the requested artifact kind for url.
func (m *MediaExtractor) Extract(ctx context.Context, url string, downloadType models.DownloadType, credentials []byte) (*extractor.Result, error) {
	if _, err := ExtractVideoID(url); err != nil {
		return nil, err
	}

	client, err := NewClient(credentials)
	if err != nil {
		return nil, err
	}

	info, video, err := client.GetVideo(ctx, url)
	if err != nil {
		return nil, &extractor.Failure{Reason: "video lookup failed", Err: err}
	}

	if err := os.MkdirAll(m.ScratchDir, 0755); err != nil {
		return nil, errors.Wrap(err, "failed to create scratch directory")
	}
	dir, err := os.MkdirTemp(m.ScratchDir, "extract-")
	if err != nil {
		return nil, errors.Wrap(err, "failed to create extraction directory")
	}
	committed := false
	defer func() {
		if !committed {
			os.RemoveAll(dir)
		}
	}()

	result := &extractor.Result{VideoID: info.ID, Title: info.Title, ScratchDir: dir}

	switch downloadType {
	case models.DownloadAudio:
		path, lang, err := client.DownloadAudio(ctx, video, dir)
		if err != nil {
			return nil, &extractor.Failure{Reason: "audio download failed", Err: err}
		}
		result.LanguageCode = lang
		result.Outputs = []extractor.Output{{FormatTag: TagAudio, Path: path}}

	case models.DownloadVideo:
		path, err := client.DownloadVideo(ctx, video, dir)
		if err != nil {
			return nil, &extractor.Failure{Reason: "video download failed", Err: err}
		}
		result.Outputs = []extractor.Output{{FormatTag: TagVideo, Path: path}}

	case models.DownloadTranscript:
		caption, err := client.FetchCaption(ctx, info, m.Language)
		if err != nil {
			return nil, &extractor.Failure{Reason: "transcript fetch failed", Err: err}
		}
		result.LanguageCode = caption.LanguageCode

		structured, err := caption.FormatJSON()
		if err != nil {
			return nil, &extractor.Failure{Reason: "transcript encoding failed", Err: err}
		}
		files := []struct {
			tag, name, content string
		}{
			{TagClean, "clean.txt", caption.FormatClean()},
			{TagTimestamped, "timestamped.txt", caption.FormatTimestamped()},
			{TagStructured, "structured.json", structured},
		}
		for _, f := range files {
			path := filepath.Join(dir, f.name)
			if err := os.WriteFile(path, []byte(f.content), 0644); err != nil {
				return nil, errors.Wrap(err, "failed to write transcript file")
			}
			result.Outputs = append(result.Outputs, extractor.Output{FormatTag: f.tag, Path: path})
		}

	default:
		return nil, errors.Wrapf(extractor.ErrInvalidURL, "unsupported download type %q", downloadType)
	}

	committed = true
	return result, nil
}
