package youtube

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"tubegrab/internal/extractor"
)

// YouTube timedtext XML structure.
type xmlTranscript struct {
	XMLName xml.Name  `xml:"timedtext"`
	Text    []xmlText `xml:"body>p"`
}

type xmlText struct {
	Start    int64        `xml:"t,attr"` // milliseconds
	Duration int64        `xml:"d,attr"` // milliseconds
	Segments []xmlSegment `xml:"s"`
}

type xmlSegment struct {
	Text string `xml:",chardata"`
}

// FetchCaption retrieves the caption track for lang (see FindCaption for the
// fallback order). extractor.ErrNoContent when the video has no captions.
func (c *Client) FetchCaption(ctx context.Context, video *VideoInfo, lang string) (*CaptionResult, error) {
	track := video.FindCaption(lang)
	if track == nil {
		return nil, errors.Wrap(extractor.ErrNoContent, "no captions available")
	}

	result, err := c.fetchCaptionByURL(ctx, track.BaseURL)
	if err != nil {
		return nil, err
	}
	result.LanguageCode = track.LanguageCode
	return result, nil
}

func (c *Client) fetchCaptionByURL(ctx context.Context, url string) (*CaptionResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build caption request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("caption request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read caption response: %w", err)
	}
	return parseTranscriptXML(body)
}

func parseTranscriptXML(data []byte) (*CaptionResult, error) {
	var transcript xmlTranscript
	if err := xml.Unmarshal(data, &transcript); err != nil {
		return nil, fmt.Errorf("caption XML parse failed: %w", err)
	}

	entries := make([]CaptionEntry, 0, len(transcript.Text))
	for _, p := range transcript.Text {
		var text string
		for _, seg := range p.Segments {
			text += seg.Text
		}
		if len(text) == 0 {
			continue
		}
		entries = append(entries, CaptionEntry{
			StartTime: time.Duration(p.Start) * time.Millisecond,
			Duration:  time.Duration(p.Duration) * time.Millisecond,
			Text:      text,
		})
	}

	if len(entries) == 0 {
		return nil, errors.Wrap(extractor.ErrNoContent, "caption track is empty")
	}
	return &CaptionResult{Entries: entries}, nil
}
