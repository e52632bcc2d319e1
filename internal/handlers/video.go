package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"tubegrab/internal/extractor"
	"tubegrab/internal/youtube"
)

// VideoHandler serves anonymous video metadata lookups.
type VideoHandler struct{}

// NewVideoHandler creates a new VideoHandler.
func NewVideoHandler() *VideoHandler {
	return &VideoHandler{}
}

// Preview fetches a video's metadata without queueing a job, so a caller can
// check title, duration and caption availability before submitting.
// GET /api/videos/preview?url=
func (h *VideoHandler) Preview(c echo.Context) error {
	ctx := c.Request().Context()

	videoURL := c.QueryParam("url")
	if videoURL == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "url is required"})
	}
	if _, err := youtube.ExtractVideoID(videoURL); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	client, err := youtube.NewClient(nil)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	info, _, err := client.GetVideo(ctx, videoURL)
	if err != nil {
		if errors.Is(err, extractor.ErrAuthRequired) {
			return c.JSON(http.StatusForbidden, map[string]string{"error": "video requires authentication"})
		}
		return c.JSON(http.StatusBadGateway, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"id":               info.ID,
		"title":            info.Title,
		"author":           info.Author,
		"duration_seconds": int(info.Duration.Seconds()),
		"has_captions":     info.HasCaptions(),
		"captions":         info.Captions,
	})
}
