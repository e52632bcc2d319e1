package handlers

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"tubegrab/internal/vault"
)

// CookieHandler exposes the per-user cookie vault.
type CookieHandler struct {
	vault *vault.Vault
}

// NewCookieHandler creates a new CookieHandler.
func NewCookieHandler(v *vault.Vault) *CookieHandler {
	return &CookieHandler{vault: v}
}

// Upload stores an owner's cookie blob. The blob arrives either as a
// multipart file field named "cookies" or as a "text" form value.
// POST /api/cookies
func (h *CookieHandler) Upload(c echo.Context) error {
	ctx := c.Request().Context()

	ownerID := c.FormValue("owner_id")
	if ownerID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "owner_id is required"})
	}
	sourceLabel := c.FormValue("source_label")

	blob, err := cookieBlob(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	rec, err := h.vault.Put(ctx, ownerID, blob, sourceLabel)
	if err != nil {
		if errors.Is(err, vault.ErrInvalidFormat) {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusCreated, map[string]interface{}{
		"owner_id":     rec.OwnerID,
		"source_label": rec.SourceLabel,
		"uploaded_at":  rec.UploadedAt,
		"expires_at":   rec.ExpiresAt,
	})
}

func cookieBlob(c echo.Context) ([]byte, error) {
	if file, err := c.FormFile("cookies"); err == nil {
		src, err := file.Open()
		if err != nil {
			return nil, errors.Wrap(err, "failed to open uploaded file")
		}
		defer src.Close()
		return io.ReadAll(src)
	}
	if text := c.FormValue("text"); text != "" {
		return []byte(text), nil
	}
	return nil, errors.New("provide cookies as a file upload or a text form value")
}

// Get returns the owner's cookie metadata without the stored blob.
// GET /api/cookies/:owner_id
func (h *CookieHandler) Get(c echo.Context) error {
	ctx := c.Request().Context()
	ownerID := c.Param("owner_id")

	rec, err := h.vault.Metadata(ctx, ownerID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	if rec == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "no cookies stored"})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"owner_id":     rec.OwnerID,
		"source_label": rec.SourceLabel,
		"uploaded_at":  rec.UploadedAt,
		"expires_at":   rec.ExpiresAt,
	})
}

// Delete removes the owner's stored cookies.
// DELETE /api/cookies/:owner_id
func (h *CookieHandler) Delete(c echo.Context) error {
	ctx := c.Request().Context()
	ownerID := c.Param("owner_id")

	if err := h.vault.Delete(ctx, ownerID); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.NoContent(http.StatusNoContent)
}
