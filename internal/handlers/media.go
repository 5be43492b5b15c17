package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"svgembed/internal/media/svg"
	"svgembed/internal/middleware"
	"svgembed/internal/models"
	"svgembed/internal/repository"
	"svgembed/internal/security"
	"svgembed/internal/service"
	"svgembed/internal/storage"
)

const inlineCSP = "default-src 'none'; style-src 'unsafe-inline'"

type uploadResponse struct {
	ID         string     `json:"id"`
	Filename   string     `json:"filename"`
	InlineURL  string     `json:"inlineUrl"`
	PreviewURL string     `json:"previewUrl"`
	Status     string     `json:"status"`
	SizeBytes  int64      `json:"sizeBytes"`
	ExpireAt   *time.Time `json:"expireAt,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
}

func (h HandlerSet) UploadMedia(c *gin.Context) {
	claims, ok := middleware.Claims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing_claims"})
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file_required"})
		return
	}
	defer file.Close()

	var expireAt *time.Time
	if expires := c.PostForm("expireAt"); expires != "" {
		parsed, err := time.Parse(time.RFC3339, expires)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_expire_at"})
			return
		}
		expireAt = &parsed
	}

	result, err := h.uploads.Upload(c.Request.Context(), service.UploadInput{
		ClientID: claims.ClientID,
		File:     file,
		Header:   header,
		ExpireAt: expireAt,
	})
	if err != nil {
		status := uploadStatus(err)
		if status >= http.StatusInternalServerError {
			h.log.Error().Err(err).Str("client_id", claims.ClientID).Msg("upload failed")
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"image": uploadResponse{
			ID:         result.Image.ID,
			Filename:   result.Image.Filename,
			InlineURL:  result.InlineURL,
			PreviewURL: result.PreviewURL,
			Status:     string(result.Image.Status),
			SizeBytes:  result.Image.SizeBytes,
			ExpireAt:   result.Image.ExpireAt,
			CreatedAt:  result.Image.CreatedAt,
		},
	})
}

func uploadStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, service.ErrUnsupportedType):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, service.ErrInvalidSVG),
		errors.Is(err, service.ErrEmptyFile),
		errors.Is(err, service.ErrInvalidPayload):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// InlineMedia serves an uploaded image as sanitized svg. The query string
// carries the root presentation attributes.
func (h HandlerSet) InlineMedia(c *gin.Context) {
	id := c.Param("id")
	if !security.VerifyResource(h.cfg.Security.ResourceSecret, c.Query("sig"), id, "inline") {
		c.JSON(http.StatusForbidden, gin.H{"error": "invalid_signature"})
		return
	}

	markup, err := h.pipeline.NewSession().Embed(c.Request.Context(), svg.EmbedInput{
		Src:                id,
		TreatIDAsReference: true,
		Presentation:       presentationFromQuery(c.Request.URL.Query(), "sig"),
	})
	if err != nil {
		c.JSON(renderStatus(err), gin.H{"error": err.Error()})
		return
	}
	if markup == "" {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "not_renderable"})
		return
	}

	c.Header("Content-Security-Policy", inlineCSP)
	c.Header("Cache-Control", "public, max-age=300")
	c.Data(http.StatusOK, "image/svg+xml; charset=utf-8", []byte(markup))
}

func (h HandlerSet) PreviewMedia(c *gin.Context) {
	id := c.Param("id")
	if !security.VerifyResource(h.cfg.Security.ResourceSecret, c.Query("sig"), id, "preview") {
		c.JSON(http.StatusForbidden, gin.H{"error": "invalid_signature"})
		return
	}

	image, ok := h.loadImage(c, id)
	if !ok {
		return
	}

	markup, err := h.pipeline.NewSession().Embed(c.Request.Context(), svg.EmbedInput{
		Src:                id,
		TreatIDAsReference: true,
		Presentation:       svg.Presentation{Class: "preview"},
	})
	if err != nil {
		c.JSON(renderStatus(err), gin.H{"error": err.Error()})
		return
	}

	view := previewView{
		Title:  image.Filename,
		Status: string(image.Status),
		Markup: markup,
	}
	if image.PreviewKey != nil {
		view.ThumbnailURL = service.MediaURL(h.cfg.Security.ResourceSecret, id, "thumbnail")
	}

	c.Header("Content-Security-Policy", "default-src 'none'; img-src 'self'; style-src 'unsafe-inline'")
	c.Status(http.StatusOK)
	c.Header("Content-Type", "text/html; charset=utf-8")
	if err := previewPage(view).Render(c.Request.Context(), c.Writer); err != nil {
		h.log.Error().Err(err).Str("image_id", id).Msg("render preview page failed")
	}
}

func (h HandlerSet) ThumbnailMedia(c *gin.Context) {
	id := c.Param("id")
	if !security.VerifyResource(h.cfg.Security.ResourceSecret, c.Query("sig"), id, "thumbnail") {
		c.JSON(http.StatusForbidden, gin.H{"error": "invalid_signature"})
		return
	}

	image, ok := h.loadImage(c, id)
	if !ok {
		return
	}
	if image.PreviewKey == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "preview_not_ready"})
		return
	}

	data, _, err := h.objects.Get(c.Request.Context(), h.cfg.Storage.BucketVariants, *image.PreviewKey)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "preview_not_found"})
			return
		}
		h.log.Error().Err(err).Str("image_id", id).Msg("load thumbnail failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage_error"})
		return
	}

	c.Header("Cache-Control", "public, max-age=3600")
	c.Data(http.StatusOK, "image/png", data)
}

func (h HandlerSet) loadImage(c *gin.Context, id string) (models.Image, bool) {
	image, err := h.images.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrImageNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "image_not_found"})
			return models.Image{}, false
		}
		h.log.Error().Err(err).Str("image_id", id).Msg("load image failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "database_error"})
		return models.Image{}, false
	}
	if image.Status == models.ImageStatusDeleted {
		c.JSON(http.StatusNotFound, gin.H{"error": "image_not_found"})
		return models.Image{}, false
	}
	return image, true
}
