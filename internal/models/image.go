package models

import (
	"path"
	"strings"
	"time"
)

type ImageStatus string

const (
	ImageStatusProcessing ImageStatus = "processing"
	ImageStatusReady      ImageStatus = "ready"
	ImageStatusBlocked    ImageStatus = "blocked"
	ImageStatusDeleted    ImageStatus = "deleted"
)

// Image is an uploaded SVG. The original object is kept untouched; the
// sanitized markup and preview live in the variants bucket once ingested.
type Image struct {
	ID         string
	ClientID   string
	Filename   string
	Bucket     string
	ObjectKey  string
	CleanKey   *string
	PreviewKey *string
	SizeBytes  int64
	Status     ImageStatus
	Checksum   []byte
	ExpireAt   *time.Time
	DeletedAt  *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Extension is the file extension used when the image is resolved for
// inline rendering.
func (i Image) Extension() string {
	if ext := strings.TrimPrefix(path.Ext(i.Filename), "."); ext != "" {
		return strings.ToLower(ext)
	}
	return "svg"
}
