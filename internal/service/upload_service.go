package service

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"svgembed/internal/config"
	"svgembed/internal/ids"
	"svgembed/internal/media/sniffer"
	"svgembed/internal/media/svg"
	"svgembed/internal/models"
	"svgembed/internal/queue"
	"svgembed/internal/security"
)

var (
	ErrInvalidPayload  = errors.New("invalid file payload")
	ErrEmptyFile       = errors.New("empty file")
	ErrFileTooLarge    = errors.New("file exceeds the size limit")
	ErrUnsupportedType = errors.New("only svg uploads are accepted")
	ErrInvalidSVG      = errors.New("file is not a well-formed svg document")
)

type ImageCreator interface {
	Create(ctx context.Context, image models.Image) error
}

type ObjectPutter interface {
	Put(ctx context.Context, bucket, key string, data []byte, contentType string) (int64, error)
}

type TaskEnqueuer interface {
	Enqueue(ctx context.Context, task queue.Task) (string, error)
}

type UploadInput struct {
	ClientID string
	File     multipart.File
	Header   *multipart.FileHeader
	ExpireAt *time.Time
}

type UploadResult struct {
	Image      models.Image
	InlineURL  string
	PreviewURL string
}

type UploadService struct {
	images ImageCreator
	store  ObjectPutter
	queue  TaskEnqueuer
	cfg    *config.AppConfig
	log    zerolog.Logger
	now    func() time.Time
}

func NewUploadService(images ImageCreator, store ObjectPutter, queue TaskEnqueuer, cfg *config.AppConfig, log zerolog.Logger) *UploadService {
	return &UploadService{
		images: images,
		store:  store,
		queue:  queue,
		cfg:    cfg,
		log:    log,
		now:    time.Now,
	}
}

func (s *UploadService) Upload(ctx context.Context, input UploadInput) (UploadResult, error) {
	if input.File == nil || input.Header == nil {
		return UploadResult{}, ErrInvalidPayload
	}

	data, err := s.readLimited(input.File)
	if err != nil {
		return UploadResult{}, err
	}
	if len(data) == 0 {
		return UploadResult{}, ErrEmptyFile
	}

	head := data[:min(len(data), 512)]
	result, err := sniffer.DetectHead(head)
	if err != nil || !result.IsSVG() {
		return UploadResult{}, ErrUnsupportedType
	}

	declared := sniffer.MimeTypeFromHTTP(http.Header(input.Header.Header))
	if declared != "" && declared != result.MIME && declared != "application/octet-stream" {
		return UploadResult{}, fmt.Errorf("content type mismatch: declared %s, actual %s", declared, result.MIME)
	}

	// The stored original stays untouched; ingest writes the sanitized variant.
	if _, err := svg.Parse(data); err != nil {
		return UploadResult{}, fmt.Errorf("%w: %w", ErrInvalidSVG, err)
	}

	imageID := ids.New()
	now := s.now().UTC()
	objectKey := path.Join(now.Format("2006/01/02"), imageID+".svg")

	size, err := s.store.Put(ctx, s.cfg.Storage.BucketOriginals, objectKey, data, result.MIME)
	if err != nil {
		return UploadResult{}, fmt.Errorf("put object: %w", err)
	}

	sum := sha256.Sum256(data)
	image := models.Image{
		ID:        imageID,
		ClientID:  input.ClientID,
		Filename:  svgFilename(input.Header.Filename),
		Bucket:    s.cfg.Storage.BucketOriginals,
		ObjectKey: objectKey,
		SizeBytes: size,
		Status:    models.ImageStatusProcessing,
		Checksum:  sum[:],
		ExpireAt:  s.expiry(input.ExpireAt, now),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.images.Create(ctx, image); err != nil {
		return UploadResult{}, fmt.Errorf("save metadata: %w", err)
	}

	if _, err := s.queue.Enqueue(ctx, queue.Task{Type: queue.TaskIngest, ImageID: image.ID}); err != nil {
		s.log.Warn().Err(err).Str("image_id", image.ID).Msg("enqueue ingest failed")
	}

	return UploadResult{
		Image:      image,
		InlineURL:  MediaURL(s.cfg.Security.ResourceSecret, image.ID, "inline"),
		PreviewURL: MediaURL(s.cfg.Security.ResourceSecret, image.ID, "preview"),
	}, nil
}

// MediaURL is the signed public path of an image view.
func MediaURL(secret, imageID, view string) string {
	return fmt.Sprintf("/api/v1/media/%s/%s?sig=%s", imageID, view, security.SignResource(secret, imageID, view))
}

func (s *UploadService) readLimited(r io.Reader) ([]byte, error) {
	limit := s.cfg.Render.MaxBytes
	if limit <= 0 {
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("read file: %w", err)
		}
		return data, nil
	}

	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, ErrFileTooLarge
	}
	return data, nil
}

func (s *UploadService) expiry(requested *time.Time, now time.Time) *time.Time {
	if requested != nil {
		return requested
	}
	if s.cfg.Worker.RetentionPeriod <= 0 {
		return nil
	}
	expireAt := now.Add(s.cfg.Worker.RetentionPeriod)
	return &expireAt
}

func svgFilename(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		return "image.svg"
	}
	if ext := path.Ext(name); !strings.EqualFold(ext, ".svg") {
		name = strings.TrimSuffix(name, ext) + ".svg"
	}
	return name
}
