package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"svgembed/internal/media/preview"
	"svgembed/internal/media/svg"
	"svgembed/internal/models"
	"svgembed/internal/queue"
	"svgembed/internal/repository"
	"svgembed/internal/storage"
)

const cleanupBatch = 100

type ImageStore interface {
	GetByID(ctx context.Context, id string) (models.Image, error)
	UpdateStatus(ctx context.Context, id string, status models.ImageStatus) error
	SetVariants(ctx context.Context, id string, cleanKey, previewKey *string, status models.ImageStatus) error
	ListExpired(ctx context.Context, before time.Time, limit int) ([]models.Image, error)
	MarkDeleted(ctx context.Context, id string) error
}

type ObjectStore interface {
	Get(ctx context.Context, bucket, key string) ([]byte, storage.ObjectInfo, error)
	Put(ctx context.Context, bucket, key string, data []byte, contentType string) (int64, error)
	Remove(ctx context.Context, bucket, key string) error
}

type Options struct {
	VariantsBucket string
	PreviewSize    int
	MaxBytes       int64
}

type Processor struct {
	images  ImageStore
	objects ObjectStore
	opts    Options
	logger  zerolog.Logger
	now     func() time.Time
}

func NewProcessor(images ImageStore, objects ObjectStore, opts Options, logger zerolog.Logger) *Processor {
	return &Processor{
		images:  images,
		objects: objects,
		opts:    opts,
		logger:  logger,
		now:     time.Now,
	}
}

func (p *Processor) Handle(ctx context.Context, msg redis.XMessage) error {
	task, err := queue.DecodeTask(msg)
	if err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}

	switch task.Type {
	case queue.TaskIngest:
		return p.handleIngest(ctx, task)
	case queue.TaskCleanup:
		return p.handleCleanup(ctx)
	default:
		p.logger.Warn().Str("type", task.Type).Msg("unknown task type")
		return nil
	}
}

// handleIngest stores the sanitized markup and a PNG preview next to the
// original. Documents that do not render are blocked rather than retried.
func (p *Processor) handleIngest(ctx context.Context, task queue.Task) error {
	logger := p.logger.With().Str("image_id", task.ImageID).Logger()

	image, err := p.images.GetByID(ctx, task.ImageID)
	if err != nil {
		if errors.Is(err, repository.ErrImageNotFound) {
			logger.Warn().Msg("ingest for unknown image")
			return nil
		}
		return err
	}
	if image.Status == models.ImageStatusDeleted {
		return nil
	}

	original, _, err := p.objects.Get(ctx, image.Bucket, image.ObjectKey)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			logger.Warn().Msg("original object missing")
			return p.images.UpdateStatus(ctx, image.ID, models.ImageStatusBlocked)
		}
		return err
	}

	if p.opts.MaxBytes > 0 && int64(len(original)) > p.opts.MaxBytes {
		logger.Info().Int("size", len(original)).Msg("svg too large, blocking")
		return p.images.UpdateStatus(ctx, image.ID, models.ImageStatusBlocked)
	}

	clean, err := svg.Clean(original)
	if err != nil {
		logger.Info().Err(err).Msg("svg not renderable, blocking")
		return p.images.UpdateStatus(ctx, image.ID, models.ImageStatusBlocked)
	}

	cleanKey := image.ObjectKey + ".clean.svg"
	if _, err := p.objects.Put(ctx, p.opts.VariantsBucket, cleanKey, []byte(clean), "image/svg+xml"); err != nil {
		return err
	}

	var previewKey *string
	png, err := preview.Rasterize([]byte(clean), p.opts.PreviewSize)
	if err != nil {
		logger.Warn().Err(err).Msg("preview rasterization failed")
	} else {
		key := image.ObjectKey + ".preview.png"
		if _, err := p.objects.Put(ctx, p.opts.VariantsBucket, key, png, "image/png"); err != nil {
			return err
		}
		previewKey = &key
	}

	if err := p.images.SetVariants(ctx, image.ID, &cleanKey, previewKey, models.ImageStatusReady); err != nil {
		return fmt.Errorf("set variants: %w", err)
	}
	logger.Info().Bool("preview", previewKey != nil).Msg("image ingested")
	return nil
}

func (p *Processor) handleCleanup(ctx context.Context) error {
	removed := 0
	for {
		expired, err := p.images.ListExpired(ctx, p.now(), cleanupBatch)
		if err != nil {
			return fmt.Errorf("list expired: %w", err)
		}
		for _, image := range expired {
			if err := p.removeImage(ctx, image); err != nil {
				return err
			}
			removed++
		}
		if len(expired) < cleanupBatch {
			break
		}
	}
	p.logger.Info().Int("removed", removed).Msg("cleanup finished")
	return nil
}

func (p *Processor) removeImage(ctx context.Context, image models.Image) error {
	objects := [][2]string{{image.Bucket, image.ObjectKey}}
	if image.CleanKey != nil {
		objects = append(objects, [2]string{p.opts.VariantsBucket, *image.CleanKey})
	}
	if image.PreviewKey != nil {
		objects = append(objects, [2]string{p.opts.VariantsBucket, *image.PreviewKey})
	}

	for _, obj := range objects {
		if err := p.objects.Remove(ctx, obj[0], obj[1]); err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
			return fmt.Errorf("remove %s: %w", image.ID, err)
		}
	}
	return p.images.MarkDeleted(ctx, image.ID)
}
