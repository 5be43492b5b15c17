package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"svgembed/internal/models"
)

var ErrImageNotFound = errors.New("image not found")

const imageColumns = `
	id, client_id, filename, bucket, object_key, clean_key, preview_key, size_bytes,
	status, checksum, expire_at, deleted_at, created_at, updated_at
`

type ImageRepository struct {
	pool *pgxpool.Pool
}

func NewImageRepository(pool *pgxpool.Pool) *ImageRepository {
	return &ImageRepository{pool: pool}
}

func (r *ImageRepository) Create(ctx context.Context, image models.Image) error {
	const query = `
		INSERT INTO images (
			id, client_id, filename, bucket, object_key, size_bytes,
			status, checksum, expire_at, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, NOW(), NOW()
		)
	`

	_, err := r.pool.Exec(ctx, query,
		image.ID,
		image.ClientID,
		image.Filename,
		image.Bucket,
		image.ObjectKey,
		image.SizeBytes,
		image.Status,
		image.Checksum,
		image.ExpireAt,
	)
	return err
}

func (r *ImageRepository) UpdateStatus(ctx context.Context, id string, status models.ImageStatus) error {
	const query = `
		UPDATE images
		SET status = $2,
		    updated_at = NOW()
		WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrImageNotFound
	}
	return nil
}

// SetVariants records the sanitized and preview objects produced by ingest.
func (r *ImageRepository) SetVariants(ctx context.Context, id string, cleanKey, previewKey *string, status models.ImageStatus) error {
	const query = `
		UPDATE images
		SET clean_key = $2,
		    preview_key = $3,
		    status = $4,
		    updated_at = NOW()
		WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query, id, cleanKey, previewKey, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrImageNotFound
	}
	return nil
}

func (r *ImageRepository) MarkDeleted(ctx context.Context, id string) error {
	const query = `
		UPDATE images
		SET status = 'deleted',
		    deleted_at = NOW(),
		    updated_at = NOW()
		WHERE id = $1
	`
	_, err := r.pool.Exec(ctx, query, id)
	return err
}

func (r *ImageRepository) GetByID(ctx context.Context, id string) (models.Image, error) {
	query := `SELECT ` + imageColumns + ` FROM images WHERE id = $1`

	image, err := scanImage(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Image{}, ErrImageNotFound
		}
		return models.Image{}, err
	}
	return image, nil
}

func (r *ImageRepository) List(ctx context.Context, limit, offset int) ([]models.Image, error) {
	query := `SELECT ` + imageColumns + `
		FROM images
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`
	return r.query(ctx, query, limit, offset)
}

// ListExpired returns live images whose expiry lies before the given time.
func (r *ImageRepository) ListExpired(ctx context.Context, before time.Time, limit int) ([]models.Image, error) {
	query := `SELECT ` + imageColumns + `
		FROM images
		WHERE status != 'deleted' AND expire_at IS NOT NULL AND expire_at < $1
		ORDER BY expire_at
		LIMIT $2
	`
	return r.query(ctx, query, before, limit)
}

func (r *ImageRepository) query(ctx context.Context, query string, args ...any) ([]models.Image, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var images []models.Image
	for rows.Next() {
		image, err := scanImage(rows)
		if err != nil {
			return nil, err
		}
		images = append(images, image)
	}
	return images, rows.Err()
}

func scanImage(row pgx.Row) (models.Image, error) {
	var image models.Image
	err := row.Scan(
		&image.ID,
		&image.ClientID,
		&image.Filename,
		&image.Bucket,
		&image.ObjectKey,
		&image.CleanKey,
		&image.PreviewKey,
		&image.SizeBytes,
		&image.Status,
		&image.Checksum,
		&image.ExpireAt,
		&image.DeletedAt,
		&image.CreatedAt,
		&image.UpdatedAt,
	)
	return image, err
}
