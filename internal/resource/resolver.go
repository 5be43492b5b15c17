package resource

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"svgembed/internal/media/svg"
	"svgembed/internal/models"
	"svgembed/internal/storage"
)

const (
	imagePrefix  = "image:"
	objectScheme = "s3://"
)

var (
	ErrOutsideRoot     = errors.New("path escapes the asset root")
	ErrBucketForbidden = errors.New("bucket is not readable")
	ErrUnavailable     = errors.New("image is not available")
	ErrEmptyReference  = errors.New("empty reference")
)

type ImageLookup interface {
	GetByID(ctx context.Context, id string) (models.Image, error)
}

type ObjectReader interface {
	Get(ctx context.Context, bucket, key string) ([]byte, storage.ObjectInfo, error)
}

// Resolver turns embed references into svg sources. It reads from three
// places: uploaded image records, raw objects in the service buckets, and
// static files below an asset root.
type Resolver struct {
	images    ImageLookup
	objects   ObjectReader
	assetRoot string
	buckets   map[string]struct{}
}

func NewResolver(images ImageLookup, objects ObjectReader, assetRoot string, buckets ...string) *Resolver {
	allowed := make(map[string]struct{}, len(buckets))
	for _, b := range buckets {
		allowed[b] = struct{}{}
	}
	return &Resolver{
		images:    images,
		objects:   objects,
		assetRoot: assetRoot,
		buckets:   allowed,
	}
}

var _ svg.Resolver = (*Resolver)(nil)

func (r *Resolver) Resolve(ctx context.Context, ref string, handle *svg.Source, treatIDAsReference bool) (svg.Source, error) {
	if handle != nil {
		if len(handle.Content) > 0 {
			return *handle, nil
		}
		if id, ok := strings.CutPrefix(handle.Identifier, imagePrefix); ok {
			return r.fromImage(ctx, id)
		}
		return *handle, nil
	}

	ref = strings.TrimSpace(ref)
	switch {
	case ref == "":
		return svg.Source{}, ErrEmptyReference
	case treatIDAsReference:
		return r.fromImage(ctx, ref)
	case strings.HasPrefix(ref, objectScheme):
		return r.fromObject(ctx, strings.TrimPrefix(ref, objectScheme))
	default:
		return r.fromFile(ref)
	}
}

func (r *Resolver) fromImage(ctx context.Context, id string) (svg.Source, error) {
	if r.images == nil || r.objects == nil {
		return svg.Source{}, fmt.Errorf("image %s: %w", id, ErrUnavailable)
	}

	image, err := r.images.GetByID(ctx, id)
	if err != nil {
		return svg.Source{}, fmt.Errorf("lookup image %s: %w", id, err)
	}
	if image.Status == models.ImageStatusDeleted || image.Status == models.ImageStatusBlocked {
		return svg.Source{}, fmt.Errorf("image %s is %s: %w", id, image.Status, ErrUnavailable)
	}

	data, _, err := r.objects.Get(ctx, image.Bucket, image.ObjectKey)
	if err != nil {
		return svg.Source{}, err
	}

	return svg.Source{
		Content:    data,
		Extension:  image.Extension(),
		Identifier: imagePrefix + image.ID,
		ModTime:    image.UpdatedAt.UnixNano(),
	}, nil
}

func (r *Resolver) fromObject(ctx context.Context, location string) (svg.Source, error) {
	bucket, key, ok := strings.Cut(location, "/")
	if !ok || bucket == "" || key == "" {
		return svg.Source{}, fmt.Errorf("invalid object reference %q", location)
	}
	if _, allowed := r.buckets[bucket]; !allowed || r.objects == nil {
		return svg.Source{}, fmt.Errorf("%s: %w", bucket, ErrBucketForbidden)
	}

	data, info, err := r.objects.Get(ctx, bucket, key)
	if err != nil {
		return svg.Source{}, err
	}

	return svg.Source{
		Content:    data,
		Extension:  strings.TrimPrefix(path.Ext(key), "."),
		Identifier: objectScheme + bucket + "/" + key,
		ModTime:    info.LastModified.UnixNano(),
	}, nil
}

func (r *Resolver) fromFile(ref string) (svg.Source, error) {
	rel, err := cleanRelative(ref)
	if err != nil {
		return svg.Source{}, err
	}

	full := filepath.Join(r.assetRoot, filepath.FromSlash(rel))
	info, err := os.Stat(full)
	if err != nil {
		return svg.Source{}, err
	}
	if !info.Mode().IsRegular() {
		return svg.Source{}, fmt.Errorf("%s is not a regular file", rel)
	}

	data, err := os.ReadFile(full)
	if err != nil {
		return svg.Source{}, err
	}

	return svg.Source{
		Content:    data,
		Extension:  strings.TrimPrefix(path.Ext(rel), "."),
		Identifier: "file:" + rel,
		ModTime:    info.ModTime().UnixNano(),
	}, nil
}

func cleanRelative(ref string) (string, error) {
	ref = filepath.ToSlash(ref)
	if path.IsAbs(ref) || filepath.IsAbs(ref) {
		return "", ErrOutsideRoot
	}
	for _, segment := range strings.Split(ref, "/") {
		if segment == ".." {
			return "", ErrOutsideRoot
		}
	}
	rel := path.Clean(ref)
	if rel == "." {
		return "", ErrEmptyReference
	}
	return rel, nil
}
