package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"svgembed/internal/config"
	"svgembed/internal/media/svg"
	"svgembed/internal/middleware"
	"svgembed/internal/models"
	"svgembed/internal/queue"
	"svgembed/internal/repository"
	"svgembed/internal/resource"
	"svgembed/internal/security"
	"svgembed/internal/service"
	"svgembed/internal/storage"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type ImageReader interface {
	GetByID(ctx context.Context, id string) (models.Image, error)
	List(ctx context.Context, limit, offset int) ([]models.Image, error)
}

type ObjectReader interface {
	Get(ctx context.Context, bucket, key string) ([]byte, storage.ObjectInfo, error)
}

type Uploader interface {
	Upload(ctx context.Context, input service.UploadInput) (service.UploadResult, error)
}

type HandlerSet struct {
	log      zerolog.Logger
	cfg      *config.AppConfig
	db       Pinger
	cache    *redis.Client
	images   ImageReader
	objects  ObjectReader
	uploads  Uploader
	pipeline *svg.Pipeline
}

func NewHandlerSet(log zerolog.Logger, db *pgxpool.Pool, cache *redis.Client, store *storage.ObjectStore, cfg *config.AppConfig) HandlerSet {
	imageRepo := repository.NewImageRepository(db)
	producer := queue.NewProducer(cache, cfg.Redis.Stream)
	upload := service.NewUploadService(imageRepo, store, producer, cfg, log)
	resolver := resource.NewResolver(imageRepo, store, cfg.Render.AssetRoot, store.Buckets()...)

	return HandlerSet{
		log:      log,
		cfg:      cfg,
		db:       db,
		cache:    cache,
		images:   imageRepo,
		objects:  store,
		uploads:  upload,
		pipeline: svg.NewPipeline(resolver, svg.WithMaxBytes(cfg.Render.MaxBytes), svg.WithLogger(log)),
	}
}

func (h HandlerSet) Register(router *gin.RouterGroup) {
	router.GET("/healthz", h.Health)

	v1 := router.Group("/v1")

	render := v1.Group("/render")
	render.Use(middleware.Auth(h.cfg.Security.JWTAccessSecret))
	render.POST("", h.Render)
	render.POST("/batch", h.RenderBatch)

	public := v1.Group("/media/:id")
	public.GET("/inline", h.InlineMedia)
	public.GET("/preview", h.PreviewMedia)
	public.GET("/thumbnail", h.ThumbnailMedia)

	media := v1.Group("/media")
	media.Use(
		middleware.Auth(h.cfg.Security.JWTAccessSecret),
		middleware.Signature(h.cfg.Security.SignatureSecret, h.cfg.Security.SignatureSkew, h.cache),
		middleware.RequireScopes(security.ScopeMediaWrite),
	)
	media.POST("/upload", h.UploadMedia)

	admin := v1.Group("/admin")
	admin.Use(
		middleware.Auth(h.cfg.Security.JWTAccessSecret),
		middleware.Signature(h.cfg.Security.SignatureSecret, h.cfg.Security.SignatureSkew, h.cache),
		middleware.RequireScopes(security.ScopeAdmin),
	)
	admin.GET("/images", h.AdminListImages)

	helpers := v1.Group("/helpers")
	helpers.GET("/tel", h.TelLink)
	helpers.GET("/ip", h.ClientIP)
	helpers.GET("/stream", h.StreamIframe)
}
