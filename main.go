package main

import (
	"context"
	"time"

	"github.com/postapi/postapi/config"
	"github.com/postapi/postapi/models"
	"github.com/postapi/postapi/routes"
	"github.com/postapi/postapi/services"
	"github.com/postapi/postapi/storage"
	"github.com/postapi/postapi/utils"
)

func main() {
	cfg := config.Load()

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}
	defer func() { _ = utils.Logger.Sync() }()

	db := config.InitDatabase(models.All()...)

	images, err := newImageStore(cfg)
	if err != nil {
		utils.Sugar.Fatalf("image store: %v", err)
	}
	tierCache := utils.NewRedisCache(utils.GetRedis(), "cache:tiers:", time.Hour)
	svc := services.New(db, images, tierCache)

	r := routes.SetupRouter(db, svc)

	utils.Sugar.Infof("Starting server on port %s (graceful)", cfg.AppPort)
	if err := utils.GraceServer(":"+cfg.AppPort, r); err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}

func newImageStore(cfg config.AppConfig) (storage.ImageStore, error) {
	maxBytes := int64(cfg.MaxUploadMB) << 20
	if cfg.Storage != "minio" {
		utils.Sugar.Infof("storing uploads under %s", cfg.UploadDir)
		return storage.NewLocalStore(cfg.UploadDir, cfg.UploadPublicPath, maxBytes), nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	store, err := storage.NewMinioStore(ctx, storage.MinioConfig{
		Endpoint:      cfg.S3Endpoint,
		AccessKey:     cfg.S3AccessKey,
		SecretKey:     cfg.S3SecretKey,
		Bucket:        cfg.S3Bucket,
		UseSSL:        cfg.S3UseSSL,
		PublicBaseURL: cfg.S3PublicBaseURL,
		MaxBytes:      maxBytes,
	})
	if err != nil {
		return nil, err
	}
	utils.Sugar.Infof("storing uploads in bucket %s at %s", cfg.S3Bucket, cfg.S3Endpoint)
	return store, nil
}
