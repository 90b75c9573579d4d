// Package storage holds uploaded audio in a MinIO bucket and serves it back
// through the /files proxy route. An upload yields a stable reference path
// before any record is created.
package storage

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"beatvault/config"
	"beatvault/logger"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

var (
	minioClient *minio.Client
	bucket      string
)

// Init connects the MinIO client and ensures the bucket exists.
func Init(cfg *config.Config) error {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
		Region: cfg.MinioRegion,
	})
	if err != nil {
		return fmt.Errorf("failed to create MinIO client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, cfg.MinioBucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket %q: %w", cfg.MinioBucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.MinioBucket, minio.MakeBucketOptions{Region: cfg.MinioRegion}); err != nil {
			return fmt.Errorf("failed to create bucket %q: %w", cfg.MinioBucket, err)
		}
		logger.Info("created bucket", logger.String("bucket", cfg.MinioBucket))
	}

	minioClient = client
	bucket = cfg.MinioBucket
	logger.Info("object storage ready", logger.String("endpoint", cfg.MinioEndpoint), logger.String("bucket", bucket))
	return nil
}

// Ready reports whether Init succeeded. When it did not, the URL-reference
// create path still works; only file uploads are unavailable.
func Ready() bool {
	return minioClient != nil
}

// PutAudio stores an uploaded audio payload under a generated object name and
// returns the reference path clients retrieve it by.
func PutAudio(ctx context.Context, filename string, r io.Reader, size int64, contentType string) (string, error) {
	if minioClient == nil {
		return "", fmt.Errorf("object storage is not available")
	}
	ext := filepath.Ext(filename)
	if ext == "" {
		ext = ".dat"
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	objectName := "audio/" + uuid.NewString() + ext

	_, err := minioClient.PutObject(ctx, bucket, objectName, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to store audio object %q: %w", objectName, err)
	}
	logger.Info("stored audio object", logger.String("object", objectName), logger.Int64("size", size))
	return "/files/" + objectName, nil
}

// Object opens a stored object for streaming back to a client.
func Object(ctx context.Context, objectName string) (*minio.Object, error) {
	if minioClient == nil {
		return nil, fmt.Errorf("object storage is not available")
	}
	obj, err := minioClient.GetObject(ctx, bucket, objectName, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to open object %q: %w", objectName, err)
	}
	return obj, nil
}
