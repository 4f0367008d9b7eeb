package s3

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/2015jtw/campfinder/internal/platform/logger"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// S3Storage keeps listing images in a MinIO/S3 bucket readable by anonymous clients.
type S3Storage struct {
	client  *minio.Client
	bucket  string
	baseURL string
	logger  *logger.Logger
}

// NewS3Storage connects, ensures the bucket exists and grants anonymous read under prefix.
// publicURL overrides the endpoint-derived URL base (e.g. a CDN in front of the bucket).
func NewS3Storage(endpoint, accessKey, secretKey, bucketName string, useSSL bool, publicURL, prefix string, log *logger.Logger) (*S3Storage, error) {
	log = log.Named("S3Storage")
	log.Info("Initializing S3 MinIO Storage",
		zap.String("endpoint", endpoint), zap.String("bucket", bucketName), zap.Bool("use_ssl", useSSL))

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		log.Error("Failed to create MinIO client", zap.String("endpoint", endpoint), zap.Error(err))
		return nil, fmt.Errorf("failed to create minio client for endpoint %s: %w", endpoint, err)
	}

	ctx := context.Background()
	if err := client.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{}); err != nil {
		exists, errBucketExists := client.BucketExists(ctx, bucketName)
		if errBucketExists != nil || !exists {
			log.Error("Failed to make or verify bucket",
				zap.String("bucket", bucketName), zap.NamedError("make_bucket_error", err), zap.NamedError("check_exists_error", errBucketExists))
			return nil, fmt.Errorf("failed to make/verify bucket %s: (make: %v / exists_check: %v)", bucketName, err, errBucketExists)
		}
		log.Info("Bucket already exists", zap.String("bucket", bucketName))
	} else {
		log.Info("Bucket created", zap.String("bucket", bucketName))
	}

	if err := client.SetBucketPolicy(ctx, bucketName, publicReadPolicy(bucketName, prefix)); err != nil {
		log.Warn("Failed to set public read policy, image URLs may not be reachable", zap.String("bucket", bucketName), zap.Error(err))
	}

	return newS3Storage(client, bucketName, publicURL, log), nil
}

func newS3Storage(client *minio.Client, bucket, publicURL string, log *logger.Logger) *S3Storage {
	base := strings.TrimRight(publicURL, "/")
	if base == "" {
		base = fmt.Sprintf("%s/%s", client.EndpointURL().String(), bucket)
	}
	return &S3Storage{client: client, bucket: bucket, baseURL: base, logger: log}
}

func (s *S3Storage) Upload(ctx context.Context, objectKey string, data []byte, contentType string) (string, error) {
	s.logger.Debug("Uploading object",
		zap.String("bucket", s.bucket), zap.String("object_key", objectKey), zap.Int("size_bytes", len(data)))

	info, err := s.client.PutObject(ctx, s.bucket, objectKey, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType:  contentType,
		CacheControl: "public, max-age=3600",
	})
	if err != nil {
		s.logger.Error("PutObject failed", zap.String("bucket", s.bucket), zap.String("key", objectKey), zap.Error(err))
		return "", fmt.Errorf("failed to upload object %s to bucket %s: %w", objectKey, s.bucket, err)
	}

	url := s.PublicURL(info.Key)
	s.logger.Info("Object uploaded", zap.String("key", info.Key), zap.String("etag", info.ETag), zap.String("url", url))
	return url, nil
}

// Remove deletes all keys with a single multi-object delete request.
func (s *S3Storage) Remove(ctx context.Context, objectKeys []string) error {
	if len(objectKeys) == 0 {
		return nil
	}
	objectsCh := make(chan minio.ObjectInfo, len(objectKeys))
	for _, key := range objectKeys {
		objectsCh <- minio.ObjectInfo{Key: key}
	}
	close(objectsCh)

	var failed []string
	var firstErr error
	for rErr := range s.client.RemoveObjects(ctx, s.bucket, objectsCh, minio.RemoveObjectsOptions{}) {
		failed = append(failed, rErr.ObjectName)
		if firstErr == nil {
			firstErr = rErr.Err
		}
	}
	if firstErr != nil {
		s.logger.Error("RemoveObjects failed", zap.String("bucket", s.bucket), zap.Strings("keys", failed), zap.Error(firstErr))
		return fmt.Errorf("failed to remove %d of %d objects from bucket %s: %w", len(failed), len(objectKeys), s.bucket, firstErr)
	}
	s.logger.Info("Objects removed", zap.Int("count", len(objectKeys)))
	return nil
}

func (s *S3Storage) PublicURL(objectKey string) string {
	return s.baseURL + "/" + strings.TrimLeft(objectKey, "/")
}

func (s *S3Storage) PathFromURL(url string) (string, bool) {
	key, ok := strings.CutPrefix(url, s.baseURL+"/")
	if !ok || key == "" {
		return "", false
	}
	return key, true
}

func publicReadPolicy(bucket, prefix string) string {
	resource := fmt.Sprintf("arn:aws:s3:::%s/*", bucket)
	if p := strings.Trim(prefix, "/"); p != "" {
		resource = fmt.Sprintf("arn:aws:s3:::%s/%s/*", bucket, p)
	}
	return fmt.Sprintf(`{"Version":"2012-10-17","Statement":[{"Effect":"Allow","Principal":{"AWS":["*"]},"Action":["s3:GetObject"],"Resource":["%s"]}]}`, resource)
}
