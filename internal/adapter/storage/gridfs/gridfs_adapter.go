package gridfs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/2015jtw/campfinder/internal/platform/apperror"
	"github.com/2015jtw/campfinder/internal/platform/logger"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const (
	bucketName    = "assets"
	opTimeout     = 30 * time.Second
	metaMediaType = "content_type"
)

// GridFSStorage keeps listing images in MongoDB GridFS, keyed by object path.
// Images are served back through the HTTP adapter's /assets route.
type GridFSStorage struct {
	db      *mongo.Database
	baseURL string
	logger  *logger.Logger
}

func NewGridFSStorage(db *mongo.Database, baseURL string, log *logger.Logger) (*GridFSStorage, error) {
	s := &GridFSStorage{
		db:      db,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  log.Named("GridFSStorage"),
	}
	if _, err := s.open(); err != nil {
		return nil, err
	}
	return s, nil
}

// open returns a fresh bucket handle; deadlines are per handle, so handles are not shared.
func (s *GridFSStorage) open() (*gridfs.Bucket, error) {
	bucket, err := gridfs.NewBucket(s.db, options.GridFSBucket().SetName(bucketName))
	if err != nil {
		return nil, fmt.Errorf("failed to open gridfs bucket: %w", err)
	}
	return bucket, nil
}

func (s *GridFSStorage) Upload(ctx context.Context, path string, data []byte, contentType string) (string, error) {
	bucket, err := s.open()
	if err != nil {
		return "", err
	}
	if err := bucket.SetWriteDeadline(deadline(ctx)); err != nil {
		return "", err
	}
	opts := options.GridFSUpload().SetMetadata(bson.M{metaMediaType: contentType})
	id, err := bucket.UploadFromStream(path, bytes.NewReader(data), opts)
	if err != nil {
		s.logger.Error("GridFS upload failed", zap.String("path", path), zap.Error(err))
		return "", fmt.Errorf("failed to upload %s: %w", path, err)
	}
	s.logger.Info("Object uploaded", zap.String("path", path), zap.String("file_id", id.Hex()))
	return s.PublicURL(path), nil
}

// Remove deletes every file stored under paths. Paths with no file are skipped.
func (s *GridFSStorage) Remove(ctx context.Context, paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	bucket, err := s.open()
	if err != nil {
		return err
	}
	cursor, err := bucket.FindContext(ctx, bson.M{"filename": bson.M{"$in": paths}})
	if err != nil {
		return fmt.Errorf("failed to look up %d objects: %w", len(paths), err)
	}
	var files []gridfs.File
	if err := cursor.All(ctx, &files); err != nil {
		return fmt.Errorf("failed to decode gridfs files: %w", err)
	}

	var errs []error
	for _, f := range files {
		if err := bucket.DeleteContext(ctx, f.ID); err != nil && !errors.Is(err, gridfs.ErrFileNotFound) {
			errs = append(errs, fmt.Errorf("%s: %w", f.Name, err))
		}
	}
	if len(errs) > 0 {
		s.logger.Error("GridFS remove failed", zap.Int("failed", len(errs)), zap.Int("requested", len(paths)))
		return errors.Join(errs...)
	}
	s.logger.Info("Objects removed", zap.Int("count", len(files)))
	return nil
}

func (s *GridFSStorage) PublicURL(path string) string {
	return s.baseURL + "/" + strings.TrimLeft(path, "/")
}

func (s *GridFSStorage) PathFromURL(url string) (string, bool) {
	path, ok := strings.CutPrefix(url, s.baseURL+"/")
	if !ok || path == "" {
		return "", false
	}
	return path, true
}

// Open streams the newest file stored under path.
func (s *GridFSStorage) Open(ctx context.Context, path string) (io.ReadCloser, string, int64, error) {
	bucket, err := s.open()
	if err != nil {
		return nil, "", 0, err
	}
	if err := bucket.SetReadDeadline(deadline(ctx)); err != nil {
		return nil, "", 0, err
	}
	stream, err := bucket.OpenDownloadStreamByName(path)
	if errors.Is(err, gridfs.ErrFileNotFound) {
		return nil, "", 0, apperror.ErrNotFound
	}
	if err != nil {
		return nil, "", 0, fmt.Errorf("failed to open %s: %w", path, err)
	}

	file := stream.GetFile()
	contentType := "application/octet-stream"
	if file.Metadata != nil {
		if v, ok := file.Metadata.Lookup(metaMediaType).StringValueOK(); ok && v != "" {
			contentType = v
		}
	}
	return stream, contentType, file.Length, nil
}

func deadline(ctx context.Context) time.Time {
	if d, ok := ctx.Deadline(); ok {
		return d
	}
	return time.Now().Add(opTimeout)
}
