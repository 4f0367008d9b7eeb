package usecase

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/2015jtw/campfinder/internal/listing/domain"
	"github.com/2015jtw/campfinder/internal/platform/apperror"
	"github.com/2015jtw/campfinder/internal/platform/logger"
	"github.com/2015jtw/campfinder/internal/platform/metrics"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SyncRequest describes the image changes requested for one listing.
type SyncRequest struct {
	OwnerID string
	Current []string
	Add     []domain.RawFile
	Remove  []string
}

// AssetSynchronizer reconciles a listing's image list with the asset store.
// It never touches the record store.
type AssetSynchronizer struct {
	store   domain.AssetStore
	prefix  string
	now     func() time.Time
	metrics *metrics.MetricsManager
	logger  *logger.Logger
}

func NewAssetSynchronizer(store domain.AssetStore, prefix string, mm *metrics.MetricsManager, log *logger.Logger) *AssetSynchronizer {
	return &AssetSynchronizer{
		store:   store,
		prefix:  strings.Trim(prefix, "/"),
		now:     time.Now,
		metrics: mm,
		logger:  log.Named("AssetSynchronizer"),
	}
}

// Sync removes req.Remove, then uploads req.Add one file at a time, and returns the surviving
// current URLs followed by the new ones. Any storage failure aborts with an ErrStorage error and
// no list; objects uploaded before the failure are left behind.
func (s *AssetSynchronizer) Sync(ctx context.Context, req SyncRequest) ([]string, error) {
	removeSet := s.removalSet(req.Current, req.Remove)

	if len(removeSet) > 0 {
		paths := make([]string, 0, len(removeSet))
		for _, u := range req.Current {
			if _, ok := removeSet[u]; ok {
				paths = append(paths, s.pathFromURL(u))
			}
		}
		if err := s.RemovePaths(ctx, paths); err != nil {
			return nil, err
		}
	}

	images := make([]string, 0, len(req.Current)+len(req.Add))
	seen := make(map[string]struct{}, len(req.Current)+len(req.Add))
	for _, u := range req.Current {
		if _, drop := removeSet[u]; drop {
			continue
		}
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		images = append(images, u)
	}

	for i, f := range req.Add {
		objectPath := s.objectPath(req.OwnerID, f.Name)
		url, err := s.store.Upload(ctx, objectPath, f.Data, f.ContentType)
		s.observeUpload(err)
		if err != nil {
			if i > 0 {
				s.logger.Warn("Upload failed after earlier uploads succeeded, leaving orphans",
					zap.Int("orphaned", i), zap.String("owner_id", req.OwnerID), zap.Error(err))
				if s.metrics != nil {
					s.metrics.OrphanedAssetsTotal.Add(float64(i))
				}
			}
			return nil, apperror.Storage(fmt.Sprintf("upload %s", objectPath), err)
		}
		if _, dup := seen[url]; dup {
			continue
		}
		seen[url] = struct{}{}
		images = append(images, url)
	}

	return images, nil
}

// RemoveURLs issues one bulk removal for urls.
func (s *AssetSynchronizer) RemoveURLs(ctx context.Context, urls []string) error {
	if len(urls) == 0 {
		return nil
	}
	paths := make([]string, 0, len(urls))
	for _, u := range urls {
		paths = append(paths, s.pathFromURL(u))
	}
	return s.RemovePaths(ctx, paths)
}

func (s *AssetSynchronizer) RemovePaths(ctx context.Context, paths []string) error {
	err := s.store.Remove(ctx, paths)
	if s.metrics != nil {
		s.metrics.AssetRemovalsTotal.WithLabelValues(metrics.Outcome(err)).Inc()
	}
	if err != nil {
		return apperror.Storage(fmt.Sprintf("remove %d objects", len(paths)), err)
	}
	return nil
}

// removalSet keeps only URLs that are part of the current list; anything else is ignored
// so a caller cannot delete objects belonging to another listing.
func (s *AssetSynchronizer) removalSet(current, remove []string) map[string]struct{} {
	if len(remove) == 0 {
		return nil
	}
	owned := make(map[string]struct{}, len(current))
	for _, u := range current {
		owned[u] = struct{}{}
	}
	set := make(map[string]struct{}, len(remove))
	for _, u := range remove {
		if _, ok := owned[u]; ok {
			set[u] = struct{}{}
		} else {
			s.logger.Debug("Ignoring removal of an image the listing does not reference", zap.String("url", u))
		}
	}
	return set
}

func (s *AssetSynchronizer) pathFromURL(u string) string {
	if p, ok := s.store.PathFromURL(u); ok {
		return p
	}
	// Unknown URL shape: assume the object sits directly under the prefix.
	last := u
	if i := strings.LastIndex(u, "/"); i >= 0 {
		last = u[i+1:]
	}
	if j := strings.IndexAny(last, "?#"); j >= 0 {
		last = last[:j]
	}
	return s.join(last)
}

func (s *AssetSynchronizer) objectPath(ownerID, fileName string) string {
	ext := strings.ToLower(path.Ext(fileName))
	if len(ext) > 10 {
		ext = ""
	}
	name := fmt.Sprintf("%s-%d-%s%s", ownerID, s.now().UnixMilli(), uuid.NewString()[:8], ext)
	return s.join(name)
}

func (s *AssetSynchronizer) join(name string) string {
	if s.prefix == "" {
		return name
	}
	return s.prefix + "/" + name
}

func (s *AssetSynchronizer) observeUpload(err error) {
	if s.metrics != nil {
		s.metrics.AssetUploadsTotal.WithLabelValues(metrics.Outcome(err)).Inc()
	}
}
