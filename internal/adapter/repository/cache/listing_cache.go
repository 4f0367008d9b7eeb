package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/2015jtw/campfinder/internal/listing/domain"
	"github.com/2015jtw/campfinder/internal/listing/search"
	"github.com/2015jtw/campfinder/internal/platform/logger"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const keyPrefix = "listing:"

// CachedListingRepository serves FindByID from Redis and evicts on every write.
// Cache errors degrade to the wrapped repository.
type CachedListingRepository struct {
	next   domain.ListingRepository
	client redis.UniversalClient
	ttl    time.Duration
	logger *logger.Logger
}

// NewRedisClient connects and pings.
func NewRedisClient(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

func NewCachedListingRepository(next domain.ListingRepository, client redis.UniversalClient, ttl time.Duration, log *logger.Logger) *CachedListingRepository {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &CachedListingRepository{next: next, client: client, ttl: ttl, logger: log.Named("ListingCache")}
}

func (c *CachedListingRepository) Create(ctx context.Context, listing *domain.Listing) error {
	return c.next.Create(ctx, listing)
}

func (c *CachedListingRepository) FindByID(ctx context.Context, id string) (*domain.Listing, error) {
	data, err := c.client.Get(ctx, keyPrefix+id).Bytes()
	switch {
	case err == nil:
		var l domain.Listing
		if err := json.Unmarshal(data, &l); err == nil {
			return &l, nil
		}
		c.logger.Warn("Dropping undecodable cache entry", zap.String("listing_id", id))
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("Cache read failed", zap.String("listing_id", id), zap.Error(err))
	}

	l, err := c.next.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	c.set(ctx, l)
	return l, nil
}

func (c *CachedListingRepository) Update(ctx context.Context, listing *domain.Listing) error {
	c.evict(ctx, listing.ID)
	err := c.next.Update(ctx, listing)
	c.evict(ctx, listing.ID)
	return err
}

func (c *CachedListingRepository) Delete(ctx context.Context, id string) error {
	err := c.next.Delete(ctx, id)
	c.evict(ctx, id)
	return err
}

func (c *CachedListingRepository) Search(ctx context.Context, filter search.Filter) ([]*domain.Listing, error) {
	return c.next.Search(ctx, filter)
}

func (c *CachedListingRepository) set(ctx context.Context, l *domain.Listing) {
	data, err := json.Marshal(l)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, keyPrefix+l.ID, data, c.ttl).Err(); err != nil {
		c.logger.Warn("Cache write failed", zap.String("listing_id", l.ID), zap.Error(err))
	}
}

func (c *CachedListingRepository) evict(ctx context.Context, id string) {
	if err := c.client.Del(ctx, keyPrefix+id).Err(); err != nil {
		c.logger.Warn("Cache eviction failed", zap.String("listing_id", id), zap.Error(err))
	}
}
