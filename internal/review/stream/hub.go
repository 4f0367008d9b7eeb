// Package stream fans newly posted reviews out to live subscribers of a listing.
package stream

import (
	"context"
	"sync"

	"github.com/2015jtw/campfinder/internal/platform/logger"
	"github.com/2015jtw/campfinder/internal/platform/metrics"
	"github.com/2015jtw/campfinder/internal/review/domain"
	"go.uber.org/zap"
)

// Hub is a registry of subscriptions keyed by listing id. The lock guards only the registry;
// delivery happens on each subscription's own goroutine.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[*Subscription]struct{}
	gauge  *metrics.MetricsManager
	logger *logger.Logger
}

func NewHub(mm *metrics.MetricsManager, log *logger.Logger) *Hub {
	return &Hub{
		subs:   make(map[string]map[*Subscription]struct{}),
		gauge:  mm,
		logger: log.Named("ReviewHub"),
	}
}

// Subscribe registers interest in reviews posted to listingID from now on.
// The caller must Close the subscription.
func (h *Hub) Subscribe(listingID string) *Subscription {
	s := newSubscription(h, listingID)

	h.mu.Lock()
	set, ok := h.subs[listingID]
	if !ok {
		set = make(map[*Subscription]struct{})
		h.subs[listingID] = set
	}
	set[s] = struct{}{}
	h.mu.Unlock()

	if h.gauge != nil {
		h.gauge.LiveSubscribers.Inc()
	}
	h.logger.Debug("Subscriber added", zap.String("listing_id", listingID))
	go s.pump()
	return s
}

// Publish queues review for every current subscriber of its listing and returns without waiting
// for delivery.
func (h *Hub) Publish(_ context.Context, review *domain.Review) error {
	h.mu.RLock()
	set := h.subs[review.ListingID]
	targets := make([]*Subscription, 0, len(set))
	for s := range set {
		targets = append(targets, s)
	}
	h.mu.RUnlock()

	for _, s := range targets {
		s.enqueue(review)
	}
	return nil
}

// SubscriberCount returns the number of open subscriptions for listingID.
func (h *Hub) SubscriberCount(listingID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[listingID])
}

// Close ends every open subscription.
func (h *Hub) Close() {
	h.mu.RLock()
	var all []*Subscription
	for _, set := range h.subs {
		for s := range set {
			all = append(all, s)
		}
	}
	h.mu.RUnlock()

	for _, s := range all {
		s.Close()
	}
}

func (h *Hub) remove(s *Subscription) {
	h.mu.Lock()
	if set, ok := h.subs[s.listingID]; ok {
		delete(set, s)
		if len(set) == 0 {
			delete(h.subs, s.listingID)
		}
	}
	h.mu.Unlock()

	if h.gauge != nil {
		h.gauge.LiveSubscribers.Dec()
	}
	h.logger.Debug("Subscriber removed", zap.String("listing_id", s.listingID))
}
