package stream

import (
	"sync"

	"github.com/2015jtw/campfinder/internal/review/domain"
)

// Subscription is one live feed of reviews for a listing. Its queue is unbounded so a slow
// reader never blocks Publish or other subscribers.
type Subscription struct {
	hub       *Hub
	listingID string

	mu     sync.Mutex
	queue  []*domain.Review
	notify chan struct{}

	out       chan *domain.Review
	done      chan struct{}
	closeOnce sync.Once
}

func newSubscription(h *Hub, listingID string) *Subscription {
	return &Subscription{
		hub:       h,
		listingID: listingID,
		notify:    make(chan struct{}, 1),
		out:       make(chan *domain.Review),
		done:      make(chan struct{}),
	}
}

// C yields reviews in publish order. It is closed after Close.
func (s *Subscription) C() <-chan *domain.Review { return s.out }

func (s *Subscription) ListingID() string { return s.listingID }

// Done is closed once the subscription is closed.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Close unregisters the subscription and drops anything still queued. Safe to call repeatedly.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		s.hub.remove(s)
		close(s.done)
	})
}

func (s *Subscription) enqueue(r *domain.Review) {
	select {
	case <-s.done:
		return
	default:
	}

	s.mu.Lock()
	s.queue = append(s.queue, r)
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *Subscription) pump() {
	defer close(s.out)
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.mu.Unlock()
			select {
			case <-s.notify:
				continue
			case <-s.done:
				return
			}
		}
		next := s.queue[0]
		s.queue[0] = nil
		s.queue = s.queue[1:]
		s.mu.Unlock()

		select {
		case s.out <- next:
		case <-s.done:
			return
		}
	}
}
