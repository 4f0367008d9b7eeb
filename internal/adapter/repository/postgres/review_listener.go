package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/2015jtw/campfinder/internal/platform/logger"
	"github.com/2015jtw/campfinder/internal/review/domain"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

// ReviewSink receives reviews announced by the database.
type ReviewSink interface {
	Publish(ctx context.Context, review *domain.Review) error
}

// ReviewListener turns review_created notifications into sink deliveries, so every instance
// connected to the database sees every insert.
type ReviewListener struct {
	listener *pq.Listener
	sink     ReviewSink
	logger   *logger.Logger
}

func NewReviewListener(dsn string, sink ReviewSink, log *logger.Logger) (*ReviewListener, error) {
	log = log.Named("PGReviewListener")
	l := pq.NewListener(dsn, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		switch ev {
		case pq.ListenerEventDisconnected:
			log.Warn("Notification connection lost", zap.Error(err))
		case pq.ListenerEventReconnected:
			log.Info("Notification connection re-established; reviews posted meanwhile were missed")
		case pq.ListenerEventConnectionAttemptFailed:
			log.Warn("Notification connection attempt failed", zap.Error(err))
		}
	})
	if err := l.Listen(reviewChannel); err != nil {
		l.Close()
		return nil, fmt.Errorf("failed to listen on %s: %w", reviewChannel, err)
	}
	return &ReviewListener{listener: l, sink: sink, logger: log}, nil
}

// Run delivers notifications until ctx is done.
func (l *ReviewListener) Run(ctx context.Context) {
	ticker := time.NewTicker(90 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-l.listener.Notify:
			if !ok {
				return
			}
			if n == nil {
				continue
			}
			review, err := decodeReview(n.Extra)
			if err != nil {
				l.logger.Error("Malformed review notification", zap.String("payload", n.Extra), zap.Error(err))
				continue
			}
			if err := l.sink.Publish(ctx, review); err != nil {
				l.logger.Warn("Failed to deliver review", zap.String("review_id", review.ID), zap.Error(err))
			}
		case <-ticker.C:
			go func() {
				if err := l.listener.Ping(); err != nil {
					l.logger.Warn("Notification connection ping failed", zap.Error(err))
				}
			}()
		}
	}
}

// Publish is a no-op: the insert trigger already announced the review.
func (l *ReviewListener) Publish(context.Context, *domain.Review) error { return nil }

func (l *ReviewListener) Close() error {
	return l.listener.Close()
}

func decodeReview(payload string) (*domain.Review, error) {
	var r domain.Review
	if err := json.Unmarshal([]byte(payload), &r); err != nil {
		return nil, err
	}
	if r.ID == "" || r.ListingID == "" {
		return nil, fmt.Errorf("notification lacks id or listing_id")
	}
	return &r, nil
}
