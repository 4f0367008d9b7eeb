package nats

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/2015jtw/campfinder/internal/platform/logger"
	"github.com/2015jtw/campfinder/internal/review/domain"
	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

const reviewStreamSubject = "campfinder.reviews.%s"

// ReviewSink receives reviews arriving from the bus.
type ReviewSink interface {
	Publish(ctx context.Context, review *domain.Review) error
}

// ReviewRelay carries posted reviews across instances: Publish sends to the bus and every
// instance, including the sender, hands what it receives to its local sink.
type ReviewRelay struct {
	conn   *nats.Conn
	sub    *nats.Subscription
	sink   ReviewSink
	logger *logger.Logger
}

func NewReviewRelay(conn *nats.Conn, sink ReviewSink, log *logger.Logger) (*ReviewRelay, error) {
	r := &ReviewRelay{conn: conn, sink: sink, logger: log.Named("ReviewRelay")}
	sub, err := conn.Subscribe(fmt.Sprintf(reviewStreamSubject, "*"), r.handle)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to review stream: %w", err)
	}
	r.sub = sub
	return r, nil
}

func (r *ReviewRelay) Publish(ctx context.Context, review *domain.Review) error {
	data, err := json.Marshal(review)
	if err != nil {
		return err
	}
	msg := nats.NewMsg(fmt.Sprintf(reviewStreamSubject, review.ListingID))
	msg.Data = data
	otel.GetTextMapPropagator().Inject(ctx, HeaderCarrier(msg.Header))
	return r.conn.PublishMsg(msg)
}

func (r *ReviewRelay) handle(msg *nats.Msg) {
	ctx := otel.GetTextMapPropagator().Extract(context.Background(), HeaderCarrier(msg.Header))

	var review domain.Review
	if err := json.Unmarshal(msg.Data, &review); err != nil {
		r.logger.Error("Malformed review message", zap.String("subject", msg.Subject), zap.Error(err))
		return
	}
	if err := r.sink.Publish(ctx, &review); err != nil {
		r.logger.Warn("Failed to deliver relayed review", zap.String("review_id", review.ID), zap.Error(err))
	}
}

func (r *ReviewRelay) Close() error {
	if r.sub == nil {
		return nil
	}
	return r.sub.Unsubscribe()
}
