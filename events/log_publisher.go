package events

import (
	"context"

	"go.uber.org/zap"
)

// LogPublisher writes events to the log instead of a broker. It is used when
// no broker is configured or the broker is unreachable at startup.
type LogPublisher struct {
	Logger *zap.Logger
}

func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogPublisher{Logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, event Event) error {
	p.Logger.Info("loyalty event (not published to broker)",
		zap.String("type", string(event.Type)),
		zap.Int64("customer_id", event.CustomerID),
		zap.Int64("business_id", event.BusinessID),
		zap.Int64("points_awarded", event.PointsAwarded),
		zap.String("tier", event.TierName),
		zap.Int64("points_required", event.PointsRequired),
	)
	return nil
}

func (p *LogPublisher) Close() {}
