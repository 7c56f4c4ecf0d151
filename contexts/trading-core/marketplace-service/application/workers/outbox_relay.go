package workers

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	application "tokenmart/contexts/trading-core/marketplace-service/application"
	"tokenmart/contexts/trading-core/marketplace-service/ports"
)

// OutboxRelay drains pending outbox rows to the message bus. Notification
// publishing always happens after the triggering transaction committed, so
// a failed operation never produces an observable event.
type OutboxRelay struct {
	Outbox    ports.OutboxRepository
	Publisher ports.EventPublisher
	Clock     ports.Clock
	Topic     string
	BatchSize int
	Logger    *slog.Logger
}

func (r OutboxRelay) RunOnce(ctx context.Context) error {
	logger := application.ResolveLogger(r.Logger)
	limit := r.BatchSize
	if limit <= 0 {
		limit = 100
	}
	topic := r.Topic
	if topic == "" {
		topic = "marketplace.events"
	}

	pending, err := r.Outbox.ListPendingOutbox(ctx, limit)
	if err != nil {
		logger.Error("outbox list pending failed",
			"event", "marketplace_outbox_list_failed",
			"module", "trading-core/marketplace-service",
			"layer", "worker",
			"error", err.Error(),
		)
		return err
	}

	now := time.Now().UTC()
	if r.Clock != nil {
		now = r.Clock.Now().UTC()
	}

	for _, message := range pending {
		var envelope ports.EventEnvelope
		if err := json.Unmarshal(message.Payload, &envelope); err != nil {
			logger.Error("outbox payload decode failed",
				"event", "marketplace_outbox_decode_failed",
				"module", "trading-core/marketplace-service",
				"layer", "worker",
				"outbox_id", message.OutboxID,
				"error", err.Error(),
			)
			return err
		}
		if err := r.Publisher.Publish(ctx, topic, envelope); err != nil {
			logger.Error("outbox publish failed",
				"event", "marketplace_outbox_publish_failed",
				"module", "trading-core/marketplace-service",
				"layer", "worker",
				"outbox_id", message.OutboxID,
				"event_id", envelope.EventID,
				"event_type", envelope.EventType,
				"error", err.Error(),
			)
			return err
		}
		if err := r.Outbox.MarkOutboxSent(ctx, message.OutboxID, now); err != nil {
			logger.Error("outbox mark sent failed",
				"event", "marketplace_outbox_mark_sent_failed",
				"module", "trading-core/marketplace-service",
				"layer", "worker",
				"outbox_id", message.OutboxID,
				"error", err.Error(),
			)
			return err
		}
	}

	if len(pending) > 0 {
		logger.Info("outbox relay cycle completed",
			"event", "marketplace_outbox_relay_completed",
			"module", "trading-core/marketplace-service",
			"layer", "worker",
			"sent_count", len(pending),
		)
	}
	return nil
}

// Run polls until the context is cancelled.
func (r OutboxRelay) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.RunOnce(ctx); err != nil {
				application.ResolveLogger(r.Logger).Warn("outbox relay cycle failed",
					"event", "marketplace_outbox_relay_cycle_failed",
					"module", "trading-core/marketplace-service",
					"layer", "worker",
					"error", err.Error(),
				)
			}
		}
	}
}
