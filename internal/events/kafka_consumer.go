package events

import (
	"context"
	"encoding/json"

	"github.com/Kilat-Pet-Delivery/service-adoption/internal/common/domain"
	"github.com/Kilat-Pet-Delivery/service-adoption/internal/common/events"
	"github.com/Kilat-Pet-Delivery/service-adoption/internal/common/kafka"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// PaymentApplier credits externally settled payments. *application.AdoptionService
// satisfies it.
type PaymentApplier interface {
	ApplyExternalPayment(ctx context.Context, evt events.PaymentReceivedEvent) error
}

// PaymentEventConsumer listens to payment events and credits them to adoption ledgers.
type PaymentEventConsumer struct {
	consumer *kafka.Consumer
	service  PaymentApplier
	logger   *zap.Logger
}

// NewPaymentEventConsumer creates a new PaymentEventConsumer.
func NewPaymentEventConsumer(
	brokers []string,
	groupID string,
	service PaymentApplier,
	logger *zap.Logger,
) *PaymentEventConsumer {
	consumer := kafka.NewConsumer(brokers, groupID, events.TopicPaymentEvents, logger)
	return &PaymentEventConsumer{
		consumer: consumer,
		service:  service,
		logger:   logger,
	}
}

// Start begins consuming payment events. This blocks until the context is cancelled.
func (c *PaymentEventConsumer) Start(ctx context.Context) error {
	return c.consumer.Consume(ctx, c.handleMessage)
}

// Close closes the underlying Kafka consumer.
func (c *PaymentEventConsumer) Close() error {
	return c.consumer.Close()
}

func (c *PaymentEventConsumer) handleMessage(ctx context.Context, msg kafkago.Message) error {
	var cloudEvent kafka.CloudEvent
	if err := json.Unmarshal(msg.Value, &cloudEvent); err != nil {
		c.logger.Error("failed to parse cloud event from payment topic",
			zap.Error(err),
			zap.String("raw", string(msg.Value)),
		)
		return nil // Don't retry malformed messages
	}

	switch cloudEvent.Type {
	case events.PaymentReceived:
		return c.handlePaymentReceived(ctx, cloudEvent)
	default:
		c.logger.Debug("ignoring unhandled payment event type",
			zap.String("type", cloudEvent.Type),
		)
		return nil
	}
}

func (c *PaymentEventConsumer) handlePaymentReceived(ctx context.Context, cloudEvent kafka.CloudEvent) error {
	var evt events.PaymentReceivedEvent
	if err := cloudEvent.ParseData(&evt); err != nil {
		c.logger.Error("failed to parse PaymentReceivedEvent data",
			zap.Error(err),
		)
		return nil // Don't retry malformed data
	}

	c.logger.Info("processing payment received event",
		zap.String("payment_id", evt.PaymentID),
		zap.String("user_id", evt.UserID.String()),
		zap.Int64("amount_cents", evt.AmountCents),
	)

	if err := c.service.ApplyExternalPayment(ctx, evt); err != nil {
		// Rejections such as overpayment or a missing ledger will not succeed on redelivery.
		// Contention (a busy user lock or a stale version) will, so it goes back for retry.
		if _, rejected := domain.AsError(err); rejected && !domain.IsRetryable(err) {
			c.logger.Warn("payment rejected",
				zap.String("payment_id", evt.PaymentID),
				zap.String("user_id", evt.UserID.String()),
				zap.Error(err),
			)
			return nil
		}
		c.logger.Error("failed to apply payment",
			zap.String("payment_id", evt.PaymentID),
			zap.Error(err),
		)
		return err
	}
	return nil
}
