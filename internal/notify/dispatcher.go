// Package notify fans outbound messages out to the messaging gateway with
// per-recipient failure isolation.
package notify

import (
	"context"

	"hiky-bot-backend/internal/common/logger"
	"hiky-bot-backend/internal/messaging"
)

// Dispatcher delivers outbound messages. A failed delivery is logged and
// reported to the caller but must never abort a caller's batch loop, so
// SendAll swallows individual errors.
type Dispatcher struct {
	gateway messaging.Gateway
}

func NewDispatcher(gateway messaging.Gateway) *Dispatcher {
	return &Dispatcher{gateway: gateway}
}

// Send delivers one message.
func (d *Dispatcher) Send(ctx context.Context, msg messaging.Outbound) error {
	if err := d.gateway.Send(ctx, msg); err != nil {
		logger.Error().Err(err).Int64("chat_id", msg.ChatID).Msg("Failed to deliver message")
		return err
	}
	return nil
}

// SendAll delivers every message, continuing past failures. It returns the
// number of successful deliveries.
func (d *Dispatcher) SendAll(ctx context.Context, msgs []messaging.Outbound) int {
	delivered := 0
	for _, msg := range msgs {
		if err := d.Send(ctx, msg); err == nil {
			delivered++
		}
	}
	return delivered
}
