package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/floroz/auctioneer/internal/domain/auction"
)

const settlementQueue = "settlement_audit"

// SettlementConsumer subscribes to settlement and withdrawal events and
// emits the audit trail. Fund movement is the part of the system auditors
// care about; bid traffic stays on the exchange for other consumers.
type SettlementConsumer struct {
	conn   *amqp.Connection
	logger *slog.Logger
}

func NewSettlementConsumer(conn *amqp.Connection, logger *slog.Logger) *SettlementConsumer {
	return &SettlementConsumer{
		conn:   conn,
		logger: logger,
	}
}

// Run starts the consumer loop and blocks until ctx is cancelled.
func (c *SettlementConsumer) Run(ctx context.Context) error {
	ch, err := c.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	if err := c.setup(ch); err != nil {
		return fmt.Errorf("failed to setup rabbitmq: %w", err)
	}

	msgs, err := ch.Consume(
		settlementQueue, // queue
		"",              // consumer tag
		false,           // auto-ack
		false,           // exclusive
		false,           // no-local
		false,           // no-wait
		nil,             // args
	)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	c.logger.Info("Waiting for settlement events...")

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return fmt.Errorf("channel closed")
			}

			if err := c.handle(d.RoutingKey, d.Body); err != nil {
				c.logger.Error("Failed to process event", "routing_key", d.RoutingKey, "error", err)
				// Malformed payloads will never parse; drop without requeue.
				if nackErr := d.Nack(false, false); nackErr != nil {
					c.logger.Error("Failed to Nack message", "error", nackErr)
				}
				continue
			}

			if ackErr := d.Ack(false); ackErr != nil {
				c.logger.Error("Failed to Ack message", "error", ackErr)
			}
		}
	}
}

func (c *SettlementConsumer) handle(routingKey string, body []byte) error {
	switch routingKey {
	case auction.EventTypeAuctionSettled:
		var event auction.AuctionSettledEvent
		if err := json.Unmarshal(body, &event); err != nil {
			return fmt.Errorf("failed to unmarshal settlement event: %w", err)
		}
		c.logger.Info("Auction settled",
			"item_id", event.ItemID,
			"seller", event.Seller,
			"buyer", event.Buyer,
			"price", event.Price,
		)
	case auction.EventTypeFundsWithdrawn:
		var event auction.FundsWithdrawnEvent
		if err := json.Unmarshal(body, &event); err != nil {
			return fmt.Errorf("failed to unmarshal withdrawal event: %w", err)
		}
		c.logger.Info("Escrow withdrawn",
			"item_id", event.ItemID,
			"account", event.Account,
			"amount", event.Amount,
		)
	default:
		return fmt.Errorf("unexpected routing key %q", routingKey)
	}
	return nil
}

func (c *SettlementConsumer) setup(ch *amqp.Channel) error {
	err := ch.ExchangeDeclare(
		Exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // args
	)
	if err != nil {
		return err
	}

	q, err := ch.QueueDeclare(
		settlementQueue, // name
		true,            // durable
		false,           // delete when unused
		false,           // exclusive
		false,           // no-wait
		nil,             // args
	)
	if err != nil {
		return err
	}

	for _, key := range []string{auction.EventTypeAuctionSettled, auction.EventTypeFundsWithdrawn} {
		if err := ch.QueueBind(q.Name, key, Exchange, false, nil); err != nil {
			return err
		}
	}
	return nil
}
