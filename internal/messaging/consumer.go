package messaging

import (
	"encoding/json"
	"fmt"

	"guesswho-server/internal/models"
	"guesswho-server/internal/ws"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Consumer drains the game updates queue and fans each event out to the
// connected participants.
type Consumer struct {
	conn        *amqp.Connection
	manager     *ws.ConnectionManager
	queueName   string
	logger      *zap.Logger
	stopChannel chan struct{}
}

// NewConsumer creates the game updates consumer.
func NewConsumer(conn *amqp.Connection, manager *ws.ConnectionManager, queueName string, logger *zap.Logger) *Consumer {
	return &Consumer{
		conn:        conn,
		manager:     manager,
		queueName:   queueName,
		logger:      logger.Named("GameUpdateConsumer"),
		stopChannel: make(chan struct{}),
	}
}

// StartConsuming blocks reading the queue until Stop is called or the
// channel closes. Run it in its own goroutine.
func (c *Consumer) StartConsuming() error {
	ch, err := c.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open rabbitmq channel: %w", err)
	}
	defer ch.Close()

	// Declare on this end too so startup order does not matter. Parameters
	// must match the publisher's declaration.
	q, err := ch.QueueDeclare(
		c.queueName, // name
		true,        // durable
		false,       // delete when unused
		false,       // exclusive
		false,       // no-wait
		nil,         // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue '%s': %w", c.queueName, err)
	}

	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	msgs, err := ch.Consume(
		q.Name,
		"guesswho-server-consumer", // consumer tag
		false,                      // auto-ack
		false,                      // exclusive
		false,                      // no-local
		false,                      // no-wait
		nil,                        // args
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	c.logger.Info("Consumer started", zap.String("queue", q.Name))

	for {
		select {
		case d, ok := <-msgs:
			if !ok {
				c.logger.Info("RabbitMQ message channel closed")
				return nil
			}

			var update models.GameUpdate
			if err := json.Unmarshal(d.Body, &update); err != nil {
				c.logger.Warn("Failed to decode game update, discarding",
					zap.Uint64("deliveryTag", d.DeliveryTag), zap.Error(err))
				_ = d.Nack(false, false)
				continue
			}

			// The feed is best-effort: offline participants simply miss the
			// event, so the message is acked regardless of delivery.
			for _, playerID := range []string{update.PlayerOneID, update.PlayerTwoID} {
				if playerID == "" {
					continue
				}
				if c.manager.SendToPlayer(playerID, d.Body) {
					c.logger.Debug("Game update delivered",
						zap.String("playerID", playerID), zap.String("gameID", update.GameID))
				}
			}
			_ = d.Ack(false)

		case <-c.stopChannel:
			c.logger.Info("Consumer stop signal received")
			return nil
		}
	}
}

// Stop signals the consumer loop to exit.
func (c *Consumer) Stop() {
	close(c.stopChannel)
}
