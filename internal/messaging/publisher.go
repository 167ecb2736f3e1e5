// Package messaging publishes and consumes game update events over RabbitMQ.
// The queue decouples the gameplay transitions from websocket delivery, so a
// slow or absent socket never blocks a move.
package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"guesswho-server/internal/models"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// GameUpdatePublisher publishes game change events for interested clients.
type GameUpdatePublisher interface {
	PublishGameUpdate(ctx context.Context, payload models.GameUpdate) error
}

type rabbitMQPublisher struct {
	channel   *amqp.Channel
	queueName string
	logger    *zap.Logger
}

// NewRabbitMQGameUpdatePublisher opens a channel and declares the durable
// game updates queue. Declaring on both ends keeps startup order free.
func NewRabbitMQGameUpdatePublisher(conn *amqp.Connection, queueName string, logger *zap.Logger) (GameUpdatePublisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("game update publisher: failed to open channel: %w", err)
	}
	_, err = ch.QueueDeclare(
		queueName, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		nil,       // arguments
	)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("game update publisher: failed to declare queue '%s': %w", queueName, err)
	}
	log := logger.Named("GameUpdatePublisher")
	log.Info("Queue declared", zap.String("queue", queueName))
	return &rabbitMQPublisher{channel: ch, queueName: queueName, logger: log}, nil
}

// PublishGameUpdate serializes and publishes one game update event.
func (p *rabbitMQPublisher) PublishGameUpdate(ctx context.Context, payload models.GameUpdate) error {
	body, err := json.Marshal(payload)
	if err != nil {
		p.logger.Error("Failed to marshal game update",
			zap.String("gameID", payload.GameID), zap.Error(err))
		return fmt.Errorf("failed to marshal game update for game %s: %w", payload.GameID, err)
	}
	if err := p.publishMessage(ctx, body); err != nil {
		p.logger.Error("Failed to publish game update",
			zap.String("gameID", payload.GameID), zap.Error(err))
		return fmt.Errorf("failed to publish game update for game %s: %w", payload.GameID, err)
	}
	return nil
}

func (p *rabbitMQPublisher) publishMessage(ctx context.Context, body []byte) error {
	if p.channel == nil {
		return errors.New("rabbitmq channel is not initialized")
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var err error
	for attempt := 1; attempt <= 3; attempt++ {
		err = p.channel.PublishWithContext(ctx,
			"",          // exchange (default)
			p.queueName, // routing key (queue name)
			false,       // mandatory
			false,       // immediate
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				Body:         body,
				Timestamp:    time.Now(),
				AppId:        "guesswho-server",
			},
		)
		if err == nil {
			break
		}
		p.logger.Warn("Publish attempt failed",
			zap.Int("attempt", attempt), zap.String("queue", p.queueName), zap.Error(err))
		time.Sleep(time.Duration(attempt) * 100 * time.Millisecond)
	}
	if err != nil {
		return fmt.Errorf("failed to publish to queue %s after retries: %w", p.queueName, err)
	}
	p.logger.Debug("Message published", zap.String("queue", p.queueName))
	return nil
}
