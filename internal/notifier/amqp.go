package notifier

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const notificationsExchange = "notifications_fanout"

type message struct {
	UserID  int64     `json:"user_id"`
	Kind    string    `json:"kind"`
	Payload any       `json:"payload,omitempty"`
	SentAt  time.Time `json:"sent_at"`
}

// AMQPNotifier publishes notifications to a fanout exchange consumed by the
// external notification service.
type AMQPNotifier struct {
	conn    *amqp.Connection
	channel *amqp.Channel
}

func NewAMQPNotifier(uri string) (*AMQPNotifier, error) {
	conn, err := amqp.Dial(uri)
	if err != nil {
		return nil, err
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	if err := channel.ExchangeDeclare(notificationsExchange, "fanout", true, false, false, false, nil); err != nil {
		channel.Close()
		conn.Close()
		return nil, err
	}

	return &AMQPNotifier{
		conn:    conn,
		channel: channel,
	}, nil
}

func (n *AMQPNotifier) Notify(ctx context.Context, userID int64, kind string, payload any) {
	body, err := json.Marshal(message{
		UserID:  userID,
		Kind:    kind,
		Payload: payload,
		SentAt:  time.Now(),
	})
	if err != nil {
		zap.L().Info("error marshal notification", zap.Error(err))
		return
	}

	err = n.channel.PublishWithContext(ctx, notificationsExchange, "", false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
	})
	if err != nil {
		zap.L().Info("error publish notification",
			zap.Int64("user_id", userID),
			zap.String("kind", kind),
			zap.Error(err),
		)
	}
}

func (n *AMQPNotifier) Close() error {
	if err := n.channel.Close(); err != nil {
		return err
	}

	return n.conn.Close()
}
