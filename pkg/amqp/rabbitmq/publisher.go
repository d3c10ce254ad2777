package rabbitmq

import (
	"github.com/pkg/errors"
	"github.com/streadway/amqp"
)

// Publisher publishes to a fanout exchange, reaching every bound listener.
type Publisher struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
}

func NewPublisher(addr, exchange string) (*Publisher, error) {
	conn, ch, err := dial(addr, exchange)
	if err != nil {
		return nil, err
	}

	return &Publisher{
		conn:     conn,
		ch:       ch,
		exchange: exchange,
	}, nil
}

func (r *Publisher) Publish(body []byte, contentType string) error {
	err := r.ch.Publish(
		r.exchange, // exchange
		"",         // routing key
		false,      // mandatory
		false,      // immediate
		amqp.Publishing{
			ContentType: contentType,
			Body:        body,
		})

	return errors.Wrap(err, "rabbitMQ publish failed")
}

func (r *Publisher) Close() error {
	return r.conn.Close()
}
