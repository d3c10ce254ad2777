package rabbitmq

import (
	"github.com/pkg/errors"
	"github.com/streadway/amqp"
)

// Listener owns an exclusive, server-named queue bound to a fanout exchange,
// so every process receives its own copy of each message.
type Listener struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
}

func NewListener(addr, exchange string) (*Listener, error) {
	conn, ch, err := dial(addr, exchange)
	if err != nil {
		return nil, err
	}

	q, err := ch.QueueDeclare(
		"",    // name
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		_ = conn.Close()
		return nil, errors.Wrap(err, "unable to declare AMQP queue")
	}

	err = ch.QueueBind(q.Name, "", exchange, false, nil)
	if err != nil {
		_ = conn.Close()
		return nil, errors.Wrap(err, "unable to bind AMQP queue")
	}

	return &Listener{conn: conn, ch: ch, queue: q.Name}, nil
}

func (r *Listener) Listen() (<-chan amqp.Delivery, error) {
	msgs, err := r.ch.Consume(
		r.queue,
		"",
		true,
		true,
		false,
		false,
		nil,
	)
	if err != nil {
		return nil, errors.Wrap(err, "unable to consume")
	}

	return msgs, nil
}

func (r *Listener) Close() error {
	return r.conn.Close()
}
