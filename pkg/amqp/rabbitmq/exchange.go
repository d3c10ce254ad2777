package rabbitmq

import (
	"github.com/pkg/errors"
	"github.com/streadway/amqp"
)

func dial(addr, exchange string) (*amqp.Connection, *amqp.Channel, error) {
	if exchange == "" {
		return nil, nil, errors.New("exchange name is required")
	}

	conn, err := amqp.Dial(addr)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "unable to connect to RabbitMQ at %s", addr)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, errors.Wrap(err, "unable to create an AMQP channel")
	}

	err = ch.ExchangeDeclare(
		exchange, // name
		"fanout", // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		_ = conn.Close()
		return nil, nil, errors.Wrap(err, "unable to declare AMQP exchange")
	}

	return conn, ch, nil
}
