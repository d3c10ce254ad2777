package rabbitmq

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func amqpAddress(t *testing.T) string {
	addy := os.Getenv("CANIS_TEST_AMQP")
	if addy == "" {
		t.Skip("CANIS_TEST_AMQP not set")
	}

	return addy
}

func TestPublisher_Publish(t *testing.T) {
	t.Run("publish reaches every listener", func(t *testing.T) {
		addy := amqpAddress(t)
		exchange := "test-exchange"

		first, err := NewListener(addy, exchange)
		require.NoError(t, err)
		second, err := NewListener(addy, exchange)
		require.NoError(t, err)
		publisher, err := NewPublisher(addy, exchange)
		require.NoError(t, err)

		ch1, err := first.Listen()
		require.NoError(t, err)
		ch2, err := second.Listen()
		require.NoError(t, err)

		err = publisher.Publish([]byte("{}"), "application/json")
		require.NoError(t, err)

		select {
		case d := <-ch1:
			require.Equal(t, []byte("{}"), d.Body)
		case <-time.After(5 * time.Second):
			t.Fatal("first listener received nothing")
		}

		select {
		case d := <-ch2:
			require.Equal(t, []byte("{}"), d.Body)
		case <-time.After(5 * time.Second):
			t.Fatal("second listener received nothing")
		}

		require.NoError(t, publisher.Close())
		require.NoError(t, first.Close())
		require.NoError(t, second.Close())
	})

	t.Run("bad address publisher", func(t *testing.T) {
		publisher, err := NewPublisher("amqp://localhost:9999/", "test-exchange")
		require.Error(t, err)
		require.Nil(t, publisher)
	})

	t.Run("bad address listener", func(t *testing.T) {
		listener, err := NewListener("amqp://localhost:9999/", "test-exchange")
		require.Error(t, err)
		require.Nil(t, listener)
	})

	t.Run("exchange required", func(t *testing.T) {
		publisher, err := NewPublisher("amqp://localhost:9999/", "")
		require.Error(t, err)
		require.Nil(t, publisher)
	})
}
