/*
Copyright Scoir Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package fanout

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/scoir/canis-webhooks/pkg/events"
)

func credential(wallet, id, state string) *events.Event {
	return events.NewEvent(wallet, events.Credentials, "tenant", "issue_credential_v2_0",
		events.Payload{"credential_id": id, "state": state})
}

func TestHub_Publish(t *testing.T) {
	t.Run("wallet and topic isolation", func(t *testing.T) {
		hub := NewHub(4)
		mine, err := hub.Subscribe("w1", events.Credentials, events.Filter{})
		require.NoError(t, err)
		all, err := hub.Subscribe("w1", events.All, events.Filter{})
		require.NoError(t, err)

		require.Equal(t, 0, hub.Publish(credential("w2", "v2-1", "done")))
		proof := events.NewEvent("w1", events.Proofs, "tenant", "", events.Payload{"state": "done"})
		require.Equal(t, 1, hub.Publish(proof))
		require.Equal(t, 2, hub.Publish(credential("w1", "v2-1", "done")))

		require.Len(t, mine.C(), 1)
		require.Len(t, all.C(), 2)
	})

	t.Run("field filter applied, state left to reader", func(t *testing.T) {
		hub := NewHub(4)
		sub, err := hub.Subscribe("w1", events.Credentials, events.Filter{Field: "credential_id", FieldID: "v2-1", DesiredState: "done"})
		require.NoError(t, err)

		hub.Publish(credential("w1", "v2-2", "done"))
		hub.Publish(credential("w1", "v2-1", "offer-received"))

		ev := <-sub.C()
		require.Equal(t, "offer-received", ev.Payload.State())
		require.Len(t, sub.C(), 0)
	})

	t.Run("fifo order", func(t *testing.T) {
		hub := NewHub(10)
		sub, err := hub.Subscribe("w1", events.Credentials, events.Filter{})
		require.NoError(t, err)

		for i := 0; i < 10; i++ {
			hub.Publish(credential("w1", fmt.Sprintf("v2-%d", i), "done"))
		}

		for i := 0; i < 10; i++ {
			ev := <-sub.C()
			require.Equal(t, fmt.Sprintf("v2-%d", i), ev.Payload.String("credential_id"))
		}
	})

	t.Run("slow consumer evicted", func(t *testing.T) {
		hub := NewHub(1)
		slow, err := hub.Subscribe("w1", events.Credentials, events.Filter{})
		require.NoError(t, err)

		hub.Publish(credential("w1", "v2-1", "done"))
		hub.Publish(credential("w1", "v2-2", "done"))

		require.Equal(t, 0, hub.Len())
		require.Equal(t, ErrSlowConsumer, slow.Err())

		_, ok := <-slow.C()
		require.True(t, ok)
		_, ok = <-slow.C()
		require.False(t, ok)
	})
}

func TestSubscription_Close(t *testing.T) {
	hub := NewHub(1)
	sub, err := hub.Subscribe("w1", events.Credentials, events.Filter{})
	require.NoError(t, err)

	sub.Close()
	sub.Close()
	require.Nil(t, sub.Err())
	require.Equal(t, 0, hub.Len())

	_, ok := <-sub.C()
	require.False(t, ok)
}

func TestHub_Close(t *testing.T) {
	hub := NewHub(1)
	sub, err := hub.Subscribe("w1", events.Credentials, events.Filter{})
	require.NoError(t, err)

	require.NoError(t, hub.Close())
	_, ok := <-sub.C()
	require.False(t, ok)
	require.Equal(t, ErrClosed, sub.Err())

	_, err = hub.Subscribe("w1", events.Credentials, events.Filter{})
	require.Equal(t, ErrClosed, err)
	require.Equal(t, ErrClosed, hub.Broadcast(credential("w1", "v2-1", "done")))

	sub.Close()
}

func TestHub_SubscribeRequiresWallet(t *testing.T) {
	_, err := NewHub(0).Subscribe("", events.Credentials, events.Filter{})
	require.Error(t, err)
}

func TestHub_Concurrent(t *testing.T) {
	hub := NewHub(1000)
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sub, err := hub.Subscribe("w1", events.Credentials, events.Filter{})
			require.NoError(t, err)
			for j := 0; j < 50; j++ {
				hub.Publish(credential("w1", "v2-1", "done"))
			}
			sub.Close()
		}()
	}
	wg.Wait()

	require.Equal(t, 0, hub.Len())
}
