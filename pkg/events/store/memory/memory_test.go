/*
Copyright Scoir Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package memory

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/scoir/canis-webhooks/pkg/events"
)

func event(wallet string, topic events.Topic, state string, at time.Time) *events.Event {
	ev := events.NewEvent(wallet, topic, "tenant", "", events.Payload{"state": state})
	ev.ReceivedAt = at
	return ev
}

func TestStore_Append(t *testing.T) {
	t.Run("capacity drops oldest", func(t *testing.T) {
		st := New(time.Minute, 3)
		now := time.Now()
		for i := 0; i < 5; i++ {
			require.NoError(t, st.Append(event("w1", events.Credentials, fmt.Sprintf("s%d", i), now)))
		}

		evs, err := st.List("w1", events.Credentials, time.Time{})
		require.NoError(t, err)
		require.Len(t, evs, 3)
		require.Equal(t, "s2", evs[0].Payload.State())
		require.Equal(t, "s4", evs[2].Payload.State())
	})

	t.Run("missing wallet", func(t *testing.T) {
		st := New(0, 0)
		err := st.Append(event("", events.Credentials, "done", time.Now()))
		require.Error(t, err)
	})

	t.Run("closed", func(t *testing.T) {
		st := New(0, 0)
		require.NoError(t, st.Close())
		err := st.Append(event("w1", events.Credentials, "done", time.Now()))
		require.Error(t, err)
	})
}

func TestStore_Query(t *testing.T) {
	st := New(time.Minute, 10)
	now := time.Now()
	st.now = func() time.Time { return now }

	old := event("w1", events.Credentials, "offer-received", now.Add(-10*time.Second))
	recent := event("w1", events.Credentials, "offer-received", now.Add(-time.Second))
	other := event("w1", events.Proofs, "offer-received", now)
	require.NoError(t, st.Append(old))
	require.NoError(t, st.Append(recent))
	require.NoError(t, st.Append(other))

	t.Run("most recent match", func(t *testing.T) {
		ev, err := st.Query("w1", events.Credentials, events.Filter{DesiredState: "offer-received"}, now.Add(-time.Minute))
		require.NoError(t, err)
		require.Equal(t, recent.ID, ev.ID)
	})

	t.Run("outside lookback", func(t *testing.T) {
		ev, err := st.Query("w1", events.Credentials, events.Filter{DesiredState: "offer-received"}, now.Add(-500*time.Millisecond))
		require.NoError(t, err)
		require.Nil(t, ev)
	})

	t.Run("topic isolation", func(t *testing.T) {
		ev, err := st.Query("w2", events.Credentials, events.Filter{}, time.Time{})
		require.NoError(t, err)
		require.Nil(t, ev)
	})

	t.Run("no match", func(t *testing.T) {
		ev, err := st.Query("w1", events.Credentials, events.Filter{DesiredState: "done"}, time.Time{})
		require.NoError(t, err)
		require.Nil(t, ev)
	})
}

func TestStore_Retention(t *testing.T) {
	st := New(time.Minute, 10)
	now := time.Now()
	st.now = func() time.Time { return now }

	require.NoError(t, st.Append(event("w1", events.Connections, "completed", now.Add(-2*time.Minute))))
	require.NoError(t, st.Append(event("w2", events.Connections, "completed", now.Add(-2*time.Minute))))
	require.NoError(t, st.Append(event("w1", events.Proofs, "done", now)))

	evs, err := st.List("w1", events.All, time.Time{})
	require.NoError(t, err)
	require.Len(t, evs, 1)
	require.Equal(t, events.Proofs, evs[0].Topic)

	require.NoError(t, st.Purge())
	require.NotContains(t, st.wallets, "w2")
	require.NotContains(t, st.wallets["w1"], events.Connections)
}

func TestStore_ListAllTopicsOrdered(t *testing.T) {
	st := New(time.Minute, 10)
	now := time.Now()
	require.NoError(t, st.Append(event("w1", events.Proofs, "a", now.Add(-3*time.Second))))
	require.NoError(t, st.Append(event("w1", events.Credentials, "b", now.Add(-2*time.Second))))
	require.NoError(t, st.Append(event("w1", events.Proofs, "c", now.Add(-time.Second))))

	evs, err := st.List("w1", events.All, time.Time{})
	require.NoError(t, err)
	require.Len(t, evs, 3)
	require.Equal(t, "a", evs[0].Payload.State())
	require.Equal(t, "b", evs[1].Payload.State())
	require.Equal(t, "c", evs[2].Payload.State())
}

func TestStore_Concurrent(t *testing.T) {
	st := New(time.Minute, 20)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = st.Append(event("w1", events.Credentials, fmt.Sprintf("%d-%d", i, j), time.Now()))
			}
		}(i)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_, _ = st.Query("w1", events.Credentials, events.Filter{DesiredState: "x"}, time.Time{})
				_ = st.Purge()
			}
		}()
	}
	wg.Wait()

	evs, err := st.List("w1", events.Credentials, time.Time{})
	require.NoError(t, err)
	require.Len(t, evs, 20)
}
