/*
Copyright Scoir Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/
package mongodb

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/scoir/canis-webhooks/pkg/events"
)

const (
	mongoStoreDBURL = "mongodb://localhost:27017"
)

// For these tests to run, you must have a Mongo DB instance running at mongoStoreDBURL:
//   docker run -p 27017:27017 --name MongoStoreTest -d mongo:4.2.8
func TestMain(m *testing.M) {
	err := waitForMongoDBToStart()
	if err != nil {
		fmt.Printf(err.Error() +
			". Make sure you start a mongo instance using" +
			" 'docker run -p 27017:27017 mongo:4.2.8' before running the unit tests")
		os.Exit(0)
	}

	os.Exit(m.Run())
}

func waitForMongoDBToStart() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoStoreDBURL))
	if err != nil {
		return err
	}
	defer client.Disconnect(context.Background())

	return client.Ping(ctx, nil)
}

func openStore(t *testing.T, maxEvents int) *Store {
	p, err := NewProvider(&Config{
		URL:        mongoStoreDBURL,
		Database:   "canis-webhooks-test",
		Collection: "events-" + uuid.New().String(),
	}, time.Minute, maxEvents)
	require.NoError(t, err)

	st, err := p.Open()
	require.NoError(t, err)

	ms := st.(*Store)
	t.Cleanup(func() {
		_ = ms.collection.Drop(context.Background())
		_ = ms.Close()
	})

	return ms
}

func TestNewProvider(t *testing.T) {
	t.Run("missing config", func(t *testing.T) {
		p, err := NewProvider(nil, time.Minute, 10)
		require.Error(t, err)
		require.Nil(t, p)
	})

	t.Run("bad retention", func(t *testing.T) {
		p, err := NewProvider(&Config{}, 0, 10)
		require.Error(t, err)
		require.Nil(t, p)
	})
}

func TestStore_AppendQuery(t *testing.T) {
	st := openStore(t, 10)

	first := events.NewEvent("w1", events.Credentials, "tenant", "issue_credential_v2_0",
		events.Payload{"credential_id": "v2-1", "state": "offer-received"})
	require.NoError(t, st.Append(first))
	time.Sleep(5 * time.Millisecond)
	second := events.NewEvent("w1", events.Credentials, "tenant", "issue_credential_v2_0",
		events.Payload{"credential_id": "v2-2", "state": "offer-received"})
	require.NoError(t, st.Append(second))

	t.Run("most recent", func(t *testing.T) {
		ev, err := st.Query("w1", events.Credentials, events.Filter{DesiredState: "offer-received"}, time.Now().Add(-time.Minute))
		require.NoError(t, err)
		require.Equal(t, second.ID, ev.ID)
		require.Equal(t, "v2-2", ev.Payload.String("credential_id"))
	})

	t.Run("by field", func(t *testing.T) {
		ev, err := st.Query("w1", events.Credentials, events.Filter{Field: "credential_id", FieldID: "v2-1"}, time.Time{})
		require.NoError(t, err)
		require.Equal(t, first.ID, ev.ID)
	})

	t.Run("by numeric field", func(t *testing.T) {
		numbered := events.NewEvent("w3", events.BasicMessages, "tenant", "basicmessages",
			events.Payload{"message_id": float64(42), "state": ""})
		require.NoError(t, st.Append(numbered))

		ev, err := st.Query("w3", events.BasicMessages, events.Filter{Field: "message_id", FieldID: "42"}, time.Time{})
		require.NoError(t, err)
		require.NotNil(t, ev)
		require.Equal(t, numbered.ID, ev.ID)
		require.True(t, events.Filter{Field: "message_id", FieldID: "42"}.Matches(numbered))
	})

	t.Run("no match", func(t *testing.T) {
		ev, err := st.Query("w2", events.Credentials, events.Filter{}, time.Time{})
		require.NoError(t, err)
		require.Nil(t, ev)
	})

	t.Run("invalid field", func(t *testing.T) {
		_, err := st.Query("w1", events.Credentials, events.Filter{Field: "$where", FieldID: "x"}, time.Time{})
		require.Error(t, err)
	})

	t.Run("list", func(t *testing.T) {
		evs, err := st.List("w1", events.All, time.Time{})
		require.NoError(t, err)
		require.Len(t, evs, 2)
		require.Equal(t, first.ID, evs[0].ID)
	})
}

func TestFieldValues(t *testing.T) {
	require.Equal(t, []interface{}{"v2-1"}, fieldValues("v2-1"))
	require.Equal(t, []interface{}{"42", float64(42)}, fieldValues("42"))
	require.Equal(t, []interface{}{"true", true}, fieldValues("true"))
}

func TestStore_Trim(t *testing.T) {
	st := openStore(t, 2)

	for i := 0; i < 4; i++ {
		require.NoError(t, st.Append(events.NewEvent("w1", events.Proofs, "tenant", "present_proof_v2_0",
			events.Payload{"state": fmt.Sprintf("s%d", i)})))
		time.Sleep(5 * time.Millisecond)
	}

	evs, err := st.List("w1", events.Proofs, time.Time{})
	require.NoError(t, err)
	require.Len(t, evs, 2)
	require.Equal(t, "s2", evs[0].Payload.State())
}
