/*
Copyright Scoir Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package events

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestTranslateAgentTopic(t *testing.T) {
	t.Run("known topics", func(t *testing.T) {
		cases := map[string]Topic{
			"basicmessages":         BasicMessages,
			"connections":           Connections,
			"present_proof":         Proofs,
			"present_proof_v2_0":    Proofs,
			"out_of_band":           OOB,
			"issue_credential":      Credentials,
			"issue_credential_v2_0": Credentials,
			"endorse_transaction":   Endorsements,
			"revocation_registry":   Revocation,
		}
		for in, want := range cases {
			got, ok := TranslateAgentTopic(in)
			require.True(t, ok, in)
			require.Equal(t, want, got)
		}
	})

	t.Run("unknown topic", func(t *testing.T) {
		_, ok := TranslateAgentTopic("ping")
		require.False(t, ok)
	})
}

func TestParseTopic(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		topic, err := ParseTopic("credentials")
		require.NoError(t, err)
		require.Equal(t, Credentials, topic)
	})

	t.Run("agent topics are not façade topics", func(t *testing.T) {
		_, err := ParseTopic("issue_credential")
		require.Error(t, err)
		require.True(t, errors.Is(err, ErrUnknownTopic))
	})
}

func TestTopics(t *testing.T) {
	all := Topics()
	require.Len(t, all, 9)
	require.Equal(t, BasicMessages, all[0])
	require.NotContains(t, all, All)

	for _, topic := range all {
		parsed, err := ParseTopic(topic.String())
		require.NoError(t, err)
		require.Equal(t, topic, parsed)
	}
}

func TestNormalize(t *testing.T) {
	t.Run("credentials v1", func(t *testing.T) {
		body := map[string]interface{}{"credential_exchange_id": "abc", "state": "offer_received"}
		p := Normalize("issue_credential", body)
		require.Equal(t, "v1-abc", p["credential_id"])
		require.Equal(t, "offer-received", p.State())
		require.Equal(t, "offer_received", body["state"])
	})

	t.Run("credentials v1 acked is done", func(t *testing.T) {
		p := Normalize("issue_credential", map[string]interface{}{"credential_exchange_id": "abc", "state": "credential_acked"})
		require.Equal(t, "done", p.State())
	})

	t.Run("credentials v2", func(t *testing.T) {
		p := Normalize("issue_credential_v2_0", map[string]interface{}{"cred_ex_id": "xyz", "state": "offer-received"})
		require.Equal(t, "v2-xyz", p["credential_id"])
		require.Equal(t, "offer-received", p.State())
	})

	t.Run("proofs v1 verified", func(t *testing.T) {
		p := Normalize("present_proof", map[string]interface{}{
			"presentation_exchange_id": "p1", "state": "verified", "verified": "true"})
		require.Equal(t, "v1-p1", p["proof_id"])
		require.Equal(t, "done", p.State())
		require.Equal(t, true, p["verified"])
	})

	t.Run("proofs v2", func(t *testing.T) {
		p := Normalize("present_proof_v2_0", map[string]interface{}{"pres_ex_id": "p2", "state": "done", "verified": "false"})
		require.Equal(t, "v2-p2", p["proof_id"])
		require.Equal(t, false, p["verified"])
	})

	t.Run("connections use rfc23 state", func(t *testing.T) {
		p := Normalize("connections", map[string]interface{}{"state": "active", "rfc23_state": "completed"})
		require.Equal(t, "completed", p.State())
	})

	t.Run("endorsements", func(t *testing.T) {
		p := Normalize("endorse_transaction", map[string]interface{}{"state": "request_received", "transaction_id": "t1"})
		require.Equal(t, "request-received", p.State())
	})

	t.Run("stateless topics get empty state", func(t *testing.T) {
		p := Normalize("basicmessages", map[string]interface{}{"content": "hi"})
		require.Equal(t, "", p.State())
		require.Equal(t, "hi", p["content"])
	})
}

func TestFilter_Matches(t *testing.T) {
	ev := NewEvent("w1", Credentials, "tenant", "issue_credential_v2_0",
		Payload{"credential_id": "v2-1", "state": "done"})

	require.True(t, Filter{}.Matches(ev))
	require.True(t, Filter{DesiredState: "done"}.Matches(ev))
	require.False(t, Filter{DesiredState: "offer-received"}.Matches(ev))
	require.True(t, Filter{Field: "credential_id", FieldID: "v2-1", DesiredState: "done"}.Matches(ev))
	require.False(t, Filter{Field: "credential_id", FieldID: "v2-2"}.Matches(ev))
	require.False(t, Filter{Field: "connection_id", FieldID: "v2-1"}.Matches(ev))
	require.False(t, Filter{}.Matches(nil))
}

func TestEventWaitTimeout(t *testing.T) {
	err := &EventWaitTimeout{
		WalletID:     "w1",
		Topic:        Credentials,
		Field:        "credential_id",
		FieldID:      "v2-1",
		DesiredState: "done",
		Timeout:      2 * time.Second,
	}

	require.Contains(t, err.Error(), "credential_id v2-1")
	require.Contains(t, err.Error(), "state done")
	require.True(t, IsWaitTimeout(errors.Wrap(err, "wrapped")))
	require.False(t, IsWaitTimeout(errors.New("other")))
}
