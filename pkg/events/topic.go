/*
Copyright Scoir Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package events

import (
	"sort"

	"github.com/pkg/errors"
)

// Topic is a façade topic name, the only topic vocabulary visible to callers.
type Topic string

const (
	// All is used by subscriptions that want every topic of a wallet.
	All Topic = ""

	Connections   Topic = "connections"
	Credentials   Topic = "credentials"
	Proofs        Topic = "proofs"
	Endorsements  Topic = "endorsements"
	Revocation    Topic = "revocation"
	BasicMessages Topic = "basic-messages"
	OOB           Topic = "oob"
	ProblemReport Topic = "problem-report"
	IssuerCredRev Topic = "issuer_cred_rev"
)

var topics = map[Topic]bool{
	Connections:   true,
	Credentials:   true,
	Proofs:        true,
	Endorsements:  true,
	Revocation:    true,
	BasicMessages: true,
	OOB:           true,
	ProblemReport: true,
	IssuerCredRev: true,
}

// agentTopics translates agent webhook topics to façade topics.
var agentTopics = map[string]Topic{
	"basicmessages":         BasicMessages,
	"connections":           Connections,
	"present_proof":         Proofs,
	"present_proof_v2_0":    Proofs,
	"out_of_band":           OOB,
	"issue_credential":      Credentials,
	"issue_credential_v2_0": Credentials,
	"endorse_transaction":   Endorsements,
	"revocation_registry":   Revocation,
	"issuer_cred_rev":       IssuerCredRev,
	"problem_report":        ProblemReport,
}

var ErrUnknownTopic = errors.New("unknown topic")

// ParseTopic validates a façade topic name received from a caller.
func ParseTopic(s string) (Topic, error) {
	t := Topic(s)
	if !topics[t] {
		return "", errors.Wrapf(ErrUnknownTopic, "%q", s)
	}

	return t, nil
}

// TranslateAgentTopic maps an agent topic to its façade topic.
func TranslateAgentTopic(agentTopic string) (Topic, bool) {
	t, ok := agentTopics[agentTopic]
	return t, ok
}

func (r Topic) String() string {
	return string(r)
}

// Topics lists every façade topic in name order.
func Topics() []Topic {
	out := make([]Topic, 0, len(topics))
	for t := range topics {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })

	return out
}
