/*
Copyright Scoir Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package events

import (
	"strings"
)

var v1CredentialStates = map[string]string{
	"abandoned":           "abandoned",
	"credential_acked":    "done",
	"credential_issued":   "credential-issued",
	"credential_received": "credential-received",
	"done":                "done",
	"offer_received":      "offer-received",
	"offer_sent":          "offer-sent",
	"proposal_received":   "proposal-received",
	"proposal_sent":       "proposal-sent",
	"request_received":    "request-received",
	"request_sent":        "request-sent",
}

var v1PresentationStates = map[string]string{
	"abandoned":             "abandoned",
	"done":                  "done",
	"presentation_acked":    "done",
	"presentation_received": "presentation-received",
	"presentation_sent":     "presentation-sent",
	"proposal_received":     "proposal-received",
	"proposal_sent":         "proposal-sent",
	"request_received":      "request-received",
	"request_sent":          "request-sent",
	"verified":              "done",
}

// Normalize converts an agent webhook body into the façade payload for the agent topic.
// The body is copied, never modified.
func Normalize(agentTopic string, body map[string]interface{}) Payload {
	p := make(Payload, len(body)+2)
	for k, v := range body {
		p[k] = v
	}

	switch agentTopic {
	case "issue_credential":
		p["credential_id"] = "v1-" + p.String("credential_exchange_id")
		p["protocol_version"] = "v1"
		p["state"] = translateState(v1CredentialStates, p.State())
	case "issue_credential_v2_0":
		p["credential_id"] = "v2-" + p.String("cred_ex_id")
		p["protocol_version"] = "v2"
	case "present_proof":
		p["proof_id"] = "v1-" + p.String("presentation_exchange_id")
		p["protocol_version"] = "v1"
		p["state"] = translateState(v1PresentationStates, p.State())
		normalizeVerified(p)
	case "present_proof_v2_0":
		p["proof_id"] = "v2-" + p.String("pres_ex_id")
		p["protocol_version"] = "v2"
		normalizeVerified(p)
	case "connections":
		if s := p.String("rfc23_state"); s != "" {
			p["state"] = s
		}
	case "endorse_transaction":
		p["state"] = strings.ReplaceAll(p.State(), "_", "-")
	}

	if _, ok := p["state"]; !ok {
		p["state"] = ""
	}

	return p
}

func translateState(table map[string]string, state string) string {
	if s, ok := table[state]; ok {
		return s
	}

	return strings.ReplaceAll(state, "_", "-")
}

func normalizeVerified(p Payload) {
	switch p["verified"] {
	case "true":
		p["verified"] = true
	case "false":
		p["verified"] = false
	}
}
