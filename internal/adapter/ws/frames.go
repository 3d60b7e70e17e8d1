package ws

import "encoding/json"

// Error codes sent in error frames.
const (
	codeInvalidMessage = "invalid_message"
	codeRateLimited    = "rate_limited"
)

// inbound is the envelope for frames received from the client.
type inbound struct {
	Type     string   `json:"type"`
	Channels []string `json:"channels,omitempty"`
	ID       *string  `json:"id,omitempty"`
}

type errorFrame struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type heartbeatFrame struct {
	Type string `json:"type"`
	TS   string `json:"ts"`
}

type subscribeAckFrame struct {
	Type     string   `json:"type"`
	Action   string   `json:"action"`
	Channels []string `json:"channels"`
	Accepted []string `json:"accepted"`
	Rejected []string `json:"rejected"`
}

type unsubscribeAckFrame struct {
	Type     string   `json:"type"`
	Action   string   `json:"action"`
	Channels []string `json:"channels"`
	Removed  []string `json:"removed"`
	Missing  []string `json:"missing"`
}

type pongFrame struct {
	Type string  `json:"type"`
	ID   *string `json:"id"`
}

type eventFrame struct {
	Type    string          `json:"type"`
	Channel string          `json:"channel"`
	Payload json.RawMessage `json:"payload"`
}
