// Package models holds the request-scoped types that flow through the gateway.
package models

import (
	"encoding/json"
	"fmt"
)

// Channel identifies one logical route through the gateway.
type Channel string

const (
	ChannelChat     Channel = "chat"
	ChannelDocument Channel = "document"
	ChannelImage    Channel = "image"
	ChannelVideo    Channel = "video"
	ChannelAudio    Channel = "audio"
)

// Channels lists every channel in a stable order.
var Channels = []Channel{ChannelChat, ChannelDocument, ChannelImage, ChannelVideo, ChannelAudio}

// MediaKinds lists the channels that carry a file.
var MediaKinds = []Channel{ChannelDocument, ChannelImage, ChannelVideo, ChannelAudio}

// ParseChannel converts a path segment or flag value into a Channel.
func ParseChannel(s string) (Channel, error) {
	for _, c := range Channels {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown channel %q", s)
}

// IsMedia reports whether the channel forwards a file.
func (c Channel) IsMedia() bool {
	return c != ChannelChat
}

func (c Channel) String() string {
	return string(c)
}

// ChatRequest is a validated chat message ready to forward.
type ChatRequest struct {
	Message        string
	Timestamp      string
	ClientTag      string
	DestinationURL string
}

// UploadRequest is a validated media upload ready to forward.
type UploadRequest struct {
	Kind           Channel
	Payload        []byte
	DeclaredMime   string
	FileName       string
	DestinationURL string
	Timestamp      string
	ClientTag      string
}

// UpstreamOutcome is what the automation endpoint answered.
type UpstreamOutcome struct {
	HTTPStatus int
	StatusText string
	RawBody    string
}

// Envelope is the canonical response returned to the caller for every
// request that passed validation.
type Envelope struct {
	Success    bool            `json:"success"`
	Data       json.RawMessage `json:"data,omitempty"`
	Error      string          `json:"error,omitempty"`
	Details    any             `json:"details,omitempty"`
	Timestamp  string          `json:"timestamp"`
	Source     string          `json:"source"`
	WebhookURL string          `json:"webhookUrl"`
	FileName   string          `json:"fileName,omitempty"`
	FileSize   *int64          `json:"fileSize,omitempty"`
}

// ValidationEnvelope is the 400 body returned when the inbound request is malformed.
type ValidationEnvelope struct {
	Success   bool           `json:"success"`
	Error     string         `json:"error"`
	Code      string         `json:"code"`
	Received  map[string]any `json:"received"`
	Timestamp string         `json:"timestamp"`
	Source    string         `json:"source"`
}

// UpstreamFailureDetails describes a non-2xx upstream answer.
type UpstreamFailureDetails struct {
	Status         int    `json:"status"`
	StatusText     string `json:"statusText"`
	DestinationURL string `json:"destinationUrl"`
}
