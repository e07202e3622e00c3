// Package normalizer turns whatever the automation endpoint answered into
// the gateway's canonical result. It never fails.
package normalizer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"hookgate/internal/gateway/models"
)

// Result is the normalized upstream answer, ready to be placed in an envelope.
type Result struct {
	Success bool
	Data    json.RawMessage
	Error   string
	Details *Details
	// PlainText is set when the body was not JSON and had to be wrapped.
	PlainText bool
}

// Details describes a non-2xx upstream answer.
type Details struct {
	models.UpstreamFailureDetails
	// UpstreamMessage is the "message" field of a JSON error body, if any.
	UpstreamMessage string `json:"upstreamMessage,omitempty"`
}

// Normalize classifies the outcome by status code and converts its body.
func Normalize(outcome models.UpstreamOutcome, destinationURL string) Result {
	if outcome.HTTPStatus < 200 || outcome.HTTPStatus > 299 {
		return failure(outcome, destinationURL)
	}
	data, plain := Body(outcome.RawBody)
	return Result{Success: true, Data: data, PlainText: plain}
}

// Body returns the body as JSON when it parses, otherwise wrapped as
// {"message": raw, "raw": raw}. The second return reports the wrapping.
// A bare JSON null is wrapped too, so data is never null.
func Body(raw string) (json.RawMessage, bool) {
	if gjson.Valid(raw) && gjson.Parse(raw).Type != gjson.Null {
		var buf bytes.Buffer
		if err := json.Compact(&buf, []byte(raw)); err == nil {
			return json.RawMessage(buf.Bytes()), false
		}
	}
	return wrap(raw), true
}

func failure(outcome models.UpstreamOutcome, destinationURL string) Result {
	statusText := outcome.StatusText
	details := &Details{
		UpstreamFailureDetails: models.UpstreamFailureDetails{
			Status:         outcome.HTTPStatus,
			StatusText:     statusText,
			DestinationURL: destinationURL,
		},
	}
	res := Result{
		Success: false,
		Error:   fmt.Sprintf("upstream returned %d: %s", outcome.HTTPStatus, statusText),
		Details: details,
	}
	if strings.TrimSpace(outcome.RawBody) == "" {
		return res
	}
	if msg := gjson.Get(outcome.RawBody, "message"); msg.Type == gjson.String {
		details.UpstreamMessage = msg.String()
	}
	res.Data, res.PlainText = Body(outcome.RawBody)
	return res
}

type wrapped struct {
	Message string `json:"message"`
	Raw     string `json:"raw"`
}

func wrap(raw string) json.RawMessage {
	b, err := json.Marshal(wrapped{Message: raw, Raw: raw})
	if err != nil {
		// Strings always marshal; keep the shape regardless.
		return json.RawMessage(`{"message":"","raw":""}`)
	}
	return b
}
