package normalizer

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hookgate/internal/gateway/models"
)

const dest = "https://n8n.example.test/webhook/chat"

func TestNormalizeSuccess(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantData  string
		wantPlain bool
	}{
		{"json object", `{"output":"hello"}`, `{"output":"hello"}`, false},
		{"json object with whitespace", "{\n  \"output\": \"hello\"\n}\n", `{"output":"hello"}`, false},
		{"json array", `[{"id":1},{"id":2}]`, `[{"id":1},{"id":2}]`, false},
		{"json string", `"done"`, `"done"`, false},
		{"plain text", "plain text ok", `{"message":"plain text ok","raw":"plain text ok"}`, true},
		{"html", "<b>ok</b>", `{"message":"<b>ok</b>","raw":"<b>ok</b>"}`, true},
		{"truncated json", `{"output":`, `{"message":"{\"output\":","raw":"{\"output\":"}`, true},
		{"empty body", "", `{"message":"","raw":""}`, true},
		{"json null", "null", `{"message":"null","raw":"null"}`, true},
		{"json null with whitespace", " null\n", `{"message":" null\n","raw":" null\n"}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Normalize(models.UpstreamOutcome{HTTPStatus: 200, StatusText: "OK", RawBody: tt.body}, dest)

			assert.True(t, res.Success)
			assert.Empty(t, res.Error)
			assert.Nil(t, res.Details)
			require.NotNil(t, res.Data)
			assert.JSONEq(t, tt.wantData, string(res.Data))
			assert.Equal(t, tt.wantPlain, res.PlainText)
		})
	}
}

func TestNormalizeAny2xxIsSuccess(t *testing.T) {
	for _, status := range []int{200, 201, 202, 204, 299} {
		res := Normalize(models.UpstreamOutcome{HTTPStatus: status, RawBody: ""}, dest)
		assert.True(t, res.Success, status)
	}
}

func TestNormalizeFailure(t *testing.T) {
	t.Run("503 with empty body", func(t *testing.T) {
		res := Normalize(models.UpstreamOutcome{HTTPStatus: 503, StatusText: "Service Unavailable"}, dest)

		assert.False(t, res.Success)
		assert.Equal(t, "upstream returned 503: Service Unavailable", res.Error)
		require.NotNil(t, res.Details)
		assert.Equal(t, 503, res.Details.Status)
		assert.Equal(t, "Service Unavailable", res.Details.StatusText)
		assert.Equal(t, dest, res.Details.DestinationURL)
		assert.Nil(t, res.Data)
	})

	t.Run("404 with n8n json error body", func(t *testing.T) {
		body := `{"code":404,"message":"The requested webhook \"POST chat\" is not registered."}`
		res := Normalize(models.UpstreamOutcome{HTTPStatus: 404, StatusText: "Not Found", RawBody: body}, dest)

		assert.False(t, res.Success)
		assert.Equal(t, `The requested webhook "POST chat" is not registered.`, res.Details.UpstreamMessage)
		assert.JSONEq(t, body, string(res.Data))
	})

	t.Run("500 with plain text body", func(t *testing.T) {
		res := Normalize(models.UpstreamOutcome{HTTPStatus: 500, StatusText: "Internal Server Error", RawBody: "boom"}, dest)

		assert.False(t, res.Success)
		assert.True(t, res.PlainText)
		assert.Empty(t, res.Details.UpstreamMessage)
		assert.JSONEq(t, `{"message":"boom","raw":"boom"}`, string(res.Data))
	})

	t.Run("redirects are not success", func(t *testing.T) {
		res := Normalize(models.UpstreamOutcome{HTTPStatus: 302, StatusText: "Found"}, dest)
		assert.False(t, res.Success)
	})

	t.Run("details serialize with stable keys", func(t *testing.T) {
		res := Normalize(models.UpstreamOutcome{HTTPStatus: 503, StatusText: "Service Unavailable"}, dest)
		b, err := json.Marshal(res.Details)
		require.NoError(t, err)
		assert.JSONEq(t, `{"status":503,"statusText":"Service Unavailable","destinationUrl":"`+dest+`"}`, string(b))
	})
}

func TestNormalizeIsDeterministic(t *testing.T) {
	out := models.UpstreamOutcome{HTTPStatus: 200, RawBody: `{"b":1,  "a":[1,2]}`}
	first := Normalize(out, dest)
	second := Normalize(out, dest)
	assert.Equal(t, string(first.Data), string(second.Data))
}
