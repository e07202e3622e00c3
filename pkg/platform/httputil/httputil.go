package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	dErrors "hookgate/pkg/domain-errors"
)

func WriteJSON(w http.ResponseWriter, status int, response any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Errors after WriteHeader cannot change the status code, so we ignore encoding errors.
	_ = json.NewEncoder(w).Encode(response)
}

// DomainCodeToHTTPStatus translates domain error codes to HTTP status codes.
// Only client mistakes leave the 200 range; upstream and network failures are
// reported inside the envelope.
func DomainCodeToHTTPStatus(code dErrors.Code) int {
	switch code {
	case dErrors.CodeBadRequest, dErrors.CodeValidation,
		dErrors.CodeMissingPayload, dErrors.CodeMissingDestination, dErrors.CodeMissingMessage,
		dErrors.CodeUnsupportedMediaType, dErrors.CodePayloadTooLarge:
		return http.StatusBadRequest
	case dErrors.CodeMethodNotAllowed:
		return http.StatusMethodNotAllowed
	default:
		return http.StatusOK
	}
}

// StatusFor returns the status for any error, domain or not.
func StatusFor(err error) int {
	var de *dErrors.Error
	if errors.As(err, &de) {
		return DomainCodeToHTTPStatus(de.Code)
	}
	return http.StatusOK
}

// DecodeJSON decodes a JSON request body into the target type.
// A body that tripped http.MaxBytesReader yields payload_too_large, anything
// else unparseable yields bad_request.
func DecodeJSON[T any](r *http.Request) (*T, error) {
	var req T
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if tooLarge := BodyTooLarge(err); tooLarge != nil {
			return nil, tooLarge
		}
		return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid JSON body")
	}
	return &req, nil
}

// BodyTooLarge maps a *http.MaxBytesError in err's chain to a
// payload_too_large domain error naming the limit. It returns nil otherwise.
func BodyTooLarge(err error) error {
	var mbe *http.MaxBytesError
	if !errors.As(err, &mbe) {
		return nil
	}
	return dErrors.Wrap(err, dErrors.CodePayloadTooLarge,
		fmt.Sprintf("request body too large: limit is %d bytes", mbe.Limit))
}
