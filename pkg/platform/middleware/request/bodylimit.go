package request

import (
	"net/http"
)

// BodyLimit caps the request body with http.MaxBytesReader. Reads past the
// limit fail with *http.MaxBytesError, which handlers map to a 400 envelope.
func BodyLimit(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}
