package middleware

import (
	"net/http"

	"github.com/swiftgate/swiftgate/internal/s3err"
	"github.com/swiftgate/swiftgate/internal/storage"
)

// ServerName is reported in the Server response header
const ServerName = "SwiftGate"

// S3Headers stamps every response with a fresh request ID and host ID before
// the rest of the chain runs, so early error responses carry them too. The
// request ID is also placed on the context and forwarded to the backend.
func S3Headers() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := s3err.NewRequestID()

			h := w.Header()
			h.Set(s3err.HeaderRequestID, requestID)
			h.Set(s3err.HeaderHostID, s3err.NewHostID())
			h.Set("Server", ServerName)
			h.Set("X-Content-Type-Options", "nosniff")

			ctx := storage.WithTransID(r.Context(), requestID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestID returns the request ID assigned by S3Headers, if any
func RequestID(r *http.Request) string {
	return storage.TransIDFromContext(r.Context())
}
