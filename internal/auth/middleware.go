package auth

import (
	"net/http"

	"github.com/sirupsen/logrus"
	"github.com/swiftgate/swiftgate/internal/s3err"
)

// Middleware resolves the caller identity and stores it in the request context.
// Requests without credentials pass through anonymously; handlers decide whether
// that is acceptable. Malformed credentials are rejected with AccessDenied.
func Middleware(resellerPrefix string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			accessKey, _, err := ExtractAccessKey(r)
			if err == ErrMissingCredentials {
				next.ServeHTTP(w, r)
				return
			}

			var id *Identity
			if err == nil {
				id, err = NewIdentity(accessKey, resellerPrefix)
			}
			if err != nil {
				logrus.WithFields(logrus.Fields{
					"method": r.Method,
					"path":   r.URL.Path,
					"error":  err.Error(),
				}).Warn("Authentication failed")
				s3err.WriteError(w, r, s3err.ErrAccessDenied, r.URL.Path)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}
