package auth

import (
	"net/http"
	"strings"
)

// ExtractAccessKey returns the access key and signature a request was signed with.
// Signatures are verified by the backend's auth middleware, not here.
func ExtractAccessKey(r *http.Request) (string, string, error) {
	// Check Authorization header first
	if header := r.Header.Get("Authorization"); header != "" {
		return parseAuthorizationHeader(header)
	}

	query := r.URL.Query()

	// Presigned SigV2
	if accessKey := query.Get("AWSAccessKeyId"); accessKey != "" {
		return accessKey, query.Get("Signature"), nil
	}

	// Presigned SigV4, credential scope is ak/date/region/service/aws4_request
	if credential := query.Get("X-Amz-Credential"); credential != "" {
		accessKey, _, _ := strings.Cut(credential, "/")
		return accessKey, query.Get("X-Amz-Signature"), nil
	}

	return "", "", ErrMissingCredentials
}

// parseAuthorizationHeader parses SigV4 and SigV2 Authorization headers
func parseAuthorizationHeader(header string) (string, string, error) {
	header = strings.TrimSpace(header)

	switch {
	case strings.HasPrefix(header, "AWS4-HMAC-SHA256 "):
		return parseV4Authorization(header)
	case strings.HasPrefix(header, "AWS "):
		return parseV2Authorization(header)
	}

	return "", "", ErrInvalidSignature
}

// parseV4Authorization parses
// AWS4-HMAC-SHA256 Credential=ak/scope, SignedHeaders=..., Signature=...
func parseV4Authorization(header string) (string, string, error) {
	params := strings.TrimSpace(strings.TrimPrefix(header, "AWS4-HMAC-SHA256"))

	var accessKey, signature string
	for _, param := range strings.Split(params, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(param), "=")
		if !ok {
			continue
		}

		switch k {
		case "Credential":
			accessKey, _, _ = strings.Cut(v, "/")
		case "Signature":
			signature = v
		}
	}

	if accessKey == "" || signature == "" {
		return "", "", ErrInvalidSignature
	}

	return accessKey, signature, nil
}

// parseV2Authorization parses "AWS AccessKey:Signature". Access keys may
// themselves contain a colon, the signature never does.
func parseV2Authorization(header string) (string, string, error) {
	credential := strings.TrimSpace(strings.TrimPrefix(header, "AWS "))

	i := strings.LastIndex(credential, ":")
	if i <= 0 || i == len(credential)-1 {
		return "", "", ErrInvalidSignature
	}

	return credential[:i], credential[i+1:], nil
}
