package s3err

import (
	"encoding/hex"
	"encoding/xml"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Response headers carrying request identifiers
const (
	HeaderRequestID = "X-Amz-Request-Id"
	HeaderHostID    = "X-Amz-Id-2"
)

// ErrorResponse is the S3 XML error document
type ErrorResponse struct {
	XMLName    xml.Name `xml:"Error"`
	Code       string   `xml:"Code"`
	Message    string   `xml:"Message"`
	Key        string   `xml:"Key,omitempty"`
	BucketName string   `xml:"BucketName,omitempty"`
	Resource   string   `xml:"Resource,omitempty"`
	RequestId  string   `xml:"RequestId"`
	HostId     string   `xml:"HostId"`
}

// NewRequestID returns a 16 character upper-case hex id
func NewRequestID() string {
	id := uuid.New()
	return strings.ToUpper(hex.EncodeToString(id[:8]))
}

// NewHostID returns a 64 character hex id
func NewHostID() string {
	a, b := uuid.New(), uuid.New()
	return hex.EncodeToString(a[:]) + hex.EncodeToString(b[:])
}

// WriteError renders err as an S3 error document. Errors that are not
// *APIError are reported as InternalError.
func WriteError(w http.ResponseWriter, r *http.Request, err error, resource string) {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		logrus.WithError(err).WithField("path", r.URL.Path).Error("Unhandled error, responding with InternalError")
		apiErr = ErrInternalError
	}

	requestID := ensureHeader(w, HeaderRequestID, NewRequestID)
	hostID := ensureHeader(w, HeaderHostID, NewHostID)

	resp := ErrorResponse{
		Code:      apiErr.Code,
		Message:   apiErr.Message,
		RequestId: requestID,
		HostId:    hostID,
	}
	switch apiErr.Code {
	case CodeNoSuchBucket, CodeInvalidBucketName:
		resp.BucketName = resource
	default:
		resp.Resource = resource
	}

	logrus.WithFields(logrus.Fields{
		"request_id": requestID,
		"code":       apiErr.Code,
		"status":     apiErr.HTTPStatus,
		"resource":   resource,
	}).Debug("Sending error response")

	WriteXML(w, apiErr.HTTPStatus, resp)
}

// WriteXML writes an XML document with its declaration
func WriteXML(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/xml")
	w.Header().Set("Date", time.Now().UTC().Format(http.TimeFormat))
	w.WriteHeader(status)

	w.Write([]byte(xml.Header))
	if err := xml.NewEncoder(w).Encode(v); err != nil {
		logrus.WithError(err).Error("Failed to encode XML response")
	}
}

// ensureHeader returns the header already set on w, generating one if absent
func ensureHeader(w http.ResponseWriter, name string, gen func() string) string {
	if v := w.Header().Get(name); v != "" {
		return v
	}
	v := gen()
	w.Header().Set(name, v)
	return v
}
