package s3err

import (
	"fmt"
	"net/http"
)

// S3 error codes produced by the gateway
const (
	CodeMalformedXML           = "MalformedXML"
	CodeInvalidDigest          = "InvalidDigest"
	CodeInvalidRequest         = "InvalidRequest"
	CodeUserKeyMustBeSpecified = "UserKeyMustBeSpecified"
	CodeInvalidArgument        = "InvalidArgument"
	CodeInvalidBucketName      = "InvalidBucketName"
	CodeAccessDenied           = "AccessDenied"
	CodeNoSuchBucket           = "NoSuchBucket"
	CodeNoSuchVersion          = "NoSuchVersion"
	CodeMethodNotAllowed       = "MethodNotAllowed"
	CodeOperationAborted       = "OperationAborted"
	CodeRequestTimeout         = "RequestTimeout"
	CodeInternalError          = "InternalError"
	CodeNotImplemented         = "NotImplemented"
	CodeServiceUnavailable     = "ServiceUnavailable"
	CodeSlowDown               = "SlowDown"
)

// APIError is a protocol error rendered as an S3 XML error document
type APIError struct {
	Code       string
	Message    string
	HTTPStatus int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// New creates an APIError with the status mapped from its code
func New(code, message string) *APIError {
	return &APIError{
		Code:       code,
		Message:    message,
		HTTPStatus: StatusForCode(code),
	}
}

// Errors returned for a whole request
var (
	ErrMalformedXML           = New(CodeMalformedXML, "The XML you provided was not well-formed or did not validate against our published schema.")
	ErrInvalidDigest          = New(CodeInvalidDigest, "The Content-MD5 you specified was invalid.")
	ErrMissingContentMD5      = New(CodeInvalidRequest, "Missing required header for this request: Content-MD5")
	ErrUserKeyMustBeSpecified = New(CodeUserKeyMustBeSpecified, "The bucket POST must contain the specified field name. If it is specified, please check the order of the fields.")
	ErrAccessDenied           = New(CodeAccessDenied, "Access Denied.")
	ErrNoSuchBucket           = New(CodeNoSuchBucket, "The specified bucket does not exist")
	ErrInvalidBucketName      = New(CodeInvalidBucketName, "The specified bucket is not valid.")
	ErrNotImplemented         = New(CodeNotImplemented, "A header you provided implies functionality that is not implemented.")
	ErrServiceUnavailable     = New(CodeServiceUnavailable, "Please reduce your request rate.")
	ErrInternalError          = New(CodeInternalError, "We encountered an internal error. Please try again.")
)

// StatusForCode maps an S3 error code to its HTTP status
func StatusForCode(code string) int {
	switch code {
	// 400 Bad Request
	case CodeMalformedXML, CodeInvalidDigest, CodeInvalidRequest, CodeUserKeyMustBeSpecified,
		CodeInvalidArgument, CodeInvalidBucketName, CodeRequestTimeout:
		return http.StatusBadRequest
	// 403 Forbidden
	case CodeAccessDenied:
		return http.StatusForbidden
	// 404 Not Found
	case CodeNoSuchBucket, CodeNoSuchVersion:
		return http.StatusNotFound
	// 405 Method Not Allowed
	case CodeMethodNotAllowed:
		return http.StatusMethodNotAllowed
	// 409 Conflict
	case CodeOperationAborted:
		return http.StatusConflict
	// 501 Not Implemented
	case CodeNotImplemented:
		return http.StatusNotImplemented
	// 503 Service Unavailable
	case CodeServiceUnavailable, CodeSlowDown:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
