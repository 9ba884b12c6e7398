package multidelete

import (
	"bytes"
	"crypto/md5"
	"encoding/base64"
	"encoding/xml"
	"io"
	"net/http"
	"strings"

	"github.com/swiftgate/swiftgate/internal/s3err"
)

// Request is a validated Multi-Object Delete request
type Request struct {
	Objects []ObjectIdentifier
	Quiet   bool
}

// ObjectIdentifier names one object to delete
type ObjectIdentifier struct {
	Key       string
	VersionID string
}

// deleteRequestXML mirrors the Delete document. Pointers distinguish absent
// elements from empty ones.
type deleteRequestXML struct {
	XMLName xml.Name           `xml:"Delete"`
	Quiet   *string            `xml:"Quiet"`
	Objects []objectRequestXML `xml:"Object"`
}

type objectRequestXML struct {
	Key       *string `xml:"Key"`
	VersionID *string `xml:"VersionId"`
}

// Validator turns a raw request body into a Request
type Validator struct {
	MaxObjects  int
	MaxBodySize int64
}

// NewValidator creates a validator with the given limits
func NewValidator(maxObjects int, maxBodySize int64) *Validator {
	return &Validator{
		MaxObjects:  maxObjects,
		MaxBodySize: maxBodySize,
	}
}

// ReadBody reads at most MaxBodySize bytes. Larger bodies are MalformedXML.
func (v *Validator) ReadBody(r io.Reader) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r, v.MaxBodySize+1))
	if err != nil {
		return nil, s3err.ErrMalformedXML
	}
	if int64(len(body)) > v.MaxBodySize {
		return nil, s3err.ErrMalformedXML
	}
	return body, nil
}

// Validate checks the Content-MD5 header against body and parses it.
// It has no side effects; every failure is a whole-request *s3err.APIError.
func (v *Validator) Validate(body []byte, header http.Header) (*Request, error) {
	if err := verifyContentMD5(body, header); err != nil {
		return nil, err
	}
	return v.parse(body)
}

func verifyContentMD5(body []byte, header http.Header) error {
	values := header.Values("Content-MD5")
	if len(values) == 0 {
		return s3err.ErrMissingContentMD5
	}

	declared, err := base64.StdEncoding.DecodeString(strings.TrimSpace(values[0]))
	if err != nil || len(declared) != md5.Size {
		return s3err.ErrInvalidDigest
	}

	actual := md5.Sum(body)
	if !bytes.Equal(declared, actual[:]) {
		return s3err.ErrInvalidDigest
	}
	return nil
}

func (v *Validator) parse(body []byte) (*Request, error) {
	var doc deleteRequestXML
	if err := xml.NewDecoder(bytes.NewReader(body)).Decode(&doc); err != nil {
		return nil, s3err.ErrMalformedXML
	}

	if len(doc.Objects) == 0 || len(doc.Objects) > v.MaxObjects {
		return nil, s3err.ErrMalformedXML
	}

	req := &Request{Objects: make([]ObjectIdentifier, 0, len(doc.Objects))}

	if doc.Quiet != nil {
		switch strings.ToLower(strings.TrimSpace(*doc.Quiet)) {
		case "true":
			req.Quiet = true
		case "false":
		default:
			return nil, s3err.ErrMalformedXML
		}
	}

	for _, obj := range doc.Objects {
		if obj.Key == nil {
			return nil, s3err.ErrMalformedXML
		}
		if *obj.Key == "" {
			return nil, s3err.ErrUserKeyMustBeSpecified
		}

		id := ObjectIdentifier{Key: *obj.Key}
		if obj.VersionID != nil {
			id.VersionID = strings.TrimSpace(*obj.VersionID)
		}
		req.Objects = append(req.Objects, id)
	}

	return req, nil
}
