package multidelete

import (
	"bytes"
	"crypto/md5"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/swiftgate/swiftgate/internal/s3err"
)

// buildDeleteBody renders a Delete document; quiet "" omits the element
func buildDeleteBody(quiet string, keys ...string) []byte {
	var b strings.Builder
	b.WriteString(`<Delete xmlns="http://s3.amazonaws.com/doc/2006-03-01/">`)
	if quiet != "" {
		fmt.Fprintf(&b, "<Quiet>%s</Quiet>", quiet)
	}
	for _, k := range keys {
		fmt.Fprintf(&b, "<Object><Key>%s</Key></Object>", k)
	}
	b.WriteString("</Delete>")
	return []byte(b.String())
}

func contentMD5(body []byte) string {
	sum := md5.Sum(body)
	return base64.StdEncoding.EncodeToString(sum[:])
}

func md5Header(body []byte) http.Header {
	h := http.Header{}
	h.Set("Content-MD5", contentMD5(body))
	return h
}

func requireAPIError(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	apiErr, ok := err.(*s3err.APIError)
	require.True(t, ok, "expected *s3err.APIError, got %T", err)
	assert.Equal(t, code, apiErr.Code)
}

func TestValidate_Valid(t *testing.T) {
	v := NewValidator(1000, 1<<20)
	body := buildDeleteBody("", "Key1", "Key2", "Key3")

	req, err := v.Validate(body, md5Header(body))
	require.NoError(t, err)
	assert.False(t, req.Quiet)
	assert.Equal(t, []ObjectIdentifier{{Key: "Key1"}, {Key: "Key2"}, {Key: "Key3"}}, req.Objects)
}

func TestValidate_QuietValues(t *testing.T) {
	v := NewValidator(1000, 1<<20)

	tests := []struct {
		quiet string
		want  bool
		code  string
	}{
		{"true", true, ""},
		{"True", true, ""},
		{" false ", false, ""},
		{"FALSE", false, ""},
		{"yes", false, s3err.CodeMalformedXML},
	}

	for _, tt := range tests {
		t.Run(tt.quiet, func(t *testing.T) {
			body := buildDeleteBody(tt.quiet, "Key1")
			req, err := v.Validate(body, md5Header(body))
			if tt.code != "" {
				requireAPIError(t, err, tt.code)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, req.Quiet)
		})
	}
}

func TestValidate_VersionID(t *testing.T) {
	v := NewValidator(1000, 1<<20)
	body := []byte(`<Delete><Object><Key>a</Key><VersionId>null</VersionId></Object><Object><Key>b</Key><VersionId>v2</VersionId></Object></Delete>`)

	req, err := v.Validate(body, md5Header(body))
	require.NoError(t, err)
	assert.Equal(t, []ObjectIdentifier{{Key: "a", VersionID: "null"}, {Key: "b", VersionID: "v2"}}, req.Objects)
}

func TestValidate_KeysKeepWhitespaceAndEscapes(t *testing.T) {
	v := NewValidator(1000, 1<<20)
	body := []byte(`<Delete><Object><Key> dir/a&amp;b </Key></Object></Delete>`)

	req, err := v.Validate(body, md5Header(body))
	require.NoError(t, err)
	assert.Equal(t, " dir/a&b ", req.Objects[0].Key)
}

func TestValidate_MissingContentMD5(t *testing.T) {
	v := NewValidator(1000, 1<<20)
	body := buildDeleteBody("", "Key1", "Key2")

	_, err := v.Validate(body, http.Header{})
	requireAPIError(t, err, s3err.CodeInvalidRequest)
	assert.Equal(t, "Missing required header for this request: Content-MD5", err.(*s3err.APIError).Message)
}

func TestValidate_InvalidDigest(t *testing.T) {
	v := NewValidator(1000, 1<<20)
	body := buildDeleteBody("", "Key1", "Key2")
	other := buildDeleteBody("", "Key1")

	tests := []struct {
		name   string
		header string
	}{
		{"undecodable", "XXXX"},
		{"not base64", "!!!"},
		{"wrong length", base64.StdEncoding.EncodeToString([]byte("short"))},
		{"empty", ""},
		{"mismatch", contentMD5(other)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			h.Set("Content-MD5", tt.header)
			_, err := v.Validate(body, h)
			requireAPIError(t, err, s3err.CodeInvalidDigest)
		})
	}
}

func TestValidate_DigestCheckedBeforeParsing(t *testing.T) {
	v := NewValidator(1000, 1<<20)
	body := []byte("not xml at all")

	h := http.Header{}
	h.Set("Content-MD5", contentMD5([]byte("something else")))
	_, err := v.Validate(body, h)
	requireAPIError(t, err, s3err.CodeInvalidDigest)

	_, err = v.Validate(body, md5Header(body))
	requireAPIError(t, err, s3err.CodeMalformedXML)
}

func TestValidate_Malformed(t *testing.T) {
	v := NewValidator(1000, 1<<20)

	bodies := map[string]string{
		"not xml":      `<Delete><Object>`,
		"wrong root":   `<Remove><Object><Key>a</Key></Object></Remove>`,
		"no objects":   `<Delete><Quiet>true</Quiet></Delete>`,
		"missing key":  `<Delete><Object><VersionId>v1</VersionId></Object></Delete>`,
		"empty body":   ``,
		"unclosed key": `<Delete><Object><Key>a</Object></Delete>`,
	}

	for name, raw := range bodies {
		t.Run(name, func(t *testing.T) {
			body := []byte(raw)
			_, err := v.Validate(body, md5Header(body))
			requireAPIError(t, err, s3err.CodeMalformedXML)
		})
	}
}

func TestValidate_EmptyKey(t *testing.T) {
	v := NewValidator(1000, 1<<20)

	for _, raw := range []string{
		`<Delete><Quiet>true</Quiet><Object><Key/></Object><Object><Key/></Object></Delete>`,
		`<Delete><Object><Key>Key1</Key></Object><Object><Key></Key></Object></Delete>`,
	} {
		body := []byte(raw)
		_, err := v.Validate(body, md5Header(body))
		requireAPIError(t, err, s3err.CodeUserKeyMustBeSpecified)
	}
}

func TestValidate_SizeBound(t *testing.T) {
	const maxKeys = 10
	v := NewValidator(maxKeys, 1<<20)

	keys := make([]string, maxKeys+1)
	for i := range keys {
		keys[i] = fmt.Sprint(i)
	}

	atLimit := buildDeleteBody("", keys[:maxKeys]...)
	req, err := v.Validate(atLimit, md5Header(atLimit))
	require.NoError(t, err)
	assert.Len(t, req.Objects, maxKeys)

	overLimit := buildDeleteBody("", keys...)
	_, err = v.Validate(overLimit, md5Header(overLimit))
	requireAPIError(t, err, s3err.CodeMalformedXML)
}

func TestReadBody(t *testing.T) {
	v := NewValidator(1000, 16)

	body, err := v.ReadBody(bytes.NewReader(bytes.Repeat([]byte("a"), 16)))
	require.NoError(t, err)
	assert.Len(t, body, 16)

	_, err = v.ReadBody(bytes.NewReader(bytes.Repeat([]byte("a"), 17)))
	requireAPIError(t, err, s3err.CodeMalformedXML)
}
