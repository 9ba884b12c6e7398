package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/swiftgate/swiftgate/internal/config"
)

// Swift headers consumed or produced by the driver
const (
	HeaderAuthToken         = "X-Auth-Token"
	HeaderTransIDExtra      = "X-Trans-Id-Extra"
	HeaderStaticLargeObject = "X-Static-Large-Object"
	HeaderObjectManifest    = "X-Object-Manifest"
	HeaderContainerACL      = "X-Container-Sysmeta-Swift3-Acl"
)

// SwiftBackend implements Backend against an OpenStack Swift proxy
type SwiftBackend struct {
	endpoint *url.URL
	token    string
	client   *http.Client
}

// NewSwiftBackend creates a new Swift storage backend
func NewSwiftBackend(cfg config.SwiftConfig) (*SwiftBackend, error) {
	if cfg.Endpoint == "" {
		return nil, NewError("InvalidEndpoint", "Swift endpoint is required")
	}

	endpoint, err := url.Parse(cfg.Endpoint)
	if err != nil || endpoint.Scheme == "" || endpoint.Host == "" {
		return nil, NewErrorWithCause("InvalidEndpoint", fmt.Sprintf("Invalid Swift endpoint %q", cfg.Endpoint), err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &SwiftBackend{
		endpoint: endpoint,
		token:    cfg.AuthToken,
		client:   &http.Client{Timeout: timeout},
	}, nil
}

// Name identifies the driver
func (s *SwiftBackend) Name() string {
	return "swift"
}

// HeadContainer fetches container metadata including the stored S3 ACL
func (s *SwiftBackend) HeadContainer(ctx context.Context, account, container string) (*ContainerInfo, error) {
	if account == "" || container == "" {
		return nil, ErrInvalidPath
	}

	resp, err := s.do(ctx, http.MethodHead, s.pathURL(nil, account, container), nil)
	if err != nil {
		return nil, err
	}
	defer drain(resp)

	if !isSuccess(resp.StatusCode) {
		return nil, errorForStatus(resp.StatusCode, ErrContainerNotFound, nil)
	}

	return &ContainerInfo{
		Account: account,
		Name:    container,
		ACL:     resp.Header.Get(HeaderContainerACL),
	}, nil
}

// HeadObject probes an object and reports whether it is a large-object manifest
func (s *SwiftBackend) HeadObject(ctx context.Context, account, container, key string) (*ObjectInfo, error) {
	if account == "" || container == "" || key == "" {
		return nil, ErrInvalidPath
	}

	resp, err := s.do(ctx, http.MethodHead, s.pathURL(nil, account, container, key), nil)
	if err != nil {
		return nil, err
	}
	defer drain(resp)

	if !isSuccess(resp.StatusCode) {
		return nil, errorForStatus(resp.StatusCode, ErrObjectNotFound, nil)
	}

	size, _ := strconv.ParseInt(resp.Header.Get("Content-Length"), 10, 64)
	return &ObjectInfo{
		Key:               key,
		Size:              size,
		ETag:              strings.Trim(resp.Header.Get("Etag"), `"`),
		StaticLargeObject: strings.EqualFold(resp.Header.Get(HeaderStaticLargeObject), "true"),
		DynamicManifest:   resp.Header.Get(HeaderObjectManifest),
	}, nil
}

// DeleteObject deletes an object, cascading to SLO segments when requested
func (s *SwiftBackend) DeleteObject(ctx context.Context, account, container, key string, opts DeleteOptions) error {
	if account == "" || container == "" || key == "" {
		return ErrInvalidPath
	}
	if opts.HasVersion() {
		return ErrVersioningNotSupported
	}

	var query url.Values
	header := http.Header{}
	if opts.MultipartManifest {
		query = url.Values{"multipart-manifest": []string{"delete"}}
		header.Set("Accept", "application/json")
	}

	resp, err := s.do(ctx, http.MethodDelete, s.pathURL(query, account, container, key), header)
	if err != nil {
		return err
	}
	defer drain(resp)

	if !isSuccess(resp.StatusCode) {
		return errorForStatus(resp.StatusCode, ErrObjectNotFound, nil)
	}

	if opts.MultipartManifest {
		return parseBulkDeleteResponse(resp)
	}
	return nil
}

// Close releases idle connections
func (s *SwiftBackend) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

// pathURL builds /v1/<account>/<container>[/<key>] under the configured endpoint.
// Key slashes are preserved, everything else is escaped by url.URL.
func (s *SwiftBackend) pathURL(query url.Values, parts ...string) string {
	u := *s.endpoint
	u.Path = strings.TrimSuffix(u.Path, "/") + "/v1/" + strings.Join(parts, "/")
	u.RawPath = ""
	u.RawQuery = ""
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func (s *SwiftBackend) do(ctx context.Context, method, target string, header http.Header) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return nil, wrap(ErrInvalidPath, 0, err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	if s.token != "" {
		req.Header.Set(HeaderAuthToken, s.token)
	}
	if id := TransIDFromContext(ctx); id != "" {
		req.Header.Set(HeaderTransIDExtra, id)
	}

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"method": method,
			"url":    target,
		}).Debug("Swift request failed")
		return nil, wrap(ErrBackendUnavailable, 0, err)
	}

	logrus.WithFields(logrus.Fields{
		"method":   method,
		"url":      target,
		"status":   resp.StatusCode,
		"duration": time.Since(start),
	}).Debug("Swift request")

	return resp, nil
}

// bulkDeleteResponse is the JSON body Swift returns for multipart-manifest=delete
type bulkDeleteResponse struct {
	ResponseStatus string     `json:"Response Status"`
	ResponseBody   string     `json:"Response Body"`
	NumberDeleted  int        `json:"Number Deleted"`
	NumberNotFound int        `json:"Number Not Found"`
	Errors         [][]string `json:"Errors"`
}

// parseBulkDeleteResponse inspects the per-segment status Swift reports inside a 200
func parseBulkDeleteResponse(resp *http.Response) error {
	if !strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		return nil
	}

	var result bulkDeleteResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&result); err != nil {
		// The manifest itself was removed; an unreadable report is not a failure
		logrus.WithError(err).Debug("Failed to decode Swift bulk delete response")
		return nil
	}

	code, _ := strconv.Atoi(strings.SplitN(strings.TrimSpace(result.ResponseStatus), " ", 2)[0])
	if code == 0 || isSuccess(code) {
		return nil
	}

	var cause error
	if len(result.Errors) > 0 {
		cause = fmt.Errorf("segment delete errors: %v", result.Errors)
	}
	return errorForStatus(code, ErrObjectNotFound, cause)
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

func drain(resp *http.Response) {
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
	resp.Body.Close()
}
