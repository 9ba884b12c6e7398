package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/swiftgate/swiftgate/internal/auth"
	"github.com/swiftgate/swiftgate/internal/config"
	"github.com/swiftgate/swiftgate/internal/metrics"
	"github.com/swiftgate/swiftgate/internal/middleware"
	"github.com/swiftgate/swiftgate/internal/multidelete"
	"github.com/swiftgate/swiftgate/internal/s3err"
	"github.com/swiftgate/swiftgate/internal/storage"
)

// Handler handles S3 API requests
type Handler struct {
	backend        storage.Backend
	validator      *multidelete.Validator
	service        *multidelete.Service
	metricsManager metrics.Manager
}

// NewHandler creates a new API handler
func NewHandler(
	backend storage.Backend,
	validator *multidelete.Validator,
	service *multidelete.Service,
	metricsManager metrics.Manager,
) *Handler {
	if metricsManager == nil {
		metricsManager = metrics.NewManager(config.MetricsConfig{})
	}

	return &Handler{
		backend:        backend,
		validator:      validator,
		service:        service,
		metricsManager: metricsManager,
	}
}

// RegisterRoutes registers the health endpoints and the S3 API routes.
// Every S3 request without a route is answered with NotImplemented.
func (h *Handler) RegisterRoutes(router *mux.Router) {
	// Health check endpoint
	router.HandleFunc("/health", h.handleHealth).Methods("GET")
	router.HandleFunc("/ready", h.handleReady).Methods("GET")

	// S3 API endpoints
	s3Router := router.PathPrefix("/").Subrouter()
	bucketRouter := s3Router.PathPrefix("/{bucket}").Subrouter()

	// Batch operations - register both "" and "/" to handle trailing slash
	bucketRouter.HandleFunc("", h.DeleteObjects).Methods("POST").Queries("delete", "")
	bucketRouter.HandleFunc("/", h.DeleteObjects).Methods("POST").Queries("delete", "")

	// Object form; the path key is ignored, the body names the keys
	bucketRouter.HandleFunc("/{object:.+}", h.DeleteObjects).Methods("POST").Queries("delete", "")

	router.NotFoundHandler = http.HandlerFunc(h.handleNotImplemented)
	router.MethodNotAllowedHandler = http.HandlerFunc(h.handleNotImplemented)
}

// DeleteObjects handles POST /{bucket}?delete
func (h *Handler) DeleteObjects(w http.ResponseWriter, r *http.Request) {
	logrus.Debug("S3 API: DeleteObjects (batch)")
	start := time.Now()

	bucketName := mux.Vars(r)["bucket"]

	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		h.reject(w, r, s3err.ErrAccessDenied, bucketName, start)
		return
	}

	body, err := h.validator.ReadBody(r.Body)
	if err != nil {
		h.reject(w, r, err, bucketName, start)
		return
	}
	defer r.Body.Close()

	req, err := h.validator.Validate(body, r.Header)
	if err != nil {
		h.reject(w, r, err, bucketName, start)
		return
	}

	logrus.WithFields(logrus.Fields{
		"request_id":   middleware.RequestID(r),
		"bucket":       bucketName,
		"account":      identity.Account,
		"user":         identity.ID(),
		"object_count": len(req.Objects),
		"quiet":        req.Quiet,
	}).Debug("Batch delete request received")

	report, err := h.service.Execute(r.Context(), multidelete.Batch{
		Identity:  identity,
		Account:   identity.Account,
		Container: bucketName,
		Request:   req,
	})
	if err != nil {
		writeError(w, r, err, bucketName)
		return
	}

	s3err.WriteXML(w, http.StatusOK, report.Result())
}

// reject answers a request refused before any key was processed
func (h *Handler) reject(w http.ResponseWriter, r *http.Request, err error, bucketName string, start time.Time) {
	result := s3err.CodeInternalError
	var apiErr *s3err.APIError
	if errors.As(err, &apiErr) {
		result = apiErr.Code
	}
	h.metricsManager.RecordMultiDelete(result, 0, time.Since(start))

	logrus.WithFields(logrus.Fields{
		"request_id": middleware.RequestID(r),
		"bucket":     bucketName,
		"code":       result,
	}).Info("Multi-object delete request rejected")

	writeError(w, r, err, bucketName)
}

// writeError names the bucket for bucket errors and the path otherwise
func writeError(w http.ResponseWriter, r *http.Request, err error, bucketName string) {
	resource := r.URL.Path
	var apiErr *s3err.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case s3err.CodeNoSuchBucket, s3err.CodeInvalidBucketName:
			resource = bucketName
		}
	}
	s3err.WriteError(w, r, err, resource)
}

func (h *Handler) handleNotImplemented(w http.ResponseWriter, r *http.Request) {
	logrus.WithFields(logrus.Fields{
		"method": r.Method,
		"path":   r.URL.Path,
		"query":  r.URL.RawQuery,
	}).Debug("S3 API: operation not implemented")
	s3err.WriteError(w, r, s3err.ErrNotImplemented, r.URL.Path)
}

// Health check handlers
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status": "healthy", "service": "swiftgate"}`))
}

func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if h.backend == nil || h.service == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"status": "not ready"}`))
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status": "ready", "service": "swiftgate", "backend": "` + h.backend.Name() + `"}`))
}
