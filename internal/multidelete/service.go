package multidelete

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/swiftgate/swiftgate/internal/auth"
	"github.com/swiftgate/swiftgate/internal/s3err"
	"github.com/swiftgate/swiftgate/internal/storage"
	"golang.org/x/sync/errgroup"
)

// Recorder receives multi-delete measurements
type Recorder interface {
	RecordMultiDelete(result string, keys int, duration time.Duration)
	RecordKeyOutcome(outcome string)
}

type noopRecorder struct{}

func (noopRecorder) RecordMultiDelete(string, int, time.Duration) {}
func (noopRecorder) RecordKeyOutcome(string)                      {}

// Options tunes the per-key fan-out
type Options struct {
	// Concurrency bounds the keys processed at once
	Concurrency int

	// Timeout bounds the whole batch; zero leaves only the caller's deadline
	Timeout time.Duration

	Recorder Recorder
}

// Batch is one validated request bound to its caller and bucket
type Batch struct {
	Identity  *auth.Identity
	Account   string
	Container string
	Request   *Request
}

// Service runs the permission gate, resolver and dispatcher for every key
// of a batch and collects the outcomes in request order.
type Service struct {
	backend     storage.Backend
	containers  *ContainerCache
	authorizer  Authorizer
	resolver    *Resolver
	dispatcher  *Dispatcher
	concurrency int
	timeout     time.Duration
	recorder    Recorder
}

// NewService creates a Service. containers serves the bucket precheck.
func NewService(backend storage.Backend, containers *ContainerCache, authorizer Authorizer, opts Options) *Service {
	if authorizer == nil {
		authorizer = AllowAll{}
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.Recorder == nil {
		opts.Recorder = noopRecorder{}
	}

	return &Service{
		backend:     backend,
		containers:  containers,
		authorizer:  authorizer,
		resolver:    NewResolver(backend),
		dispatcher:  NewDispatcher(backend),
		concurrency: opts.Concurrency,
		timeout:     opts.Timeout,
		recorder:    opts.Recorder,
	}
}

// Execute processes every key of the batch. Per-key failures are part of the
// report; the returned error is an *s3err.APIError failing the whole request.
func (s *Service) Execute(ctx context.Context, b Batch) (*Report, error) {
	start := time.Now()
	objects := b.Request.Objects

	log := logrus.WithFields(logrus.Fields{
		"request_id": storage.TransIDFromContext(ctx),
		"account":    b.Account,
		"bucket":     b.Container,
	})

	if _, err := s.containers.Lookup(ctx, b.Account, b.Container); err != nil {
		apiErr := containerError(err)
		log.WithError(err).WithField("code", apiErr.Code).Info("Multi-object delete rejected by bucket check")
		s.recorder.RecordMultiDelete(apiErr.Code, len(objects), time.Since(start))
		return nil, apiErr
	}

	reqCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	outcomes := make([]KeyOutcome, len(objects))
	done := make([]bool, len(objects))

	var g errgroup.Group
	g.SetLimit(min(s.concurrency, len(objects)))

	for i, obj := range objects {
		if ctx.Err() != nil {
			break
		}
		i, obj := i, obj
		g.Go(func() error {
			outcomes[i] = s.processKey(ctx, b, obj)
			done[i] = true
			return nil
		})
	}
	g.Wait()

	for i, obj := range objects {
		if !done[i] {
			outcomes[i] = errorOutcome(obj, s3err.CodeRequestTimeout, msgRequestTimeout)
		}
	}

	if allUnavailable(outcomes) && s.backendDown(reqCtx, b) {
		log.Warn("Backend unavailable for every key of multi-object delete")
		s.recorder.RecordMultiDelete(s3err.CodeServiceUnavailable, len(objects), time.Since(start))
		return nil, s3err.ErrServiceUnavailable
	}

	report := &Report{Outcomes: outcomes, Quiet: b.Request.Quiet}
	for _, o := range outcomes {
		if o.Deleted() {
			s.recorder.RecordKeyOutcome("deleted")
			continue
		}
		s.recorder.RecordKeyOutcome(o.Code)
		log.WithFields(logrus.Fields{
			"key":  o.Key,
			"code": o.Code,
		}).Warn("Failed to delete object")
	}

	deleted, failed := report.Counts()
	s.recorder.RecordMultiDelete("success", len(objects), time.Since(start))
	log.WithFields(logrus.Fields{
		"keys":     len(objects),
		"deleted":  deleted,
		"errors":   failed,
		"quiet":    b.Request.Quiet,
		"duration": time.Since(start),
	}).Info("Multi-object delete completed")

	return report, nil
}

// processKey runs gate, resolver and dispatcher for one key. It never fails;
// every error becomes the key's outcome.
func (s *Service) processKey(ctx context.Context, b Batch, obj ObjectIdentifier) KeyOutcome {
	if ctx.Err() != nil {
		return errorOutcome(obj, s3err.CodeRequestTimeout, msgRequestTimeout)
	}

	decision, err := s.authorizer.Authorize(ctx, b.Identity, b.Account, b.Container, obj.Key, ActionDelete)
	if err != nil {
		return outcomeForError(ctx, obj, err)
	}
	if decision != Allowed {
		return errorOutcome(obj, s3err.CodeAccessDenied, msgAccessDenied)
	}

	desc, err := s.resolver.Resolve(ctx, b.Account, b.Container, obj.Key)
	if err != nil {
		return outcomeForError(ctx, obj, err)
	}

	return s.dispatcher.Dispatch(ctx, b.Account, b.Container, obj, desc)
}

// containerError maps a failed bucket precheck to a whole-request error
func containerError(err error) *s3err.APIError {
	var se *storage.StorageError
	switch {
	case errors.Is(err, storage.ErrContainerNotFound):
		return s3err.ErrNoSuchBucket
	case errors.Is(err, storage.ErrUnauthorized), errors.Is(err, storage.ErrForbidden):
		return s3err.ErrAccessDenied
	case errors.Is(err, storage.ErrInvalidPath):
		return s3err.ErrInvalidBucketName
	case errors.Is(err, storage.ErrBackendUnavailable):
		return s3err.ErrServiceUnavailable
	case errors.As(err, &se) && se.StatusCode >= 500:
		return s3err.ErrServiceUnavailable
	}
	return s3err.ErrInternalError
}

// backendDown re-checks the container past the cache. Only a backend that
// still gives no answer turns per-key failures into a whole-request error.
func (s *Service) backendDown(ctx context.Context, b Batch) bool {
	_, err := s.backend.HeadContainer(ctx, b.Account, b.Container)
	if err == nil || !storage.NoResponse(err) {
		return false
	}
	s.containers.Invalidate(b.Account, b.Container)
	return true
}

func allUnavailable(outcomes []KeyOutcome) bool {
	if len(outcomes) == 0 {
		return false
	}
	for _, o := range outcomes {
		if !o.unavailable {
			return false
		}
	}
	return true
}
