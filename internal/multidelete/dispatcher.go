package multidelete

import (
	"context"
	"errors"

	"github.com/swiftgate/swiftgate/internal/s3err"
	"github.com/swiftgate/swiftgate/internal/storage"
)

// Per-key error messages
const (
	msgAccessDenied     = "Access Denied."
	msgNoSuchVersion    = "The specified version does not exist."
	msgNoSuchBucket     = "The specified bucket does not exist"
	msgOperationAborted = "A conflicting conditional operation is currently in progress against this resource. Please try again."
	msgRequestTimeout   = "The request deadline expired before the object was deleted."
	msgInternalError    = "We encountered an internal error. Please try again."
)

// Dispatcher issues exactly one backend delete per key
type Dispatcher struct {
	backend storage.Backend
}

// NewDispatcher creates a dispatcher over backend
func NewDispatcher(backend storage.Backend) *Dispatcher {
	return &Dispatcher{backend: backend}
}

// Dispatch deletes obj, cascading to segments for large objects.
// Not-found counts as deleted.
func (d *Dispatcher) Dispatch(ctx context.Context, account, container string, obj ObjectIdentifier, desc ObjectDescriptor) KeyOutcome {
	opts := storage.DeleteOptions{
		MultipartManifest: desc.Segmented,
		VersionID:         obj.VersionID,
	}

	err := d.backend.DeleteObject(ctx, account, container, obj.Key, opts)
	if err == nil || errors.Is(err, storage.ErrObjectNotFound) {
		return deletedOutcome(obj)
	}
	return outcomeForError(ctx, obj, err)
}

// outcomeForError maps a backend error to the key's Error outcome
func outcomeForError(ctx context.Context, obj ObjectIdentifier, err error) KeyOutcome {
	if ctx.Err() != nil {
		return errorOutcome(obj, s3err.CodeRequestTimeout, msgRequestTimeout)
	}

	switch {
	case errors.Is(err, storage.ErrUnauthorized), errors.Is(err, storage.ErrForbidden):
		return errorOutcome(obj, s3err.CodeAccessDenied, msgAccessDenied)
	case errors.Is(err, storage.ErrConflict):
		return errorOutcome(obj, s3err.CodeOperationAborted, msgOperationAborted)
	case errors.Is(err, storage.ErrVersioningNotSupported):
		return errorOutcome(obj, s3err.CodeNoSuchVersion, msgNoSuchVersion)
	case errors.Is(err, storage.ErrContainerNotFound):
		return errorOutcome(obj, s3err.CodeNoSuchBucket, msgNoSuchBucket)
	case errors.Is(err, storage.ErrBackendUnavailable):
		o := errorOutcome(obj, s3err.CodeInternalError, msgInternalError)
		o.unavailable = storage.NoResponse(err)
		return o
	}
	return errorOutcome(obj, s3err.CodeInternalError, msgInternalError)
}
