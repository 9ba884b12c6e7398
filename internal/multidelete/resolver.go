package multidelete

import (
	"context"
	"errors"

	"github.com/swiftgate/swiftgate/internal/storage"
)

// ObjectDescriptor is the backend view of a key for the life of one request
type ObjectDescriptor struct {
	Exists    bool
	Segmented bool
}

// Resolver probes objects to choose the delete variant
type Resolver struct {
	backend storage.Backend
}

// NewResolver creates a resolver over backend
func NewResolver(backend storage.Backend) *Resolver {
	return &Resolver{backend: backend}
}

// Resolve probes key. A missing object is not an error; it resolves to
// Exists=false and is still handed to the dispatcher.
func (r *Resolver) Resolve(ctx context.Context, account, container, key string) (ObjectDescriptor, error) {
	info, err := r.backend.HeadObject(ctx, account, container, key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return ObjectDescriptor{}, nil
		}
		return ObjectDescriptor{}, err
	}

	return ObjectDescriptor{
		Exists:    true,
		Segmented: info.IsSegmented(),
	}, nil
}
