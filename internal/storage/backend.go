package storage

import (
	"context"
	"fmt"
)

// Backend defines the object-store operations the gateway consumes.
// Paths are addressed as account / container / key.
type Backend interface {
	// HeadContainer returns container metadata, ErrContainerNotFound if absent
	HeadContainer(ctx context.Context, account, container string) (*ContainerInfo, error)

	// HeadObject probes an object without mutating it, ErrObjectNotFound if absent
	HeadObject(ctx context.Context, account, container, key string) (*ObjectInfo, error)

	// DeleteObject removes an object. Deleting an absent object returns ErrObjectNotFound.
	DeleteObject(ctx context.Context, account, container, key string, opts DeleteOptions) error

	// Name identifies the driver in logs and metrics
	Name() string

	// Lifecycle
	Close() error
}

// ContainerInfo is the metadata of a container (S3 bucket)
type ContainerInfo struct {
	Account string
	Name    string

	// ACL is the raw ACL document stored with the container, empty when none is set
	ACL string
}

// ObjectInfo is the result of an object metadata probe
type ObjectInfo struct {
	Key  string
	Size int64
	ETag string

	// StaticLargeObject is set when the object is a manifest referencing segments
	StaticLargeObject bool

	// DynamicManifest holds the X-Object-Manifest prefix of a dynamic large object
	DynamicManifest string
}

// IsSegmented reports whether deleting the object must cascade to its segments
func (o *ObjectInfo) IsSegmented() bool {
	return o != nil && o.StaticLargeObject
}

// DeleteOptions modifies a delete call
type DeleteOptions struct {
	// MultipartManifest asks the backend to remove the segments referenced by a manifest
	MultipartManifest bool

	// VersionID selects a specific version; empty or "null" means the current object
	VersionID string
}

// HasVersion reports whether a concrete version was requested
func (o DeleteOptions) HasVersion() bool {
	return o.VersionID != "" && o.VersionID != "null"
}

// NewBackend creates a new storage backend based on configuration
func NewBackend(config Config) (Backend, error) {
	switch config.Backend {
	case "swift", "":
		return NewSwiftBackend(config.Swift)
	case "s3":
		return NewS3Backend(config.S3)
	case "memory":
		return NewMemoryBackend(), nil
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", config.Backend)
	}
}
