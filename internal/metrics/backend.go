package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/swiftgate/swiftgate/internal/storage"
)

// instrumentedBackend records every backend call
type instrumentedBackend struct {
	storage.Backend
	metrics Manager
}

// InstrumentBackend wraps backend so each call is counted and timed
func InstrumentBackend(backend storage.Backend, m Manager) storage.Backend {
	if !m.Enabled() {
		return backend
	}
	return &instrumentedBackend{Backend: backend, metrics: m}
}

func (b *instrumentedBackend) HeadContainer(ctx context.Context, account, container string) (*storage.ContainerInfo, error) {
	start := time.Now()
	info, err := b.Backend.HeadContainer(ctx, account, container)
	b.metrics.RecordBackendRequest(storage.OpHeadContainer, statusLabel(err), time.Since(start))
	return info, err
}

func (b *instrumentedBackend) HeadObject(ctx context.Context, account, container, key string) (*storage.ObjectInfo, error) {
	start := time.Now()
	info, err := b.Backend.HeadObject(ctx, account, container, key)
	b.metrics.RecordBackendRequest(storage.OpHead, statusLabel(err), time.Since(start))
	return info, err
}

func (b *instrumentedBackend) DeleteObject(ctx context.Context, account, container, key string, opts storage.DeleteOptions) error {
	start := time.Now()
	err := b.Backend.DeleteObject(ctx, account, container, key, opts)
	b.metrics.RecordBackendRequest(storage.OpDelete, statusLabel(err), time.Since(start))
	return err
}

// statusLabel is "ok" or the storage error code
func statusLabel(err error) string {
	if err == nil {
		return "ok"
	}
	var se *storage.StorageError
	if errors.As(err, &se) {
		return se.Code
	}
	return "error"
}
