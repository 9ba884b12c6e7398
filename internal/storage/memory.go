package storage

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryBackend is an in-process Backend used for local development and tests.
// It models Swift semantics: static large objects own segments in a companion
// "<container>_segments" container, removed only by a cascading delete.
type MemoryBackend struct {
	mu         sync.RWMutex
	containers map[string]*memContainer
	faults     map[string]error
	latency    time.Duration
	calls      []Call
}

type memContainer struct {
	acl     string
	objects map[string]*memObject
}

type memObject struct {
	size     int64
	segments []string // segment keys in the segments container, set for SLO manifests
}

// Call records one backend invocation
type Call struct {
	Op        string // HEAD_CONTAINER, HEAD, DELETE
	Account   string
	Container string
	Key       string
	Options   DeleteOptions
}

// Operation names used by Call and InjectFault
const (
	OpHeadContainer = "HEAD_CONTAINER"
	OpHead          = "HEAD"
	OpDelete        = "DELETE"
)

// NewMemoryBackend creates an empty in-memory backend
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		containers: make(map[string]*memContainer),
		faults:     make(map[string]error),
	}
}

// Name identifies the driver
func (m *MemoryBackend) Name() string {
	return "memory"
}

// CreateContainer creates a container with an optional raw ACL document
func (m *MemoryBackend) CreateContainer(account, container, acl string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.containers[containerID(account, container)] = &memContainer{
		acl:     acl,
		objects: make(map[string]*memObject),
	}
}

// PutObject stores a plain object, creating the container if needed
func (m *MemoryBackend) PutObject(account, container, key string, size int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ensure(account, container).objects[key] = &memObject{size: size}
}

// PutLargeObject stores a static large object manifest and its segments
func (m *MemoryBackend) PutLargeObject(account, container, key string, segments ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	segContainer := m.ensure(account, segmentsContainer(container))
	for _, seg := range segments {
		segContainer.objects[seg] = &memObject{size: 1}
	}
	m.ensure(account, container).objects[key] = &memObject{
		size:     int64(len(segments)),
		segments: append([]string{}, segments...),
	}
}

// ObjectExists reports whether a key is currently stored
func (m *MemoryBackend) ObjectExists(account, container, key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.containers[containerID(account, container)]
	if !ok {
		return false
	}
	_, ok = c.objects[key]
	return ok
}

// SegmentCount returns the number of stored segments for a container
func (m *MemoryBackend) SegmentCount(account, container string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.containers[containerID(account, segmentsContainer(container))]
	if !ok {
		return 0
	}
	return len(c.objects)
}

// InjectFault makes the given operation on a path fail with err.
// An empty key targets the container itself.
func (m *MemoryBackend) InjectFault(op, account, container, key string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.faults[faultID(op, account, container, key)] = err
}

// SetLatency delays every call by d, honouring context cancellation
func (m *MemoryBackend) SetLatency(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.latency = d
}

// Calls returns a copy of the recorded invocations
func (m *MemoryBackend) Calls() []Call {
	m.mu.RLock()
	defer m.mu.RUnlock()

	calls := make([]Call, len(m.calls))
	copy(calls, m.calls)
	return calls
}

// DeleteCalls returns recorded DELETE invocations sorted by key
func (m *MemoryBackend) DeleteCalls() []Call {
	var deletes []Call
	for _, c := range m.Calls() {
		if c.Op == OpDelete {
			deletes = append(deletes, c)
		}
	}
	sort.SliceStable(deletes, func(i, j int) bool { return deletes[i].Key < deletes[j].Key })
	return deletes
}

// HeadContainer returns container metadata
func (m *MemoryBackend) HeadContainer(ctx context.Context, account, container string) (*ContainerInfo, error) {
	if err := m.enter(ctx, Call{Op: OpHeadContainer, Account: account, Container: container}); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.containers[containerID(account, container)]
	if !ok {
		return nil, ErrContainerNotFound
	}
	return &ContainerInfo{Account: account, Name: container, ACL: c.acl}, nil
}

// HeadObject probes an object
func (m *MemoryBackend) HeadObject(ctx context.Context, account, container, key string) (*ObjectInfo, error) {
	if err := m.enter(ctx, Call{Op: OpHead, Account: account, Container: container, Key: key}); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.containers[containerID(account, container)]
	if !ok {
		return nil, ErrObjectNotFound
	}
	obj, ok := c.objects[key]
	if !ok {
		return nil, ErrObjectNotFound
	}
	return &ObjectInfo{
		Key:               key,
		Size:              obj.size,
		StaticLargeObject: obj.segments != nil,
	}, nil
}

// DeleteObject removes an object; segments go only when MultipartManifest is set
func (m *MemoryBackend) DeleteObject(ctx context.Context, account, container, key string, opts DeleteOptions) error {
	if err := m.enter(ctx, Call{Op: OpDelete, Account: account, Container: container, Key: key, Options: opts}); err != nil {
		return err
	}
	if opts.HasVersion() {
		return ErrVersioningNotSupported
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.containers[containerID(account, container)]
	if !ok {
		return ErrObjectNotFound
	}
	obj, ok := c.objects[key]
	if !ok {
		return ErrObjectNotFound
	}
	delete(c.objects, key)

	if opts.MultipartManifest && obj.segments != nil {
		if seg, ok := m.containers[containerID(account, segmentsContainer(container))]; ok {
			for _, s := range obj.segments {
				delete(seg.objects, s)
			}
		}
	}
	return nil
}

// Close is a no-op
func (m *MemoryBackend) Close() error {
	return nil
}

// enter records the call, applies latency and returns any injected fault
func (m *MemoryBackend) enter(ctx context.Context, call Call) error {
	m.mu.Lock()
	m.calls = append(m.calls, call)
	latency := m.latency
	fault := m.faults[faultID(call.Op, call.Account, call.Container, call.Key)]
	m.mu.Unlock()

	if latency > 0 {
		timer := time.NewTimer(latency)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return wrap(ErrBackendUnavailable, 0, ctx.Err())
		}
	}
	if err := ctx.Err(); err != nil {
		return wrap(ErrBackendUnavailable, 0, err)
	}
	return fault
}

func (m *MemoryBackend) ensure(account, container string) *memContainer {
	id := containerID(account, container)
	c, ok := m.containers[id]
	if !ok {
		c = &memContainer{objects: make(map[string]*memObject)}
		m.containers[id] = c
	}
	return c
}

func containerID(account, container string) string {
	return account + "/" + container
}

func segmentsContainer(container string) string {
	return container + "_segments"
}

func faultID(op, account, container, key string) string {
	return op + " " + account + "/" + container + "/" + key
}
