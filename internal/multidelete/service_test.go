package multidelete

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/swiftgate/swiftgate/internal/auth"
	"github.com/swiftgate/swiftgate/internal/s3err"
	"github.com/swiftgate/swiftgate/internal/storage"
)

const testAccount = "AUTH_test"

func testIdentity(t *testing.T, accessKey string) *auth.Identity {
	t.Helper()
	id, err := auth.NewIdentity(accessKey, "AUTH_")
	require.NoError(t, err)
	return id
}

func newTestService(backend storage.Backend, authorizer Authorizer, opts Options) *Service {
	if opts.Concurrency == 0 {
		opts.Concurrency = 4
	}
	return NewService(backend, NewContainerCache(backend, 16, time.Minute), authorizer, opts)
}

func objects(keys ...string) []ObjectIdentifier {
	out := make([]ObjectIdentifier, len(keys))
	for i, k := range keys {
		out[i] = ObjectIdentifier{Key: k}
	}
	return out
}

func batch(id *auth.Identity, quiet bool, objs ...ObjectIdentifier) Batch {
	return Batch{
		Identity:  id,
		Account:   testAccount,
		Container: "bucket",
		Request:   &Request{Objects: objs, Quiet: quiet},
	}
}

func outcomeKeys(outcomes []KeyOutcome) []string {
	keys := make([]string, len(outcomes))
	for i, o := range outcomes {
		keys[i] = o.Key
	}
	return keys
}

// keyAuthorizer denies a fixed set of keys and counts calls
type keyAuthorizer struct {
	mu     sync.Mutex
	denied map[string]bool
	calls  int
}

func (a *keyAuthorizer) Authorize(_ context.Context, _ *auth.Identity, _, _, key string, _ Action) (Decision, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	if a.denied[key] {
		return Denied, nil
	}
	return Allowed, nil
}

// recorder captures metrics calls
type recorder struct {
	mu       sync.Mutex
	results  []string
	outcomes map[string]int
}

func (r *recorder) RecordMultiDelete(result string, _ int, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, result)
}

func (r *recorder) RecordKeyOutcome(outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.outcomes == nil {
		r.outcomes = make(map[string]int)
	}
	r.outcomes[outcome]++
}

func TestExecute_MixedObjects(t *testing.T) {
	backend := storage.NewMemoryBackend()
	backend.CreateContainer(testAccount, "bucket", "")
	backend.PutObject(testAccount, "bucket", "Key1", 10)
	backend.PutLargeObject(testAccount, "bucket", "Key3", "Key3/1", "Key3/2")

	svc := newTestService(backend, AllowAll{}, Options{})
	report, err := svc.Execute(context.Background(), batch(testIdentity(t, "test:tester"), false, objects("Key1", "Key2", "Key3")...))
	require.NoError(t, err)

	require.Len(t, report.Outcomes, 3)
	assert.Equal(t, []string{"Key1", "Key2", "Key3"}, outcomeKeys(report.Outcomes))
	for _, o := range report.Outcomes {
		assert.True(t, o.Deleted(), "key %s: %s", o.Key, o.Code)
	}

	calls := backend.DeleteCalls()
	require.Len(t, calls, 3)
	assert.False(t, calls[0].Options.MultipartManifest, "plain object must not cascade")
	assert.False(t, calls[1].Options.MultipartManifest, "missing object must not cascade")
	assert.True(t, calls[2].Options.MultipartManifest, "large object must cascade")
	assert.Equal(t, 0, backend.SegmentCount(testAccount, "bucket"))
}

func TestExecute_Quiet(t *testing.T) {
	backend := storage.NewMemoryBackend()
	backend.CreateContainer(testAccount, "bucket", "")
	backend.PutObject(testAccount, "bucket", "Key1", 1)

	svc := newTestService(backend, AllowAll{}, Options{})
	report, err := svc.Execute(context.Background(), batch(testIdentity(t, "test:tester"), true, objects("Key1", "Key2")...))
	require.NoError(t, err)

	assert.True(t, report.Quiet)
	assert.Empty(t, report.Result().Entries)
}

func TestExecute_Idempotent(t *testing.T) {
	backend := storage.NewMemoryBackend()
	backend.CreateContainer(testAccount, "bucket", "")
	backend.PutObject(testAccount, "bucket", "Key1", 1)

	svc := newTestService(backend, AllowAll{}, Options{})
	b := batch(testIdentity(t, "test:tester"), false, objects("Key1")...)

	for i := 0; i < 2; i++ {
		report, err := svc.Execute(context.Background(), b)
		require.NoError(t, err)
		require.Len(t, report.Outcomes, 1)
		assert.True(t, report.Outcomes[0].Deleted(), "attempt %d", i)
	}
}

func TestExecute_AuthorizationIndependence(t *testing.T) {
	backend := storage.NewMemoryBackend()
	backend.CreateContainer(testAccount, "bucket", "")
	for _, k := range []string{"a", "b", "c"} {
		backend.PutObject(testAccount, "bucket", k, 1)
	}

	authz := &keyAuthorizer{denied: map[string]bool{"b": true}}
	svc := newTestService(backend, authz, Options{})
	report, err := svc.Execute(context.Background(), batch(testIdentity(t, "test:tester"), false, objects("a", "b", "c")...))
	require.NoError(t, err)

	require.Len(t, report.Outcomes, 3)
	assert.True(t, report.Outcomes[0].Deleted())
	assert.Equal(t, s3err.CodeAccessDenied, report.Outcomes[1].Code)
	assert.Equal(t, "Access Denied.", report.Outcomes[1].Message)
	assert.True(t, report.Outcomes[2].Deleted())
	assert.Equal(t, 3, authz.calls)

	assert.True(t, backend.ObjectExists(testAccount, "bucket", "b"))
	for _, c := range backend.Calls() {
		assert.NotEqual(t, "b", c.Key, "denied key must not reach the backend")
	}
}

func TestExecute_BackendErrors(t *testing.T) {
	tests := []struct {
		name    string
		op      string
		err     error
		code    string
		message string
	}{
		{"delete forbidden", storage.OpDelete, storage.ErrForbidden, s3err.CodeAccessDenied, "Access Denied."},
		{"delete unauthorized", storage.OpDelete, storage.ErrUnauthorized, s3err.CodeAccessDenied, "Access Denied."},
		{"delete conflict", storage.OpDelete, storage.ErrConflict, s3err.CodeOperationAborted, msgOperationAborted},
		{"delete server error", storage.OpDelete, storage.ErrBackendFailure, s3err.CodeInternalError, msgInternalError},
		{"probe server error", storage.OpHead, storage.ErrBackendFailure, s3err.CodeInternalError, msgInternalError},
		{"probe unreachable", storage.OpHead, storage.ErrBackendUnavailable, s3err.CodeInternalError, msgInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := storage.NewMemoryBackend()
			backend.CreateContainer(testAccount, "bucket", "")
			backend.PutObject(testAccount, "bucket", "ok", 1)
			backend.PutObject(testAccount, "bucket", "bad", 1)
			backend.InjectFault(tt.op, testAccount, "bucket", "bad", tt.err)

			svc := newTestService(backend, AllowAll{}, Options{})
			report, err := svc.Execute(context.Background(), batch(testIdentity(t, "test:tester"), true, objects("ok", "bad")...))
			require.NoError(t, err)

			assert.True(t, report.Outcomes[0].Deleted())
			assert.Equal(t, tt.code, report.Outcomes[1].Code)
			assert.Equal(t, tt.message, report.Outcomes[1].Message)

			entries := report.Result().Entries
			require.Len(t, entries, 1)
			require.NotNil(t, entries[0].Error)
			assert.Equal(t, "bad", entries[0].Error.Key)
		})
	}
}

func TestExecute_ProbeFailureSkipsDelete(t *testing.T) {
	backend := storage.NewMemoryBackend()
	backend.CreateContainer(testAccount, "bucket", "")
	backend.PutObject(testAccount, "bucket", "k", 1)
	backend.InjectFault(storage.OpHead, testAccount, "bucket", "k", storage.ErrBackendFailure)

	svc := newTestService(backend, AllowAll{}, Options{})
	_, err := svc.Execute(context.Background(), batch(testIdentity(t, "test:tester"), false, objects("k")...))
	require.NoError(t, err)

	assert.Empty(t, backend.DeleteCalls())
	assert.True(t, backend.ObjectExists(testAccount, "bucket", "k"))
}

func TestExecute_VersionIDs(t *testing.T) {
	backend := storage.NewMemoryBackend()
	backend.CreateContainer(testAccount, "bucket", "")
	backend.PutObject(testAccount, "bucket", "a", 1)
	backend.PutObject(testAccount, "bucket", "b", 1)

	svc := newTestService(backend, AllowAll{}, Options{})
	report, err := svc.Execute(context.Background(), batch(testIdentity(t, "test:tester"), false,
		ObjectIdentifier{Key: "a", VersionID: "null"},
		ObjectIdentifier{Key: "b", VersionID: "3HL4kqtJlcpXroDTDmJ"},
	))
	require.NoError(t, err)

	assert.True(t, report.Outcomes[0].Deleted())
	assert.Equal(t, "null", report.Outcomes[0].VersionID)
	assert.Equal(t, s3err.CodeNoSuchVersion, report.Outcomes[1].Code)
	assert.Equal(t, "3HL4kqtJlcpXroDTDmJ", report.Outcomes[1].VersionID)
	assert.True(t, backend.ObjectExists(testAccount, "bucket", "b"))
}

func TestExecute_OrderUnderConcurrency(t *testing.T) {
	backend := storage.NewMemoryBackend()
	backend.CreateContainer(testAccount, "bucket", "")
	backend.SetLatency(time.Millisecond)

	keys := make([]string, 50)
	for i := range keys {
		keys[i] = fmt.Sprintf("key-%02d", 49-i)
		if i%2 == 0 {
			backend.PutObject(testAccount, "bucket", keys[i], 1)
		}
	}

	svc := newTestService(backend, AllowAll{}, Options{Concurrency: 8})
	report, err := svc.Execute(context.Background(), batch(testIdentity(t, "test:tester"), false, objects(keys...)...))
	require.NoError(t, err)

	assert.Equal(t, keys, outcomeKeys(report.Outcomes))
	assert.Len(t, backend.DeleteCalls(), len(keys))
}

func TestExecute_Timeout(t *testing.T) {
	backend := storage.NewMemoryBackend()
	backend.CreateContainer(testAccount, "bucket", "")
	for _, k := range []string{"a", "b", "c", "d"} {
		backend.PutObject(testAccount, "bucket", k, 1)
	}

	svc := newTestService(backend, AllowAll{}, Options{Concurrency: 1, Timeout: 50 * time.Millisecond})

	// Prime the container cache so the precheck is not delayed
	_, err := svc.containers.Lookup(context.Background(), testAccount, "bucket")
	require.NoError(t, err)
	backend.SetLatency(time.Second)

	start := time.Now()
	report, err := svc.Execute(context.Background(), batch(testIdentity(t, "test:tester"), true, objects("a", "b", "c", "d")...))
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 900*time.Millisecond)

	require.Len(t, report.Outcomes, 4)
	assert.Equal(t, []string{"a", "b", "c", "d"}, outcomeKeys(report.Outcomes))
	for _, o := range report.Outcomes {
		assert.Equal(t, s3err.CodeRequestTimeout, o.Code, o.Key)
		assert.Equal(t, msgRequestTimeout, o.Message)
	}
	assert.Len(t, report.Result().Entries, 4, "quiet mode still reports timeouts")
}

func TestExecute_ContainerPrecheck(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*storage.MemoryBackend)
		code  string
	}{
		{
			name:  "missing bucket",
			setup: func(*storage.MemoryBackend) {},
			code:  s3err.CodeNoSuchBucket,
		},
		{
			name: "forbidden",
			setup: func(m *storage.MemoryBackend) {
				m.InjectFault(storage.OpHeadContainer, testAccount, "bucket", "", storage.ErrForbidden)
			},
			code: s3err.CodeAccessDenied,
		},
		{
			name: "unreachable",
			setup: func(m *storage.MemoryBackend) {
				m.InjectFault(storage.OpHeadContainer, testAccount, "bucket", "", storage.ErrBackendUnavailable)
			},
			code: s3err.CodeServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := storage.NewMemoryBackend()
			tt.setup(backend)

			rec := &recorder{}
			svc := newTestService(backend, AllowAll{}, Options{Recorder: rec})
			report, err := svc.Execute(context.Background(), batch(testIdentity(t, "test:tester"), false, objects("k")...))
			assert.Nil(t, report)

			var apiErr *s3err.APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tt.code, apiErr.Code)
			assert.Equal(t, []string{tt.code}, rec.results)

			for _, c := range backend.Calls() {
				assert.Equal(t, storage.OpHeadContainer, c.Op, "no per-key work after a failed precheck")
			}
		})
	}
}

func TestExecute_AllKeysUnavailable(t *testing.T) {
	backend := storage.NewMemoryBackend()
	backend.CreateContainer(testAccount, "bucket", "")
	backend.InjectFault(storage.OpHead, testAccount, "bucket", "a", storage.ErrBackendUnavailable)
	backend.InjectFault(storage.OpHead, testAccount, "bucket", "b", storage.ErrBackendUnavailable)

	rec := &recorder{}
	svc := newTestService(backend, AllowAll{}, Options{Recorder: rec})

	// Cached precheck passes, the uncached re-check finds the backend gone
	_, err := svc.containers.Lookup(context.Background(), testAccount, "bucket")
	require.NoError(t, err)
	backend.InjectFault(storage.OpHeadContainer, testAccount, "bucket", "", storage.ErrBackendUnavailable)

	report, err := svc.Execute(context.Background(), batch(testIdentity(t, "test:tester"), false, objects("a", "b")...))
	assert.Nil(t, report)
	assert.Equal(t, s3err.ErrServiceUnavailable, err)
	assert.Equal(t, []string{s3err.CodeServiceUnavailable}, rec.results)
}

func TestExecute_SingleKeyUnavailableKeepsReport(t *testing.T) {
	busy := &storage.StorageError{
		Code:       storage.ErrBackendUnavailable.Code,
		Message:    storage.ErrBackendUnavailable.Message,
		StatusCode: 503,
	}

	tests := []struct {
		name string
		op   string
		err  error
	}{
		{"probe without response", storage.OpHead, storage.ErrBackendUnavailable},
		{"probe answered 503", storage.OpHead, busy},
		{"delete without response", storage.OpDelete, storage.ErrBackendUnavailable},
		{"delete answered 503", storage.OpDelete, busy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := storage.NewMemoryBackend()
			backend.CreateContainer(testAccount, "bucket", "")
			backend.PutObject(testAccount, "bucket", "k", 1)
			backend.InjectFault(tt.op, testAccount, "bucket", "k", tt.err)

			svc := newTestService(backend, AllowAll{}, Options{})
			report, err := svc.Execute(context.Background(), batch(testIdentity(t, "test:tester"), false, objects("k")...))
			require.NoError(t, err)

			require.Len(t, report.Outcomes, 1)
			assert.Equal(t, "k", report.Outcomes[0].Key)
			assert.Equal(t, s3err.CodeInternalError, report.Outcomes[0].Code)

			entries := report.Result().Entries
			require.Len(t, entries, 1)
			require.NotNil(t, entries[0].Error)
		})
	}
}

func TestExecute_PartiallyUnavailable(t *testing.T) {
	backend := storage.NewMemoryBackend()
	backend.CreateContainer(testAccount, "bucket", "")
	backend.PutObject(testAccount, "bucket", "c", 1)
	backend.InjectFault(storage.OpHead, testAccount, "bucket", "a", storage.ErrBackendUnavailable)

	svc := newTestService(backend, AllowAll{}, Options{})
	report, err := svc.Execute(context.Background(), batch(testIdentity(t, "test:tester"), false, objects("a", "c")...))
	require.NoError(t, err)
	assert.Equal(t, s3err.CodeInternalError, report.Outcomes[0].Code)
	assert.True(t, report.Outcomes[1].Deleted())
}

func TestExecute_RecordsMetrics(t *testing.T) {
	backend := storage.NewMemoryBackend()
	backend.CreateContainer(testAccount, "bucket", "")
	backend.PutObject(testAccount, "bucket", "a", 1)

	rec := &recorder{}
	authz := &keyAuthorizer{denied: map[string]bool{"b": true}}
	svc := newTestService(backend, authz, Options{Recorder: rec})
	_, err := svc.Execute(context.Background(), batch(testIdentity(t, "test:tester"), false, objects("a", "b")...))
	require.NoError(t, err)

	assert.Equal(t, []string{"success"}, rec.results)
	assert.Equal(t, map[string]int{"deleted": 1, s3err.CodeAccessDenied: 1}, rec.outcomes)
}
