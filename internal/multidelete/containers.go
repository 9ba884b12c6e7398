package multidelete

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sirupsen/logrus"
	"github.com/swiftgate/swiftgate/internal/acl"
	"github.com/swiftgate/swiftgate/internal/storage"
)

const (
	defaultContainerCacheSize = 1024
	defaultContainerCacheTTL  = 30 * time.Second
)

// containerEntry is the cached view of one container
type containerEntry struct {
	info   *storage.ContainerInfo
	acl    *acl.ACL
	aclErr error
}

// ContainerCache memoizes container lookups, including the decoded ACL.
// Only successful lookups are cached.
type ContainerCache struct {
	backend storage.Backend
	cache   *expirable.LRU[string, *containerEntry]
}

// NewContainerCache creates a cache of at most size entries living for ttl
func NewContainerCache(backend storage.Backend, size int, ttl time.Duration) *ContainerCache {
	if size <= 0 {
		size = defaultContainerCacheSize
	}
	if ttl <= 0 {
		ttl = defaultContainerCacheTTL
	}

	return &ContainerCache{
		backend: backend,
		cache:   expirable.NewLRU[string, *containerEntry](size, nil, ttl),
	}
}

// Lookup returns container metadata, consulting the backend on a miss
func (c *ContainerCache) Lookup(ctx context.Context, account, container string) (*storage.ContainerInfo, error) {
	entry, err := c.entry(ctx, account, container)
	if err != nil {
		return nil, err
	}
	return entry.info, nil
}

// ACL returns the decoded container ACL; nil when the container has none
func (c *ContainerCache) ACL(ctx context.Context, account, container string) (*acl.ACL, error) {
	entry, err := c.entry(ctx, account, container)
	if err != nil {
		return nil, err
	}
	return entry.acl, entry.aclErr
}

// Invalidate drops a cached container
func (c *ContainerCache) Invalidate(account, container string) {
	c.cache.Remove(cacheKey(account, container))
}

func (c *ContainerCache) entry(ctx context.Context, account, container string) (*containerEntry, error) {
	key := cacheKey(account, container)
	if entry, ok := c.cache.Get(key); ok {
		return entry, nil
	}

	info, err := c.backend.HeadContainer(ctx, account, container)
	if err != nil {
		return nil, err
	}

	entry := &containerEntry{info: info}
	entry.acl, entry.aclErr = acl.Decode(info.ACL)
	if entry.aclErr != nil {
		logrus.WithError(entry.aclErr).WithFields(logrus.Fields{
			"account": account,
			"bucket":  container,
		}).Warn("Stored bucket ACL is invalid")
	}

	c.cache.Add(key, entry)
	return entry, nil
}

func cacheKey(account, container string) string {
	return account + "/" + container
}
