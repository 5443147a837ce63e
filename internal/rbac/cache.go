package rbac

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/odyssey-erp/odyssey-access/internal/shared"
)

const permissionKeyPrefix = "rbac:perm:"

// PermissionCache memoises effective permission sets per organization.
//
// Callers pass the organization's permission version, read from the store
// before anything else. Every grant change bumps that version in the same
// transaction as the change itself, so a set cached under an older version
// is unreachable from the moment the change commits, in Redis and in the
// in-process LRU of every instance alike. Redis is never on the write path.
type PermissionCache struct {
	client *redis.Client
	ttl    time.Duration
	local  *expirable.LRU[string, []string]
	group  singleflight.Group
	logger *slog.Logger
}

// NewPermissionCache instantiates the cache. size bounds the in-process LRU
// and ttl bounds the lifetime of every entry, local or remote.
func NewPermissionCache(client *redis.Client, ttl time.Duration, size int, logger *slog.Logger) *PermissionCache {
	if size <= 0 {
		size = 1024
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PermissionCache{
		client: client,
		ttl:    ttl,
		local:  expirable.NewLRU[string, []string](size, nil, ttl),
		logger: logger,
	}
}

// Fetch returns the set cached under version or populates it using loader.
// Redis failures degrade to the loader; they never serve a guess.
func (c *PermissionCache) Fetch(ctx context.Context, version, organizationID, userID int64, roleName string, loader func(context.Context) (PermissionSet, error)) (PermissionSet, error) {
	if c == nil {
		return loader(ctx)
	}
	key := permissionKey(version, organizationID, userID, roleName)

	if names, ok := c.local.Get(key); ok {
		return NewPermissionSet(names...), nil
	}
	if c.client != nil {
		payload, err := c.client.Get(ctx, key).Bytes()
		switch {
		case err == nil:
			var names []string
			if err := json.Unmarshal(payload, &names); err == nil {
				c.local.Add(key, names)
				return NewPermissionSet(names...), nil
			}
		case !errors.Is(err, redis.Nil):
			c.logger.Warn("rbac cache read", slog.String("key", key), slog.Any("error", err))
		}
	}

	// Coalesced callers share one load, so it must not die with the first
	// caller's request.
	loadCtx := context.WithoutCancel(ctx)
	value, err, _ := c.group.Do(key, func() (interface{}, error) {
		set, err := loader(loadCtx)
		if err != nil {
			return nil, err
		}
		names := set.Names()
		c.store(loadCtx, key, names)
		return names, nil
	})
	if err != nil {
		return nil, err
	}
	return NewPermissionSet(value.([]string)...), nil
}

func (c *PermissionCache) store(ctx context.Context, key string, names []string) {
	c.local.Add(key, names)
	if c.client == nil {
		return
	}
	raw, err := json.Marshal(names)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.logger.Warn("rbac cache write", slog.String("key", key), slog.Any("error", err))
	}
}

func permissionKey(version, organizationID, userID int64, roleName string) string {
	return fmt.Sprintf("%s%d:v%d:%d:%s", permissionKeyPrefix, organizationID, version, userID, shared.Fold(roleName))
}
