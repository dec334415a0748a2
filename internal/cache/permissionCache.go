package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"spreadsheet-service/internal/access"
	"spreadsheet-service/internal/model/sheetdata"
)

const (
	permissionTTL = 5 * time.Minute
	// noGrant marks a confirmed absence so missing grants do not hit
	// the backing store on every check.
	noGrant = "NONE"
)

// PermissionCache caches grant lookups in redis in front of the
// permission store. It implements access.GrantSource.
type PermissionCache struct {
	client *redis.Client
	next   access.GrantSource
}

func New(client *redis.Client, next access.GrantSource) *PermissionCache {
	return &PermissionCache{client: client, next: next}
}

func (c *PermissionCache) buildKey(spreadsheetID uuid.UUID, userID uint32) string {
	return fmt.Sprintf("perm:%s:%d", spreadsheetID, userID)
}

func (c *PermissionCache) GetPermission(ctx context.Context, spreadsheetID uuid.UUID, userID uint32) (*sheetdata.Permission, error) {
	key := c.buildKey(spreadsheetID, userID)

	cached, err := c.client.Get(ctx, key).Result()
	if err == nil {
		if cached == noGrant {
			return nil, nil
		}
		level, parseErr := sheetdata.ParseLevel(cached)
		if parseErr == nil {
			return &sheetdata.Permission{SpreadsheetID: spreadsheetID, UserID: userID, Level: level}, nil
		}
		// Unparseable entry, fall through to the store.
	} else if !errors.Is(err, redis.Nil) {
		// Cache unavailable, serve from the store.
	}

	permission, err := c.next.GetPermission(ctx, spreadsheetID, userID)
	if err != nil {
		return nil, err
	}

	value := noGrant
	if permission != nil {
		value = string(permission.Level)
	}
	_ = c.client.Set(ctx, key, value, permissionTTL).Err()

	return permission, nil
}

// Invalidate drops the cached entry after a grant or revoke.
func (c *PermissionCache) Invalidate(ctx context.Context, spreadsheetID uuid.UUID, userID uint32) error {
	return c.client.Del(ctx, c.buildKey(spreadsheetID, userID)).Err()
}
