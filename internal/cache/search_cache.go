package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	redisv9 "github.com/redis/go-redis/v9"

	"docspace/internal/app"
)

// SearchCache memoizes ranked search results per workspace. Keys embed
// a per-workspace version counter; invalidation bumps the counter so
// stale entries simply age out via TTL.
type SearchCache struct {
	client *redisv9.Client
	ttl    time.Duration
}

func NewSearchCache(client *redisv9.Client, ttl time.Duration) *SearchCache {
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	return &SearchCache{client: client, ttl: ttl}
}

func (c *SearchCache) GetResults(ctx context.Context, workspaceID uint, query string, topK int) ([]app.SearchResult, bool, error) {
	key, err := c.resultKey(ctx, workspaceID, query, topK)
	if err != nil {
		return nil, false, err
	}
	raw, err := c.client.Get(ctx, key).Result()
	if err == redisv9.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get search results failed: %w", err)
	}

	var results []app.SearchResult
	if err := json.Unmarshal([]byte(raw), &results); err != nil {
		return nil, false, fmt.Errorf("unmarshal cached search results failed: %w", err)
	}
	return results, true, nil
}

func (c *SearchCache) SetResults(ctx context.Context, workspaceID uint, query string, topK int, results []app.SearchResult) error {
	key, err := c.resultKey(ctx, workspaceID, query, topK)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("marshal search results failed: %w", err)
	}
	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set search results failed: %w", err)
	}
	return nil
}

func (c *SearchCache) InvalidateWorkspace(ctx context.Context, workspaceID uint) error {
	if err := c.client.Incr(ctx, c.versionKey(workspaceID)).Err(); err != nil {
		return fmt.Errorf("redis bump search version failed: %w", err)
	}
	return nil
}

func (c *SearchCache) resultKey(ctx context.Context, workspaceID uint, query string, topK int) (string, error) {
	ver, err := c.client.Get(ctx, c.versionKey(workspaceID)).Result()
	if err == redisv9.Nil {
		ver = "0"
	} else if err != nil {
		return "", fmt.Errorf("redis get search version failed: %w", err)
	}
	if _, convErr := strconv.ParseInt(ver, 10, 64); convErr != nil {
		ver = "0"
	}
	sum := sha256.Sum256([]byte(query))
	return fmt.Sprintf("search:res:%d:%s:%d:%s", workspaceID, ver, topK, hex.EncodeToString(sum[:16])), nil
}

func (c *SearchCache) versionKey(workspaceID uint) string {
	return fmt.Sprintf("search:ver:%d", workspaceID)
}
