// Package redis provides a Redis-backed blob store for encrypted records.
package redis

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Jayphen/flowsync/internal/blobstore"
)

const (
	// KeyPrefix is the Redis key prefix for encrypted blobs.
	KeyPrefix = "flowsync:blob:"
	// DefaultRedisURL is the default Redis connection URL.
	DefaultRedisURL = "redis://localhost:6379"
)

// Client stores blobs for one vault under flowsync:blob:<hex(vault)>:<id>.
// The vault id is hex encoded so that no vault's prefix is a prefix of
// another's, whatever characters the ids contain.
type Client struct {
	rdb    *redis.Client
	prefix string
}

// NewClient connects to url (DefaultRedisURL if empty) and scopes keys to vaultID.
func NewClient(url, vaultID string) (*Client, error) {
	if url == "" {
		url = DefaultRedisURL
	}

	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	rdb := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return newClient(rdb, vaultID), nil
}

func newClient(rdb *redis.Client, vaultID string) *Client {
	return &Client{rdb: rdb, prefix: VaultPrefix(vaultID)}
}

// VaultPrefix returns the key prefix that holds vaultID's blobs.
func VaultPrefix(vaultID string) string {
	return KeyPrefix + hex.EncodeToString([]byte(vaultID)) + ":"
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Put stores blob under id.
func (c *Client) Put(ctx context.Context, id string, blob []byte) error {
	return c.rdb.Set(ctx, c.prefix+id, blob, 0).Err()
}

// Get returns the blob stored under id.
func (c *Client) Get(ctx context.Context, id string) ([]byte, error) {
	data, err := c.rdb.Get(ctx, c.prefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: %s", blobstore.ErrNotFound, id)
		}
		return nil, err
	}
	return data, nil
}

// Delete removes the blob stored under id.
func (c *Client) Delete(ctx context.Context, id string) error {
	n, err := c.rdb.Del(ctx, c.prefix+id).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", blobstore.ErrNotFound, id)
	}
	return nil
}

// List returns all ids stored for this vault, sorted.
func (c *Client) List(ctx context.Context) ([]string, error) {
	// The prefix is built from hex digits and colons only, so it needs no
	// glob escaping.
	keys, err := c.scanKeys(ctx, c.prefix+"*")
	if err != nil {
		return nil, err
	}

	// SCAN may return a key more than once.
	seen := make(map[string]struct{}, len(keys))
	ids := make([]string, 0, len(keys))
	for _, k := range keys {
		id := strings.TrimPrefix(k, c.prefix)
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// scanKeys scans for all keys matching a pattern.
func (c *Client) scanKeys(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	var cursor uint64

	for {
		var batch []string
		var err error
		batch, cursor, err = c.rdb.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return keys, err
		}

		keys = append(keys, batch...)

		if cursor == 0 {
			break
		}
	}

	return keys, nil
}

// IsAvailable checks if Redis is reachable at url.
func IsAvailable(url string) bool {
	client, err := NewClient(url, "")
	if err != nil {
		return false
	}
	defer client.Close()
	return true
}

var _ blobstore.Store = (*Client)(nil)
