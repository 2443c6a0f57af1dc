// Package cache keeps verification lookups off the ledger for repeat
// queries. Entries are keyed by degree hash and invalidated when the degree's
// status changes.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"veryphy/internal/ledger/models"
	"veryphy/pkg/platform/sentinel"
)

const keyPrefix = "verify:"

// VerificationCache stores recent verify-by-hash answers in Redis.
type VerificationCache struct {
	client *redis.Client
	ttl    time.Duration
}

func New(client *redis.Client, ttl time.Duration) *VerificationCache {
	return &VerificationCache{client: client, ttl: ttl}
}

// Get returns the cached result for hash, or sentinel.ErrNotFound on a miss.
func (c *VerificationCache) Get(ctx context.Context, hash string) (models.VerificationResult, error) {
	raw, err := c.client.Get(ctx, keyPrefix+hash).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.VerificationResult{}, sentinel.ErrNotFound
	}
	if err != nil {
		return models.VerificationResult{}, fmt.Errorf("cache get: %w", err)
	}
	var result models.VerificationResult
	if err := json.Unmarshal(raw, &result); err != nil {
		// A corrupt entry is treated as a miss; the next Set overwrites it.
		return models.VerificationResult{}, sentinel.ErrNotFound
	}
	return result, nil
}

// Set stores a result under its hash for the configured TTL.
func (c *VerificationCache) Set(ctx context.Context, hash string, result models.VerificationResult) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("cache encode: %w", err)
	}
	if err := c.client.Set(ctx, keyPrefix+hash, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

// Invalidate drops the entry for hash. Called after revocations so stale
// VALID answers never outlive a status change.
func (c *VerificationCache) Invalidate(ctx context.Context, hash string) error {
	if err := c.client.Del(ctx, keyPrefix+hash).Err(); err != nil {
		return fmt.Errorf("cache invalidate: %w", err)
	}
	return nil
}
