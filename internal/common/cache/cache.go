// internal/common/cache/cache.go
// Package cache stores triage scores, query embeddings and the last run timestamp in redis.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"ticket-responder/internal/common/metrics"
	"ticket-responder/internal/models"
)

const (
	triageNamespace    = "triage"
	embeddingNamespace = "embedding"
	lastRunKey         = "last-run"
)

type Cache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

func New(client *redis.Client, ttl time.Duration, prefix string) *Cache {
	return &Cache{client: client, ttl: ttl, prefix: prefix}
}

// Key hashes the parts into a fixed-length cache key.
func Key(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return hex.EncodeToString(sum[:])
}

func (c *Cache) key(namespace, id string) string {
	return fmt.Sprintf("%s:%s:%s", c.prefix, namespace, id)
}

// GetTriageScore returns a cached score for key.
func (c *Cache) GetTriageScore(ctx context.Context, key string) (models.TriageScore, bool, error) {
	var score models.TriageScore
	ok, err := c.getJSON(ctx, triageNamespace, key, &score)
	return score, ok, err
}

// SetTriageScore caches a parsed score. Unparseable results are not cached so they get another chance.
func (c *Cache) SetTriageScore(ctx context.Context, key string, score models.TriageScore) error {
	if score.Unparseable {
		return nil
	}
	return c.setJSON(ctx, triageNamespace, key, score, c.ttl)
}

// GetEmbedding returns a cached vector for key.
func (c *Cache) GetEmbedding(ctx context.Context, key string) ([]float32, bool, error) {
	var vec []float32
	ok, err := c.getJSON(ctx, embeddingNamespace, key, &vec)
	return vec, ok, err
}

// SetEmbedding caches a query vector.
func (c *Cache) SetEmbedding(ctx context.Context, key string, vec []float32) error {
	return c.setJSON(ctx, embeddingNamespace, key, vec, c.ttl)
}

// GetLastRun returns the start time of the last completed run.
func (c *Cache) GetLastRun(ctx context.Context) (time.Time, bool, error) {
	raw, err := c.client.Get(ctx, c.key("run", lastRunKey)).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("get last run: %w", err)
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse last run %q: %w", raw, err)
	}
	return t.UTC(), true, nil
}

// SetLastRun stores the start time of a completed run. It never expires.
func (c *Cache) SetLastRun(ctx context.Context, t time.Time) error {
	if err := c.client.Set(ctx, c.key("run", lastRunKey), t.UTC().Format(time.RFC3339), 0).Err(); err != nil {
		return fmt.Errorf("set last run: %w", err)
	}
	return nil
}

func (c *Cache) getJSON(ctx context.Context, namespace, id string, out interface{}) (bool, error) {
	raw, err := c.client.Get(ctx, c.key(namespace, id)).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.CacheLookups.WithLabelValues(namespace, "miss").Inc()
		return false, nil
	}
	if err != nil {
		metrics.CacheLookups.WithLabelValues(namespace, "error").Inc()
		return false, fmt.Errorf("cache get %s: %w", namespace, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		metrics.CacheLookups.WithLabelValues(namespace, "error").Inc()
		return false, fmt.Errorf("cache decode %s: %w", namespace, err)
	}
	metrics.CacheLookups.WithLabelValues(namespace, "hit").Inc()
	return true, nil
}

func (c *Cache) setJSON(ctx context.Context, namespace, id string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache encode %s: %w", namespace, err)
	}
	if err := c.client.Set(ctx, c.key(namespace, id), data, ttl).Err(); err != nil {
		return fmt.Errorf("cache set %s: %w", namespace, err)
	}
	return nil
}
