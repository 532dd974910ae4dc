// Package cache memoizes decision signals outside the evaluation core.
// Given fixed snapshot versions an evaluation is a pure function of its
// request, so results can be keyed by (versions, request) and replayed.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/clinsafe-server/internal/domain"
)

// Stats tracks cache performance metrics.
type Stats struct {
	LocalHits  int64 `json:"local_hits"`
	RedisHits  int64 `json:"redis_hits"`
	Misses     int64 `json:"misses"`
	Writes     int64 `json:"writes"`
	RedisFails int64 `json:"redis_fails"`
}

// DecisionCache is a two-tier memoization layer for decision signals.
// Tier 1 is an in-process expirable LRU holding hot entries; tier 2 is an
// optional shared Redis instance. Redis failures degrade to tier 1 only,
// they never fail an evaluation.
type DecisionCache struct {
	logger  *logrus.Logger
	local   *expirable.LRU[string, []byte]
	redis   *redis.Client
	ttl     time.Duration
	enabled bool

	stats   Stats
	statsMu sync.Mutex
}

// New creates a decision cache from configuration. A disabled cache is
// returned as a working no-op so callers never branch on nil.
func New(cfg domain.CacheConfig, logger *logrus.Logger) (*DecisionCache, error) {
	if cfg.LocalSize <= 0 {
		cfg.LocalSize = 1024
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 10 * time.Minute
	}

	c := &DecisionCache{
		logger:  logger,
		local:   expirable.NewLRU[string, []byte](cfg.LocalSize, nil, cfg.TTL),
		ttl:     cfg.TTL,
		enabled: cfg.Enabled,
	}

	if cfg.Enabled && cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid redis URL: %w", err)
		}
		if cfg.PoolSize > 0 {
			opts.PoolSize = cfg.PoolSize
		}
		if cfg.PoolTimeout > 0 {
			opts.PoolTimeout = cfg.PoolTimeout
		}
		if cfg.MaxRetries > 0 {
			opts.MaxRetries = cfg.MaxRetries
		}
		c.redis = redis.NewClient(opts)
		logger.WithFields(logrus.Fields{
			"addr":      opts.Addr,
			"pool_size": opts.PoolSize,
		}).Info("Decision cache Redis tier configured")
	}

	return c, nil
}

// Key derives a stable cache key for one evaluation. The snapshot versions
// are part of the key, so a published refresh invalidates every prior entry
// without explicit flushing.
func Key(knowledgeVersion, rulesVersion string, req *domain.EvaluateRequest) string {
	payload, _ := json.Marshal(req)
	h := sha256.New()
	h.Write([]byte(knowledgeVersion))
	h.Write([]byte{'|'})
	h.Write([]byte(rulesVersion))
	h.Write([]byte{'|'})
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns a previously stored signal for the key, checking the local
// tier first and backfilling it on a Redis hit.
func (c *DecisionCache) Get(ctx context.Context, key string) (*domain.DecisionSignal, bool) {
	if !c.enabled {
		return nil, false
	}

	if raw, ok := c.local.Get(key); ok {
		sig, err := decode(raw)
		if err == nil {
			c.bump(func(s *Stats) { s.LocalHits++ })
			return sig, true
		}
		c.local.Remove(key)
	}

	if c.redis != nil {
		raw, err := c.redis.Get(ctx, redisKey(key)).Bytes()
		if err == nil {
			if sig, derr := decode(raw); derr == nil {
				c.local.Add(key, raw)
				c.bump(func(s *Stats) { s.RedisHits++ })
				return sig, true
			}
		} else if err != redis.Nil {
			c.bump(func(s *Stats) { s.RedisFails++ })
			c.logger.WithError(err).Debug("Redis cache read failed")
		}
	}

	c.bump(func(s *Stats) { s.Misses++ })
	return nil, false
}

// Put stores a signal under the key in both tiers.
func (c *DecisionCache) Put(ctx context.Context, key string, sig *domain.DecisionSignal) {
	if !c.enabled || sig == nil {
		return
	}

	raw, err := json.Marshal(sig)
	if err != nil {
		return
	}
	c.local.Add(key, raw)
	c.bump(func(s *Stats) { s.Writes++ })

	if c.redis != nil {
		if err := c.redis.Set(ctx, redisKey(key), raw, c.ttl).Err(); err != nil {
			c.bump(func(s *Stats) { s.RedisFails++ })
			c.logger.WithError(err).Debug("Redis cache write failed")
		}
	}
}

// Stats returns a copy of the current counters.
func (c *DecisionCache) Stats() Stats {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	return c.stats
}

// Close releases the Redis connection if one was configured.
func (c *DecisionCache) Close() error {
	if c.redis != nil {
		return c.redis.Close()
	}
	return nil
}

func (c *DecisionCache) bump(update func(*Stats)) {
	c.statsMu.Lock()
	update(&c.stats)
	c.statsMu.Unlock()
}

func decode(raw []byte) (*domain.DecisionSignal, error) {
	var sig domain.DecisionSignal
	if err := json.Unmarshal(raw, &sig); err != nil {
		return nil, err
	}
	return &sig, nil
}

func redisKey(key string) string {
	return "clinsafe:decision:" + key
}
