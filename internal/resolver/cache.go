package resolver

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"ibctrace/internal/model"
)

// DefaultCacheSize is used when NewCache is given a non-positive size.
const DefaultCacheSize = 4096

// Backing is a durable store of resolutions shared across runs. Entries are
// only valid within the scope they were written under.
type Backing interface {
	Load(scope string, origin model.ChainID, observed string) (Resolution, bool, error)
	Store(scope string, res Resolution) error
}

type cacheKey struct {
	origin   model.ChainID
	observed string
	known    string
}

// Cache memoizes resolutions by (origin, observed denom, known denom set).
// Errors are never cached.
type Cache struct {
	next    *Resolver
	items   *lru.Cache[cacheKey, Resolution]
	backing Backing
	scope   string
	logger  *zap.Logger
}

func NewCache(next *Resolver, size int) (*Cache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	items, err := lru.New[cacheKey, Resolution](size)
	if err != nil {
		return nil, fmt.Errorf("create resolution cache: %w", err)
	}
	return &Cache{next: next, items: items, logger: zap.NewNop()}, nil
}

// WithBacking adds a durable tier consulted on memory misses. scope must
// change whenever anything that affects a resolution changes; see Scope.
func (c *Cache) WithBacking(b Backing, scope string, logger *zap.Logger) *Cache {
	c.backing = b
	c.scope = scope
	if logger != nil {
		c.logger = logger
	}
	return c
}

func (c *Cache) Resolve(ctx context.Context, observed string, origin model.ChainID, known []model.KnownDenom) (Resolution, error) {
	key := cacheKey{origin: origin, observed: observed, known: knownDigest(known)}
	if res, ok := c.items.Get(key); ok {
		return res, nil
	}
	scope := c.scope + "/" + key.known
	if c.backing != nil {
		res, ok, err := c.backing.Load(scope, origin, observed)
		if err != nil {
			c.logger.Warn("load stored resolution", zap.String("denom", observed), zap.Error(err))
		} else if ok {
			c.items.Add(key, res)
			return res, nil
		}
	}

	res, err := c.next.Resolve(ctx, observed, origin, known)
	if err != nil {
		return res, err
	}
	c.items.Add(key, res)
	if c.backing != nil && !res.Native {
		if err := c.backing.Store(scope, res); err != nil {
			c.logger.Warn("store resolution", zap.String("denom", observed), zap.Error(err))
		}
	}
	return res, nil
}

// Len returns the number of cached resolutions.
func (c *Cache) Len() int {
	return c.items.Len()
}

func knownDigest(known []model.KnownDenom) string {
	h := sha256.New()
	for _, k := range known {
		fmt.Fprintf(h, "%s=%s\n", k.Name, k.Denom)
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// Scope derives a backing scope from the topology fingerprint and the search
// settings that change outcomes. Cache further partitions it by known set.
func (r *Resolver) Scope(graphID string) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\n%d\n%s\n", graphID, r.cfg.MaxHops, r.cfg.Mode)
	return hex.EncodeToString(h.Sum(nil))[:16]
}
