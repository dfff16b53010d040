package providers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/skhoolar/skhoolar/pkg/protocol"
)

const (
	DefaultModelCacheSize = 128
	DefaultModelCacheTTL  = 10 * time.Minute
)

// CachedLister memoizes ListModels per credential. Entries are keyed by a
// SHA-256 of provider, endpoint and key so secrets are never held as map keys.
type CachedLister struct {
	cache *expirable.LRU[string, []protocol.Model]
}

// NewCachedLister creates a cache of size entries living ttl each.
// Non-positive values select the defaults.
func NewCachedLister(size int, ttl time.Duration) *CachedLister {
	if size <= 0 {
		size = DefaultModelCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultModelCacheTTL
	}
	return &CachedLister{cache: expirable.NewLRU[string, []protocol.Model](size, nil, ttl)}
}

// ListModels returns cached models for cred or fetches them with client.
// Failures and empty listings are not cached.
func (l *CachedLister) ListModels(ctx context.Context, client Client, cred Credential) ([]protocol.Model, error) {
	key := cacheKey(cred)
	if models, ok := l.cache.Get(key); ok {
		slog.Debug("model list cache hit", "provider", cred.Provider, "count", len(models))
		return models, nil
	}

	models, err := client.ListModels(ctx)
	if err != nil {
		return nil, err
	}
	if len(models) > 0 {
		l.cache.Add(key, models)
	}
	return models, nil
}

// Purge drops every cached listing.
func (l *CachedLister) Purge() { l.cache.Purge() }

// Len reports the number of cached listings.
func (l *CachedLister) Len() int { return l.cache.Len() }

func cacheKey(cred Credential) string {
	h := sha256.New()
	h.Write([]byte(cred.Provider))
	h.Write([]byte{0})
	h.Write([]byte(cred.Endpoint))
	h.Write([]byte{0})
	h.Write([]byte(cred.APIKey))
	return hex.EncodeToString(h.Sum(nil))
}
