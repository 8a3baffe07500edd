package dispatcher

import (
	"context"
	"sync"
	"time"

	"github.com/omniflowhq/omniflow/pkg/models"
)

// DefaultCredentialTTL bounds how stale a cached credential read may be. The
// settings UI writes credentials out of process, so the cache stays short-lived
// and keyed per company, never an unbounded singleton.
const DefaultCredentialTTL = 30 * time.Second

type cacheEntry struct {
	credentials map[string]*models.Credential
	fetchedAt   time.Time
}

// CredentialCache is a process-local read-through TTL cache over a
// CredentialResolver, with explicit per-company invalidation for settings
// updates delivered over the bus.
type CredentialCache struct {
	resolver CredentialResolver
	ttl      time.Duration

	mu      sync.Mutex
	entries map[string]cacheEntry
}

func NewCredentialCache(resolver CredentialResolver, ttl time.Duration) *CredentialCache {
	if ttl <= 0 {
		ttl = DefaultCredentialTTL
	}

	return &CredentialCache{
		resolver: resolver,
		ttl:      ttl,
		entries:  make(map[string]cacheEntry),
	}
}

func (c *CredentialCache) ProviderCredentials(ctx context.Context, companyID string, channel models.Channel) (map[string]*models.Credential, error) {
	key := companyID + "/" + string(channel)
	now := time.Now()

	c.mu.Lock()
	entry, ok := c.entries[key]
	c.mu.Unlock()

	if ok && now.Sub(entry.fetchedAt) < c.ttl {
		return entry.credentials, nil
	}

	credentials, err := c.resolver.ProviderCredentials(ctx, companyID, channel)
	if err != nil {
		// Serve the stale entry over failing the send outright.
		if ok {
			return entry.credentials, nil
		}

		return nil, err
	}

	c.mu.Lock()
	c.entries[key] = cacheEntry{credentials: credentials, fetchedAt: now}
	c.mu.Unlock()

	return credentials, nil
}

// Invalidate drops every cached channel entry for a company.
func (c *CredentialCache) Invalidate(companyID string) {
	prefix := companyID + "/"

	c.mu.Lock()
	defer c.mu.Unlock()

	for key := range c.entries {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			delete(c.entries, key)
		}
	}
}
