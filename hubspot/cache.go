package hubspot

import (
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v2"
)

// ContactCache maps lowercased email addresses to HubSpot contact IDs. It is
// bounded in size and entries expire, so a contact merged or deleted on the
// HubSpot side is looked up again eventually even without invalidation
type ContactCache struct {
	c *ttlcache.Cache
}

func NewContactCache(capacity int, ttl time.Duration) *ContactCache {
	c := ttlcache.NewCache()
	c.SetTTL(ttl)
	c.SetCacheSizeLimit(capacity)
	c.SkipTTLExtensionOnHit(true)

	return &ContactCache{c: c}
}

func cacheKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (cc *ContactCache) Get(email string) (string, bool) {
	if cc == nil {
		return "", false
	}

	v, err := cc.c.Get(cacheKey(email))
	if err != nil {
		return "", false
	}

	id, ok := v.(string)
	return id, ok
}

func (cc *ContactCache) Set(email, id string) {
	if cc == nil || id == "" {
		return
	}

	cc.c.Set(cacheKey(email), id)
}

// InvalidateID drops every entry pointing at contact id
func (cc *ContactCache) InvalidateID(id string) {
	if cc == nil {
		return
	}

	for _, k := range cc.c.GetKeys() {
		if v, err := cc.c.Get(k); err == nil && v == id {
			cc.c.Remove(k)
		}
	}
}

func (cc *ContactCache) Len() int {
	if cc == nil {
		return 0
	}

	return cc.c.Count()
}

func (cc *ContactCache) Close() error {
	if cc == nil {
		return nil
	}

	return cc.c.Close()
}
