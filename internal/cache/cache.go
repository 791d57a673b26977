// Modified version of https://github.com/patrickmn/go-cache

package cache

import (
	"sync"
	"time"

	"github.com/pkg/errors"
)

var ErrNotFound = errors.New("item not found")

type Item[V any] struct {
	Object     V
	Expiration int64
	TTL        time.Duration
}

// Returns true if the item has expired.
func (item Item[V]) Expired() bool {
	if item.Expiration == 0 {
		return false
	}
	return time.Now().UnixNano() > item.Expiration
}

const (
	// For use with functions that take an expiration time.
	NoExpiration time.Duration = -1
	// For use with functions that take an expiration time. Equivalent to
	// passing in the same expiration duration as was given to New().
	DefaultExpiration time.Duration = 0
)

type Cache[V any] struct {
	defaultExpiration time.Duration
	items             map[string]Item[V]
	mu                sync.RWMutex
	onEvicted         func(string, V)
	janitor           *janitor
}

func (c *Cache[V]) newItem(x V, d time.Duration) Item[V] {
	if d == DefaultExpiration {
		d = c.defaultExpiration
	}
	var e int64
	if d > 0 {
		e = time.Now().Add(d).UnixNano()
	}
	return Item[V]{Object: x, Expiration: e, TTL: d}
}

// SetWithExpiration adds an item to the cache, replacing any existing item.
// If the duration is 0 (DefaultExpiration), the cache's default expiration
// time is used. If it is -1 (NoExpiration), the item never expires.
func (c *Cache[V]) SetWithExpiration(k string, x V, d time.Duration) {
	c.mu.Lock()
	c.items[k] = c.newItem(x, d)
	c.mu.Unlock()
}

// Set adds an item to the cache using the default expiration.
func (c *Cache[V]) Set(k string, x V) {
	c.SetWithExpiration(k, x, DefaultExpiration)
}

// Get an item from the cache. Returns the item or the zero value, and a
// bool indicating whether the key was found.
func (c *Cache[V]) Get(k string) (val V, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	item, found := c.items[k]
	if !found || item.Expired() {
		return val, false
	}
	return item.Object, true
}

// Touch pushes the expiration of an item forward by its
// original time-to-live. Items that never expire are left alone.
func (c *Cache[V]) Touch(k string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	item, found := c.items[k]
	if !found || item.Expired() {
		return false
	}
	if item.TTL > 0 {
		item.Expiration = time.Now().Add(item.TTL).UnixNano()
		c.items[k] = item
	}
	return true
}

// Modify replaces the value of an existing item with the result of f,
// keeping its expiration.
func (c *Cache[V]) Modify(k string, f func(x V) (V, error)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	item, found := c.items[k]
	if !found || item.Expired() {
		return ErrNotFound
	}
	v, err := f(item.Object)
	if err != nil {
		return err
	}
	item.Object = v
	c.items[k] = item
	return nil
}

// Delete an item from the cache. Does nothing if the key is not in the cache.
func (c *Cache[V]) Delete(k string) {
	c.mu.Lock()
	v, evicted := c.delete(k)
	f := c.onEvicted
	c.mu.Unlock()
	if evicted && f != nil {
		f(k, v)
	}
}

func (c *Cache[V]) delete(k string) (val V, ok bool) {
	item, found := c.items[k]
	if !found {
		return val, false
	}
	delete(c.items, k)
	return item.Object, true
}

type keyAndValue[V any] struct {
	key   string
	value V
}

// DeleteExpired removes all expired items from the cache.
func (c *Cache[V]) DeleteExpired() {
	var evictedItems []keyAndValue[V]
	now := time.Now().UnixNano()
	c.mu.Lock()
	for k, v := range c.items {
		if v.Expiration > 0 && now > v.Expiration {
			ov, evicted := c.delete(k)
			if evicted {
				evictedItems = append(evictedItems, keyAndValue[V]{k, ov})
			}
		}
	}
	f := c.onEvicted
	c.mu.Unlock()
	if f == nil {
		return
	}
	for _, v := range evictedItems {
		f(v.key, v.value)
	}
}

// OnEvicted sets an (optional) function that is called with the key and
// value when an item is evicted from the cache, including when it is
// deleted manually but not when it is overwritten.
func (c *Cache[V]) OnEvicted(f func(string, V)) {
	c.mu.Lock()
	c.onEvicted = f
	c.mu.Unlock()
}

func (c *Cache[V]) Iterate(it func(key string, v V)) {
	c.mu.RLock()
	items := make(map[string]V, len(c.items))
	for k, v := range c.items {
		if v.Expired() {
			continue
		}
		items[k] = v.Object
	}
	c.mu.RUnlock()
	for k, v := range items {
		it(k, v)
	}
}

// ItemCount returns the number of items in the cache. This may include
// items that have expired, but have not yet been cleaned up.
func (c *Cache[V]) ItemCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

func (c *Cache[V]) Close() {
	if c.janitor != nil {
		close(c.janitor.stop)
		c.janitor = nil
	}
}

type janitor struct {
	interval time.Duration
	stop     chan struct{}
}

func (j *janitor) run(deleteExpired func()) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			deleteExpired()
		case <-j.stop:
			return
		}
	}
}

// New returns a new cache with a given default expiration duration and
// cleanup interval. If the expiration duration is less than one (or
// NoExpiration), the items in the cache never expire by default. If the
// cleanup interval is less than one, expired items are only removed by
// calling DeleteExpired.
func New[V any](defaultExpiration, cleanupInterval time.Duration) *Cache[V] {
	if defaultExpiration == 0 {
		defaultExpiration = NoExpiration
	}
	c := &Cache[V]{
		defaultExpiration: defaultExpiration,
		items:             make(map[string]Item[V]),
	}
	if cleanupInterval > 0 {
		c.janitor = &janitor{interval: cleanupInterval, stop: make(chan struct{})}
		go c.janitor.run(c.DeleteExpired)
	}
	return c
}
