package assets

import (
	"container/list"
	"context"
	"image"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// CacheOptions configures a CachingResolver.
type CacheOptions struct {
	TTL time.Duration

	// MaxEntries caps the number of cached images. Zero means no cap.
	MaxEntries int

	// MaxPixels caps the decoded pixels held across all entries. Images
	// larger than the whole budget are never cached. Zero means no cap.
	MaxPixels int64

	// ResolveTimeout bounds a shared resolution. It runs detached from the
	// caller that started it, so one caller giving up does not fail the
	// others waiting on the same reference.
	ResolveTimeout time.Duration
}

// DefaultCacheOptions returns the options used by the server.
func DefaultCacheOptions() CacheOptions {
	return CacheOptions{
		TTL:            10 * time.Minute,
		MaxEntries:     64,
		MaxPixels:      200_000_000,
		ResolveTimeout: 30 * time.Second,
	}
}

// CachingResolver keeps decoded images in memory for a TTL, evicting the
// least recently used entry once a limit is reached. Concurrent requests
// for the same reference share one resolution. Failures and inline data
// URLs are not cached.
type CachingResolver struct {
	next ImageResolver
	opts CacheOptions

	mu      sync.Mutex
	data    map[string]*list.Element
	lru     *list.List
	pixels  int64
	group   singleflight.Group
	cleanup *time.Ticker
	done    chan struct{}
	once    sync.Once
}

// cacheEntry represents a cache entry with expiration
type cacheEntry struct {
	ref        string
	img        image.Image
	pixels     int64
	expiration time.Time
}

// NewCachingResolver wraps next. Call Close to stop the cleanup goroutine.
func NewCachingResolver(next ImageResolver, opts CacheOptions) *CachingResolver {
	defaults := DefaultCacheOptions()
	if opts.TTL <= 0 {
		opts.TTL = defaults.TTL
	}
	if opts.ResolveTimeout <= 0 {
		opts.ResolveTimeout = defaults.ResolveTimeout
	}

	cache := &CachingResolver{
		next:    next,
		opts:    opts,
		data:    make(map[string]*list.Element),
		lru:     list.New(),
		cleanup: time.NewTicker(time.Minute),
		done:    make(chan struct{}),
	}

	go cache.cleanupLoop()

	return cache
}

// Resolve returns the cached image for ref or resolves it through the
// wrapped resolver. ctx only bounds how long this caller waits.
func (c *CachingResolver) Resolve(ctx context.Context, ref string) (image.Image, error) {
	if isDataURL(ref) {
		return c.next.Resolve(ctx, ref)
	}
	if img, ok := c.get(ref); ok {
		return img, nil
	}

	ch := c.group.DoChan(ref, func() (interface{}, error) {
		if img, ok := c.get(ref); ok {
			return img, nil
		}
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.opts.ResolveTimeout)
		defer cancel()

		img, err := c.next.Resolve(rctx, ref)
		if err != nil {
			return nil, err
		}
		c.set(ref, img)
		return img, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(image.Image), nil
	case <-ctx.Done():
		return nil, &DecodeError{Ref: Redact(ref), Err: ctx.Err()}
	}
}

func (c *CachingResolver) get(ref string) (image.Image, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.data[ref]
	if !ok {
		return nil, false
	}
	entry := elem.Value.(*cacheEntry)
	if time.Now().After(entry.expiration) {
		c.removeElement(elem)
		return nil, false
	}
	c.lru.MoveToFront(elem)
	return entry.img, true
}

func (c *CachingResolver) set(ref string, img image.Image) {
	b := img.Bounds()
	pixels := int64(b.Dx()) * int64(b.Dy())
	if c.opts.MaxPixels > 0 && pixels > c.opts.MaxPixels {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.data[ref]; ok {
		c.removeElement(elem)
	}
	c.data[ref] = c.lru.PushFront(&cacheEntry{
		ref:        ref,
		img:        img,
		pixels:     pixels,
		expiration: time.Now().Add(c.opts.TTL),
	})
	c.pixels += pixels

	for c.overBudget() {
		c.removeElement(c.lru.Back())
	}
}

func (c *CachingResolver) overBudget() bool {
	if c.lru.Len() == 0 {
		return false
	}
	return (c.opts.MaxEntries > 0 && c.lru.Len() > c.opts.MaxEntries) ||
		(c.opts.MaxPixels > 0 && c.pixels > c.opts.MaxPixels)
}

// removeElement must be called with mu held.
func (c *CachingResolver) removeElement(elem *list.Element) {
	entry := c.lru.Remove(elem).(*cacheEntry)
	delete(c.data, entry.ref)
	c.pixels -= entry.pixels
}

// Forget drops ref from the cache.
func (c *CachingResolver) Forget(ref string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.data[ref]; ok {
		c.removeElement(elem)
	}
}

// Size returns the number of entries in the cache
func (c *CachingResolver) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.data)
}

// Close stops the cleanup goroutine. The resolver keeps working.
func (c *CachingResolver) Close() {
	c.once.Do(func() {
		c.cleanup.Stop()
		close(c.done)
	})
}

// cleanupLoop periodically removes expired entries
func (c *CachingResolver) cleanupLoop() {
	for {
		select {
		case <-c.cleanup.C:
			c.removeExpired()
		case <-c.done:
			return
		}
	}
}

func (c *CachingResolver) removeExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for elem := c.lru.Back(); elem != nil; {
		prev := elem.Prev()
		if now.After(elem.Value.(*cacheEntry).expiration) {
			c.removeElement(elem)
		}
		elem = prev
	}
}

func isDataURL(ref string) bool {
	return len(ref) >= 5 && strings.EqualFold(ref[:5], "data:")
}
