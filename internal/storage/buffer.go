package storage

import (
	"sort"
	"sync"
)

// DefaultCacheSize is the default number of pages kept by the buffer pool.
const DefaultCacheSize = 256

// BufferPool caches pages with LRU eviction. Dirty pages are never evicted,
// and while the pool is held (during an update) no page is evicted at all,
// so every page handed out during one operation stays the single in-memory
// copy of that page until the operation flushes or discards.
type BufferPool struct {
	capacity int
	pages    map[PageID]*Page
	lru      *LRUCache
	held     bool
	hits     uint64
	misses   uint64
	mu       sync.Mutex
}

// NewBufferPool creates a buffer pool holding up to capacity clean pages.
// A capacity of 0 keeps pages only for the duration of an update.
func NewBufferPool(capacity int) *BufferPool {
	if capacity < 0 {
		capacity = 0
	}
	return &BufferPool{
		capacity: capacity,
		pages:    make(map[PageID]*Page),
		lru:      NewLRUCache(),
	}
}

// Get returns the cached copy of a page.
func (bp *BufferPool) Get(id PageID) (*Page, bool) {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	page, exists := bp.pages[id]
	if !exists {
		bp.misses++
		return nil, false
	}
	bp.hits++
	bp.lru.Access(id)
	return page, true
}

// Put adds or replaces a page and evicts clean pages over capacity.
func (bp *BufferPool) Put(page *Page) {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	bp.pages[page.id] = page
	bp.lru.Access(page.id)
	bp.trimLocked()
}

// Hold suspends eviction until Release.
func (bp *BufferPool) Hold() {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	bp.held = true
}

// Release resumes eviction and trims the pool back to capacity.
func (bp *BufferPool) Release() {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	bp.held = false
	bp.trimLocked()
}

// IsHeld reports whether eviction is suspended.
func (bp *BufferPool) IsHeld() bool {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	return bp.held
}

// trimLocked evicts clean pages until the pool fits its capacity.
func (bp *BufferPool) trimLocked() {
	if bp.held {
		return
	}
	for len(bp.pages) > bp.capacity {
		victim, ok := bp.lru.Victim(func(id PageID) bool {
			return !bp.pages[id].dirty
		})
		if !ok {
			return
		}
		delete(bp.pages, victim)
		bp.lru.Remove(victim)
	}
}

// DirtyPages returns the dirty pages ordered by page ID.
func (bp *BufferPool) DirtyPages() []*Page {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	dirty := make([]*Page, 0)
	for _, page := range bp.pages {
		if page.dirty {
			dirty = append(dirty, page)
		}
	}
	sort.Slice(dirty, func(i, j int) bool { return dirty[i].id < dirty[j].id })
	return dirty
}

// MarkClean clears the dirty flag of the given pages after they were written.
func (bp *BufferPool) MarkClean(pages []*Page) {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	for _, page := range pages {
		page.dirty = false
	}
}

// DiscardDirty drops every dirty page so the next access rereads the file.
// It returns the number of pages dropped.
func (bp *BufferPool) DiscardDirty() int {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	dropped := 0
	for id, page := range bp.pages {
		if page.dirty {
			delete(bp.pages, id)
			bp.lru.Remove(id)
			dropped++
		}
	}
	return dropped
}

// Contains checks if a page is cached.
func (bp *BufferPool) Contains(id PageID) bool {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	_, exists := bp.pages[id]
	return exists
}

// Size returns the number of cached pages.
func (bp *BufferPool) Size() int {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	return len(bp.pages)
}

// Capacity returns the configured capacity.
func (bp *BufferPool) Capacity() int {
	return bp.capacity
}

// Clear drops every cached page, dirty or not.
func (bp *BufferPool) Clear() {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	bp.pages = make(map[PageID]*Page)
	bp.lru.Clear()
	bp.held = false
}

// BufferPoolStats contains statistics about the buffer pool.
type BufferPoolStats struct {
	Capacity   int
	Size       int
	DirtyPages int
	Hits       uint64
	Misses     uint64
}

// Stats returns current buffer pool statistics.
func (bp *BufferPool) Stats() BufferPoolStats {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	dirty := 0
	for _, page := range bp.pages {
		if page.dirty {
			dirty++
		}
	}
	return BufferPoolStats{
		Capacity:   bp.capacity,
		Size:       len(bp.pages),
		DirtyPages: dirty,
		Hits:       bp.hits,
		Misses:     bp.misses,
	}
}
