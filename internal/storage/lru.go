package storage

import "container/list"

// LRUCache tracks page access order for buffer pool eviction.
type LRUCache struct {
	list    *list.List
	entries map[PageID]*list.Element
}

// NewLRUCache creates a new LRU cache.
func NewLRUCache() *LRUCache {
	return &LRUCache{
		list:    list.New(),
		entries: make(map[PageID]*list.Element),
	}
}

// Access marks a page as most recently used, adding it if absent.
func (c *LRUCache) Access(pageID PageID) {
	if elem, exists := c.entries[pageID]; exists {
		c.list.MoveToFront(elem)
		return
	}
	c.entries[pageID] = c.list.PushFront(pageID)
}

// Remove removes a page from the LRU cache.
func (c *LRUCache) Remove(pageID PageID) {
	if elem, exists := c.entries[pageID]; exists {
		c.list.Remove(elem)
		delete(c.entries, pageID)
	}
}

// Victim returns the least recently used page accepted by canEvict.
func (c *LRUCache) Victim(canEvict func(PageID) bool) (PageID, bool) {
	for elem := c.list.Back(); elem != nil; elem = elem.Prev() {
		id := elem.Value.(PageID)
		if canEvict(id) {
			return id, true
		}
	}
	return InvalidPageID, false
}

// Contains checks if a page is tracked.
func (c *LRUCache) Contains(pageID PageID) bool {
	_, exists := c.entries[pageID]
	return exists
}

// Len returns the number of tracked pages.
func (c *LRUCache) Len() int {
	return c.list.Len()
}

// Clear removes all entries.
func (c *LRUCache) Clear() {
	c.list.Init()
	c.entries = make(map[PageID]*list.Element)
}

// Order returns tracked page IDs from most to least recently used.
func (c *LRUCache) Order() []PageID {
	result := make([]PageID, 0, c.list.Len())
	for elem := c.list.Front(); elem != nil; elem = elem.Next() {
		result = append(result, elem.Value.(PageID))
	}
	return result
}
