package cache

import (
	"container/list"
	"sync"
)

// LRUCache keeps recently read changesets in memory, bounded by their
// total byte size. Replicas tend to fetch the same recent versions, so
// eviction is least-recently-used.
type LRUCache struct {
	mu       sync.Mutex
	capacity int
	usage    int
	list     *list.List
	items    map[uint64]*list.Element
}

type entry struct {
	version   uint64
	changeset []byte
}

// NewLRUCache creates a cache holding up to capacity bytes of
// changesets.
func NewLRUCache(capacity int) *LRUCache {
	return &LRUCache{
		capacity: capacity,
		list:     list.New(),
		items:    make(map[uint64]*list.Element),
	}
}

func (c *LRUCache) Get(version uint64) []byte {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[version]; ok {
		c.list.MoveToFront(elem)
		return elem.Value.(*entry).changeset
	}
	return nil
}

func (c *LRUCache) Put(version uint64, changeset []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// A version's changeset never changes once written, but a re-put
	// after trim-and-rewrite scenarios is harmless: take the new bytes.
	if elem, ok := c.items[version]; ok {
		c.list.MoveToFront(elem)
		ent := elem.Value.(*entry)
		c.usage += len(changeset) - len(ent.changeset)
		ent.changeset = changeset
		c.evict()
		return
	}

	elem := c.list.PushFront(&entry{version: version, changeset: changeset})
	c.items[version] = elem
	c.usage += len(changeset)

	c.evict()
}

func (c *LRUCache) evict() {
	for c.usage > c.capacity && c.list.Len() > 0 {
		elem := c.list.Back()
		ent := elem.Value.(*entry)
		c.list.Remove(elem)
		delete(c.items, ent.version)
		c.usage -= len(ent.changeset)
	}
}
