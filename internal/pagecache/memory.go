package pagecache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/conneroisu/frontpage/internal/page"
)

// MemoryStore keeps encoded pages in memory with LRU eviction bounded by
// total encoded size. Entries expire after their TTL.
type MemoryStore struct {
	entries     map[string]*entry
	mutex       sync.Mutex
	maxSize     int64
	currentSize int64
	defaultTTL  time.Duration
	// LRU list with sentinel head and tail
	head *entry
	tail *entry

	hits      int64
	misses    int64
	evictions int64

	now func() time.Time
}

type entry struct {
	key       string
	value     []byte
	expiresAt time.Time
	prev      *entry
	next      *entry
}

// Stats is a point-in-time view of a MemoryStore.
type Stats struct {
	Entries   int
	Size      int64
	MaxSize   int64
	Hits      int64
	Misses    int64
	Evictions int64
}

// NewMemoryStore creates a store holding at most maxSize bytes of encoded
// pages. defaultTTL applies when Set is called with a zero ttl.
func NewMemoryStore(maxSize int64, defaultTTL time.Duration) *MemoryStore {
	s := &MemoryStore{
		entries:    make(map[string]*entry),
		maxSize:    maxSize,
		defaultTTL: defaultTTL,
		head:       &entry{},
		tail:       &entry{},
		now:        time.Now,
	}
	s.head.next = s.tail
	s.tail.prev = s.head
	return s
}

// Get returns the page stored under key.
func (s *MemoryStore) Get(_ context.Context, key string) (*page.CachedPage, error) {
	s.mutex.Lock()
	e, ok := s.entries[key]
	if !ok {
		s.mutex.Unlock()
		atomic.AddInt64(&s.misses, 1)
		return nil, ErrMiss
	}
	if !e.expiresAt.IsZero() && s.now().After(e.expiresAt) {
		s.remove(e)
		s.mutex.Unlock()
		atomic.AddInt64(&s.misses, 1)
		return nil, ErrMiss
	}
	s.moveToFront(e)
	data := e.value
	s.mutex.Unlock()

	p, err := page.DecodeCachedPage(data)
	if err != nil {
		// A record of an older schema is a miss, not a failure.
		atomic.AddInt64(&s.misses, 1)
		return nil, ErrMiss
	}
	atomic.AddInt64(&s.hits, 1)
	return p, nil
}

// Set stores p under key. A record larger than the store is not kept.
func (s *MemoryStore) Set(_ context.Context, key string, p *page.CachedPage, ttl time.Duration) error {
	data, err := p.Encode()
	if err != nil {
		return err
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = s.now().Add(ttl)
	}
	size := int64(len(data))

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if existing, ok := s.entries[key]; ok {
		s.remove(existing)
	}
	if size > s.maxSize {
		return nil
	}
	s.evictIfNeeded(size)

	e := &entry{key: key, value: data, expiresAt: expiresAt}
	s.entries[key] = e
	s.currentSize += size
	s.addToFront(e)
	return nil
}

// Flush drops every entry. Statistics are kept.
func (s *MemoryStore) Flush(context.Context) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.entries = make(map[string]*entry)
	s.currentSize = 0
	s.head.next = s.tail
	s.tail.prev = s.head
	return nil
}

// Stats returns the current statistics.
func (s *MemoryStore) Stats() Stats {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return Stats{
		Entries:   len(s.entries),
		Size:      s.currentSize,
		MaxSize:   s.maxSize,
		Hits:      atomic.LoadInt64(&s.hits),
		Misses:    atomic.LoadInt64(&s.misses),
		Evictions: atomic.LoadInt64(&s.evictions),
	}
}

func (s *MemoryStore) evictIfNeeded(newSize int64) {
	for s.currentSize+newSize > s.maxSize && s.tail.prev != s.head {
		s.remove(s.tail.prev)
		atomic.AddInt64(&s.evictions, 1)
	}
}

func (s *MemoryStore) remove(e *entry) {
	e.prev.next = e.next
	e.next.prev = e.prev
	delete(s.entries, e.key)
	s.currentSize -= int64(len(e.value))
}

func (s *MemoryStore) addToFront(e *entry) {
	e.prev = s.head
	e.next = s.head.next
	s.head.next.prev = e
	s.head.next = e
}

func (s *MemoryStore) moveToFront(e *entry) {
	e.prev.next = e.next
	e.next.prev = e.prev
	s.addToFront(e)
}
