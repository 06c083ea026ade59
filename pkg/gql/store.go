package gql

import (
	"container/list"
	"sync"
	"time"
)

// StoreConfig bounds the response store.
type StoreConfig struct {
	// TTL is how long a response stays fresh. Default: 5 minutes.
	TTL time.Duration

	// MaxEntries is the LRU capacity. Default: 32.
	MaxEntries int
}

// DefaultStoreConfig returns the default store configuration.
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		TTL:        5 * time.Minute,
		MaxEntries: 32,
	}
}

// storeEntry holds a cached response.
type storeEntry struct {
	key       string
	resp      *Response
	expiresAt time.Time
}

// Store is an LRU cache of query responses keyed by operation name and
// variables.
type Store struct {
	mu      sync.Mutex
	config  StoreConfig
	entries map[string]*list.Element
	order   *list.List // front = most recent
	now     func() time.Time
}

// NewStore creates a response store.
func NewStore(config StoreConfig) *Store {
	def := DefaultStoreConfig()
	if config.TTL <= 0 {
		config.TTL = def.TTL
	}
	if config.MaxEntries <= 0 {
		config.MaxEntries = def.MaxEntries
	}
	return &Store{
		config:  config,
		entries: make(map[string]*list.Element),
		order:   list.New(),
		now:     time.Now,
	}
}

// Key returns the store key for req fetched with vars.
func Key(req *Request, vars Variables) string {
	return req.Name + vars.String()
}

// Get returns a fresh cached response, or nil.
func (s *Store) Get(key string) *Response {
	s.mu.Lock()
	defer s.mu.Unlock()

	elem, ok := s.entries[key]
	if !ok {
		return nil
	}
	entry := elem.Value.(*storeEntry)
	if s.now().After(entry.expiresAt) {
		s.order.Remove(elem)
		delete(s.entries, key)
		return nil
	}
	s.order.MoveToFront(elem)
	return entry.resp
}

// Set stores resp, evicting the least recently used entry when full.
func (s *Store) Set(key string, resp *Response) {
	s.mu.Lock()
	defer s.mu.Unlock()

	expiresAt := s.now().Add(s.config.TTL)

	if elem, ok := s.entries[key]; ok {
		entry := elem.Value.(*storeEntry)
		entry.resp = resp
		entry.expiresAt = expiresAt
		s.order.MoveToFront(elem)
		return
	}

	for s.order.Len() >= s.config.MaxEntries {
		oldest := s.order.Back()
		if oldest == nil {
			break
		}
		s.order.Remove(oldest)
		delete(s.entries, oldest.Value.(*storeEntry).key)
	}

	s.entries[key] = s.order.PushFront(&storeEntry{key: key, resp: resp, expiresAt: expiresAt})
}

// Clear removes all cached responses.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make(map[string]*list.Element)
	s.order = list.New()
}

// Len returns the number of cached responses.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
