package report

import (
	"container/list"
	"sync"
)

// LRUStore keeps the most recently used batch results in memory and
// delegates persistence and cache misses to a backing Store.
type LRUStore struct {
	mu    sync.Mutex
	cap   int
	back  Store
	order *list.List // of *BatchResult, most recent at front
	items map[string]*list.Element
}

// NewLRUStore creates an LRU cache with the given capacity in front of
// back. Capacity is clamped to at least 1.
func NewLRUStore(cap int, back Store) *LRUStore {
	if cap < 1 {
		cap = 1
	}
	return &LRUStore{
		cap:   cap,
		back:  back,
		order: list.New(),
		items: make(map[string]*list.Element, cap),
	}
}

// Save caches result and writes it through to the backing store.
func (s *LRUStore) Save(result *BatchResult) error {
	s.put(result)
	return s.back.Save(result)
}

// Load returns a cached result, or loads it from the backing store and
// caches it.
func (s *LRUStore) Load(batchID string) (*BatchResult, error) {
	s.mu.Lock()
	if el, ok := s.items[batchID]; ok {
		s.order.MoveToFront(el)
		r := el.Value.(*BatchResult)
		s.mu.Unlock()
		return r, nil
	}
	s.mu.Unlock()

	result, err := s.back.Load(batchID)
	if err != nil {
		return nil, err
	}
	s.put(result)
	return result, nil
}

// Recent returns the cached results, most recently used first.
func (s *LRUStore) Recent() []*BatchResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*BatchResult, 0, s.order.Len())
	for el := s.order.Front(); el != nil; el = el.Next() {
		out = append(out, el.Value.(*BatchResult))
	}
	return out
}

func (s *LRUStore) put(result *BatchResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if el, ok := s.items[result.ID]; ok {
		el.Value = result
		s.order.MoveToFront(el)
		return
	}
	s.items[result.ID] = s.order.PushFront(result)
	for s.order.Len() > s.cap {
		oldest := s.order.Back()
		s.order.Remove(oldest)
		delete(s.items, oldest.Value.(*BatchResult).ID)
	}
}
