package restaurants

import (
	"context"
	"strings"
	"sync"

	"github.com/huandu/go-clone"
)

// MemoryStore keeps restaurants in memory, in insertion order.
type MemoryStore struct {
	mu          sync.RWMutex
	restaurants []Restaurant
	// Err, when set, is returned by every read. Used to simulate an unavailable store.
	Err error
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore(rs ...Restaurant) *MemoryStore {
	s := &MemoryStore{}
	s.Put(rs...)
	return s
}

// Put inserts or replaces restaurants by ID.
func (s *MemoryStore) Put(rs ...Restaurant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range rs {
		r = clone.Clone(r).(Restaurant)
		replaced := false
		for i := range s.restaurants {
			if s.restaurants[i].ID == r.ID {
				s.restaurants[i] = r
				replaced = true
				break
			}
		}
		if !replaced {
			s.restaurants = append(s.restaurants, r)
		}
	}
}

func (s *MemoryStore) ListCuisineTypes(ctx context.Context) ([]string, error) {
	all, err := s.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	return UniqueCuisines(all), nil
}

func (s *MemoryStore) ListByCuisine(ctx context.Context, cuisine string) ([]Restaurant, error) {
	all, err := s.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	var ret []Restaurant
	for _, r := range all {
		if strings.EqualFold(r.CuisineType, cuisine) {
			ret = append(ret, r)
		}
	}
	return ret, nil
}

func (s *MemoryStore) ListAll(ctx context.Context) ([]Restaurant, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Err != nil {
		return nil, s.Err
	}
	return clone.Clone(s.restaurants).([]Restaurant), nil
}
