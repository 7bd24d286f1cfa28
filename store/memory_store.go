package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store used by unit tests and by task
// handlers exercised without a live Redis.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]*Item // key: PK#SK
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]*Item)}
}

func (s *MemoryStore) Ping(ctx context.Context) error { return nil }
func (s *MemoryStore) Close() error                   { return nil }

func (s *MemoryStore) Put(ctx context.Context, item *Item, cond Condition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := item.PK + "#" + item.SK
	existing, ok := s.items[key]

	if ok && time.Now().Unix() >= existing.TTL && existing.TTL != 0 {
		ok = false
		delete(s.items, key)
	}

	switch cond.kind {
	case conditionExists:
		if !ok {
			return preconditionFailed(item.PK, item.SK)
		}
	case conditionNotExists:
		if ok {
			return preconditionFailed(item.PK, item.SK)
		}
	case conditionAttrEquals:
		if !ok {
			return preconditionFailed(item.PK, item.SK)
		}
		if existing.Data[cond.attr] != cond.wantEquals {
			return preconditionFailed(item.PK, item.SK)
		}
	}

	now := time.Now().Unix()
	cp := item.clone()
	if cp.Crt == 0 {
		if ok {
			cp.Crt = existing.Crt
		} else {
			cp.Crt = now
		}
	}
	cp.Upd = now
	s.items[key] = cp
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, pk, sk string) (*Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[pk+"#"+sk]
	if !ok {
		return nil, notFound(pk, sk)
	}
	if item.TTL != 0 && time.Now().Unix() >= item.TTL {
		return nil, notFound(pk, sk)
	}
	return item.clone(), nil
}

func (s *MemoryStore) Delete(ctx context.Context, pk, sk string, cond Condition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := pk + "#" + sk
	existing, ok := s.items[key]

	switch cond.kind {
	case conditionExists:
		if !ok {
			return preconditionFailed(pk, sk)
		}
	case conditionAttrEquals:
		if !ok || existing.Data[cond.attr] != cond.wantEquals {
			return preconditionFailed(pk, sk)
		}
	}

	delete(s.items, key)
	return nil
}

func (s *MemoryStore) Query(ctx context.Context, pk, skPrefix string, descending bool, limit int, cursorTok string) (*Page, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now().Unix()
	var matched []*Item
	for _, it := range s.items {
		if it.PK != pk || !strings.HasPrefix(it.SK, skPrefix) {
			continue
		}
		if it.TTL != 0 && now >= it.TTL {
			continue
		}
		matched = append(matched, it)
	}
	sort.Slice(matched, func(i, j int) bool {
		if descending {
			return matched[i].SK > matched[j].SK
		}
		return matched[i].SK < matched[j].SK
	})
	return paginateBySK(matched, descending, limit, cursorTok), nil
}

func (s *MemoryStore) QueryIndex(ctx context.Context, index int, pk string, descending bool, limit int, cursorTok string) (*Page, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now().Unix()
	var matched []*Item
	for _, it := range s.items {
		if it.TTL != 0 && now >= it.TTL {
			continue
		}
		switch index {
		case 1:
			if it.GSI1PK == pk {
				matched = append(matched, it)
			}
		case 2:
			if it.GSI2PK == pk {
				matched = append(matched, it)
			}
		case 3:
			if it.GSI3PK == pk {
				matched = append(matched, it)
			}
		}
	}

	sortKey := func(it *Item) string {
		switch index {
		case 1:
			return it.GSI1SK
		case 3:
			return it.GSI3SK
		default:
			return it.SK
		}
	}
	if index != 2 {
		sort.Slice(matched, func(i, j int) bool {
			if descending {
				return sortKey(matched[i]) > sortKey(matched[j])
			}
			return sortKey(matched[i]) < sortKey(matched[j])
		})
	}

	return paginateGeneric(matched, sortKey, descending, limit, cursorTok), nil
}

func (s *MemoryStore) CountIndex(ctx context.Context, index int, pk string) (int64, error) {
	page, err := s.QueryIndex(ctx, index, pk, false, 0, "")
	if err != nil {
		return 0, err
	}
	return int64(len(page.Items)), nil
}

func (s *MemoryStore) CountPK(ctx context.Context, pk string) (int64, error) {
	page, err := s.Query(ctx, pk, "", false, 0, "")
	if err != nil {
		return 0, err
	}
	return int64(len(page.Items)), nil
}

func paginateBySK(items []*Item, descending bool, limit int, cursorTok string) *Page {
	return paginateGeneric(items, func(it *Item) string { return it.SK }, descending, limit, cursorTok)
}

// paginateGeneric applies a resume-after cursor and limit over an
// already-sorted slice. limit<=0 means unlimited.
func paginateGeneric(items []*Item, key func(*Item) string, descending bool, limit int, cursorTok string) *Page {
	start := 0
	if cursorTok != "" {
		if c, ok := decodeCursor(cursorTok); ok {
			for i, it := range items {
				if it.PK+"#"+it.SK == c.member {
					start = i + 1
					break
				}
			}
		}
	}
	if start > len(items) {
		start = len(items)
	}
	rest := items[start:]

	if limit <= 0 || limit >= len(rest) {
		out := make([]*Item, len(rest))
		for i, it := range rest {
			out[i] = it.clone()
		}
		return &Page{Items: out}
	}

	out := make([]*Item, limit)
	for i := 0; i < limit; i++ {
		out[i] = rest[i].clone()
	}
	last := rest[limit-1]
	_ = key
	return &Page{
		Items:  out,
		Cursor: encodeCursor(cursor{member: last.PK + "#" + last.SK}),
	}
}
