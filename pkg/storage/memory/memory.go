// Package memory provides an in-memory implementation of
// transport.RecordStore for tests and single-instance deployments. Records
// are lost when the process restarts. Optional LRU eviction limits memory
// usage.
package memory

import (
	"container/list"
	"context"
	"sort"
	"sync"

	"github.com/rhuss/scoregate/pkg/api"
	"github.com/rhuss/scoregate/pkg/storage"
	"github.com/rhuss/scoregate/pkg/transport"
)

// entry holds a stored record and its metadata.
type entry struct {
	rec      api.ConversionRecord
	tenantID string
	seq      uint64        // insertion order, newest is highest
	lruElem  *list.Element // position in LRU list
}

// Store is an in-memory RecordStore with optional LRU eviction.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry
	lruList *list.List // front = newest, back = oldest
	maxSize int        // 0 = unlimited
	nextSeq uint64
}

// Ensure Store implements transport.RecordStore at compile time.
var _ transport.RecordStore = (*Store)(nil)

// New creates a new in-memory store. If maxSize is 0, the store grows
// without limit. If maxSize > 0, the oldest record is evicted when the
// limit is reached.
func New(maxSize int) *Store {
	return &Store{
		entries: make(map[string]*entry),
		lruList: list.New(),
		maxSize: maxSize,
	}
}

// SaveRecord stores a copy of rec under the tenant in ctx.
func (s *Store) SaveRecord(ctx context.Context, rec *api.ConversionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[rec.ID]; exists {
		return storage.ErrConflict
	}

	if s.maxSize > 0 && len(s.entries) >= s.maxSize {
		s.evictOldest()
	}

	s.nextSeq++
	elem := s.lruList.PushFront(rec.ID)
	s.entries[rec.ID] = &entry{
		rec:      *rec,
		tenantID: storage.TenantFromContext(ctx),
		seq:      s.nextSeq,
		lruElem:  elem,
	}

	return nil
}

// GetRecord retrieves a record by ID. Scoped by tenant when a tenant is
// present in the context.
func (s *Store) GetRecord(ctx context.Context, id string) (*api.ConversionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[id]
	if !ok || !storage.Visible(ctx, e.tenantID) {
		return nil, storage.ErrNotFound
	}

	rec := e.rec
	return &rec, nil
}

// ListRecords returns records newest first, filtered by tenant and
// optionally by status, with cursor-based pagination.
func (s *Store) ListRecords(ctx context.Context, opts transport.ListOptions) (*api.RecordList, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matches []*entry
	for _, e := range s.entries {
		if !storage.Visible(ctx, e.tenantID) {
			continue
		}
		if opts.Status != "" && e.rec.Status != opts.Status {
			continue
		}
		matches = append(matches, e)
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].seq > matches[j].seq
	})

	if opts.After != "" {
		idx := -1
		for i, e := range matches {
			if e.rec.ID == opts.After {
				idx = i
				break
			}
		}
		if idx >= 0 {
			matches = matches[idx+1:]
		} else {
			matches = nil
		}
	}

	limit := opts.EffectiveLimit()
	hasMore := len(matches) > limit
	if hasMore {
		matches = matches[:limit]
	}

	result := &api.RecordList{
		Object:  "list",
		Data:    make([]*api.ConversionRecord, 0, len(matches)),
		HasMore: hasMore,
	}
	for _, e := range matches {
		rec := e.rec
		result.Data = append(result.Data, &rec)
	}
	if len(result.Data) > 0 {
		result.FirstID = result.Data[0].ID
		result.LastID = result.Data[len(result.Data)-1].ID
	}

	return result, nil
}

// HealthCheck always returns nil for the in-memory store.
func (s *Store) HealthCheck(_ context.Context) error {
	return nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error {
	return nil
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// evictOldest removes the least recently inserted record.
// Must be called with s.mu held.
func (s *Store) evictOldest() {
	back := s.lruList.Back()
	if back == nil {
		return
	}

	id := back.Value.(string)
	s.lruList.Remove(back)
	delete(s.entries, id)
}
