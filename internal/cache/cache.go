// Package cache is the C4 hot view and change stream: an in-memory map of
// every active or passive node, warmed at startup and kept current as the
// engine commits, plus the rate-limited coalesced stream built on top of
// it.
package cache

import (
	"context"
	"sync"

	"github.com/relaygrid/relaygridgo/internal/model"
	"github.com/relaygrid/relaygridgo/internal/store"
)

// Cache holds every node whose engine status is active or passive.
// Grounded on burstgridgo's InMemoryModelCache
// (kubegems-kubegems/pkg/service/models/cache/model_cache_memory.go): a
// plain map guarded by sync.RWMutex, populated by a one-shot warm pass
// from the backing store and kept current by targeted per-id upserts
// rather than full reloads on every change.
type Cache struct {
	store store.Store

	mu    sync.RWMutex
	nodes map[string]*model.Node

	Stream *Stream
}

// New builds a Cache backed by s. stream may be nil if the caller doesn't
// need the change stream (e.g. a one-off tool using the cache for lookups
// only).
func New(s store.Store, stream *Stream) *Cache {
	return &Cache{store: s, nodes: make(map[string]*model.Node), Stream: stream}
}

// Warm populates the cache from every currently active or passive node.
// Call once at startup before serving traffic.
func (c *Cache) Warm(ctx context.Context) error {
	nodes, err := c.store.AllActiveAndPassive(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, n := range nodes {
		c.nodes[n.ID] = n
	}
	return nil
}

// Get consults the cache first. A miss (finished nodes are never warmed or
// kept, since they're no longer "hot") falls through to the store, which
// applies the same pointer-chasing bound.
func (c *Cache) Get(ctx context.Context, id string) (*model.Node, error) {
	c.mu.RLock()
	n, ok := c.nodes[id]
	c.mu.RUnlock()
	if ok {
		return n, nil
	}
	return c.store.Get(ctx, id)
}

// Update writes through the store first, then reflects the committed node
// into the cache and publishes its change event — inserted or refreshed if
// still active or passive, evicted once it reaches a finished status.
func (c *Cache) Update(ctx context.Context, node *model.Node) (store.ChangeEvent, error) {
	event, err := c.store.Update(ctx, node)
	if err != nil {
		return store.ChangeEvent{}, err
	}
	c.Put(node)
	c.Publish(event.Kind, event.IDs)
	return event, nil
}

// Put inserts or refreshes node directly, bypassing the store — used by
// the engine after a drain step already committed through store.Store and
// only needs the cache brought up to date.
func (c *Cache) Put(node *model.Node) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch model.Compress(node.SimplifiedStatus()) {
	case model.EngineStatusActive, model.EngineStatusPassive:
		c.nodes[node.ID] = node
	default:
		delete(c.nodes, node.ID)
	}
}

// Evict removes id from the cache outright.
func (c *Cache) Evict(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.nodes, id)
}

// ActiveIDs returns the ids of every cached node whose simplified status
// is in-progress — the set the engine loop's advance-actives step iterates
// each tick. Passive nodes are cached too (for dependency lookups) but are
// excluded here since they have nothing to advance.
func (c *Cache) ActiveIDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]string, 0, len(c.nodes))
	for id, n := range c.nodes {
		if model.Compress(n.SimplifiedStatus()) == model.EngineStatusActive {
			ids = append(ids, id)
		}
	}
	return ids
}

// Publish forwards a raw change event to the stream without touching
// cache contents, for callers (DrainAdds/DrainKills) that update the
// cache themselves via Put for every node in the batch.
func (c *Cache) Publish(kind store.ChangeEventKind, ids []string) {
	if c.Stream != nil {
		c.Stream.Publish(kind, ids)
	}
}
