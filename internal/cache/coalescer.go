package cache

import (
	"time"

	"github.com/relaygrid/relaygridgo/internal/store"
)

// Clock abstracts wall-clock time so the coalescing window is testable
// without sleeping for real seconds.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Coalescer implements the rate-limited, coalesced change stream: at most
// one batch every MinInterval, with an upper wait of MaxWait before a
// pending batch is forced out regardless of MinInterval; consecutive ids
// within a window are deduplicated to their latest kind; an idle window
// (nothing pending) emits nothing.
type Coalescer struct {
	MinInterval time.Duration
	MaxWait     time.Duration
	Clock       Clock

	pending      map[string]store.ChangeEventKind
	pendingOrder []string
	pendingSince time.Time
	lastEmit     time.Time
}

// NewCoalescer builds a Coalescer; a nil clock uses real wall-clock time.
func NewCoalescer(minInterval, maxWait time.Duration, clock Clock) *Coalescer {
	if clock == nil {
		clock = realClock{}
	}
	return &Coalescer{
		MinInterval: minInterval,
		MaxWait:     maxWait,
		Clock:       clock,
		pending:     make(map[string]store.ChangeEventKind),
	}
}

// Push records kind against every id in ids. An id already pending in this
// window keeps only its latest kind; new_nodes is not overwritten by a
// same-window nodes_changed for the same id, since the node is still new
// from a subscriber's point of view until it has been observed once.
func (c *Coalescer) Push(kind store.ChangeEventKind, ids []string) {
	if len(ids) == 0 {
		return
	}
	if len(c.pending) == 0 {
		c.pendingSince = c.Clock.Now()
	}
	for _, id := range ids {
		existing, seen := c.pending[id]
		if !seen {
			c.pendingOrder = append(c.pendingOrder, id)
			c.pending[id] = kind
			continue
		}
		if existing == store.ChangeNewNodes {
			continue
		}
		c.pending[id] = kind
	}
}

// Ready reports whether a pending batch should be emitted now.
func (c *Coalescer) Ready() bool {
	if len(c.pending) == 0 {
		return false
	}
	if c.lastEmit.IsZero() {
		return true
	}
	now := c.Clock.Now()
	if now.Sub(c.lastEmit) >= c.MinInterval {
		return true
	}
	return now.Sub(c.pendingSince) >= c.MaxWait
}

// Flush emits and clears the current pending batch, grouped by kind in
// first-touched order within the window. Returns nil if nothing is
// pending.
func (c *Coalescer) Flush() []store.ChangeEvent {
	if len(c.pending) == 0 {
		return nil
	}
	groups := make(map[store.ChangeEventKind][]string)
	var kindOrder []store.ChangeEventKind
	for _, id := range c.pendingOrder {
		kind := c.pending[id]
		if _, ok := groups[kind]; !ok {
			kindOrder = append(kindOrder, kind)
		}
		groups[kind] = append(groups[kind], id)
	}

	events := make([]store.ChangeEvent, 0, len(kindOrder))
	for _, kind := range kindOrder {
		events = append(events, store.ChangeEvent{Kind: kind, IDs: groups[kind]})
	}

	c.pending = make(map[string]store.ChangeEventKind)
	c.pendingOrder = nil
	c.lastEmit = c.Clock.Now()
	return events
}
