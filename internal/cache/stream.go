package cache

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/relaygrid/relaygridgo/internal/store"
)

// pollInterval bounds how promptly the background loop notices a ready
// batch; it is unrelated to the coalescing window itself (MinInterval,
// MaxWait), only to how finely that window is sampled.
const pollInterval = 50 * time.Millisecond

// Stream multiplexes raw change events into the rate-limited, coalesced
// output every subscriber receives. Fan-out is grounded on burstgridgo
// pack's tunnel event bus (kubegems-kubegems's TunnelEventer.Watch): each
// subscriber gets its own buffered channel registered in a sync.Map, and a
// slow reader has events dropped rather than blocking the publisher.
type Stream struct {
	coalescer *Coalescer

	mu       sync.Mutex
	watchers sync.Map // uid -> chan []store.ChangeEvent

	raw chan rawPush
}

type rawPush struct {
	kind store.ChangeEventKind
	ids  []string
}

// NewStream builds a Stream with the given coalescing window. clock is nil
// in production (real time); tests inject a controllable clock.
func NewStream(minInterval, maxWait time.Duration, clock Clock) *Stream {
	return &Stream{
		coalescer: NewCoalescer(minInterval, maxWait, clock),
		raw:       make(chan rawPush, 256),
	}
}

// Publish enqueues a raw change event for coalescing. Safe to call from
// any goroutine; never blocks.
func (s *Stream) Publish(kind store.ChangeEventKind, ids []string) {
	if len(ids) == 0 {
		return
	}
	select {
	case s.raw <- rawPush{kind, ids}:
	default:
		// Raw buffer full under heavy load: fold directly into the
		// coalescing window instead of dropping, since losing a
		// nodes_changed id would desync a watcher's view of the node set.
		s.mu.Lock()
		s.coalescer.Push(kind, ids)
		s.mu.Unlock()
	}
}

// Run drives the coalescing loop until ctx is cancelled. Exactly one Run
// goroutine must be active per Stream.
func (s *Stream) Run(ctx context.Context) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case push := <-s.raw:
			s.mu.Lock()
			s.coalescer.Push(push.kind, push.ids)
			s.mu.Unlock()
		case <-ticker.C:
			s.maybeFlush()
		}
	}
}

func (s *Stream) maybeFlush() {
	s.mu.Lock()
	if !s.coalescer.Ready() {
		s.mu.Unlock()
		return
	}
	events := s.coalescer.Flush()
	s.mu.Unlock()
	if len(events) == 0 {
		return
	}
	s.watchers.Range(func(_, v any) bool {
		ch, _ := v.(chan []store.ChangeEvent)
		select {
		case ch <- events:
		default:
		}
		return true
	})
}

// Subscription is a live handle on the coalesced stream.
type Subscription struct {
	ch     chan []store.ChangeEvent
	cancel func()
}

// C returns the channel new coalesced batches arrive on.
func (sub *Subscription) C() <-chan []store.ChangeEvent { return sub.ch }

// Close stops delivery to this subscription.
func (sub *Subscription) Close() { sub.cancel() }

// Watch registers a new subscriber. Used by the SSE handler, which may
// have many concurrent readers at once.
func (s *Stream) Watch(ctx context.Context) *Subscription {
	uid := uuid.NewString()
	ch := make(chan []store.ChangeEvent, 4)
	s.watchers.Store(uid, ch)

	subCtx, cancel := context.WithCancel(ctx)
	go func() {
		<-subCtx.Done()
		s.watchers.Delete(uid)
	}()
	return &Subscription{ch: ch, cancel: cancel}
}

// NextChange blocks until the next coalesced batch arrives or ctx is
// cancelled — the one-shot counterpart to Watch for a caller that only
// needs a single read.
func (s *Stream) NextChange(ctx context.Context) ([]store.ChangeEvent, error) {
	sub := s.Watch(ctx)
	defer sub.Close()
	select {
	case events := <-sub.C():
		return events, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
