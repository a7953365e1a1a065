package cache

import (
	"context"
	"testing"
	"time"

	"github.com/relaygrid/relaygridgo/internal/store"
	"github.com/stretchr/testify/require"
)

func TestStream_NextChangeDeliversCoalescedBatch(t *testing.T) {
	s := NewStream(50*time.Millisecond, 20*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	s.Publish(store.ChangeNewNodes, []string{"a"})

	waitCtx, waitCancel := context.WithTimeout(ctx, time.Second)
	defer waitCancel()
	events, err := s.NextChange(waitCtx)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, []string{"a"}, events[0].IDs)
}

func TestStream_WatchStopsDeliveryAfterClose(t *testing.T) {
	s := NewStream(50*time.Millisecond, 20*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	sub := s.Watch(ctx)
	sub.Close()

	s.Publish(store.ChangeNodesChanged, []string{"b"})
	select {
	case <-sub.C():
		t.Fatal("closed subscription must not receive further events")
	case <-time.After(200 * time.Millisecond):
	}
}
