package engine

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaygrid/relaygridgo/internal/cache"
	"github.com/relaygrid/relaygridgo/internal/condition"
	"github.com/relaygrid/relaygridgo/internal/config"
	"github.com/relaygrid/relaygridgo/internal/ctxlog"
	"github.com/relaygrid/relaygridgo/internal/executor"
	"github.com/relaygrid/relaygridgo/internal/model"
	"github.com/relaygrid/relaygridgo/internal/store/backup"
)

func testContext(t *testing.T) context.Context {
	t.Helper()
	return ctxlog.WithLogger(context.Background(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func passiveNode(id string, dependsOn, onSuccess []string) *model.Node {
	return &model.Node{
		ID:                id,
		Equivalence:       model.EquivalenceNone,
		Build:             model.NoOpBuild(),
		DependsOn:         dependsOn,
		OnSuccessActivate: onSuccess,
		History:           model.NewHistory(time.Now()),
	}
}

func newTestEngine(t *testing.T) (*Engine, *cache.Cache) {
	t.Helper()
	ctx := testContext(t)

	s, err := backup.Open(t.TempDir())
	require.NoError(t, err)
	c := cache.New(s, nil)
	require.NoError(t, c.Warm(ctx))

	opts := config.EngineOptions{
		HostTimeoutUpperBound: time.Second,
		MaxSuccessiveAttempts: 10,
		ConcurrentSteps:       2,
		MaxBlockingTime:       time.Second,
		BlockStepTime:         10 * time.Millisecond,
	}
	e := New(s, c, executor.NewRegistry(), condition.New(), opts)
	return e, c
}

// runUntilFinished ticks e up to maxTicks times, stopping as soon as id's
// cached view reaches a terminal status.
func runUntilFinished(t *testing.T, ctx context.Context, e *Engine, c *cache.Cache, id string, maxTicks int) *model.Node {
	t.Helper()
	var n *model.Node
	for i := 0; i < maxTicks; i++ {
		require.NoError(t, e.Tick(ctx))
		var err error
		n, err = c.Get(ctx, id)
		require.NoError(t, err)
		if model.IsTerminal(n.History.Tag) {
			break
		}
	}
	return n
}

func TestTick_S1_NoOpNodeReachesVerifiedSuccess(t *testing.T) {
	ctx := testContext(t)
	e, c := newTestEngine(t)

	n := passiveNode("a", nil, nil)
	require.NoError(t, e.Store.ForceInsertPassive(ctx, n))
	c.Put(n)

	activated := model.Activate(n, model.ByUser(), time.Now())
	_, err := c.Update(ctx, activated)
	require.NoError(t, err)

	got := runUntilFinished(t, ctx, e, c, "a", 10)
	require.NotNil(t, got)
	assert.Equal(t, model.Finished, got.History.Tag)
	assert.Equal(t, model.StatusSuccessful, model.Simplify(got.History))
}

func TestTick_S2_DependencyFailurePropagates(t *testing.T) {
	ctx := testContext(t)
	e, c := newTestEngine(t)

	b := passiveNode("b", nil, nil)
	a := passiveNode("a", []string{"b"}, nil)
	require.NoError(t, e.Store.ForceInsertPassive(ctx, b))
	require.NoError(t, e.Store.ForceInsertPassive(ctx, a))
	c.Put(b)
	c.Put(a)

	for _, id := range []string{"b", "a"} {
		got, err := c.Get(ctx, id)
		require.NoError(t, err)
		activated := model.Activate(got, model.ByUser(), time.Now())
		_, err = c.Update(ctx, activated)
		require.NoError(t, err)
	}

	// Force b straight to a failure terminal so a's dependency check sees
	// a failed predecessor rather than racing b's own no-op success path.
	bNode, err := c.Get(ctx, "b")
	require.NoError(t, err)
	h := bNode.History
	for _, tag := range []model.StateTag{model.EvaluatingCondition, model.Building} {
		h, err = h.Extend(time.Now(), tag, "", nil)
		require.NoError(t, err)
	}
	h, err = h.Extend(time.Now(), model.DependenciesFailed, "forced failure", nil)
	require.NoError(t, err)
	bNode.History = h
	_, err = c.Update(ctx, bNode)
	require.NoError(t, err)

	got := runUntilFinished(t, ctx, e, c, "a", 10)
	require.NotNil(t, got)
	assert.Equal(t, model.Finished, got.History.Tag)
	assert.Equal(t, model.StatusFailed, model.Simplify(got.History))
}

func TestTick_OnSuccessActivatesDownstream(t *testing.T) {
	ctx := testContext(t)
	e, c := newTestEngine(t)

	downstream := passiveNode("b", nil, nil)
	upstream := passiveNode("a", nil, []string{"b"})
	require.NoError(t, e.Store.ForceInsertPassive(ctx, downstream))
	require.NoError(t, e.Store.ForceInsertPassive(ctx, upstream))
	c.Put(downstream)
	c.Put(upstream)

	activated := model.Activate(upstream, model.ByUser(), time.Now())
	_, err := c.Update(ctx, activated)
	require.NoError(t, err)

	runUntilFinished(t, ctx, e, c, "a", 10)

	b, err := c.Get(ctx, "b")
	require.NoError(t, err)
	assert.NotEqual(t, model.Passive, b.History.Tag, "downstream node should have been activated once upstream finished")
}

func TestTick_ReadOnlyMode_NeverMutates(t *testing.T) {
	ctx := testContext(t)
	e, c := newTestEngine(t)
	e.Options.ReadOnlyMode = true

	n := passiveNode("a", nil, nil)
	require.NoError(t, e.Store.ForceInsertPassive(ctx, n))
	c.Put(n)
	activated := model.Activate(n, model.ByUser(), time.Now())
	_, err := c.Update(ctx, activated)
	require.NoError(t, err)

	require.NoError(t, e.Tick(ctx))
	require.NoError(t, e.Tick(ctx))

	got, err := c.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, model.Active, got.History.Tag, "read-only engine must not advance any node")
}
