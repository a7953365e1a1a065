// Package engine is the C5 tick loop: the single logical loop that drains
// the kill and add queues, advances every in-progress node by one step,
// and sleeps until the next tick or an external wake-up. It is the only
// component that calls both the planner and an executor; everything the
// planner decided as a pure function of a node's history is carried out
// here, and the resulting callback is folded back through planner.Apply.
//
// Grounded on burstgridgo's internal/dag.Executor worker-pool loop
// (readyChan, a bounded goroutine pool, sync.WaitGroup): advanceActives
// reuses the same fixed-concurrency shape, rebuilt on
// golang.org/x/sync/errgroup's SetLimit instead of a hand-rolled
// channel-and-WaitGroup pool, generalized from "run a DAG of one-shot
// steps to completion" to "advance every long-lived node by one step,
// forever".
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/relaygrid/relaygridgo/internal/cache"
	"github.com/relaygrid/relaygridgo/internal/condition"
	"github.com/relaygrid/relaygridgo/internal/config"
	"github.com/relaygrid/relaygridgo/internal/ctxlog"
	"github.com/relaygrid/relaygridgo/internal/executor"
	"github.com/relaygrid/relaygridgo/internal/metrics"
	"github.com/relaygrid/relaygridgo/internal/model"
	"github.com/relaygrid/relaygridgo/internal/planner"
	"github.com/relaygrid/relaygridgo/internal/store"
)

// Engine drives the tick loop against a store, a warm cache, and the
// executor plugins registered for every node's Build.PluginName.
type Engine struct {
	Store     store.Store
	Cache     *cache.Cache
	Executors *executor.Registry
	Evaluator *condition.Evaluator
	Options   config.EngineOptions

	mu         sync.Mutex
	noProgress map[string]int
}

// New builds an Engine. The cache must already be warmed (cache.Warm)
// before the first tick runs.
func New(s store.Store, c *cache.Cache, reg *executor.Registry, ev *condition.Evaluator, opts config.EngineOptions) *Engine {
	return &Engine{
		Store:      s,
		Cache:      c,
		Executors:  reg,
		Evaluator:  ev,
		Options:    opts,
		noProgress: make(map[string]int),
	}
}

// Run drives Tick on a block_step_time cadence until ctx is cancelled,
// waking early whenever wake is signaled (an add-nodes or kill request
// landed). A nil wake channel is fine for a standalone process with no
// external submitters.
func (e *Engine) Run(ctx context.Context, wake <-chan struct{}) error {
	logger := ctxlog.FromContext(ctx)
	interval := e.Options.BlockStepTime
	if interval <= 0 {
		interval = 3 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := e.Tick(ctx); err != nil {
			logger.Error("engine: tick failed.", "error", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-wake:
		case <-ticker.C:
		}
	}
}

// Tick runs exactly one pass of the loop's three mutating steps: drain
// kills, drain adds, advance actives (Run does the waiting between ticks). In read-only mode none of the three mutating
// steps run at all — the process only ever serves reads off the cache and
// store, the way a standby replica would.
func (e *Engine) Tick(ctx context.Context) error {
	if e.Options.ReadOnlyMode {
		return nil
	}
	start := time.Now()
	defer func() { metrics.ObserveTick(time.Since(start)) }()

	if err := e.drainKills(ctx); err != nil {
		return fmt.Errorf("engine: drain kills: %w", err)
	}
	if err := e.drainAdds(ctx); err != nil {
		return fmt.Errorf("engine: drain adds: %w", err)
	}
	if err := e.advanceActives(ctx); err != nil {
		return fmt.Errorf("engine: advance actives: %w", err)
	}
	metrics.SetActiveNodes(len(e.Cache.ActiveIDs()))
	return nil
}

func (e *Engine) drainKills(ctx context.Context) error {
	events, err := e.Store.DrainKills(ctx)
	if err != nil {
		return err
	}
	metrics.SetQueueDepth("kill", countIDs(events))
	e.refreshCache(ctx, events)
	return nil
}

func (e *Engine) drainAdds(ctx context.Context) error {
	events, err := e.Store.DrainAdds(ctx, equivalenceFold)
	if err != nil {
		return err
	}
	metrics.SetQueueDepth("add", countIDs(events))
	e.refreshCache(ctx, events)
	return nil
}

// countIDs sums the ids named across a drain's change events: every node
// a drained add batch stored, and every node a drained kill set actually
// moved to killing. It is not the number of queue entries drained; ids in
// a kill set that were not killable are not counted.
func countIDs(events []store.ChangeEvent) int {
	n := 0
	for _, ev := range events {
		n += len(ev.IDs)
	}
	return n
}

// equivalenceFold is the pure batch-to-stored-rows translation DrainAdds
// calls back into: model.DedupeBatch does the actual equivalence fold,
// this just reshapes its decisions into the wire form the store commits.
func equivalenceFold(existing []*model.Node, batch model.AddBatch) ([]*model.StoredNode, error) {
	decisions := model.DedupeBatch(existing, batch.Nodes)
	out := make([]*model.StoredNode, 0, len(decisions))
	for _, d := range decisions {
		if d.PointerTo != "" {
			out = append(out, &model.StoredNode{ID: d.Node.ID, PointerTo: d.PointerTo})
			continue
		}
		out = append(out, &model.StoredNode{ID: d.Node.ID, Inline: d.Node})
	}
	return out, nil
}

// refreshCache brings the cache's view of every id named in events up to
// date with what the store just committed, then forwards the events to
// the change stream. Drain operations commit through the store directly
// (not through Cache.Update), so the cache would otherwise go stale.
func (e *Engine) refreshCache(ctx context.Context, events []store.ChangeEvent) {
	logger := ctxlog.FromContext(ctx)
	for _, ev := range events {
		for _, id := range ev.IDs {
			n, err := e.Store.Get(ctx, id)
			if err != nil {
				logger.Error("engine: refresh cache after drain.", "id", id, "error", err)
				continue
			}
			e.Cache.Put(n)
		}
		e.Cache.Publish(ev.Kind, ev.IDs)
	}
}

// advanceActives iterates every currently active node and advances it by
// one step, bounded to Options.ConcurrentSteps concurrent dispatches, the
// way burstgridgo's dag.Executor bounds its worker pool to numWorkers. The
// whole phase is bounded by max_blocking_time: individual executor calls
// are already clamped by host_timeout_upper_bound, but a tick with many
// slow-but-not-yet-timed-out calls in flight must not block the next
// tick's kill/add drains forever.
func (e *Engine) advanceActives(ctx context.Context) error {
	ids := e.Cache.ActiveIDs()
	if len(ids) == 0 {
		return nil
	}

	blockCtx, cancel := context.WithTimeout(ctx, maxOr(e.Options.MaxBlockingTime, 300*time.Second))
	defer cancel()

	workers := e.Options.ConcurrentSteps
	if workers <= 0 {
		workers = 1
	}
	g, gctx := errgroup.WithContext(blockCtx)
	g.SetLimit(workers)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			e.advanceOne(gctx, id)
			return nil
		})
	}
	return g.Wait()
}

func maxOr(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}

// advanceOne runs exactly one plan/dispatch/apply cycle for node id. Every
// error is logged and swallowed rather than propagated: one node's
// transient failure must never stall the rest of the active set, matching
// the taxonomy's rule that database and executor errors are recoverable
// at the node level, not process-fatal.
func (e *Engine) advanceOne(ctx context.Context, id string) {
	logger := ctxlog.FromContext(ctx)

	n, err := e.Cache.Get(ctx, id)
	if err != nil {
		logger.Error("engine: advance: lookup failed.", "id", id, "error", err)
		return
	}

	action := planner.Plan(n)
	result, err := e.dispatch(ctx, n, action)
	if err != nil {
		logger.Error("engine: advance: dispatch failed.", "id", id, "action", action.Kind, "error", err)
		return
	}
	result = e.enforceAttemptBound(n, action, result)

	updated, progress, err := planner.Apply(n, action, result, time.Now())
	if err != nil {
		logger.Error("engine: advance: apply rejected transition.", "id", id, "error", err)
		return
	}

	if progress == planner.Unchanged {
		e.bumpNoProgress(id)
		return
	}
	e.resetNoProgress(id)

	if _, err := e.Cache.Update(ctx, updated); err != nil {
		logger.Error("engine: advance: commit failed.", "id", id, "error", err)
		return
	}

	if updated.History.Tag == model.Finished {
		ids := updated.OnFailureActivate
		outcome := "failed"
		if model.Simplify(updated.History) == model.StatusSuccessful {
			ids = updated.OnSuccessActivate
			outcome = "successful"
		}
		metrics.ObserveNodeFinished(outcome)
		e.activateTargets(ctx, updated.ID, ids)
	}
}

// dispatch carries out action against the matching executor operation (or
// the condition evaluator, or the engine's own dependency-status check),
// bounded by host_timeout_upper_bound. Inline actions need no dispatch at
// all: the planner already decided the result.
func (e *Engine) dispatch(ctx context.Context, n *model.Node, action planner.Action) (planner.Result, error) {
	if action.Inline {
		return action.InlineResult, nil
	}

	callCtx, cancel := context.WithTimeout(ctx, maxOr(e.Options.HostTimeoutUpperBound, 60*time.Second))
	defer cancel()

	switch action.Kind {
	case planner.CheckDeps:
		return e.checkDeps(ctx, n), nil

	case planner.EvalCondition:
		return e.Evaluator.Evaluate(callCtx, action.Condition), nil

	case planner.StartRunning:
		ex, ok := e.Executors.Lookup(n.Build.PluginName)
		if !ok {
			return planner.FatalError(fmt.Sprintf("engine: no executor registered for plugin %q", n.Build.PluginName), nil), nil
		}
		return timedExecutorCall(n.Build.PluginName, "start", func() planner.Result {
			return ex.Start(callCtx, n.Build.RunParameters)
		}), nil

	case planner.CheckProcess:
		ex, ok := e.Executors.Lookup(n.Build.PluginName)
		if !ok {
			return planner.FatalError(fmt.Sprintf("engine: no executor registered for plugin %q", n.Build.PluginName), action.Book), nil
		}
		return timedExecutorCall(n.Build.PluginName, "check", func() planner.Result {
			return ex.Check(callCtx, action.Book)
		}), nil

	case planner.KillAction:
		ex, ok := e.Executors.Lookup(n.Build.PluginName)
		if !ok {
			return planner.FatalError(fmt.Sprintf("engine: no executor registered for plugin %q", n.Build.PluginName), action.Book), nil
		}
		return timedExecutorCall(n.Build.PluginName, "kill", func() planner.Result {
			return ex.Kill(callCtx, action.Book)
		}), nil

	default:
		return planner.Result{}, fmt.Errorf("engine: action kind %q requires no dispatch but was not inline", action.Kind)
	}
}

// timedExecutorCall wraps a single executor RPC with the latency/error
// instrumentation every call site above needs identically.
func timedExecutorCall(pluginName, operation string, call func() planner.Result) planner.Result {
	start := time.Now()
	result := call()
	metrics.ObserveExecutorCall(pluginName, operation, time.Since(start), result.Severity == planner.Fatal)
	return result
}

// checkDeps is the engine-side computation CheckDeps needs: the planner
// names the dependency ids but cannot itself consult the cache, so the
// engine resolves each one's simplified status here and folds the result
// into the same tri-valued shape every other dispatch produces.
func (e *Engine) checkDeps(ctx context.Context, n *model.Node) planner.Result {
	logger := ctxlog.FromContext(ctx)
	var failed []string
	ready := true
	for _, depID := range n.DependsOn {
		dep, err := e.Cache.Get(ctx, depID)
		if err != nil {
			logger.Warn("engine: check deps: dependency lookup failed.", "id", n.ID, "dep", depID, "error", err)
			return planner.RecoverableError(fmt.Sprintf("dependency %q temporarily unavailable: %v", depID, err), nil)
		}
		switch model.Simplify(dep.History) {
		case model.StatusSuccessful:
		case model.StatusFailed:
			failed = append(failed, depID)
			ready = false
		default:
			ready = false
		}
	}
	if len(failed) > 0 {
		return planner.Result{Severity: planner.OK, FailedDepIDs: failed}
	}
	return planner.Result{Severity: planner.OK, DepsReady: ready}
}

// activateTargets activates every id named by sourceID's
// on_success_activate/on_failure_activate list. sourceID is the node that
// just reached its terminal state and is finishing; a target already past
// Passive is left alone rather than re-activated, since two different
// finishing nodes may name the same downstream target.
func (e *Engine) activateTargets(ctx context.Context, sourceID string, ids []string) {
	logger := ctxlog.FromContext(ctx)
	now := time.Now()
	for _, id := range ids {
		n, err := e.Cache.Get(ctx, id)
		if err != nil {
			logger.Error("engine: activate target: lookup failed.", "id", id, "error", err)
			continue
		}
		if model.Simplify(n.History) != model.StatusActivable {
			continue
		}
		activated := model.Activate(n, model.ByDependency(sourceID), now)
		if _, err := e.Cache.Update(ctx, activated); err != nil {
			logger.Error("engine: activate target: commit failed.", "id", id, "error", err)
		}
	}
}

// enforceAttemptBound caps consecutive recoverable-error retries at
// max_successive_attempts, escalating to the matching fatal severity once
// exceeded. Most action kinds self-loop on a recoverable error (the new
// history entry's Attempts counter tracks it directly); evaluating the
// entry condition is the one exception — a recoverable error there leaves
// history unchanged entirely, so the engine tracks its own per-node
// no-progress counter for that case alone.
func (e *Engine) enforceAttemptBound(n *model.Node, action planner.Action, result planner.Result) planner.Result {
	if result.Severity != planner.Recoverable {
		return result
	}
	max := e.Options.MaxSuccessiveAttempts
	if max <= 0 {
		return result
	}

	attempts := n.History.Attempts
	if action.Kind == planner.EvalCondition && action.Phase == planner.PhaseEntry {
		e.mu.Lock()
		attempts = e.noProgress[n.ID]
		e.mu.Unlock()
	}
	if attempts+1 < max {
		return result
	}
	return planner.FatalError(
		fmt.Sprintf("exceeded max_successive_attempts (%d): %s", max, result.Message),
		result.Book,
	)
}

func (e *Engine) bumpNoProgress(id string) {
	e.mu.Lock()
	e.noProgress[id]++
	e.mu.Unlock()
}

func (e *Engine) resetNoProgress(id string) {
	e.mu.Lock()
	delete(e.noProgress, id)
	e.mu.Unlock()
}
