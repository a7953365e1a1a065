package planner

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaygrid/relaygridgo/internal/model"
)

func noOpNode() *model.Node {
	return model.Create("a", "A", "", nil, nil, nil, model.NoOpBuild(), nil, model.EquivalenceNone, nil, time.Unix(0, 0))
}

// step runs one Plan/dispatch/Apply round against n using a caller-supplied
// result for whatever the action dispatches to, and returns the updated
// node. Inline actions ignore the supplied result and use their own.
func step(t *testing.T, n *model.Node, result Result) *model.Node {
	t.Helper()
	action := Plan(n)
	r := result
	switch {
	case action.Inline:
		r = action.InlineResult
	case action.Kind == CheckDeps:
		// No node built by these tests carries dependencies that aren't
		// satisfied up front.
		r = Result{Severity: OK, DepsReady: true}
	}
	out, _, err := Apply(n, action, r, time.Unix(0, 0))
	require.NoError(t, err)
	return out
}

func TestPlanApply_NoOpHappyPath(t *testing.T) {
	// S1: no deps, no condition, build_process = no_op.
	n := model.Activate(noOpNode(), model.ByUser(), time.Unix(0, 0))

	tags := []model.StateTag{}
	for i := 0; i < 10 && n.History.Tag != model.Finished; i++ {
		n = step(t, n, Ok())
		tags = append(tags, n.History.Tag)
	}

	// verified-success and finished land in the same Apply call (see
	// terminal() in apply.go), so verified-success never shows up as its
	// own observed tag here — only as n.History.Prev once finished.
	assert.Equal(t, []model.StateTag{
		model.EvaluatingCondition,
		model.Building,
		model.Starting,
		model.SuccessfullyDidNothing,
		model.Finished,
	}, tags)
	require.Equal(t, model.VerifiedSuccess, n.History.Prev.Tag)
	assert.Equal(t, model.StatusSuccessful, model.Simplify(n.History))
}

func TestPlan_Active_BeginsEvaluationInline(t *testing.T) {
	n := model.Activate(noOpNode(), model.ByUser(), time.Unix(0, 0))
	action := Plan(n)
	assert.Equal(t, BeginEvaluation, action.Kind)
	assert.True(t, action.Inline)
}

func TestPlan_EvaluatingCondition_NoCondition_GoesToBuilding(t *testing.T) {
	n := model.Activate(noOpNode(), model.ByUser(), time.Unix(0, 0))
	n = step(t, n, Ok())
	require.Equal(t, model.EvaluatingCondition, n.History.Tag)

	action := Plan(n)
	require.Equal(t, EvalCondition, action.Kind)
	require.Equal(t, PhaseEntry, action.Phase)
	require.True(t, action.Inline)
	assert.False(t, action.InlineResult.Satisfied)
}

func TestPlan_CheckDeps_FailedDependency(t *testing.T) {
	n := model.Create("a", "A", "", []string{"b"}, nil, nil, model.NoOpBuild(), nil, model.EquivalenceNone, nil, time.Unix(0, 0))
	n = model.Activate(n, model.ByUser(), time.Unix(0, 0))
	n = step(t, n, Ok())
	n = step(t, n, Ok())
	require.Equal(t, model.Building, n.History.Tag)

	action := Plan(n)
	require.Equal(t, CheckDeps, action.Kind)

	out, progress, err := Apply(n, action, Result{Severity: OK, FailedDepIDs: []string{"b"}}, time.Unix(0, 0))
	require.NoError(t, err)
	assert.Equal(t, Changed, progress)
	assert.Equal(t, model.DependenciesFailed, out.History.Prev.Tag)
}

func TestPlan_CheckDeps_WaitsWhenNotReady(t *testing.T) {
	n := model.Create("a", "A", "", []string{"b"}, nil, nil, model.NoOpBuild(), nil, model.EquivalenceNone, nil, time.Unix(0, 0))
	n = model.Activate(n, model.ByUser(), time.Unix(0, 0))
	n = step(t, n, Ok())
	n = step(t, n, Ok())
	require.Equal(t, model.Building, n.History.Tag)

	out, progress, err := Apply(n, Action{Kind: CheckDeps}, Result{Severity: OK, DepsReady: false}, time.Unix(0, 0))
	require.NoError(t, err)
	assert.Equal(t, Changed, progress)
	assert.Equal(t, model.StillBuilding, out.History.Tag)
}

func TestPlanKill_UnwindsToRunningPredecessor(t *testing.T) {
	n := model.Create("a", "A", "", nil, nil, nil, model.LongRunningBuild("shell", nil), nil, model.EquivalenceNone, nil, time.Unix(0, 0))
	n = model.Activate(n, model.ByUser(), time.Unix(0, 0))
	h := n.History
	var err error
	for _, tag := range []model.StateTag{model.EvaluatingCondition, model.Building, model.Starting} {
		h, err = h.Extend(time.Unix(0, 0), tag, "", nil)
		require.NoError(t, err)
	}
	h, err = h.Extend(time.Unix(0, 0), model.StartedRunning, "", &model.RunBookkeeping{PluginName: "shell"})
	require.NoError(t, err)
	h, err = h.Extend(time.Unix(0, 0), model.Killing, "kill requested", nil)
	require.NoError(t, err)
	n.History = h

	action := planKill(n)
	assert.Equal(t, KillAction, action.Kind)
	assert.False(t, action.Inline)
	assert.Equal(t, "shell", action.PluginName)
}

func TestPlanKill_InlineFromNonRunningPredecessor(t *testing.T) {
	n := model.Activate(noOpNode(), model.ByUser(), time.Unix(0, 0))
	h, err := n.History.Extend(time.Unix(0, 0), model.Killing, "kill requested", nil)
	require.NoError(t, err)
	n.History = h

	action := planKill(n)
	assert.Equal(t, KillAction, action.Kind)
	assert.True(t, action.Inline)
}

func TestApply_ReachingTerminalWrapsToFinishedImmediately(t *testing.T) {
	// on_success_activate/on_failure_activate are fired by the engine off
	// of the finished node's predecessor tag, not by a separate Plan
	// action; this only checks the history shape Apply produces.
	n := model.Create("a", "A", "", nil, nil, []string{"b", "c"}, model.NoOpBuild(), nil, model.EquivalenceNone, nil, time.Unix(0, 0))
	n = model.Activate(n, model.ByUser(), time.Unix(0, 0))
	for i := 0; i < 5; i++ {
		n = step(t, n, Ok())
	}
	assert.Equal(t, model.Finished, n.History.Tag)
	assert.Equal(t, model.VerifiedSuccess, n.History.Prev.Tag)
	assert.Equal(t, model.StatusSuccessful, model.Simplify(n.History))
}
