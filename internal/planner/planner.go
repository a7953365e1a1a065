package planner

import "github.com/relaygrid/relaygridgo/internal/model"

// ActionKind names one of the shapes an Action can take.
type ActionKind string

const (
	DoNothing       ActionKind = "do_nothing"
	BeginEvaluation ActionKind = "begin_evaluation"
	CheckDeps       ActionKind = "check_deps"
	StartRunning    ActionKind = "start_running"
	EvalCondition   ActionKind = "eval_condition"
	CheckProcess    ActionKind = "check_process"
	KillAction      ActionKind = "kill"
)

// ConditionPhase distinguishes the two points in a node's life a condition
// may be evaluated at: before the build (entry, deciding already-done vs
// building) and after a successful run (exit, deciding verified-success vs
// did-not-ensure-condition).
type ConditionPhase string

const (
	PhaseEntry ConditionPhase = "entry"
	PhaseExit  ConditionPhase = "exit"
)

// Action is a pure description of what the engine should do next for a
// node. It carries no side effects; everything an Apply* function needs
// that isn't already derivable from the node itself lives here as data.
//
// Inline marks an action the engine may apply immediately, without
// contacting an executor or evaluator, using InlineResult as the callback
// result — covers the tie-break cases that need no external call: no-op
// builds, unconfigured conditions, killing from a non-running
// predecessor.
type Action struct {
	Kind ActionKind

	Book       *model.RunBookkeeping
	PluginName string

	Condition *model.Condition
	Phase     ConditionPhase

	Inline       bool
	InlineResult Result
}

// Plan is the pure transition function: plan(node, current_state) →
// action. It reads n.History (the latest tag, and for run and kill
// actions the earlier entries holding bookkeeping or the killed state)
// and n's static Build and Condition; it performs no I/O and calls no
// other component. Two
// calls against an identical (node-shape, tag) always return an action of
// identical shape.
func Plan(n *model.Node) Action {
	h := n.History
	tag := h.Tag

	switch tag {
	case model.Passive, model.Finished:
		return Action{Kind: DoNothing, Inline: true, InlineResult: Ok()}

	case model.Active:
		// Activation and entry-condition evaluation are two separate
		// history entries: this tick only takes the node to
		// evaluating-condition, so the real evaluation below always runs
		// against a node that is legally allowed to reach building or
		// already-done.
		return Action{Kind: BeginEvaluation, Inline: true, InlineResult: Ok()}

	case model.EvaluatingCondition:
		return planEvalCondition(n, PhaseEntry)

	case model.RanSuccessfully, model.SuccessfullyDidNothing, model.TriedToReevalCondition:
		return planEvalCondition(n, PhaseExit)

	case model.Building, model.StillBuilding:
		return Action{Kind: CheckDeps}

	case model.Starting, model.TriedToStart:
		return planStartRunning(n)

	case model.StartedRunning, model.StillRunning, model.StillRunningDespiteRecoverable:
		return Action{Kind: CheckProcess, Book: h.LatestRunParameters(), PluginName: n.Build.PluginName}

	case model.Killing, model.TriedToKill:
		return planKill(n)

	default:
		// Every terminal tag is wrapped in Finished by the same Apply call
		// that reaches it (see terminal() in apply.go), so a node at rest
		// here is never handed back to Plan: this default only guards
		// against a future terminal tag added to model without a matching
		// Plan case.
		return Action{Kind: DoNothing, Inline: true, InlineResult: Ok()}
	}
}

func planEvalCondition(n *model.Node, phase ConditionPhase) Action {
	if n.Condition == nil {
		// No condition configured: entry means "always build" (not
		// satisfied), exit means "skip evaluation and mark
		// verified-success".
		satisfied := phase == PhaseExit
		return Action{
			Kind:   EvalCondition,
			Phase:  phase,
			Inline: true,
			InlineResult: Result{Severity: OK, Satisfied: satisfied},
		}
	}
	return Action{Kind: EvalCondition, Condition: n.Condition, Phase: phase}
}

func planStartRunning(n *model.Node) Action {
	if n.Build.Kind == model.BuildNoOp {
		return Action{Kind: StartRunning, Inline: true, InlineResult: Result{Severity: OK, NoOp: true}}
	}
	return Action{
		Kind:       StartRunning,
		PluginName: n.Build.PluginName,
		Book:       n.History.LatestRunParameters(),
	}
}

// planKill unwinds a Killing/TriedToKill history to the original killable
// predecessor before deciding whether an executor kill call is needed.
func planKill(n *model.Node) Action {
	original := n.History
	for original != nil && (original.Tag == model.Killing || original.Tag == model.TriedToKill) {
		original = original.Prev
	}
	runningTags := map[model.StateTag]bool{
		model.StartedRunning: true, model.StillRunning: true, model.StillRunningDespiteRecoverable: true,
	}
	if original == nil || !runningTags[original.Tag] {
		// Non-running predecessor: transition straight to killed without
		// contacting the executor.
		return Action{Kind: KillAction, Inline: true, InlineResult: Ok()}
	}
	return Action{Kind: KillAction, Book: n.History.LatestRunParameters(), PluginName: n.Build.PluginName}
}

