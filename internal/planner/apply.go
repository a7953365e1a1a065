package planner

import (
	"fmt"
	"time"

	"github.com/relaygrid/relaygridgo/internal/model"
)

// Apply folds a callback Result for action back into n's history,
// returning the node's new state (a shallow copy with History replaced)
// and whether the history actually advanced. This is the single place
// that maps a callback outcome to the next state tag for every action
// shape; the engine never extends history directly.
func Apply(n *model.Node, action Action, result Result, now time.Time) (*model.Node, Progress, error) {
	switch action.Kind {
	case DoNothing:
		return n, Unchanged, nil
	case BeginEvaluation:
		return extend(n, now, model.EvaluatingCondition, "", nil)
	case CheckDeps:
		return applyCheckDeps(n, result, now)
	case StartRunning:
		return applyStartRunning(n, result, now)
	case EvalCondition:
		return applyEvalCondition(n, action.Phase, result, now)
	case CheckProcess:
		return applyCheckProcess(n, result, now)
	case KillAction:
		return applyKill(n, result, now)
	default:
		return n, Unchanged, fmt.Errorf("planner: unknown action kind %q", action.Kind)
	}
}

func extend(n *model.Node, now time.Time, tag model.StateTag, log string, book *model.RunBookkeeping) (*model.Node, Progress, error) {
	h, err := n.History.Extend(now, tag, log, book)
	if err != nil {
		return n, Unchanged, err
	}
	out := *n
	out.History = h
	return &out, Changed, nil
}

// terminal extends n to tag and immediately wraps it in a finished entry
// whose Prev is that terminal entry, in the same Apply call. Arriving at a terminal tag and
// being done are the same event — engine_status is derived straight off
// the terminal tag (see model.Compress), so there is no second tick
// in which a node would sit at, say, verified-success waiting to be
// wrapped; the engine reads the wrapped node's immediate predecessor tag
// to decide which of on_success_activate/on_failure_activate to fire.
func terminal(n *model.Node, now time.Time, tag model.StateTag, log string, book *model.RunBookkeeping) (*model.Node, Progress, error) {
	h, err := n.History.Extend(now, tag, log, book)
	if err != nil {
		return n, Unchanged, err
	}
	h, err = h.Extend(now, model.Finished, "", nil)
	if err != nil {
		return n, Unchanged, err
	}
	out := *n
	out.History = h
	return &out, Changed, nil
}

func applyCheckDeps(n *model.Node, r Result, now time.Time) (*model.Node, Progress, error) {
	switch r.Severity {
	case Fatal:
		return terminal(n, now, model.DependenciesFailed, r.Message, nil)
	case Recoverable:
		return extend(n, now, model.StillBuilding, r.Message, nil)
	default:
		if len(r.FailedDepIDs) > 0 {
			return terminal(n, now, model.DependenciesFailed, fmt.Sprintf("failed dependencies: %v", r.FailedDepIDs), nil)
		}
		if r.DepsReady {
			return extend(n, now, model.Starting, "", nil)
		}
		return extend(n, now, model.StillBuilding, "waiting on dependencies", nil)
	}
}

func applyStartRunning(n *model.Node, r Result, now time.Time) (*model.Node, Progress, error) {
	switch r.Severity {
	case OK:
		if r.NoOp {
			return extend(n, now, model.SuccessfullyDidNothing, "", r.Book)
		}
		return extend(n, now, model.StartedRunning, "", r.Book)
	case Recoverable:
		return extend(n, now, model.TriedToStart, r.Message, r.Book)
	default:
		return terminal(n, now, model.FailedToStart, r.Message, r.Book)
	}
}

func applyEvalCondition(n *model.Node, phase ConditionPhase, r Result, now time.Time) (*model.Node, Progress, error) {
	if phase == PhaseEntry {
		switch r.Severity {
		case OK:
			if r.Satisfied {
				return terminal(n, now, model.AlreadyDone, "", nil)
			}
			return extend(n, now, model.Building, "", nil)
		case Recoverable:
			// No self-loop tag exists for the entry evaluation; retry on
			// the next tick without advancing history.
			return n, Unchanged, nil
		default:
			return terminal(n, now, model.FailedToEvalCondition, r.Message, nil)
		}
	}

	// PhaseExit: re-evaluating after a successful run (or a no-op build
	// standing in for one).
	switch r.Severity {
	case OK:
		if r.Satisfied {
			return terminal(n, now, model.VerifiedSuccess, "", nil)
		}
		return terminal(n, now, model.DidNotEnsureCondition, "", nil)
	case Recoverable:
		return extend(n, now, model.TriedToReevalCondition, r.Message, nil)
	default:
		return terminal(n, now, model.FailedToEvalCondition, r.Message, nil)
	}
}

func applyCheckProcess(n *model.Node, r Result, now time.Time) (*model.Node, Progress, error) {
	switch r.Severity {
	case OK:
		if r.StillRunning {
			return extend(n, now, model.StillRunning, "", r.Book)
		}
		return extend(n, now, model.RanSuccessfully, "", r.Book)
	case Recoverable:
		return extend(n, now, model.StillRunningDespiteRecoverable, r.Message, r.Book)
	default:
		return terminal(n, now, model.FailedRunning, r.Message, r.Book)
	}
}

func applyKill(n *model.Node, r Result, now time.Time) (*model.Node, Progress, error) {
	switch r.Severity {
	case OK:
		return terminal(n, now, model.Killed, "", r.Book)
	case Recoverable:
		return extend(n, now, model.TriedToKill, r.Message, r.Book)
	default:
		return terminal(n, now, model.FailedToKill, r.Message, r.Book)
	}
}
