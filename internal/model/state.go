// Package model implements the node state machine: the typed history of
// states a node moves through, its identity and dependency edges, the
// condition it is evaluated against, and the equivalence policy used to
// deduplicate it at submission time. Nothing in this package talks to a
// database, an executor, or the network; it is pure data and pure
// functions over that data, the way burstgridgo's internal/model package
// kept HCL-expression-typed config free of evaluation logic.
package model

// StateTag names a single point in a node's history. The allowable
// transitions between tags are enumerated in legalPredecessors and are the
// single source of truth for what history is well-formed; nothing else in
// this codebase (including the planner) may invent a transition that isn't
// listed here.
type StateTag string

const (
	Passive                           StateTag = "passive"
	Active                            StateTag = "active"
	EvaluatingCondition               StateTag = "evaluating-condition"
	AlreadyDone                       StateTag = "already-done"
	Building                          StateTag = "building"
	StillBuilding                     StateTag = "still-building"
	Starting                          StateTag = "starting"
	TriedToStart                      StateTag = "tried-to-start"
	StartedRunning                    StateTag = "started-running"
	FailedToStart                     StateTag = "failed-to-start"
	SuccessfullyDidNothing            StateTag = "successfully-did-nothing"
	StillRunning                      StateTag = "still-running"
	StillRunningDespiteRecoverable    StateTag = "still-running-despite-recoverable-error"
	RanSuccessfully                   StateTag = "ran-successfully"
	FailedRunning                     StateTag = "failed-running"
	VerifiedSuccess                   StateTag = "verified-success"
	DidNotEnsureCondition             StateTag = "did-not-ensure-condition"
	TriedToReevalCondition            StateTag = "tried-to-reeval-condition"
	Killing                           StateTag = "killing"
	TriedToKill                       StateTag = "tried-to-kill"
	Killed                            StateTag = "killed"
	FailedToKill                      StateTag = "failed-to-kill"
	DependenciesFailed                StateTag = "dependencies-failed"
	FailedToEvalCondition             StateTag = "failed-to-eval-condition"
	Finished                          StateTag = "finished"
)

// killablePredecessors is the set of states from which a kill request can
// be honored directly: any of {passive, evaluating-condition, building,
// starting, running} may transition to killing.
var killablePredecessors = []StateTag{
	Passive, Active, EvaluatingCondition,
	Building, StillBuilding,
	Starting, TriedToStart,
	StartedRunning, StillRunning, StillRunningDespiteRecoverable,
}

// terminalTags is the set of states that may transition to Finished.
var terminalTags = []StateTag{
	VerifiedSuccess, AlreadyDone, DependenciesFailed, FailedToStart,
	FailedToEvalCondition, DidNotEnsureCondition, FailedRunning,
	Killed, FailedToKill,
}

// legalPredecessors maps every state tag to the exact set of predecessor
// tags it may extend. A history entry whose predecessor tag is not in this
// set is, by definition, not a legal history and must never be committed.
var legalPredecessors = func() map[StateTag][]StateTag {
	m := map[StateTag][]StateTag{
		Active: {Passive},
		// EvaluatingCondition has no self-loop tag: a recoverable error
		// evaluating the entry condition does not advance history, it
		// simply leaves the node here for the next tick to retry, bounded
		// by the engine's own per-tick attempt counter rather than a
		// history attempt count. Active is its only predecessor -- the
		// engine always takes that hop as its own inline tick before any
		// real entry-condition evaluation runs.
		EvaluatingCondition: {Active},
		AlreadyDone:            {EvaluatingCondition},
		Building:               {EvaluatingCondition},
		StillBuilding:          {Building, StillBuilding},
		Starting:               {Building, StillBuilding},
		TriedToStart:           {Starting, TriedToStart},
		StartedRunning:         {Starting, TriedToStart},
		FailedToStart:          {Starting, TriedToStart},
		SuccessfullyDidNothing: {Starting, TriedToStart},
		StillRunning:                   {StartedRunning, StillRunning, StillRunningDespiteRecoverable},
		StillRunningDespiteRecoverable: {StartedRunning, StillRunning, StillRunningDespiteRecoverable},
		RanSuccessfully:                {StartedRunning, StillRunning, StillRunningDespiteRecoverable},
		FailedRunning:                  {StartedRunning, StillRunning, StillRunningDespiteRecoverable},
		// A no-op build reaches the exit condition check the same way a real
		// run does: SuccessfullyDidNothing stands in for RanSuccessfully
		// wherever the exit phase is a legal predecessor.
		VerifiedSuccess:        {RanSuccessfully, SuccessfullyDidNothing, TriedToReevalCondition},
		DidNotEnsureCondition:  {RanSuccessfully, SuccessfullyDidNothing, TriedToReevalCondition},
		TriedToReevalCondition: {RanSuccessfully, SuccessfullyDidNothing, TriedToReevalCondition},
		TriedToKill:            {Killing, TriedToKill},
		Killed:                 {Killing, TriedToKill},
		FailedToKill:           {Killing, TriedToKill},
		DependenciesFailed:     {Building, StillBuilding},
		FailedToEvalCondition:  {EvaluatingCondition, RanSuccessfully, SuccessfullyDidNothing, TriedToReevalCondition},
		Finished:               terminalTags,
	}
	m[Killing] = killablePredecessors
	return m
}()

// IsLegalTransition reports whether `to` may legally extend a history whose
// most recent tag is `from`. Passive has no predecessor and is only valid
// as the very first entry in a history, so it is deliberately absent from
// legalPredecessors and is handled by the caller that starts a new history.
func IsLegalTransition(from, to StateTag) bool {
	allowed, ok := legalPredecessors[to]
	if !ok {
		return false
	}
	for _, a := range allowed {
		if a == from {
			return true
		}
	}
	return false
}

// IsKillable reports whether a history currently at tag may transition to
// Killing. It does not consider a history already in Killing/TriedToKill
// killable again; callers treat a second kill request against those tags
// as a no-op, not as a fresh transition.
func IsKillable(tag StateTag) bool {
	for _, k := range killablePredecessors {
		if k == tag {
			return true
		}
	}
	return false
}

// IsTerminal reports whether tag is Finished or one of the terminal tags
// that precede it.
func IsTerminal(tag StateTag) bool {
	if tag == Finished {
		return true
	}
	for _, t := range terminalTags {
		if t == tag {
			return true
		}
	}
	return false
}
