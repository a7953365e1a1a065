package model

import "github.com/google/uuid"

// EquivalencePolicy decides whether a submitted node may be pointed at an
// existing live node instead of being inserted inline.
type EquivalencePolicy string

const (
	EquivalenceNone               EquivalencePolicy = "none"
	EquivalenceSameActiveCondition EquivalencePolicy = "same_active_condition"
)

// BuildKind discriminates Node.Build.
type BuildKind string

const (
	BuildNoOp       BuildKind = "no_op"
	BuildLongRunning BuildKind = "long_running"
)

// BuildProcess is the discriminated build-process union: either a no-op or
// a long-running external process identified by plugin name and run
// parameters.
type BuildProcess struct {
	Kind          BuildKind `json:"kind"`
	PluginName    string    `json:"plugin_name,omitempty"`
	RunParameters []byte    `json:"run_parameters,omitempty"`
}

// NoOpBuild is the zero-work build process: starting skips straight to
// SuccessfullyDidNothing without contacting any executor.
func NoOpBuild() BuildProcess {
	return BuildProcess{Kind: BuildNoOp}
}

// LongRunningBuild describes a build that must be started, polled, and
// possibly killed through the named executor plugin.
func LongRunningBuild(pluginName string, runParameters []byte) BuildProcess {
	return BuildProcess{Kind: BuildLongRunning, PluginName: pluginName, RunParameters: runParameters}
}

// Node is the persisted unit of work: identity, dependency edges, the work
// to perform, and the history of states it has moved through.
type Node struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Metadata string `json:"metadata,omitempty"`

	DependsOn         []string `json:"depends_on,omitempty"`
	OnFailureActivate []string `json:"on_failure_activate,omitempty"`
	OnSuccessActivate []string `json:"on_success_activate,omitempty"`

	Build       BuildProcess      `json:"build"`
	Condition   *Condition        `json:"condition,omitempty"`
	Equivalence EquivalencePolicy `json:"equivalence"`
	Tags        []string          `json:"tags,omitempty"`

	AdditionalLog []string `json:"additional_log,omitempty"`

	History *HistoryEntry `json:"history"`
}

// NewID generates a fresh, globally-unique node identifier. Grounded on the
// pack's use of github.com/google/uuid for every entity id that must be
// stable and collision-free across a distributed set of clients.
func NewID() string {
	return uuid.NewString()
}

// AppendLog appends a free-form operator note to the node's additional-log.
// This is unrelated to history log messages; it is user/operator-facing
// telemetry that survives independently of any single history entry.
func (n *Node) AppendLog(msg string) {
	n.AdditionalLog = append(n.AdditionalLog, msg)
}

// SimplifiedStatus is a convenience wrapper around Simplify(n.History).
func (n *Node) SimplifiedStatus() SimplifiedStatus {
	return Simplify(n.History)
}

// LatestRunParameters returns the most recent bookkeeping recorded against
// n's history, or nil.
func (n *Node) LatestRunParameters() *RunBookkeeping {
	return n.History.LatestRunParameters()
}
