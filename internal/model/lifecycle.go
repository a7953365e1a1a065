package model

import (
	"fmt"
	"time"
)

// ActivationReason is why a node transitions from Passive to Active: either
// a direct user request, or because it is a dependency of another node that
// just activated.
type ActivationReason struct {
	User         bool
	DependencyID string
}

// ByUser is the "user" activation reason.
func ByUser() ActivationReason { return ActivationReason{User: true} }

// ByDependency is the "dependency(id)" activation reason.
func ByDependency(id string) ActivationReason { return ActivationReason{DependencyID: id} }

func (r ActivationReason) logMessage() string {
	if r.User {
		return "activated by user"
	}
	return fmt.Sprintf("activated as dependency of %s", r.DependencyID)
}

// Create builds a freshly-minted, Passive node. The caller supplies an id
// (model.NewID() for fresh submissions, or a caller-chosen id for
// deterministic tests).
func Create(id, name, metadata string, dependsOn, onFailure, onSuccess []string, build BuildProcess, cond *Condition, equivalence EquivalencePolicy, tags []string, now time.Time) *Node {
	return &Node{
		ID:                id,
		Name:              name,
		Metadata:          metadata,
		DependsOn:         dependsOn,
		OnFailureActivate: onFailure,
		OnSuccessActivate: onSuccess,
		Build:             build,
		Condition:         cond,
		Equivalence:       equivalence,
		Tags:              tags,
		History:           NewHistory(now),
	}
}

// Activate moves a node from Passive to Active. Calling Activate on a node
// whose history is not Passive is a programming error: the caller
// (engine/store) is expected to check SimplifiedStatus first, so this
// panics rather than returning an error a caller might silently ignore.
func Activate(n *Node, reason ActivationReason, now time.Time) *Node {
	if n.History.Tag != Passive {
		panic(fmt.Sprintf("model: Activate called on node %s in non-passive state %s", n.ID, n.History.Tag))
	}
	h, err := n.History.Extend(now, Active, reason.logMessage(), nil)
	if err != nil {
		// Active always legally extends Passive; reaching here would mean
		// legalPredecessors itself is wrong, which is a programming error.
		panic(err)
	}
	n.History = h
	return n
}

// Kill requests that n's history move to Killing. Calling Kill on a
// non-killable history is not an error; it yields (n, false) with n
// unchanged, and the
// caller is expected to ignore the request.
func Kill(n *Node, now time.Time) (*Node, bool) {
	if !IsKillable(n.History.Tag) {
		return n, false
	}
	h, err := n.History.Extend(now, Killing, "kill requested", nil)
	if err != nil {
		return n, false
	}
	n.History = h
	return n, true
}

// Reactivate produces a brand-new Passive node that is a successor to n,
// carrying a fresh id, name, and metadata but none of n's history. Used by
// sync/backfill flows that want to re-run a finished node as a distinct
// entity rather than mutate a finished history in place.
func Reactivate(n *Node, newID, newName, newMetadata string, now time.Time) *Node {
	return Create(newID, newName, newMetadata, n.DependsOn, n.OnFailureActivate, n.OnSuccessActivate, n.Build, n.Condition, n.Equivalence, n.Tags, now)
}
