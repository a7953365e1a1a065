package model

// IsEquivalent implements is_equivalent(a, b). The policy that decides is
// always the incoming (submitted) node's policy — the
// relation is deliberately not commutative at submission time. With policy
// "none" nothing is ever equivalent. With "same_active_condition", a and b
// are equivalent iff both carry the same non-empty, structurally-equal
// condition.
func IsEquivalent(incoming *Node, existing *Node) bool {
	switch incoming.Equivalence {
	case EquivalenceSameActiveCondition:
		if incoming.Condition == nil || existing.Condition == nil {
			return false
		}
		return incoming.Condition.Equal(existing.Condition)
	default:
		return false
	}
}

// DedupeBatch implements the left-to-right equivalence fold the engine's
// add-drain performs: each incoming
// node either becomes an inline node or a pointer to the first matching
// live node drawn from existing ∪ already-decided-in-this-batch. Decided
// entries are appended to the candidate pool as the fold proceeds, so later
// nodes in the same batch may point at earlier ones.
//
// DedupeBatch is pure: it allocates no ids and performs no I/O. Callers are
// responsible for ensuring incoming nodes already carry their final ids
// before the fold runs, and for persisting the result transactionally.
func DedupeBatch(existingLive []*Node, incoming []*Node) []Decision {
	candidates := append([]*Node{}, existingLive...)
	decisions := make([]Decision, 0, len(incoming))

	for _, n := range incoming {
		target := firstEquivalent(n, candidates)
		if target != nil {
			decisions = append(decisions, Decision{Node: n, PointerTo: target.ID})
		} else {
			decisions = append(decisions, Decision{Node: n})
			candidates = append(candidates, n)
		}
	}
	return decisions
}

// Decision is one outcome of DedupeBatch: either Node is inserted inline
// (PointerTo == ""), or it becomes a pointer to PointerTo.
type Decision struct {
	Node      *Node
	PointerTo string
}

func firstEquivalent(incoming *Node, candidates []*Node) *Node {
	for _, c := range candidates {
		if IsEquivalent(incoming, c) {
			return c
		}
	}
	return nil
}
