// Package dagcheck validates that a batch of nodes about to be submitted
// is well-formed before it ever reaches the store: every depends_on /
// on_failure_activate / on_success_activate id resolves to a real node,
// and the depends_on graph is free of cycles (a cycle there would
// deadlock the engine, since a node never leaves building until every
// dependency finishes). It translates domain objects into internal/dag
// edges and asks that package the one question it knows how to answer.
package dagcheck

import (
	"fmt"

	"github.com/relaygrid/relaygridgo/internal/dag"
	"github.com/relaygrid/relaygridgo/internal/model"
)

// Lookup reports whether id names a node known outside the batch being
// validated (already live in the store). Callers typically back this
// with a cache or store read.
type Lookup func(id string) bool

// ValidateBatch checks every node in nodes against known plus the rest of
// the batch itself, and returns a descriptive error on the first
// violation found: an unresolved id, or a cycle in the depends_on graph.
func ValidateBatch(nodes []*model.Node, known Lookup) error {
	inBatch := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		inBatch[n.ID] = true
	}
	resolves := func(id string) bool {
		return inBatch[id] || known(id)
	}

	g := dag.New()
	for _, n := range nodes {
		g.AddNode(n.ID)
	}

	for _, n := range nodes {
		for _, dep := range n.DependsOn {
			if !resolves(dep) {
				return fmt.Errorf("dagcheck: node %q depends_on unresolved id %q", n.ID, dep)
			}
			if inBatch[dep] {
				if err := g.AddEdge(dep, n.ID); err != nil {
					return fmt.Errorf("dagcheck: node %q depends_on %q: %w", n.ID, dep, err)
				}
			}
		}
		for _, id := range n.OnSuccessActivate {
			if !resolves(id) {
				return fmt.Errorf("dagcheck: node %q on_success_activate unresolved id %q", n.ID, id)
			}
		}
		for _, id := range n.OnFailureActivate {
			if !resolves(id) {
				return fmt.Errorf("dagcheck: node %q on_failure_activate unresolved id %q", n.ID, id)
			}
		}
	}

	if err := g.DetectCycles(); err != nil {
		return fmt.Errorf("dagcheck: depends_on graph has a cycle: %w", err)
	}
	return nil
}
