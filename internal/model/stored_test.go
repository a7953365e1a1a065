package model

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve_FollowsPointerChain(t *testing.T) {
	table := map[string]*StoredNode{
		"a": {ID: "a", Inline: &Node{ID: "a"}},
		"b": {ID: "b", PointerTo: "a"},
		"c": {ID: "c", PointerTo: "b"},
	}
	get := func(id string) (*StoredNode, bool) { s, ok := table[id]; return s, ok }

	n, err := Resolve(get, "c")
	require.NoError(t, err)
	assert.Equal(t, "a", n.ID)
}

func TestResolve_DanglingPointerIsFatal(t *testing.T) {
	table := map[string]*StoredNode{
		"b": {ID: "b", PointerTo: "missing"},
	}
	get := func(id string) (*StoredNode, bool) { s, ok := table[id]; return s, ok }

	_, err := Resolve(get, "b")
	require.Error(t, err)
}

func TestResolve_CycleExceedsHopBoundAndIsFatal(t *testing.T) {
	table := map[string]*StoredNode{
		"a": {ID: "a", PointerTo: "b"},
		"b": {ID: "b", PointerTo: "a"},
	}
	get := func(id string) (*StoredNode, bool) { s, ok := table[id]; return s, ok }

	_, err := Resolve(get, "a")
	require.Error(t, err)
}

func TestResolve_LongButAcyclicChainTerminates(t *testing.T) {
	table := map[string]*StoredNode{}
	table["root"] = &StoredNode{ID: "root", Inline: &Node{ID: "root"}}
	prev := "root"
	for i := 0; i < MaxPointerHops-1; i++ {
		id := fmt.Sprintf("p%d", i)
		table[id] = &StoredNode{ID: id, PointerTo: prev}
		prev = id
	}
	get := func(id string) (*StoredNode, bool) { s, ok := table[id]; return s, ok }

	n, err := Resolve(get, prev)
	require.NoError(t, err)
	assert.Equal(t, "root", n.ID)
}
