package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsEquivalent_PolicyNoneNeverMatches(t *testing.T) {
	cond := &Condition{Kind: ConditionVolumeExists, Volume: &Volume{Host: "h", Root: "/r"}}
	a := Create("a", "a", "", nil, nil, nil, NoOpBuild(), cond, EquivalenceNone, nil, time.Unix(0, 0))
	b := Create("b", "b", "", nil, nil, nil, NoOpBuild(), cond, EquivalenceSameActiveCondition, nil, time.Unix(0, 0))
	assert.False(t, IsEquivalent(a, b))
}

func TestIsEquivalent_SameActiveConditionIsNotCommutative(t *testing.T) {
	cond := &Condition{Kind: ConditionVolumeExists, Volume: &Volume{Host: "h", Root: "/r"}}
	incoming := Create("e2", "e2", "", nil, nil, nil, NoOpBuild(), cond, EquivalenceSameActiveCondition, nil, time.Unix(0, 0))
	existing := Create("e1", "e1", "", nil, nil, nil, NoOpBuild(), cond, EquivalenceNone, nil, time.Unix(0, 0))

	// Incoming's policy decides: e2 -> same_active_condition, so it matches.
	assert.True(t, IsEquivalent(incoming, existing))
	// Reversed: existing's policy is "none", so it would never match.
	assert.False(t, IsEquivalent(existing, incoming))
}

func TestDedupeBatch_FirstMatchWinsInsertionOrder(t *testing.T) {
	cond := &Condition{Kind: ConditionVolumeExists, Volume: &Volume{Host: "h", Root: "/r"}}
	e1 := Create("e1", "e1", "", nil, nil, nil, NoOpBuild(), cond, EquivalenceNone, nil, time.Unix(0, 0))
	e2 := Create("e2", "e2", "", nil, nil, nil, NoOpBuild(), cond, EquivalenceNone, nil, time.Unix(0, 0))
	incoming := Create("e3", "e3", "", nil, nil, nil, NoOpBuild(), cond, EquivalenceSameActiveCondition, nil, time.Unix(0, 0))

	decisions := DedupeBatch([]*Node{e1, e2}, []*Node{incoming})
	require.Len(t, decisions, 1)
	assert.Equal(t, "e1", decisions[0].PointerTo, "first candidate in insertion order should win")
}

func TestDedupeBatch_LaterBatchEntryCanPointAtEarlierOne(t *testing.T) {
	cond := &Condition{Kind: ConditionVolumeExists, Volume: &Volume{Host: "h", Root: "/r"}}
	first := Create("n1", "n1", "", nil, nil, nil, NoOpBuild(), cond, EquivalenceSameActiveCondition, nil, time.Unix(0, 0))
	second := Create("n2", "n2", "", nil, nil, nil, NoOpBuild(), cond, EquivalenceSameActiveCondition, nil, time.Unix(0, 0))

	decisions := DedupeBatch(nil, []*Node{first, second})
	require.Len(t, decisions, 2)
	assert.Equal(t, "", decisions[0].PointerTo, "first node in an empty pool is inserted inline")
	assert.Equal(t, "n1", decisions[1].PointerTo, "second node should fold against the first, now-decided, entry")
}

func TestDedupeBatch_NoMatchInsertsInline(t *testing.T) {
	a := Create("a", "a", "", nil, nil, nil, NoOpBuild(), nil, EquivalenceNone, nil, time.Unix(0, 0))
	decisions := DedupeBatch(nil, []*Node{a})
	require.Len(t, decisions, 1)
	assert.Equal(t, "", decisions[0].PointerTo)
}
