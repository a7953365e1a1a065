package relstore

import (
	"context"
	"testing"
	"time"

	"github.com/relaygrid/relaygridgo/internal/model"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func passiveNode(id string) *model.Node {
	return &model.Node{
		ID:          id,
		Equivalence: model.EquivalenceNone,
		Build:       model.NoOpBuild(),
		History:     model.NewHistory(time.Now()),
	}
}

func TestDrainAdds_InsertsInlineNodes(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	batch := model.AddBatch{ID: "batch-1", Nodes: []*model.Node{passiveNode("a"), passiveNode("b")}}
	require.NoError(t, s.QueueAdds(ctx, batch))

	fold := func(existing []*model.Node, b model.AddBatch) ([]*model.StoredNode, error) {
		out := make([]*model.StoredNode, 0, len(b.Nodes))
		for _, n := range b.Nodes {
			out = append(out, &model.StoredNode{ID: n.ID, Inline: n})
		}
		return out, nil
	}

	events, err := s.DrainAdds(ctx, fold)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.ElementsMatch(t, []string{"a", "b"}, events[0].IDs)

	got, err := s.Get(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, "a", got.ID)
}

func TestUpdate_RoundTrips(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	n := passiveNode("x")
	require.NoError(t, s.ForceInsertPassive(ctx, n))

	activated := model.Activate(n, model.ByUser(), time.Now())
	_, err := s.Update(ctx, activated)
	require.NoError(t, err)

	got, err := s.Get(ctx, "x")
	require.NoError(t, err)
	require.Equal(t, model.Active, got.History.Tag)
}

func TestDrainKills_KillsKillableNode(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	n := passiveNode("y")
	require.NoError(t, s.ForceInsertPassive(ctx, n))

	require.NoError(t, s.QueueKills(ctx, model.KillBatch{ID: "kb-1", IDs: []string{"y"}}))

	events, err := s.DrainKills(ctx)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, []string{"y"}, events[0].IDs)

	got, err := s.Get(ctx, "y")
	require.NoError(t, err)
	require.Equal(t, model.Killing, got.History.Tag)
}

func TestAllActiveAndPassive_ExcludesFinished(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.ForceInsertPassive(ctx, passiveNode("p")))

	nodes, err := s.AllActiveAndPassive(ctx)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	require.Equal(t, "p", nodes[0].ID)
}
