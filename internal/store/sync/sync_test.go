package sync

import (
	"context"
	"testing"
	"time"

	"github.com/relaygrid/relaygridgo/internal/model"
	"github.com/stretchr/testify/require"
)

func passiveNode(id string) *model.Node {
	return &model.Node{
		ID:          id,
		Equivalence: model.EquivalenceNone,
		Build:       model.NoOpBuild(),
		History:     model.NewHistory(time.Now()),
	}
}

func TestOpen_BackupPrefixRoutesToFlatFileStore(t *testing.T) {
	dir := t.TempDir()
	s, err := Open("backup:" + dir)
	require.NoError(t, err)
	require.NoError(t, s.Close())
}

func TestCopy_PreservesNodesAcrossMirrors(t *testing.T) {
	ctx := context.Background()

	srcURI := "backup:" + t.TempDir()
	dstURI := "backup:" + t.TempDir()

	src, err := Open(srcURI)
	require.NoError(t, err)
	dst, err := Open(dstURI)
	require.NoError(t, err)

	// Reach the underlying store.Store surface (AllRaw's source) via
	// ForceInsertPassive, available on every store.Store implementation.
	asStore, ok := src.(interface {
		ForceInsertPassive(ctx context.Context, node *model.Node) error
	})
	require.True(t, ok)
	require.NoError(t, asStore.ForceInsertPassive(ctx, passiveNode("a")))

	require.NoError(t, Copy(ctx, srcURI, dstURI, src, dst))

	rows, err := dst.AllRaw(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "a", rows[0].Stored.ID)
}
