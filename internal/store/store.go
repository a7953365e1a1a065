package store

import (
	"context"

	"github.com/relaygrid/relaygridgo/internal/model"
)

// ChangeEventKind discriminates the events a Store commit emits.
type ChangeEventKind string

const (
	ChangeStarted       ChangeEventKind = "started"
	ChangeNewNodes      ChangeEventKind = "new_nodes"
	ChangeNodesChanged  ChangeEventKind = "nodes_changed"
)

// ChangeEvent is delivered to C4 on every committed transaction that
// touched at least one node.
type ChangeEvent struct {
	Kind ChangeEventKind
	IDs  []string
}

// Store is the C3 persistence contract. Every mutating method commits
// inside one transaction and, on success, returns the ChangeEvent(s) that
// transaction produced so the caller (the engine) can hand them to C4.
type Store interface {
	// Get resolves id, following the pointer chain up to
	// model.MaxPointerHops, and returns the inline node it terminates at.
	Get(ctx context.Context, id string) (*model.Node, error)

	// Update recomputes engine_status from node's final history and
	// writes it back, emitting ChangeNodesChanged.
	Update(ctx context.Context, node *model.Node) (ChangeEvent, error)

	// ForEachActive calls f for every node whose engine_status is active,
	// i.e. simplified status in-progress.
	ForEachActive(ctx context.Context, f func(*model.Node) error) error

	// AllVisible returns every stored node (inline and pointer) currently
	// live — not a historical archive.
	AllVisible(ctx context.Context) ([]*model.StoredNode, error)

	// AllActiveAndPassive returns every node whose engine_status is
	// active or passive, used to warm the C4 cache on startup.
	AllActiveAndPassive(ctx context.Context) ([]*model.Node, error)

	// QueueAdds persists batch in the add_list table.
	QueueAdds(ctx context.Context, batch model.AddBatch) error

	// QueueKills persists a kill_list entry.
	QueueKills(ctx context.Context, batch model.KillBatch) error

	// DrainKills processes every queued kill_list entry: for each id,
	// compute the kill transition (which may be a no-op) and remove the
	// queue row, all inside one transaction per entry.
	DrainKills(ctx context.Context) ([]ChangeEvent, error)

	// DrainAdds processes every queued add_list entry: equivalenceFold is
	// called with the current active-and-passive set plus the batch, and
	// must return the stored nodes (inline or pointer) to commit.
	DrainAdds(ctx context.Context, equivalenceFold func(existing []*model.Node, batch model.AddBatch) ([]*model.StoredNode, error)) ([]ChangeEvent, error)

	// ForceInsertPassive inserts node directly as a passive row, bypassing
	// the add queue and equivalence fold. Used by the backup/sync
	// mirroring utility, never by ordinary submission.
	ForceInsertPassive(ctx context.Context, node *model.Node) error

	// Close releases any underlying connection.
	Close() error
}
