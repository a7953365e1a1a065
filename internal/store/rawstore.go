package store

import (
	"context"

	"github.com/relaygrid/relaygridgo/internal/model"
)

// RawRow is one main-table row exactly as persisted: the stored node
// (inline or pointer) alongside the engine status written next to it,
// bypassing the status-recompute Update performs and the equivalence fold
// DrainAdds performs.
type RawRow struct {
	Stored       *model.StoredNode
	EngineStatus EngineStatus
}

// EngineStatus mirrors model.EngineStatus's three values without importing
// the model package's derivation logic; a RawStore never recomputes it, it
// only carries whatever was last written.
type EngineStatus string

const (
	RawPassive  EngineStatus = "passive"
	RawActive   EngineStatus = "active"
	RawFinished EngineStatus = "finished"
)

// RawStore is the narrow contract the synchronization utility needs: stream
// every row out verbatim, and accept rows back verbatim, with no
// equivalence fold and no status recompute. internal/store/relstore and
// internal/store/backup both implement this in addition to Store.
type RawStore interface {
	AllRaw(ctx context.Context) ([]RawRow, error)
	PutRaw(ctx context.Context, row RawRow) error
	Close() error
}
