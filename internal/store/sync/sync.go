// Package sync implements the storage synchronization utility: resolving
// either of the two supported URI schemes to a store.RawStore and copying
// every stored node from one to the other, preserving pointers and engine
// statuses exactly.
package sync

import (
	"context"
	"fmt"
	"strings"

	"github.com/relaygrid/relaygridgo/internal/store"
	"github.com/relaygrid/relaygridgo/internal/store/backup"
	"github.com/relaygrid/relaygridgo/internal/store/relstore"
)

// Open resolves uri to a store.RawStore: a "backup:<dir>" prefix opens the
// flat-file mirror, anything else opens a relstore connection (a
// postgres:// DSN or a sqlite file path).
func Open(uri string) (store.RawStore, error) {
	if dir, ok := strings.CutPrefix(uri, "backup:"); ok {
		return backup.Open(dir)
	}
	return relstore.Open(uri)
}

// Copy streams every stored node from src to dst via AllRaw/PutRaw,
// preserving pointer-vs-inline form and engine status verbatim rather than
// recomputing either. srcURI/dstURI are carried only for error reporting,
// per the (source_uri, dest_uri, cause) triple external I/O failures are
// surfaced with.
func Copy(ctx context.Context, srcURI, dstURI string, src, dst store.RawStore) error {
	rows, err := src.AllRaw(ctx)
	if err != nil {
		return fmt.Errorf("sync: copy(%s, %s): read source: %w", srcURI, dstURI, err)
	}
	for _, row := range rows {
		if err := dst.PutRaw(ctx, row); err != nil {
			return fmt.Errorf("sync: copy(%s, %s): write %s: %w", srcURI, dstURI, row.Stored.ID, err)
		}
	}
	return nil
}
