// Package relstore is the gorm-backed implementation of store.Store: a
// relational schema with three tables (main, add_list, kill_list),
// single-writer/multi-reader discipline via a process-wide mutex around
// every mutating transaction, and change events emitted on commit.
// Grounded on burstgridgo's own gorm usage
// (kubegems-kubegems/pkg/model/orm: db.AutoMigrate(models...), plain
// struct models with gorm tags, transactions via tx.First/tx.Save) with
// gorm.io/driver/postgres for a real deployment and
// github.com/glebarez/sqlite (a cgo-free sqlite driver) for tests and the
// standalone profile.
package relstore

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/relaygrid/relaygridgo/internal/model"
	"github.com/relaygrid/relaygridgo/internal/store"
)

var _ store.Store = (*Store)(nil)
var _ store.RawStore = (*Store)(nil)

// mainRow is the main table: one row per stored node, inline or pointer.
type mainRow struct {
	ID           string `gorm:"primaryKey"`
	Blob         []byte
	EngineStatus string `gorm:"index"`
}

func (mainRow) TableName() string { return "main" }

// addListRow is the add_list table: one row per queued add batch.
type addListRow struct {
	ID    string `gorm:"primaryKey"`
	Nodes []byte
}

func (addListRow) TableName() string { return "add_list" }

// killListRow is the kill_list table: one row per queued kill batch.
type killListRow struct {
	ID  string `gorm:"primaryKey"`
	IDs []byte
}

func (killListRow) TableName() string { return "kill_list" }

// Store is the concrete store.Store backed by gorm.
type Store struct {
	db *gorm.DB
	// writeMu enforces the single-writer discipline: every mutation of a
	// node's history, a queue row, or engine_status passes through this
	// lock, even though reads may proceed concurrently against db.
	writeMu sync.Mutex
}

// Open connects to uri, which must be either a postgres DSN
// (postgres://...) or a local sqlite file path, and runs the schema
// migration.
func Open(uri string) (*Store, error) {
	var dialector gorm.Dialector
	switch {
	case strings.HasPrefix(uri, "postgres://"):
		dialector = postgres.Open(uri)
	default:
		dialector = sqlite.Open(uri)
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, store.LoadError(uri, err)
	}
	if err := db.AutoMigrate(&mainRow{}, &addListRow{}, &killListRow{}); err != nil {
		return nil, store.LoadError(uri, err)
	}
	return &Store{db: db}, nil
}

func engineStatusColumn(n *model.Node) string {
	return string(model.Compress(n.SimplifiedStatus()))
}

func (s *Store) Get(ctx context.Context, id string) (*model.Node, error) {
	get := func(lookID string) (*model.StoredNode, bool) {
		var row mainRow
		if err := s.db.WithContext(ctx).First(&row, "id = ?", lookID).Error; err != nil {
			return nil, false
		}
		sn, err := model.DeserializeStoredNode(row.Blob)
		if err != nil {
			return nil, false
		}
		return sn, true
	}
	n, err := model.Resolve(get, id)
	if err != nil {
		return nil, store.ParseError("resolve", err)
	}
	return n, nil
}

func (s *Store) Update(ctx context.Context, node *model.Node) (store.ChangeEvent, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	blob, err := model.SerializeStoredNode(&model.StoredNode{ID: node.ID, Inline: node})
	if err != nil {
		return store.ChangeEvent{}, store.ParseError("serialize", err)
	}

	row := mainRow{ID: node.ID, Blob: blob, EngineStatus: engineStatusColumn(node)}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Save(&row).Error
	})
	if err != nil {
		return store.ChangeEvent{}, store.ExecError("update main", []any{node.ID}, err)
	}
	return store.ChangeEvent{Kind: store.ChangeNodesChanged, IDs: []string{node.ID}}, nil
}

func (s *Store) ForEachActive(ctx context.Context, f func(*model.Node) error) error {
	var rows []mainRow
	if err := s.db.WithContext(ctx).Where("engine_status = ?", "active").Find(&rows).Error; err != nil {
		return store.ExecError("select active", nil, err)
	}
	for _, row := range rows {
		n, err := s.resolveRow(row)
		if err != nil {
			return err
		}
		if err := f(n); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) resolveRow(row mainRow) (*model.Node, error) {
	sn, err := model.DeserializeStoredNode(row.Blob)
	if err != nil {
		return nil, store.ParseError("deserialize", err)
	}
	if !sn.IsPointer() {
		return sn.Inline, nil
	}
	return s.Get(context.Background(), sn.ID)
}

func (s *Store) AllVisible(ctx context.Context) ([]*model.StoredNode, error) {
	var rows []mainRow
	if err := s.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, store.ExecError("select all", nil, err)
	}
	out := make([]*model.StoredNode, 0, len(rows))
	for _, row := range rows {
		sn, err := model.DeserializeStoredNode(row.Blob)
		if err != nil {
			return nil, store.ParseError("deserialize", err)
		}
		out = append(out, sn)
	}
	return out, nil
}

func (s *Store) AllActiveAndPassive(ctx context.Context) ([]*model.Node, error) {
	var rows []mainRow
	if err := s.db.WithContext(ctx).Where("engine_status IN ?", []string{"active", "passive"}).Find(&rows).Error; err != nil {
		return nil, store.ExecError("select active+passive", nil, err)
	}
	out := make([]*model.Node, 0, len(rows))
	for _, row := range rows {
		n, err := s.resolveRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func (s *Store) QueueAdds(ctx context.Context, batch model.AddBatch) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	nodesBlob, err := json.Marshal(batch.Nodes)
	if err != nil {
		return store.ParseError("marshal add batch", err)
	}
	row := addListRow{ID: batch.ID, Nodes: nodesBlob}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return store.ExecError("insert add_list", []any{batch.ID}, err)
	}
	return nil
}

func (s *Store) QueueKills(ctx context.Context, batch model.KillBatch) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	idsBlob, err := json.Marshal(batch.IDs)
	if err != nil {
		return store.ParseError("marshal kill batch", err)
	}
	row := killListRow{ID: batch.ID, IDs: idsBlob}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return store.ExecError("insert kill_list", []any{batch.ID}, err)
	}
	return nil
}

// getTx resolves id against tx rather than s.db, so a drain's read and
// write of the same node stay inside one transaction.
func (s *Store) getTx(tx *gorm.DB, id string) (*model.Node, error) {
	get := func(lookID string) (*model.StoredNode, bool) {
		var row mainRow
		if err := tx.First(&row, "id = ?", lookID).Error; err != nil {
			return nil, false
		}
		sn, err := model.DeserializeStoredNode(row.Blob)
		if err != nil {
			return nil, false
		}
		return sn, true
	}
	n, err := model.Resolve(get, id)
	if err != nil {
		return nil, store.ParseError("resolve", err)
	}
	return n, nil
}

func (s *Store) allActiveAndPassiveTx(tx *gorm.DB) ([]*model.Node, error) {
	var rows []mainRow
	if err := tx.Where("engine_status IN ?", []string{"active", "passive"}).Find(&rows).Error; err != nil {
		return nil, store.ExecError("select active+passive", nil, err)
	}
	out := make([]*model.Node, 0, len(rows))
	for _, row := range rows {
		sn, err := model.DeserializeStoredNode(row.Blob)
		if err != nil {
			return nil, store.ParseError("deserialize", err)
		}
		if sn.IsPointer() {
			n, err := s.getTx(tx, sn.ID)
			if err != nil {
				return nil, err
			}
			out = append(out, n)
			continue
		}
		out = append(out, sn.Inline)
	}
	return out, nil
}

func (s *Store) DrainKills(ctx context.Context) ([]store.ChangeEvent, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var killRows []killListRow
	if err := s.db.WithContext(ctx).Find(&killRows).Error; err != nil {
		return nil, store.ExecError("select kill_list", nil, err)
	}

	now := time.Now()
	var events []store.ChangeEvent
	for _, kr := range killRows {
		var ids []string
		if err := json.Unmarshal(kr.IDs, &ids); err != nil {
			return nil, store.ParseError("unmarshal kill batch", err)
		}

		var changedIDs []string
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			for _, id := range ids {
				n, err := s.getTx(tx, id)
				if err != nil {
					return err
				}
				killedNode, ok := model.Kill(n, now)
				if !ok {
					continue
				}
				blob, err := model.SerializeStoredNode(&model.StoredNode{ID: killedNode.ID, Inline: killedNode})
				if err != nil {
					return store.ParseError("serialize", err)
				}
				row := mainRow{ID: killedNode.ID, Blob: blob, EngineStatus: engineStatusColumn(killedNode)}
				if err := tx.Save(&row).Error; err != nil {
					return store.ExecError("update main", []any{killedNode.ID}, err)
				}
				changedIDs = append(changedIDs, killedNode.ID)
			}
			return tx.Delete(&killListRow{}, "id = ?", kr.ID).Error
		})
		if err != nil {
			return nil, err
		}
		if len(changedIDs) > 0 {
			events = append(events, store.ChangeEvent{Kind: store.ChangeNodesChanged, IDs: changedIDs})
		}
	}
	return events, nil
}

func (s *Store) DrainAdds(ctx context.Context, equivalenceFold func(existing []*model.Node, batch model.AddBatch) ([]*model.StoredNode, error)) ([]store.ChangeEvent, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var addRows []addListRow
	if err := s.db.WithContext(ctx).Find(&addRows).Error; err != nil {
		return nil, store.ExecError("select add_list", nil, err)
	}

	var events []store.ChangeEvent
	for _, ar := range addRows {
		var nodes []*model.Node
		if err := json.Unmarshal(ar.Nodes, &nodes); err != nil {
			return nil, store.ParseError("unmarshal add batch", err)
		}
		batch := model.AddBatch{ID: ar.ID, Nodes: nodes}

		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			existing, err := s.allActiveAndPassiveTx(tx)
			if err != nil {
				return err
			}
			storedNodes, err := equivalenceFold(existing, batch)
			if err != nil {
				return err
			}

			ids := make([]string, 0, len(storedNodes))
			for _, sn := range storedNodes {
				blob, err := model.SerializeStoredNode(sn)
				if err != nil {
					return store.ParseError("serialize", err)
				}
				status := "passive"
				if sn.Inline != nil {
					status = engineStatusColumn(sn.Inline)
				}
				row := mainRow{ID: sn.ID, Blob: blob, EngineStatus: status}
				if err := tx.Save(&row).Error; err != nil {
					return store.ExecError("insert main", []any{sn.ID}, err)
				}
				ids = append(ids, sn.ID)
			}
			if err := tx.Delete(&addListRow{}, "id = ?", ar.ID).Error; err != nil {
				return store.ExecError("delete add_list", []any{ar.ID}, err)
			}
			events = append(events, store.ChangeEvent{Kind: store.ChangeNewNodes, IDs: ids})
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return events, nil
}

func (s *Store) ForceInsertPassive(ctx context.Context, node *model.Node) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	blob, err := model.SerializeStoredNode(&model.StoredNode{ID: node.ID, Inline: node})
	if err != nil {
		return store.ParseError("serialize", err)
	}
	row := mainRow{ID: node.ID, Blob: blob, EngineStatus: "passive"}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return store.ExecError("force insert", []any{node.ID}, err)
	}
	return nil
}

// AllRaw streams every main-table row back exactly as persisted, for the
// synchronization utility. Unlike AllVisible it carries the engine_status
// column alongside each row rather than leaving the caller to recompute it.
func (s *Store) AllRaw(ctx context.Context) ([]store.RawRow, error) {
	var rows []mainRow
	if err := s.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, store.ExecError("select all (raw)", nil, err)
	}
	out := make([]store.RawRow, 0, len(rows))
	for _, row := range rows {
		sn, err := model.DeserializeStoredNode(row.Blob)
		if err != nil {
			return nil, store.ParseError("deserialize", err)
		}
		out = append(out, store.RawRow{Stored: sn, EngineStatus: store.EngineStatus(row.EngineStatus)})
	}
	return out, nil
}

// PutRaw writes row verbatim, overwriting whatever is stored at its id.
// Used only by the synchronization utility; ordinary submission always
// goes through QueueAdds/DrainAdds so the equivalence fold runs.
func (s *Store) PutRaw(ctx context.Context, row store.RawRow) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	blob, err := model.SerializeStoredNode(row.Stored)
	if err != nil {
		return store.ParseError("serialize", err)
	}
	mrow := mainRow{ID: row.Stored.ID, Blob: blob, EngineStatus: string(row.EngineStatus)}
	if err := s.db.WithContext(ctx).Save(&mrow).Error; err != nil {
		return store.ExecError("put raw", []any{row.Stored.ID}, err)
	}
	return nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return store.CloseError(err)
	}
	if err := sqlDB.Close(); err != nil {
		return store.CloseError(err)
	}
	return nil
}
