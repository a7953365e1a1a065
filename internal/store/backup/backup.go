// Package backup is the flat-file mirror half of the storage
// synchronization utility: a Store backed by one JSON file per stored node
// under numbered subdirectories of up to 100 files each, rather than a SQL
// table. It satisfies the same store.Store contract as relstore so the
// engine could run against it directly, but its real purpose is serving as
// the source or destination of a sync.Copy alongside a native database.
//
// Grounded on burstgridgo's own disk-fixture conventions in its test
// helpers (os.MkdirAll plus os.WriteFile/os.ReadFile against a scratch
// directory) rather than a third-party embedded KV store: nothing in the
// retrieved pack reaches for a library to manage a small bucketed JSON
// tree, so this stays on the standard library by the same judgment the
// teacher itself applies to disk fixtures.
package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/relaygrid/relaygridgo/internal/model"
	"github.com/relaygrid/relaygridgo/internal/store"
)

const bucketCapacity = 100

var _ store.Store = (*Store)(nil)
var _ store.RawStore = (*Store)(nil)

// fileRecord is the on-disk shape of one <id>.json file: the stored node
// exactly as persisted, plus the engine status written alongside it.
type fileRecord struct {
	EngineStatus store.EngineStatus `json:"engine_status"`
	Stored       *model.StoredNode  `json:"stored"`
}

// Store is a store.Store backed by a directory tree rather than a
// database connection.
type Store struct {
	root string

	mu           sync.Mutex
	bucketOf     map[string]int // node id -> subdirectory
	bucketCounts map[int]int
	nextBucket   int
}

// Open mounts dir as a flat-file store, creating it if necessary and
// rebuilding the bucket index from whatever is already on disk.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(filepath.Join(dir, "nodes"), 0o755); err != nil {
		return nil, store.LoadError("backup:"+dir, err)
	}
	if err := os.MkdirAll(filepath.Join(dir, "add_list"), 0o755); err != nil {
		return nil, store.LoadError("backup:"+dir, err)
	}
	if err := os.MkdirAll(filepath.Join(dir, "kill_list"), 0o755); err != nil {
		return nil, store.LoadError("backup:"+dir, err)
	}

	s := &Store{
		root:         dir,
		bucketOf:     make(map[string]int),
		bucketCounts: make(map[int]int),
	}
	if err := s.rebuildIndex(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) nodesDir() string    { return filepath.Join(s.root, "nodes") }
func (s *Store) addListDir() string  { return filepath.Join(s.root, "add_list") }
func (s *Store) killListDir() string { return filepath.Join(s.root, "kill_list") }

// rebuildIndex walks the existing nodes tree so a reopened mirror resumes
// bucket assignment where it left off instead of starting every id back at
// bucket 0 and colliding with files already there.
func (s *Store) rebuildIndex() error {
	entries, err := os.ReadDir(s.nodesDir())
	if err != nil {
		return store.LoadError("backup:"+s.root, err)
	}
	for _, bucketEntry := range entries {
		if !bucketEntry.IsDir() {
			continue
		}
		bucket, err := strconv.Atoi(bucketEntry.Name())
		if err != nil {
			continue
		}
		files, err := os.ReadDir(filepath.Join(s.nodesDir(), bucketEntry.Name()))
		if err != nil {
			return store.LoadError("backup:"+s.root, err)
		}
		for _, f := range files {
			id := strings.TrimSuffix(f.Name(), ".json")
			s.bucketOf[id] = bucket
			s.bucketCounts[bucket]++
		}
		if bucket >= s.nextBucket {
			s.nextBucket = bucket + 1
		}
	}
	if len(s.bucketCounts) == 0 {
		s.nextBucket = 0
	}
	return nil
}

// pathFor returns the file path id is (or would be) stored at, assigning a
// fresh bucket on first sight and rolling over to the next bucket once the
// current one holds bucketCapacity files.
func (s *Store) pathFor(id string) string {
	bucket, ok := s.bucketOf[id]
	if !ok {
		if s.bucketCounts[s.nextBucket] >= bucketCapacity {
			s.nextBucket++
		}
		bucket = s.nextBucket
		s.bucketOf[id] = bucket
		s.bucketCounts[bucket]++
	}
	return filepath.Join(s.nodesDir(), strconv.Itoa(bucket), id+".json")
}

func (s *Store) readRecord(id string) (*fileRecord, bool) {
	path, ok := s.existingPath(id)
	if !ok {
		return nil, false
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	var rec fileRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, false
	}
	return &rec, true
}

func (s *Store) existingPath(id string) (string, bool) {
	bucket, ok := s.bucketOf[id]
	if !ok {
		return "", false
	}
	path := filepath.Join(s.nodesDir(), strconv.Itoa(bucket), id+".json")
	if _, err := os.Stat(path); err != nil {
		return "", false
	}
	return path, true
}

func (s *Store) writeRecord(id string, rec *fileRecord) error {
	path := s.pathFor(id)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return store.ExecError("mkdir", []any{id}, err)
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return store.ParseError("marshal", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return store.ExecError("write", []any{id}, err)
	}
	return nil
}

func (s *Store) Get(_ context.Context, id string) (*model.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	get := func(lookID string) (*model.StoredNode, bool) {
		rec, ok := s.readRecord(lookID)
		if !ok {
			return nil, false
		}
		return rec.Stored, true
	}
	n, err := model.Resolve(get, id)
	if err != nil {
		return nil, store.ParseError("resolve", err)
	}
	return n, nil
}

func (s *Store) Update(_ context.Context, node *model.Node) (store.ChangeEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := store.EngineStatus(model.Compress(node.SimplifiedStatus()))
	rec := &fileRecord{EngineStatus: status, Stored: &model.StoredNode{ID: node.ID, Inline: node}}
	if err := s.writeRecord(node.ID, rec); err != nil {
		return store.ChangeEvent{}, err
	}
	return store.ChangeEvent{Kind: store.ChangeNodesChanged, IDs: []string{node.ID}}, nil
}

func (s *Store) forEachRecord(f func(id string, rec *fileRecord) error) error {
	for id := range s.bucketOf {
		rec, ok := s.readRecord(id)
		if !ok {
			continue
		}
		if err := f(id, rec); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) ForEachActive(ctx context.Context, f func(*model.Node) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.forEachRecord(func(id string, rec *fileRecord) error {
		if rec.EngineStatus != store.EngineStatus(model.EngineStatusActive) {
			return nil
		}
		n, err := s.resolveLocked(rec)
		if err != nil {
			return err
		}
		return f(n)
	})
}

func (s *Store) resolveLocked(rec *fileRecord) (*model.Node, error) {
	if !rec.Stored.IsPointer() {
		return rec.Stored.Inline, nil
	}
	get := func(lookID string) (*model.StoredNode, bool) {
		r, ok := s.readRecord(lookID)
		if !ok {
			return nil, false
		}
		return r.Stored, true
	}
	n, err := model.Resolve(get, rec.Stored.PointerTo)
	if err != nil {
		return nil, store.ParseError("resolve", err)
	}
	return n, nil
}

func (s *Store) AllVisible(_ context.Context) ([]*model.StoredNode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*model.StoredNode
	err := s.forEachRecord(func(_ string, rec *fileRecord) error {
		out = append(out, rec.Stored)
		return nil
	})
	return out, err
}

func (s *Store) AllActiveAndPassive(_ context.Context) ([]*model.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*model.Node
	err := s.forEachRecord(func(_ string, rec *fileRecord) error {
		if rec.EngineStatus != store.EngineStatus(model.EngineStatusActive) &&
			rec.EngineStatus != store.EngineStatus(model.EngineStatusPassive) {
			return nil
		}
		n, err := s.resolveLocked(rec)
		if err != nil {
			return err
		}
		out = append(out, n)
		return nil
	})
	return out, err
}

func (s *Store) QueueAdds(_ context.Context, batch model.AddBatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(batch)
	if err != nil {
		return store.ParseError("marshal add batch", err)
	}
	path := filepath.Join(s.addListDir(), batch.ID+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return store.ExecError("queue add", []any{batch.ID}, err)
	}
	return nil
}

func (s *Store) QueueKills(_ context.Context, batch model.KillBatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(batch)
	if err != nil {
		return store.ParseError("marshal kill batch", err)
	}
	path := filepath.Join(s.killListDir(), batch.ID+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return store.ExecError("queue kill", []any{batch.ID}, err)
	}
	return nil
}

func (s *Store) DrainKills(_ context.Context) ([]store.ChangeEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.killListDir())
	if err != nil {
		return nil, store.ExecError("read kill_list", nil, err)
	}

	var events []store.ChangeEvent
	for _, entry := range entries {
		path := filepath.Join(s.killListDir(), entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, store.ExecError("read kill batch", []any{entry.Name()}, err)
		}
		var batch model.KillBatch
		if err := json.Unmarshal(data, &batch); err != nil {
			return nil, store.ParseError("unmarshal kill batch", err)
		}

		var changedIDs []string
		for _, id := range batch.IDs {
			rec, ok := s.readRecord(id)
			if !ok {
				continue
			}
			n, err := s.resolveLocked(rec)
			if err != nil {
				return nil, err
			}
			killedNode, ok := model.Kill(n, time.Now())
			if !ok {
				continue
			}
			newRec := &fileRecord{
				EngineStatus: store.EngineStatus(model.Compress(killedNode.SimplifiedStatus())),
				Stored:       &model.StoredNode{ID: killedNode.ID, Inline: killedNode},
			}
			if err := s.writeRecord(killedNode.ID, newRec); err != nil {
				return nil, err
			}
			changedIDs = append(changedIDs, killedNode.ID)
		}
		if err := os.Remove(path); err != nil {
			return nil, store.ExecError("remove kill batch", []any{entry.Name()}, err)
		}
		if len(changedIDs) > 0 {
			events = append(events, store.ChangeEvent{Kind: store.ChangeNodesChanged, IDs: changedIDs})
		}
	}
	return events, nil
}

func (s *Store) DrainAdds(_ context.Context, equivalenceFold func(existing []*model.Node, batch model.AddBatch) ([]*model.StoredNode, error)) ([]store.ChangeEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.addListDir())
	if err != nil {
		return nil, store.ExecError("read add_list", nil, err)
	}

	var events []store.ChangeEvent
	for _, entry := range entries {
		path := filepath.Join(s.addListDir(), entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, store.ExecError("read add batch", []any{entry.Name()}, err)
		}
		var batch model.AddBatch
		if err := json.Unmarshal(data, &batch); err != nil {
			return nil, store.ParseError("unmarshal add batch", err)
		}

		var existing []*model.Node
		err = s.forEachRecord(func(_ string, rec *fileRecord) error {
			if rec.EngineStatus != store.EngineStatus(model.EngineStatusActive) &&
				rec.EngineStatus != store.EngineStatus(model.EngineStatusPassive) {
				return nil
			}
			n, err := s.resolveLocked(rec)
			if err != nil {
				return err
			}
			existing = append(existing, n)
			return nil
		})
		if err != nil {
			return nil, err
		}

		storedNodes, err := equivalenceFold(existing, batch)
		if err != nil {
			return nil, err
		}

		ids := make([]string, 0, len(storedNodes))
		for _, sn := range storedNodes {
			status := store.EngineStatus(model.EngineStatusPassive)
			if sn.Inline != nil {
				status = store.EngineStatus(model.Compress(sn.Inline.SimplifiedStatus()))
			}
			if err := s.writeRecord(sn.ID, &fileRecord{EngineStatus: status, Stored: sn}); err != nil {
				return nil, err
			}
			ids = append(ids, sn.ID)
		}
		if err := os.Remove(path); err != nil {
			return nil, store.ExecError("remove add batch", []any{entry.Name()}, err)
		}
		events = append(events, store.ChangeEvent{Kind: store.ChangeNewNodes, IDs: ids})
	}
	return events, nil
}

func (s *Store) ForceInsertPassive(_ context.Context, node *model.Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := &fileRecord{EngineStatus: store.EngineStatus(model.EngineStatusPassive), Stored: &model.StoredNode{ID: node.ID, Inline: node}}
	return s.writeRecord(node.ID, rec)
}

// AllRaw streams every node record back exactly as persisted, engine status
// included, for the synchronization utility.
func (s *Store) AllRaw(_ context.Context) ([]store.RawRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []store.RawRow
	err := s.forEachRecord(func(_ string, rec *fileRecord) error {
		out = append(out, store.RawRow{Stored: rec.Stored, EngineStatus: rec.EngineStatus})
		return nil
	})
	return out, err
}

// PutRaw writes row verbatim, bypassing Update's status recompute and
// DrainAdds's equivalence fold. Used only by the synchronization utility.
func (s *Store) PutRaw(_ context.Context, row store.RawRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if row.Stored == nil {
		return fmt.Errorf("backup: PutRaw: nil stored node")
	}
	return s.writeRecord(row.Stored.ID, &fileRecord{EngineStatus: row.EngineStatus, Stored: row.Stored})
}

func (s *Store) Close() error { return nil }
