package model

import (
	"encoding/json"
	"fmt"
)

// CurrentBlobVersion is the version tag written into every serialized
// node. Bumping it and adding a case to migrateBlob is how forward
// migration works: old blobs keep decoding under their original version
// and are upgraded in memory, never rewritten in place implicitly.
const CurrentBlobVersion = 1

// blobEnvelope is the structured-text (JSON) wire form stored in the
// `main` table's blob column: the full typed history, the condition tree,
// and the build process, all of which round-trip through plain
// encoding/json because every field in the union types above already
// carries explicit json tags and the history's cons-list nests naturally.
type blobEnvelope struct {
	Version int   `json:"version"`
	Node    *Node `json:"node"`
}

// SerializeNode encodes n as a versioned blob suitable for the `main`
// table or the backup:<dir> mirror.
func SerializeNode(n *Node) ([]byte, error) {
	env := blobEnvelope{Version: CurrentBlobVersion, Node: n}
	b, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("model: serialize node %s: %w", n.ID, err)
	}
	return b, nil
}

// DeserializeNode decodes a blob previously written by SerializeNode,
// migrating older versions forward as needed.
func DeserializeNode(blob []byte) (*Node, error) {
	var env blobEnvelope
	if err := json.Unmarshal(blob, &env); err != nil {
		return nil, fmt.Errorf("model: deserialize node: %w", err)
	}
	n, err := migrateBlob(env)
	if err != nil {
		return nil, fmt.Errorf("model: migrate node blob: %w", err)
	}
	return n, nil
}

// migrateBlob upgrades older envelope versions to the current in-memory
// shape. There is currently only one version; this is the seam future
// versions hook into.
func migrateBlob(env blobEnvelope) (*Node, error) {
	switch env.Version {
	case CurrentBlobVersion:
		return env.Node, nil
	case 0:
		return nil, fmt.Errorf("model: blob carries no version tag, cannot migrate")
	default:
		return nil, fmt.Errorf("model: blob version %d is newer than this binary understands (%d)", env.Version, CurrentBlobVersion)
	}
}

// storedEnvelope wraps a StoredNode (inline or pointer) the same way, used
// by the store layer when persisting rows that may be either shape.
type storedEnvelope struct {
	Version int         `json:"version"`
	Stored  *StoredNode `json:"stored"`
}

// SerializeStoredNode encodes a StoredNode (inline node or pointer) for
// the `main` table.
func SerializeStoredNode(s *StoredNode) ([]byte, error) {
	env := storedEnvelope{Version: CurrentBlobVersion, Stored: s}
	b, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("model: serialize stored node %s: %w", s.ID, err)
	}
	return b, nil
}

// DeserializeStoredNode decodes a blob previously written by
// SerializeStoredNode.
func DeserializeStoredNode(blob []byte) (*StoredNode, error) {
	var env storedEnvelope
	if err := json.Unmarshal(blob, &env); err != nil {
		return nil, fmt.Errorf("model: deserialize stored node: %w", err)
	}
	if env.Version != CurrentBlobVersion {
		return nil, fmt.Errorf("model: stored node blob version %d unsupported by this binary (%d)", env.Version, CurrentBlobVersion)
	}
	return env.Stored, nil
}
