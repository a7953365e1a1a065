package model

import (
	"fmt"
	"time"
)

// HistoryEntry is one link in a node's immutable history cons-list. Entry
// never mutates in place once committed; extending a history always
// allocates a new entry whose Prev points at the one it extends.
type HistoryEntry struct {
	Time time.Time        `json:"time"`
	Tag  StateTag         `json:"tag"`
	Log  string           `json:"log,omitempty"`
	Book *RunBookkeeping  `json:"book,omitempty"`

	// Attempts counts consecutive recoverable-error retries recorded
	// against this same logical state (e.g. how many times in a row
	// still-running-despite-recoverable-error has self-looped). It resets
	// to zero whenever the tag changes.
	Attempts int `json:"attempts,omitempty"`

	Prev *HistoryEntry `json:"prev,omitempty"`
}

// NewHistory starts a fresh history at Passive, the only tag with no
// predecessor.
func NewHistory(at time.Time) *HistoryEntry {
	return &HistoryEntry{Time: at, Tag: Passive}
}

// Extend validates and appends a new entry on top of h. It is the single
// choke point through which every history mutation in this codebase must
// pass; a transition that IsLegalTransition rejects never reaches the
// store.
func (h *HistoryEntry) Extend(at time.Time, tag StateTag, log string, book *RunBookkeeping) (*HistoryEntry, error) {
	if h == nil {
		return nil, fmt.Errorf("model: cannot extend a nil history")
	}
	if !IsLegalTransition(h.Tag, tag) {
		return nil, fmt.Errorf("model: illegal transition %s -> %s", h.Tag, tag)
	}
	attempts := 0
	if tag == h.Tag {
		attempts = h.Attempts + 1
	}
	return &HistoryEntry{
		Time:     at,
		Tag:      tag,
		Log:      log,
		Book:     book,
		Attempts: attempts,
		Prev:     h,
	}, nil
}

// ExtendUnchecked appends a new entry without validating legality.
// Deserialization and the stores do not call it (histories are decoded
// from JSON); ordinary transitions must go through Extend.
func ExtendUnchecked(h *HistoryEntry, at time.Time, tag StateTag, log string, book *RunBookkeeping, attempts int) *HistoryEntry {
	return &HistoryEntry{Time: at, Tag: tag, Log: log, Book: book, Attempts: attempts, Prev: h}
}

// LatestRunParameters walks backward from h and returns the most recent
// non-nil bookkeeping recorded in the history, or nil if the node never
// reached a state that interacts with an executor.
func (h *HistoryEntry) LatestRunParameters() *RunBookkeeping {
	for e := h; e != nil; e = e.Prev {
		if e.Book != nil {
			return e.Book
		}
	}
	return nil
}

// FlattenedEntry is the (time, state_name, msg, book_msg) tuple a
// flattened history produces, oldest entry first.
type FlattenedEntry struct {
	Time    time.Time
	State   StateTag
	Log     string
	BookMsg string
}

// Flatten returns the full history oldest-first as a plain slice. The
// GET /target/{id} handler does not use it; it returns the node's nested
// history as is.
func (h *HistoryEntry) Flatten() []FlattenedEntry {
	var reversed []*HistoryEntry
	for e := h; e != nil; e = e.Prev {
		reversed = append(reversed, e)
	}
	out := make([]FlattenedEntry, len(reversed))
	for i, e := range reversed {
		bookMsg := ""
		if e.Book != nil {
			bookMsg = e.Book.PluginName
		}
		out[len(reversed)-1-i] = FlattenedEntry{Time: e.Time, State: e.Tag, Log: e.Log, BookMsg: bookMsg}
	}
	return out
}

// Summary returns the most recent entry's timestamp, its log message (if
// any), and a short list of human-readable info strings describing the
// tail of the history — a condensed view next to the full Flatten(). No
// HTTP handler or CLI command calls it.
func (h *HistoryEntry) Summary() (time.Time, *string, []string) {
	if h == nil {
		return time.Time{}, nil, nil
	}
	var msg *string
	if h.Log != "" {
		m := h.Log
		msg = &m
	}
	info := []string{string(h.Tag)}
	if h.Book != nil {
		info = append(info, fmt.Sprintf("plugin=%s", h.Book.PluginName))
	}
	if h.Attempts > 0 {
		info = append(info, fmt.Sprintf("attempts=%d", h.Attempts))
	}
	return h.Time, msg, info
}
