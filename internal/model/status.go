package model

// SimplifiedStatus is the derived three(-plus-one)-valued roll-up stored
// alongside each row for fast filtering.
type SimplifiedStatus string

const (
	StatusActivable  SimplifiedStatus = "activable"
	StatusInProgress SimplifiedStatus = "in-progress"
	StatusSuccessful SimplifiedStatus = "successful"
	StatusFailed     SimplifiedStatus = "failed"
)

// successfulTerminals is the subset of terminal tags that count as success.
var successfulTerminals = map[StateTag]bool{
	VerifiedSuccess: true,
	AlreadyDone:     true,
}

// Simplify is a pure function of the latest history tag: activable only at
// Passive, successful at the two success terminals, failed at every other
// terminal (including Finished, whose predecessor decides), and
// in-progress everywhere else. It must never consult Log or Book content.
func Simplify(h *HistoryEntry) SimplifiedStatus {
	if h == nil {
		return StatusActivable
	}
	tag := h.Tag
	if tag == Passive {
		return StatusActivable
	}
	if tag == Finished {
		// Finished records nothing itself; its predecessor's tag decided
		// success or failure and is still reachable one hop back.
		if h.Prev != nil && successfulTerminals[h.Prev.Tag] {
			return StatusSuccessful
		}
		return StatusFailed
	}
	if IsTerminal(tag) {
		if successfulTerminals[tag] {
			return StatusSuccessful
		}
		return StatusFailed
	}
	return StatusInProgress
}

// EngineStatus is the compressed three-bucket status the relational store
// keeps alongside each row in the `main` table for cheap filtering
// (active-only and active-plus-passive scans) without deserializing the
// blob.
type EngineStatus string

const (
	EngineStatusPassive  EngineStatus = "passive"
	EngineStatusActive   EngineStatus = "active"
	EngineStatusFinished EngineStatus = "finished"
)

// Compress reduces the four-valued SimplifiedStatus down to the
// three-bucket EngineStatus the `main` table indexes on.
func Compress(s SimplifiedStatus) EngineStatus {
	switch s {
	case StatusActivable:
		return EngineStatusPassive
	case StatusSuccessful, StatusFailed:
		return EngineStatusFinished
	default:
		return EngineStatusActive
	}
}
